package payments

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalcart/storefront-backend/internal/orders"
	"github.com/vitalcart/storefront-backend/internal/repo/repotest"
	"github.com/vitalcart/storefront-backend/internal/sessions"
	"github.com/vitalcart/storefront-backend/internal/users"
	"github.com/vitalcart/storefront-backend/pkg/db"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/genie"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"github.com/vitalcart/storefront-backend/pkg/outbox"
	"github.com/vitalcart/storefront-backend/pkg/types"
	"gorm.io/gorm"
)

type stubGateway struct {
	created []genie.CreateTransactionRequest
	charged []string
	tokens  []genie.Token
	err     error
}

func (s *stubGateway) CreateTransaction(ctx context.Context, req genie.CreateTransactionRequest) (*genie.Transaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, req)
	id := "txn_" + uuid.NewString()[:8]
	return &genie.Transaction{ID: id, URL: "https://pay.example/" + id, LocalID: req.LocalID}, nil
}

func (s *stubGateway) ChargeStoredToken(ctx context.Context, customerID, transactionID, tokenID string) (*genie.ChargeResult, error) {
	s.charged = append(s.charged, tokenID)
	return &genie.ChargeResult{Success: true, State: "CONFIRMED"}, nil
}

func (s *stubGateway) GetCustomerTokens(ctx context.Context, customerID string) ([]genie.Token, error) {
	return s.tokens, s.err
}

type fixture struct {
	conn     *gorm.DB
	svc      *Service
	gateway  *stubGateway
	sessions *sessions.Service
	userID   uuid.UUID
}

func newFixture(t *testing.T, customerID string) *fixture {
	t.Helper()
	conn := repotest.NewDB(t)
	logg := logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard})
	accounts := users.NewRepository(conn)
	ctx := context.Background()

	user, err := accounts.Create(ctx, users.CreateUserDTO{Email: "tharindu@example.com", PasswordHash: "hash", Role: enums.UserRoleCustomer})
	require.NoError(t, err)
	_, err = accounts.CreateProfile(ctx, users.CreateProfileDTO{UserID: user.ID, FirstName: "Tharindu", LastName: "Jayasuriya"})
	require.NoError(t, err)
	if customerID != "" {
		require.NoError(t, accounts.SetGenieCustomerID(ctx, user.ID, customerID))
	}

	sessionSvc, err := sessions.NewService(sessions.NewRepository(conn), time.Hour)
	require.NoError(t, err)
	gw := &stubGateway{}
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Orders:   orders.NewRepository(conn),
		Sessions: sessionSvc,
		Accounts: accounts,
		Gateway:  gw,
		Tx:       db.Wrap(conn),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), logg),
		Logger:   logg,
	})
	require.NoError(t, err)
	return &fixture{conn: conn, svc: svc, gateway: gw, sessions: sessionSvc, userID: user.ID}
}

func consultationCart() types.Cart {
	return types.Cart{{
		ProductID:            "consult-hair",
		ProductName:          "Hair consultation",
		Quantity:             1,
		Months:               1,
		ConsultationFee:      decimal.RequireFromString("5000"),
		PrescriptionRequired: true,
	}}
}

func TestStartConsultationPaymentRecordsIntent(t *testing.T) {
	f := newFixture(t, "cus_1")
	ctx := context.Background()
	session, err := f.sessions.Create(ctx, &f.userID)
	require.NoError(t, err)
	require.NoError(t, f.sessions.Save(ctx, session.ID, sessions.Snapshot{Cart: consultationCart(), Step: enums.StepConsultationPayment}))

	started, err := f.svc.StartConsultationPayment(ctx, f.userID, session.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, "5000.00", started.Amount)
	require.Len(t, f.gateway.created, 1)
	assert.Equal(t, ConsultationLocalID(f.userID, session.ID), f.gateway.created[0].LocalID)
	assert.Equal(t, "cus_1", f.gateway.created[0].CustomerID)

	intent, err := f.svc.repo.FindIntent(ctx, nil, started.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentPhaseConsultation, intent.Phase)
	assert.Equal(t, enums.PaymentIntentOpen, intent.Status)
	require.NotNil(t, intent.CheckoutSessionID)
	assert.Equal(t, session.ID, *intent.CheckoutSessionID)

	stored, err := f.sessions.Resolve(ctx, session.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, enums.StepAwaitingConsultationPayment, stored.CurrentStep)

	var orders int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders, "no order exists before the consultation is paid")
}

func TestStartConsultationPaymentNeedsBillingAccount(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	session, err := f.sessions.Create(ctx, &f.userID)
	require.NoError(t, err)
	require.NoError(t, f.sessions.Save(ctx, session.ID, sessions.Snapshot{Cart: consultationCart(), Step: enums.StepConsultationPayment}))

	_, err = f.svc.StartConsultationPayment(ctx, f.userID, session.SessionToken)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	assert.Empty(t, f.gateway.created)
}

func TestStartConsultationPaymentRejectsForeignSession(t *testing.T) {
	f := newFixture(t, "cus_1")
	ctx := context.Background()
	other := uuid.New()
	session, err := f.sessions.Create(ctx, &other)
	require.NoError(t, err)

	_, err = f.svc.StartConsultationPayment(ctx, f.userID, session.SessionToken)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
}

func seedPhysicianReviewOrder(t *testing.T, f *fixture) *models.Order {
	t.Helper()
	consultTxn := "txn_consult"
	completed := time.Now().UTC()
	order := &models.Order{
		ID:                    uuid.New(),
		UserID:                f.userID,
		OrderNumber:           "VC-TEST-1",
		TotalAmount:           decimal.RequireFromString("11000"),
		Currency:              enums.CurrencyLKR,
		Status:                enums.OrderStatusPhysicianReview,
		PaymentFlowType:       enums.PaymentFlowConsultationFirst,
		ConsultationStatus:    enums.ConsultationPaid,
		PaymentStatus:         enums.OrderPaymentConsultationPaid,
		ProductPaymentStatus:  enums.ProductPaymentNotStarted,
		ConsultationPaymentID: &consultTxn,
	}
	repo := orders.NewRepository(f.conn)
	ctx := context.Background()
	require.NoError(t, repo.CreateOrder(ctx, order))
	require.NoError(t, repo.CreateItems(ctx, []models.OrderItem{{
		OrderID: order.ID, ProductID: "fin", ProductName: "Finasteride", Quantity: 1, Months: 3,
		UnitPrice: decimal.RequireFromString("2000"), MonthlyPrice: decimal.RequireFromString("2000"),
		TotalPrice: decimal.RequireFromString("6000"), ConsultationFee: decimal.RequireFromString("5000"), PrescriptionRequired: true,
	}}))
	require.NoError(t, repo.CreatePhase(ctx, &models.OrderPaymentPhase{
		OrderID: order.ID, Phase: enums.PaymentPhaseConsultation, TransactionID: consultTxn,
		Status: enums.PhaseStatusCompleted, Amount: decimal.RequireFromString("5000"), CompletedAt: &completed,
	}))
	return order
}

func TestStartProductPaymentChargesRemainder(t *testing.T) {
	f := newFixture(t, "cus_1")
	order := seedPhysicianReviewOrder(t, f)
	ctx := context.Background()

	started, err := f.svc.StartProductPayment(ctx, f.userID, order.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "6000.00", started.Amount)
	require.Len(t, f.gateway.created, 1)
	require.Len(t, f.gateway.created[0].Items, 1, "consultation already paid")

	stored, err := orders.NewRepository(f.conn).FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ProductPaymentID)
	assert.Equal(t, started.TransactionID, *stored.ProductPaymentID)
	assert.Equal(t, enums.ProductPaymentPending, stored.ProductPaymentStatus)
	require.Len(t, stored.Phases, 2)

	again, err := f.svc.StartProductPayment(ctx, f.userID, order.ID, nil)
	require.NoError(t, err, "a retry supersedes the pending product phase")
	first, err := orders.NewRepository(f.conn).FindPhase(ctx, started.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, enums.PhaseStatusCancelled, first.Status)
	assert.NotEqual(t, started.TransactionID, again.TransactionID)
}

func TestStartProductPaymentWithStoredCard(t *testing.T) {
	f := newFixture(t, "cus_1")
	order := seedPhysicianReviewOrder(t, f)
	ctx := context.Background()
	token := models.PaymentToken{UserID: f.userID, GenieCustomerID: "cus_1", ProviderTokenID: "tok_visa", Brand: "VISA"}
	_, err := f.svc.repo.InsertMissingTokens(ctx, nil, []models.PaymentToken{token})
	require.NoError(t, err)
	methods, err := f.svc.ListPaymentMethods(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, methods, 1)

	started, err := f.svc.StartProductPayment(ctx, f.userID, order.ID, &methods[0].ID)
	require.NoError(t, err)
	assert.True(t, started.Charged)
	assert.Equal(t, []string{"tok_visa"}, f.gateway.charged)
	assert.False(t, f.gateway.created[0].Tokenise)
}

func TestStartProductPaymentRejectsOtherUsersOrder(t *testing.T) {
	f := newFixture(t, "cus_1")
	order := seedPhysicianReviewOrder(t, f)
	_, err := f.svc.StartProductPayment(context.Background(), uuid.New(), order.ID, nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestSyncTokensDedupesAndRollsExpiry(t *testing.T) {
	f := newFixture(t, "cus_1")
	f.svc.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	f.gateway.tokens = []genie.Token{
		{ID: "tok_a", Brand: "VISA", MaskedNumber: "4111********1111", ExpiryMonth: 8, ExpiryYear: 25, IsDefault: true},
		{ID: "tok_b", Brand: "MASTERCARD", MaskedNumber: "5555********4444", ExpiryMonth: 1, ExpiryYear: 20},
	}
	ctx := context.Background()

	added, err := f.svc.SyncTokens(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = f.svc.SyncTokens(ctx, "cus_1")
	require.NoError(t, err)
	assert.Zero(t, added)

	methods, err := f.svc.ListPaymentMethods(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, methods, 2)
	years := map[string]int{}
	for _, m := range methods {
		years[m.Brand] = m.ExpiryYear
	}
	assert.Equal(t, 2025, years["VISA"])
	assert.Equal(t, 2120, years["MASTERCARD"])

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventPaymentTokensSynced).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestSyncTokensUnknownCustomer(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.svc.SyncTokens(context.Background(), "cus_missing")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	f.gateway.err = errors.New("boom")
	_, err = f.svc.SyncTokens(context.Background(), "")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
