package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vitalcart/storefront-backend/internal/billingcustomers"
	"github.com/vitalcart/storefront-backend/internal/orders"
	"github.com/vitalcart/storefront-backend/internal/sessions"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/genie"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"github.com/vitalcart/storefront-backend/pkg/outbox"
	"github.com/vitalcart/storefront-backend/pkg/types"
	"gorm.io/gorm"
)

type gateway interface {
	CreateTransaction(ctx context.Context, req genie.CreateTransactionRequest) (*genie.Transaction, error)
	ChargeStoredToken(ctx context.Context, customerID, transactionID, tokenID string) (*genie.ChargeResult, error)
	GetCustomerTokens(ctx context.Context, customerID string) ([]genie.Token, error)
}

type accountStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	FindProfileByGenieCustomerID(ctx context.Context, customerID string) (*models.UserProfile, error)
}

type customerEnsurer interface {
	EnsureCustomer(ctx context.Context, req billingcustomers.EnsureRequest) billingcustomers.Result
}

type sessionStore interface {
	Resolve(ctx context.Context, token string) (*models.CheckoutSession, error)
	Advance(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, step enums.CheckoutStep) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repo      *Repository
	Orders    orders.Repository
	Sessions  sessionStore
	Accounts  accountStore
	Customers customerEnsurer
	Gateway   gateway
	Tx        txRunner
	Outbox    outbox.Emitter
	Logger    *logger.Logger
}

// Service starts gateway transactions and keeps stored cards in sync.
type Service struct {
	repo      *Repository
	orders    orders.Repository
	sessions  sessionStore
	accounts  accountStore
	customers customerEnsurer
	gateway   gateway
	tx        txRunner
	outbox    outbox.Emitter
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repository required")
	case p.Orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	case p.Sessions == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session store required")
	case p.Accounts == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "account store required")
	case p.Gateway == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "genie client required")
	case p.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	case p.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	case p.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		repo:      p.Repo,
		orders:    p.Orders,
		sessions:  p.Sessions,
		accounts:  p.Accounts,
		customers: p.Customers,
		gateway:   p.Gateway,
		tx:        p.Tx,
		outbox:    p.Outbox,
		logg:      p.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// StartConsultationPayment opens the gateway transaction for the consultation
// fees of a consultation-first checkout. No order exists yet; the webhook
// creates it once the transaction is confirmed.
func (s *Service) StartConsultationPayment(ctx context.Context, userID uuid.UUID, sessionToken string) (*Started, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	session, err := s.sessions.Resolve(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if session.UserID == nil || *session.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "session belongs to another user")
	}
	snap, err := sessions.Decode(session)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stored checkout session is unreadable")
	}
	if !snap.Cart.AnyPrescriptionRequired() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart does not require a consultation")
	}
	fees := snap.Cart.ConsultationFees()
	if !fees.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart has no consultation fee")
	}

	customerID, err := s.ensureCustomerID(ctx, userID)
	if err != nil {
		return nil, err
	}

	lines := make([]genie.LineItem, 0, len(snap.Cart))
	for _, item := range snap.Cart {
		if item.ConsultationFee.IsPositive() {
			lines = append(lines, genie.LineItem{Name: "Consultation - " + item.ProductName, Quantity: 1, UnitPrice: item.ConsultationFee})
		}
	}
	localID := ConsultationLocalID(userID, session.ID)
	txn, err := s.gateway.CreateTransaction(ctx, genie.CreateTransactionRequest{
		CustomerID: customerID,
		Currency:   string(enums.CurrencyLKR),
		Items:      lines,
		LocalID:    localID,
		Tokenise:   true,
	})
	if err != nil {
		return nil, err
	}

	sessionID := session.ID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.CreateIntent(ctx, tx, &models.PaymentIntent{
			TransactionID:     txn.ID,
			LocalID:           localID,
			UserID:            userID,
			CheckoutSessionID: &sessionID,
			Phase:             enums.PaymentPhaseConsultation,
			Amount:            fees,
			PaymentURL:        &txn.URL,
		}); err != nil {
			return err
		}
		return s.sessions.Advance(ctx, tx, session.ID, enums.StepAwaitingConsultationPayment)
	})
	if err != nil {
		return nil, wrapDB(err, "failed to record consultation payment")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"user_id":        userID.String(),
		"transaction_id": txn.ID,
		"amount":         types.FormatMoney(fees),
	}), "consultation payment started")
	return &Started{TransactionID: txn.ID, URL: txn.URL, Amount: types.FormatMoney(fees)}, nil
}

// StartProductPayment charges what is still owed on an order. With tokenID the
// stored card is charged directly; otherwise the customer pays on the hosted page.
func (s *Service) StartProductPayment(ctx context.Context, userID, orderID uuid.UUID, tokenID *uuid.UUID) (*Started, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.orders.FindUserOrder(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load order")
	}
	if order.ProductPaymentStatus == enums.ProductPaymentPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	if order.Status != enums.OrderStatusPendingPayment && order.Status != enums.OrderStatusPhysicianReview {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
			WithDetails(map[string]any{"status": order.Status})
	}

	lines, amount := productLines(order)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "nothing left to pay on this order")
	}

	var token *models.PaymentToken
	if tokenID != nil {
		token, err = s.repo.FindToken(ctx, userID, *tokenID)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment method not found")
		}
	}

	customerID, err := s.ensureCustomerID(ctx, userID)
	if err != nil {
		return nil, err
	}
	txn, err := s.gateway.CreateTransaction(ctx, genie.CreateTransactionRequest{
		CustomerID: customerID,
		Currency:   string(order.Currency),
		Items:      lines,
		LocalID:    productLocalID(order.ID),
		Tokenise:   token == nil,
	})
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		if order.ProductPaymentID != nil && *order.ProductPaymentID != txn.ID {
			if _, err := repo.TransitionPhase(ctx, *order.ProductPaymentID, enums.PhaseStatusCancelled, s.now()); err != nil {
				return err
			}
			if _, err := s.repo.TransitionIntent(ctx, tx, *order.ProductPaymentID, enums.PaymentIntentCancelled, nil); err != nil {
				return err
			}
		}
		n, err := repo.AttachProductPayment(ctx, order.ID, txn.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
		}
		if err := repo.CreatePhase(ctx, &models.OrderPaymentPhase{
			OrderID:       order.ID,
			Phase:         enums.PaymentPhaseProducts,
			TransactionID: txn.ID,
			Status:        enums.PhaseStatusPending,
			Amount:        amount,
		}); err != nil {
			return err
		}
		orderID := order.ID
		return s.repo.CreateIntent(ctx, tx, &models.PaymentIntent{
			TransactionID:     txn.ID,
			LocalID:           productLocalID(order.ID),
			UserID:            userID,
			CheckoutSessionID: order.CheckoutSessionID,
			OrderID:           &orderID,
			Phase:             enums.PaymentPhaseProducts,
			Amount:            amount,
			PaymentURL:        &txn.URL,
		})
	})
	if err != nil {
		return nil, wrapDB(err, "failed to record product payment")
	}

	started := &Started{TransactionID: txn.ID, URL: txn.URL, Amount: types.FormatMoney(amount)}
	logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": order.ID.String(), "transaction_id": txn.ID})
	if token != nil {
		result, err := s.gateway.ChargeStoredToken(ctx, customerID, txn.ID, token.ProviderTokenID)
		if err != nil {
			s.logg.Warn(s.logg.WithField(logCtx, "reason", err.Error()), "stored card charge failed, falling back to hosted page")
		} else {
			started.Charged = result.Success
		}
	}
	s.logg.Info(logCtx, "product payment started")
	return started, nil
}

func (s *Service) ListPaymentMethods(ctx context.Context, userID uuid.UUID) ([]PaymentMethodDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	tokens, err := s.repo.ListTokens(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list payment methods")
	}
	out := make([]PaymentMethodDTO, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, MethodFromModel(t))
	}
	return out, nil
}

// SyncTokens pulls the customer's stored cards from Genie and inserts the ones
// not yet known locally. It returns how many were added.
func (s *Service) SyncTokens(ctx context.Context, customerID string) (int, error) {
	if customerID == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	profile, err := s.accounts.FindProfileByGenieCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "no user for genie customer")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load profile")
	}
	remote, err := s.gateway.GetCustomerTokens(ctx, customerID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	rows := make([]models.PaymentToken, 0, len(remote))
	for _, t := range remote {
		rows = append(rows, models.PaymentToken{
			UserID:          profile.UserID,
			GenieCustomerID: customerID,
			ProviderTokenID: t.ID,
			Brand:           t.Brand,
			MaskedNumber:    t.MaskedNumber,
			ExpiryMonth:     t.ExpiryMonth,
			ExpiryYear:      ExpiryYear(t.ExpiryYear, now),
			IsDefault:       t.IsDefault,
		})
	}

	added := 0
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.InsertMissingTokens(ctx, tx, rows)
		if err != nil {
			return err
		}
		added = n
		if n == 0 {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentTokensSynced,
			AggregateType: enums.AggregatePaymentToken,
			AggregateID:   profile.UserID,
			Data:          outbox.TokensSyncedEvent{UserID: profile.UserID, GenieCustomerID: customerID, Added: n},
		})
	})
	if err != nil {
		return 0, wrapDB(err, "failed to store payment methods")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"genie_customer_id": customerID, "added": added}), "payment methods synced")
	return added, nil
}

func (s *Service) ensureCustomerID(ctx context.Context, userID uuid.UUID) (string, error) {
	profile, err := s.accounts.FindProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeStateConflict, "profile incomplete")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load profile")
	}
	if profile.GenieCustomerID != nil && *profile.GenieCustomerID != "" {
		return *profile.GenieCustomerID, nil
	}
	if s.customers != nil {
		user, err := s.accounts.FindByID(ctx, userID)
		if err == nil {
			res := s.customers.EnsureCustomer(ctx, billingcustomers.EnsureRequest{
				UserID:    userID,
				Email:     user.Email,
				FirstName: profile.FirstName,
				LastName:  profile.LastName,
				Phone:     deref(profile.Phone),
				Address:   profile.Address,
			})
			if res.CustomerID != "" {
				return res.CustomerID, nil
			}
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeStateConflict, "billing account not ready")
}

// productLines lists what is still owed: every product line plus any
// consultation fee not already settled by a completed consultation phase.
func productLines(order *models.Order) ([]genie.LineItem, decimal.Decimal) {
	lines := make([]genie.LineItem, 0, len(order.Items)+1)
	fees := decimal.Zero
	for _, item := range order.Items {
		lines = append(lines, genie.LineItem{Name: item.ProductName, Quantity: 1, UnitPrice: item.TotalPrice})
		fees = fees.Add(item.ConsultationFee)
	}
	paid := decimal.Zero
	for _, phase := range order.Phases {
		if phase.Phase == enums.PaymentPhaseConsultation && phase.Status == enums.PhaseStatusCompleted {
			paid = paid.Add(phase.Amount)
		}
	}
	if unpaid := fees.Sub(paid); unpaid.IsPositive() {
		lines = append(lines, genie.LineItem{Name: "Consultation fee", Quantity: 1, UnitPrice: unpaid})
	}
	amount := types.RoundMoney(order.TotalAmount.Sub(paid))
	return lines, amount
}

func wrapDB(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
