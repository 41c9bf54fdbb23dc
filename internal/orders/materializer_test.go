package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalcart/storefront-backend/internal/repo/repotest"
	"github.com/vitalcart/storefront-backend/pkg/db"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"github.com/vitalcart/storefront-backend/pkg/outbox"
	"github.com/vitalcart/storefront-backend/pkg/types"
	"gorm.io/gorm"
)

func newTestMaterializer(t *testing.T) (*Materializer, *gorm.DB) {
	t.Helper()
	conn := repotest.NewDB(t)
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	m, err := NewMaterializer(MaterializerParams{
		Repo:        NewRepository(conn),
		Tx:          db.Wrap(conn),
		Outbox:      outbox.NewService(outbox.NewRepository(conn), logg),
		RedirectURL: "https://shop.example/checkout/confirmation",
		Logger:      logg,
	})
	require.NoError(t, err)
	return m, conn
}

func sampleCart() types.Cart {
	return types.Cart{{
		ProductID:          "minoxidil-5",
		ProductName:        "Minoxidil 5%",
		Quantity:           1,
		UnitPrice:          decimal.RequireFromString("2500"),
		Months:             2,
		MonthlyPrice:       decimal.RequireFromString("2500"),
		TotalPrice:         decimal.RequireFromString("5000"),
		HealthVerticalSlug: "hair-loss",
	}}
}

func countRows(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(model).Count(&n).Error)
	return n
}

func TestMaterializeWritesOrderItemsAndEvent(t *testing.T) {
	m, conn := newTestMaterializer(t)
	vertical := models.HealthVertical{ID: uuid.New(), Slug: "hair-loss", Name: "Hair Loss"}
	require.NoError(t, conn.Create(&vertical).Error)
	userID := uuid.New()

	out, err := m.Materialize(context.Background(), MaterializeInput{
		UserID:   userID,
		Customer: types.CustomerInfo{FirstName: "Asha", Email: "asha@example.com"},
		Address:  types.Address{Line1: "4 Lake Drive", City: "Kandy"},
		Items:    sampleCart(),
	})
	require.NoError(t, err)
	assert.Contains(t, out.RedirectURL, "orderId="+out.OrderID.String())

	order, err := NewRepository(conn).FindOrder(context.Background(), out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPendingPayment, order.Status)
	assert.Equal(t, enums.OrderPaymentPending, order.PaymentStatus)
	assert.Equal(t, enums.PaymentFlowFullUpfront, order.PaymentFlowType)
	assert.Equal(t, enums.ConsultationNotRequired, order.ConsultationStatus)
	assert.Equal(t, "5000.00", types.FormatMoney(order.TotalAmount))
	require.NotNil(t, order.HealthVerticalID)
	assert.Equal(t, vertical.ID, *order.HealthVerticalID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Months)

	var event models.OutboxEvent
	require.NoError(t, conn.First(&event).Error)
	assert.Equal(t, enums.EventOrderCreated, event.EventType)
	assert.Equal(t, out.OrderID, event.AggregateID)
}

func TestMaterializeRollsBackWhenItemsFail(t *testing.T) {
	m, conn := newTestMaterializer(t)
	cart := sampleCart()
	cart[0].Quantity = 0

	_, err := m.Materialize(context.Background(), MaterializeInput{UserID: uuid.New(), Items: cart})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	assert.Zero(t, countRows(t, conn, &models.Order{}))
	assert.Zero(t, countRows(t, conn, &models.OrderItem{}))
	assert.Zero(t, countRows(t, conn, &models.OutboxEvent{}))
}

func TestMaterializeRejectsEmptyCart(t *testing.T) {
	m, _ := newTestMaterializer(t)
	_, err := m.Materialize(context.Background(), MaterializeInput{UserID: uuid.New()})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestMaterializeConsultationTagsOrderPaid(t *testing.T) {
	m, conn := newTestMaterializer(t)
	cart := sampleCart()
	cart[0].PrescriptionRequired = true
	cart[0].ConsultationFee = decimal.RequireFromString("1500")
	sessionID := uuid.New()
	confirmedAt := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	var out Materialized
	err := db.Wrap(conn).WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		out, err = m.MaterializeConsultation(context.Background(), tx, MaterializeInput{
			UserID:            uuid.New(),
			CheckoutSessionID: &sessionID,
			Items:             cart,
		}, ConsultationPayment{TransactionID: "txn_consult_1", ConfirmedAt: confirmedAt})
		return err
	})
	require.NoError(t, err)

	order, err := NewRepository(conn).FindOrder(context.Background(), out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPhysicianReview, order.Status)
	assert.Equal(t, enums.OrderPaymentConsultationPaid, order.PaymentStatus)
	assert.Equal(t, enums.ConsultationPaid, order.ConsultationStatus)
	assert.Equal(t, enums.PaymentFlowConsultationFirst, order.PaymentFlowType)
	require.NotNil(t, order.ConsultationPaymentID)
	assert.Equal(t, "txn_consult_1", *order.ConsultationPaymentID)
	require.Len(t, order.Phases, 1)
	assert.Equal(t, enums.PhaseStatusCompleted, order.Phases[0].Status)
	assert.Equal(t, "1500.00", types.FormatMoney(order.Phases[0].Amount))
	assert.Equal(t, "6500.00", types.FormatMoney(order.TotalAmount))
}

func TestMaterializeConsultationRollsBackOnItemFailure(t *testing.T) {
	m, conn := newTestMaterializer(t)
	cart := sampleCart()
	cart[0].Quantity = 0

	err := db.Wrap(conn).WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := m.MaterializeConsultation(context.Background(), tx, MaterializeInput{UserID: uuid.New(), Items: cart},
			ConsultationPayment{TransactionID: "txn_bad"})
		return err
	})
	require.Error(t, err)
	assert.Zero(t, countRows(t, conn, &models.Order{}))
	assert.Zero(t, countRows(t, conn, &models.OrderPaymentPhase{}))
}

func TestMaterializeConsultationRequiresTx(t *testing.T) {
	m, _ := newTestMaterializer(t)
	_, err := m.MaterializeConsultation(context.Background(), nil, MaterializeInput{UserID: uuid.New(), Items: sampleCart()}, ConsultationPayment{TransactionID: "t"})
	require.Error(t, err)
}

func TestRedirectFor(t *testing.T) {
	id := uuid.MustParse("6f1f5b3a-5b8f-4d5e-9c4a-0b0e7d2f1a11")
	assert.Equal(t, "/done?orderId="+id.String(), redirectFor("/done", id))
	assert.Equal(t, "", redirectFor("", id))
	assert.Regexp(t, `^VC-20260314-[0-9A-F]{6}$`, newOrderNumber(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)))
}
