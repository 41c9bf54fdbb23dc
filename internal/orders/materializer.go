package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"github.com/vitalcart/storefront-backend/pkg/outbox"
	"github.com/vitalcart/storefront-backend/pkg/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// MaterializeInput is everything needed to turn a cart into an order.
type MaterializeInput struct {
	UserID            uuid.UUID
	CheckoutSessionID *uuid.UUID
	Customer          types.CustomerInfo
	Address           types.Address
	Items             types.Cart
}

// ConsultationPayment is the confirmed gateway transaction that pays for the consultation.
type ConsultationPayment struct {
	TransactionID string
	Amount        decimal.Decimal
	ConfirmedAt   time.Time
}

type Materialized struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	RedirectURL string    `json:"redirectUrl"`
}

// Materializer writes an order, its items and its outbox event atomically.
type Materializer struct {
	repo        Repository
	tx          txRunner
	outbox      outbox.Emitter
	redirectURL string
	logg        *logger.Logger
}

type MaterializerParams struct {
	Repo        Repository
	Tx          txRunner
	Outbox      outbox.Emitter
	RedirectURL string
	Logger      *logger.Logger
}

func NewMaterializer(p MaterializerParams) (*Materializer, error) {
	if p.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if p.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if p.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if p.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Materializer{
		repo:        p.Repo,
		tx:          p.Tx,
		outbox:      p.Outbox,
		redirectURL: p.RedirectURL,
		logg:        p.Logger,
	}, nil
}

// Materialize creates a pending_payment order for a cart paid in full up front.
func (m *Materializer) Materialize(ctx context.Context, in MaterializeInput) (Materialized, error) {
	if err := validateInput(in); err != nil {
		return Materialized{}, err
	}
	consultation := enums.ConsultationNotRequired
	if in.Items.ConsultationFees().IsPositive() {
		consultation = enums.ConsultationPending
	}

	var out Materialized
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := m.insert(ctx, tx, in, orderState{
			status:       enums.OrderStatusPendingPayment,
			flow:         enums.PaymentFlowFullUpfront,
			consultation: consultation,
			payment:      enums.OrderPaymentPending,
		}, nil)
		if err != nil {
			return err
		}
		out = m.result(order)
		return m.emit(ctx, tx, enums.EventOrderCreated, order, "")
	})
	if err != nil {
		m.logg.Error(m.logg.WithUserID(ctx, in.UserID.String()), "order materialization failed", err)
		return Materialized{}, wrapWrite(err)
	}
	m.logg.Info(m.logg.WithFields(ctx, map[string]any{"order_id": out.OrderID.String(), "user_id": in.UserID.String()}), "order created")
	return out, nil
}

// MaterializeConsultation creates the order for a consultation-first checkout once
// the consultation fee is confirmed. It runs inside the caller's transaction so a
// failed item insert leaves no order behind.
func (m *Materializer) MaterializeConsultation(ctx context.Context, tx *gorm.DB, in MaterializeInput, payment ConsultationPayment) (Materialized, error) {
	if tx == nil {
		return Materialized{}, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if err := validateInput(in); err != nil {
		return Materialized{}, err
	}
	if strings.TrimSpace(payment.TransactionID) == "" {
		return Materialized{}, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	if payment.ConfirmedAt.IsZero() {
		payment.ConfirmedAt = time.Now().UTC()
	}

	order, err := m.insert(ctx, tx, in, orderState{
		status:       enums.OrderStatusPhysicianReview,
		flow:         enums.PaymentFlowConsultationFirst,
		consultation: enums.ConsultationPaid,
		payment:      enums.OrderPaymentConsultationPaid,
	}, &payment.TransactionID)
	if err != nil {
		return Materialized{}, wrapWrite(err)
	}

	amount := payment.Amount
	if amount.IsZero() {
		amount = in.Items.ConsultationFees()
	}
	confirmedAt := payment.ConfirmedAt
	if err := m.repo.WithTx(tx).CreatePhase(ctx, &models.OrderPaymentPhase{
		OrderID:       order.ID,
		Phase:         enums.PaymentPhaseConsultation,
		TransactionID: payment.TransactionID,
		Status:        enums.PhaseStatusCompleted,
		Amount:        types.RoundMoney(amount),
		CompletedAt:   &confirmedAt,
	}); err != nil {
		return Materialized{}, wrapWrite(err)
	}
	if err := m.emit(ctx, tx, enums.EventOrderConsultationPaid, order, payment.TransactionID); err != nil {
		return Materialized{}, err
	}
	return m.result(order), nil
}

type orderState struct {
	status       enums.OrderStatus
	flow         enums.PaymentFlowType
	consultation enums.ConsultationStatus
	payment      enums.OrderPaymentStatus
}

func (m *Materializer) insert(ctx context.Context, tx *gorm.DB, in MaterializeInput, state orderState, consultationPaymentID *string) (*models.Order, error) {
	repo := m.repo.WithTx(tx)
	verticalID, err := repo.HealthVerticalID(ctx, in.Items.VerticalSlug())
	if err != nil {
		return nil, err
	}
	address, err := json.Marshal(in.Address)
	if err != nil {
		return nil, err
	}
	metadata, err := json.Marshal(orderMetadata{Customer: in.Customer, FlowType: state.flow})
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:                    uuid.New(),
		UserID:                in.UserID,
		OrderNumber:           newOrderNumber(time.Now().UTC()),
		TotalAmount:           in.Items.Total(),
		Currency:              enums.CurrencyLKR,
		Status:                state.status,
		PaymentFlowType:       state.flow,
		ConsultationStatus:    state.consultation,
		PaymentStatus:         state.payment,
		ProductPaymentStatus:  enums.ProductPaymentNotStarted,
		ConsultationPaymentID: consultationPaymentID,
		DeliveryAddress:       datatypes.JSON(address),
		Metadata:              datatypes.JSON(metadata),
		HealthVerticalID:      verticalID,
		CheckoutSessionID:     in.CheckoutSessionID,
	}
	if err := repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	items, err := itemsFor(order.ID, in.Items)
	if err != nil {
		return nil, err
	}
	if err := repo.CreateItems(ctx, items); err != nil {
		return nil, fmt.Errorf("insert order items: %w", err)
	}
	order.Items = items
	return order, nil
}

func (m *Materializer) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order *models.Order, transactionID string) error {
	return m.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.UserID, Source: "checkout"},
		Data:          EventFor(order, transactionID, ""),
	})
}

func (m *Materializer) result(order *models.Order) Materialized {
	return Materialized{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		RedirectURL: redirectFor(m.redirectURL, order.ID),
	}
}

// EventFor builds the outbox payload describing order's current state.
func EventFor(order *models.Order, transactionID, gatewayState string) outbox.OrderEvent {
	return outbox.OrderEvent{
		OrderID:            order.ID,
		UserID:             order.UserID,
		OrderNumber:        order.OrderNumber,
		Status:             string(order.Status),
		PaymentStatus:      string(order.PaymentStatus),
		PaymentFlowType:    string(order.PaymentFlowType),
		TotalAmount:        types.FormatMoney(order.TotalAmount),
		TransactionID:      transactionID,
		GatewayState:       gatewayState,
		ConsultationStatus: string(order.ConsultationStatus),
	}
}

type orderMetadata struct {
	Customer types.CustomerInfo    `json:"customer"`
	FlowType enums.PaymentFlowType `json:"flowType"`
}

type itemMetadata struct {
	HealthVerticalSlug    string `json:"healthVerticalSlug,omitempty"`
	RequiresQuestionnaire bool   `json:"requiresQuestionnaire"`
}

func itemsFor(orderID uuid.UUID, cart types.Cart) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(cart))
	for _, line := range cart {
		meta, err := json.Marshal(itemMetadata{
			HealthVerticalSlug:    line.HealthVerticalSlug,
			RequiresQuestionnaire: line.RequiresQuestionnaire,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, models.OrderItem{
			ID:                   uuid.New(),
			OrderID:              orderID,
			ProductID:            line.ProductID,
			ProductName:          line.ProductName,
			Quantity:             line.Quantity,
			UnitPrice:            types.RoundMoney(line.UnitPrice),
			Months:               line.Months,
			MonthlyPrice:         types.RoundMoney(line.MonthlyPrice),
			TotalPrice:           types.RoundMoney(line.TotalPrice),
			ConsultationFee:      types.RoundMoney(line.ConsultationFee),
			PrescriptionRequired: line.PrescriptionRequired,
			Metadata:             datatypes.JSON(meta),
		})
	}
	return items, nil
}

func validateInput(in MaterializeInput) error {
	if in.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if len(in.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	return nil
}

func wrapWrite(err error) error {
	var domainErr *pkgerrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create order")
}

// newOrderNumber renders e.g. VC-20260314-3F9A1C.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "VC-" + now.Format("20060102") + "-" + suffix
}

func redirectFor(base string, orderID uuid.UUID) string {
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("orderId", orderID.String())
	u.RawQuery = q.Encode()
	return u.String()
}
