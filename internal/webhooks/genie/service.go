package geniewebhook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/internal/orders"
	"github.com/vitalcart/storefront-backend/internal/patients"
	"github.com/vitalcart/storefront-backend/internal/payments"
	"github.com/vitalcart/storefront-backend/internal/questionnaires"
	"github.com/vitalcart/storefront-backend/internal/sessions"
	"github.com/vitalcart/storefront-backend/pkg/db"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"github.com/vitalcart/storefront-backend/pkg/emed"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/genie"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"github.com/vitalcart/storefront-backend/pkg/metrics"
	"github.com/vitalcart/storefront-backend/pkg/outbox"
	"gorm.io/gorm"
)

type intentStore interface {
	FindIntent(ctx context.Context, tx *gorm.DB, transactionID string) (*models.PaymentIntent, error)
	TransitionIntent(ctx context.Context, tx *gorm.DB, transactionID string, target enums.PaymentIntentStatus, orderID *uuid.UUID) (int64, error)
}

type sessionStore interface {
	FindForUser(ctx context.Context, tx *gorm.DB, sessionID, userID uuid.UUID) (*models.CheckoutSession, error)
	Complete(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) error
}

type consultationMaterializer interface {
	MaterializeConsultation(ctx context.Context, tx *gorm.DB, in orders.MaterializeInput, payment orders.ConsultationPayment) (orders.Materialized, error)
}

type tokenSyncer interface {
	SyncTokens(ctx context.Context, customerID string) (int, error)
}

type patientEnsurer interface {
	EnsurePatient(ctx context.Context, req patients.EnsureRequest) (patients.Result, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Orders       orders.Repository
	Intents      intentStore
	Sessions     sessionStore
	Materializer consultationMaterializer
	Tokens       tokenSyncer
	Patients     patientEnsurer
	Tx           txRunner
	Outbox       outbox.Emitter
	Metrics      *metrics.Storefront
	Logger       *logger.Logger
}

// Service applies gateway notifications to orders, payment phases and stored cards.
type Service struct {
	orders       orders.Repository
	intents      intentStore
	sessions     sessionStore
	materializer consultationMaterializer
	tokens       tokenSyncer
	patients     patientEnsurer
	tx           txRunner
	outbox       outbox.Emitter
	metrics      *metrics.Storefront
	logg         *logger.Logger
	now          func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	case p.Intents == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment intent store required")
	case p.Sessions == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session store required")
	case p.Materializer == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order materializer required")
	case p.Tokens == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "token syncer required")
	case p.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	case p.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	case p.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		orders:       p.Orders,
		intents:      p.Intents,
		sessions:     p.Sessions,
		materializer: p.Materializer,
		tokens:       p.Tokens,
		patients:     p.Patients,
		tx:           p.Tx,
		outbox:       p.Outbox,
		metrics:      p.Metrics,
		logg:         p.Logger,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// HandleEvent dispatches one verified gateway notification. A nil return means
// the notification is settled, including replays and unmatched transactions.
func (s *Service) HandleEvent(ctx context.Context, event genie.WebhookEvent) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_type":     event.EventType,
		"transaction_id": event.TransactionID,
		"state":          event.State,
	})
	switch event.EventType {
	case enums.GenieEventTokenisationStatus:
		return s.handleTokenisation(ctx, event)
	case enums.GenieEventTransactionChange:
		return s.handleTransaction(ctx, event)
	default:
		s.logg.Warn(ctx, "ignoring unknown genie event type")
		return nil
	}
}

func (s *Service) handleTransaction(ctx context.Context, event genie.WebhookEvent) error {
	if event.TransactionID == "" {
		s.logg.Warn(s.logg.WithField(ctx, "state", string(event.State)), "transaction event without transaction id, acknowledging")
		s.metrics.IncUnmatchedPayment(string(event.State))
		return nil
	}
	ctx = s.logg.WithTransactionID(ctx, event.TransactionID)
	switch event.State {
	case enums.GenieStateInitiated, enums.GenieStateQRCodeGenerated:
		s.logg.Info(ctx, "transaction progress noted")
		return nil
	case enums.GenieStateConfirmed:
		return s.confirm(ctx, event)
	case enums.GenieStateVoided, enums.GenieStateCancelled, enums.GenieStateFailed:
		return s.terminate(ctx, event)
	default:
		s.logg.Warn(ctx, "ignoring unknown transaction state")
		return nil
	}
}

func (s *Service) handleTokenisation(ctx context.Context, event genie.WebhookEvent) error {
	ctx = s.logg.WithField(ctx, "genie_customer_id", event.CustomerID)
	if !event.TokenisationSucceeded() {
		s.logg.Info(s.logg.WithField(ctx, "tokenisation_status", event.TokenisationStatus), "tokenisation did not succeed")
		return nil
	}
	added, err := s.tokens.SyncTokens(ctx, event.CustomerID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) || pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "tokenisation for unknown customer")
			return nil
		}
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "added", added), "stored cards refreshed")
	return nil
}

// confirm checks the consultation intent first, then orders referencing the
// transaction as consultation payment, then as product payment.
func (s *Service) confirm(ctx context.Context, event genie.WebhookEvent) error {
	userID, sessionID, intent, ok, err := s.consultationTarget(ctx, event)
	if err != nil {
		return err
	}
	if ok && intent != nil && !intentOpenForConfirm(intent.Status) {
		s.rejected(ctx, event.State, string(intent.Status))
		return nil
	}
	if ok {
		referenced, err := s.orders.ReferencesTransaction(ctx, event.TransactionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to check transaction references")
		}
		if !referenced {
			return s.materializeConsultation(ctx, event, userID, sessionID, intent)
		}
	}

	order, err := s.orders.FindByConsultationPayment(ctx, event.TransactionID)
	switch {
	case err == nil:
		return s.confirmConsultation(ctx, event, order)
	case !db.IsNotFound(err):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load order")
	}

	order, err = s.orders.FindByProductPayment(ctx, event.TransactionID)
	switch {
	case err == nil:
		return s.confirmProducts(ctx, event, order)
	case !db.IsNotFound(err):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load order")
	}

	s.logg.Warn(s.logg.WithField(ctx, "local_id", event.LocalID), "no order found for confirmed transaction")
	s.metrics.IncUnmatchedPayment(string(event.State))
	return nil
}

// consultationTarget resolves the user and checkout session a consultation
// payment belongs to, preferring the recorded intent over the local id.
func (s *Service) consultationTarget(ctx context.Context, event genie.WebhookEvent) (uuid.UUID, uuid.UUID, *models.PaymentIntent, bool, error) {
	intent, err := s.intents.FindIntent(ctx, nil, event.TransactionID)
	switch {
	case err == nil:
		if intent.Phase == enums.PaymentPhaseConsultation && intent.CheckoutSessionID != nil {
			return intent.UserID, *intent.CheckoutSessionID, intent, true, nil
		}
		return uuid.Nil, uuid.Nil, intent, false, nil
	case !db.IsNotFound(err):
		return uuid.Nil, uuid.Nil, nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load payment intent")
	}
	userID, sessionID, ok := payments.ParseConsultationLocalID(event.LocalID)
	return userID, sessionID, nil, ok, nil
}

func (s *Service) materializeConsultation(ctx context.Context, event genie.WebhookEvent, userID, sessionID uuid.UUID, intent *models.PaymentIntent) error {
	ctx = s.logg.WithFields(s.logg.WithUserID(ctx, userID.String()), map[string]any{"checkout_session_id": sessionID.String()})

	var (
		snap    sessions.Snapshot
		created orders.Materialized
		missing bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		session, err := s.sessions.FindForUser(ctx, tx, sessionID, userID)
		if err != nil {
			if db.IsNotFound(err) {
				missing = true
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load checkout session")
		}
		snap, err = sessions.Decode(session)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stored checkout session is unreadable")
		}

		payment := orders.ConsultationPayment{TransactionID: event.TransactionID, ConfirmedAt: s.now()}
		if intent != nil {
			payment.Amount = intent.Amount
		}
		created, err = s.materializer.MaterializeConsultation(ctx, tx, orders.MaterializeInput{
			UserID:            userID,
			CheckoutSessionID: &session.ID,
			Customer:          snap.Customer,
			Address:           snap.Address,
			Items:             snap.Cart,
		}, payment)
		if err != nil {
			return err
		}
		if intent != nil {
			if _, err := s.intents.TransitionIntent(ctx, tx, event.TransactionID, enums.PaymentIntentConfirmed, &created.OrderID); err != nil {
				return err
			}
		}
		return s.sessions.Complete(ctx, tx, session.ID)
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			s.logg.Info(ctx, "consultation order already created by a concurrent delivery")
			return nil
		}
		s.logg.Error(ctx, "consultation order materialization failed", err)
		return err
	}
	if missing {
		s.logg.Warn(ctx, "checkout session not found for confirmed consultation payment")
		s.metrics.IncUnmatchedPayment(string(event.State))
		return nil
	}

	ctx = s.logg.WithOrderID(ctx, created.OrderID)
	s.logg.Info(ctx, "consultation paid, order created")
	s.relayQuestionnaire(ctx, userID, snap)
	return nil
}

// relayQuestionnaire forwards the stored quiz to the clinical system. Failures
// are logged only; the order already exists.
func (s *Service) relayQuestionnaire(ctx context.Context, userID uuid.UUID, snap sessions.Snapshot) {
	if s.patients == nil || !snap.Cart.AnyRequiresQuestionnaire() {
		return
	}
	answers, err := questionnaires.DecodeAnswers(snap.Quiz)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "stored quiz answers unreadable")
		return
	}
	result, err := s.patients.EnsurePatient(ctx, patients.EnsureRequest{
		UserID:                userID,
		Demographics:          emedDemographics(snap),
		RequiresQuestionnaire: true,
		VerticalSlug:          snap.Cart.VerticalSlug(),
		Answers:               answers,
		Cart:                  patients.CartItems(snap.Cart),
	})
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "questionnaire relay skipped, patient unavailable")
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "relay_status", result.Relay.Status), "questionnaire relay finished")
}

func (s *Service) confirmConsultation(ctx context.Context, event genie.WebhookEvent, order *models.Order) error {
	ctx = s.logg.WithOrderID(ctx, order.ID)
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.orders.WithTx(tx).TransitionPhase(ctx, event.TransactionID, enums.PhaseStatusCompleted, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to confirm consultation phase")
		}
		if _, err := s.intents.TransitionIntent(ctx, tx, event.TransactionID, enums.PaymentIntentConfirmed, &order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to confirm payment intent")
		}
		if n == 0 {
			s.logg.Info(ctx, "consultation phase already settled")
			return nil
		}
		s.logg.Info(ctx, "consultation phase confirmed")
		return nil
	})
}

func (s *Service) confirmProducts(ctx context.Context, event genie.WebhookEvent, order *models.Order) error {
	ctx = s.logg.WithOrderID(ctx, order.ID)
	now := s.now()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		n, err := repo.TransitionPhase(ctx, event.TransactionID, enums.PhaseStatusCompleted, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to confirm product phase")
		}
		if n == 0 {
			settled, err := s.phaseSettled(ctx, tx, event, enums.PhaseStatusCompleted)
			if err != nil || settled {
				return err
			}
		}

		updates := map[string]any{
			"product_payment_status": enums.ProductPaymentPaid,
			"payment_status":         enums.OrderPaymentFullyPaid,
			"status":                 enums.OrderStatusProcessing,
			"updated_at":             now,
		}
		if order.ConsultationStatus == enums.ConsultationPending {
			updates["consultation_status"] = enums.ConsultationPaid
		}
		applied, err := repo.UpdateOrderFrom(ctx, order.ID, []enums.OrderStatus{enums.OrderStatusPendingPayment, enums.OrderStatusPhysicianReview}, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to mark order paid")
		}
		if _, err := s.intents.TransitionIntent(ctx, tx, event.TransactionID, enums.PaymentIntentConfirmed, &order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to confirm payment intent")
		}
		if applied == 0 {
			s.rejected(ctx, event.State, string(order.Status))
			return nil
		}

		order.Status = enums.OrderStatusProcessing
		order.PaymentStatus = enums.OrderPaymentFullyPaid
		order.ProductPaymentStatus = enums.ProductPaymentPaid
		if err := s.emit(ctx, tx, enums.EventOrderPaid, order, event); err != nil {
			return err
		}
		s.logg.Info(ctx, "order fully paid")
		return nil
	})
}

// terminate applies VOIDED, CANCELLED or FAILED to the transaction's phase and
// to every order referencing it, where the transition lattice allows.
func (s *Service) terminate(ctx context.Context, event genie.WebhookEvent) error {
	outcome, _ := enums.OrderOutcomeFor(event.State)
	intentStatus, _ := event.State.IntentStatus()

	byConsultation, err := s.findOptional(ctx, s.orders.FindByConsultationPayment, event.TransactionID)
	if err != nil {
		return err
	}
	byProduct, err := s.findOptional(ctx, s.orders.FindByProductPayment, event.TransactionID)
	if err != nil {
		return err
	}

	now := s.now()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		n, err := repo.TransitionPhase(ctx, event.TransactionID, outcome.PhaseStatus, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update payment phase")
		}
		if n == 0 {
			settled, err := s.phaseSettled(ctx, tx, event, outcome.PhaseStatus)
			if err != nil || settled {
				return err
			}
		}
		if _, err := s.intents.TransitionIntent(ctx, tx, event.TransactionID, intentStatus, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update payment intent")
		}

		if byConsultation != nil {
			updates := terminalUpdates(outcome, now)
			updates["consultation_status"] = consultationStatusFor(event.State)
			if err := s.applyTerminal(ctx, tx, event, byConsultation, outcome, updates); err != nil {
				return err
			}
		}
		if byProduct != nil && (byConsultation == nil || byProduct.ID != byConsultation.ID) {
			updates := terminalUpdates(outcome, now)
			updates["product_payment_status"] = productStatusFor(event.State)
			if err := s.applyTerminal(ctx, tx, event, byProduct, outcome, updates); err != nil {
				return err
			}
		}
		if byConsultation == nil && byProduct == nil {
			s.logg.Info(ctx, "no order references the terminated transaction")
		}
		return nil
	})
}

func (s *Service) applyTerminal(ctx context.Context, tx *gorm.DB, event genie.WebhookEvent, order *models.Order, outcome enums.OrderOutcome, updates map[string]any) error {
	ctx = s.logg.WithOrderID(ctx, order.ID)
	applied, err := s.orders.WithTx(tx).UpdateOrderFrom(ctx, order.ID, outcome.AllowedSources, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update order")
	}
	if applied == 0 {
		s.rejected(ctx, event.State, string(order.Status))
		return nil
	}
	order.Status = outcome.Status
	order.PaymentStatus = outcome.PaymentStatus
	if err := s.emit(ctx, tx, enums.EventOrderPaymentTerminal, order, event); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "order_status", outcome.Status), "order payment terminated")
	return nil
}

// phaseSettled distinguishes a replay (phase already at target, or no phase
// row at all) from a transition the lattice refuses.
func (s *Service) phaseSettled(ctx context.Context, tx *gorm.DB, event genie.WebhookEvent, target enums.PhaseStatus) (bool, error) {
	phase, err := s.orders.WithTx(tx).FindPhase(ctx, event.TransactionID)
	if err != nil {
		if db.IsNotFound(err) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load payment phase")
	}
	if phase.Status == target {
		s.logg.Info(ctx, "payment phase already settled")
		return true, nil
	}
	s.rejected(ctx, event.State, string(phase.Status))
	return true, nil
}

func (s *Service) rejected(ctx context.Context, state enums.GenieTransactionState, current string) {
	s.logg.Warn(s.logg.WithField(ctx, "current_status", current), "transition rejected by lattice")
	s.metrics.IncRejectedTransition(string(state))
}

func intentOpenForConfirm(status enums.PaymentIntentStatus) bool {
	return status == enums.PaymentIntentOpen || status == enums.PaymentIntentConfirmed
}

func (s *Service) findOptional(ctx context.Context, find func(context.Context, string) (*models.Order, error), transactionID string) (*models.Order, error) {
	order, err := find(ctx, transactionID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load order")
	}
	return order, nil
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order *models.Order, event genie.WebhookEvent) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.UserID, Source: "genie"},
		Data:          orders.EventFor(order, event.TransactionID, string(event.State)),
	})
}

func terminalUpdates(outcome enums.OrderOutcome, now time.Time) map[string]any {
	return map[string]any{
		"status":         outcome.Status,
		"payment_status": outcome.PaymentStatus,
		"updated_at":     now,
	}
}

func consultationStatusFor(state enums.GenieTransactionState) enums.ConsultationStatus {
	if state == enums.GenieStateFailed {
		return enums.ConsultationFailed
	}
	return enums.ConsultationCancelled
}

func productStatusFor(state enums.GenieTransactionState) enums.ProductPaymentStatus {
	if state == enums.GenieStateFailed {
		return enums.ProductPaymentFailed
	}
	return enums.ProductPaymentCancelled
}

func emedDemographics(snap sessions.Snapshot) emed.Demographics {
	return emed.Demographics{
		FirstName: snap.Customer.FirstName,
		LastName:  snap.Customer.LastName,
		Phone:     snap.Customer.Phone,
		Email:     snap.Customer.Email,
		Address:   snap.Address,
	}
}
