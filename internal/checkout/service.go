package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/internal/auth"
	"github.com/vitalcart/storefront-backend/internal/billingcustomers"
	"github.com/vitalcart/storefront-backend/internal/checkout/helpers"
	"github.com/vitalcart/storefront-backend/internal/orders"
	"github.com/vitalcart/storefront-backend/internal/patients"
	"github.com/vitalcart/storefront-backend/internal/payments"
	"github.com/vitalcart/storefront-backend/internal/sessions"
	"github.com/vitalcart/storefront-backend/pkg/db"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"github.com/vitalcart/storefront-backend/pkg/emed"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"github.com/vitalcart/storefront-backend/pkg/metrics"
	"github.com/vitalcart/storefront-backend/pkg/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	integrationAccountProfile = "account_profile"
	integrationQuizResponses  = "quiz_responses"
	integrationEMed           = "emed"
	integrationRelay          = "questionnaire_relay"
	integrationGenie          = "genie"
)

type provisioner interface {
	Provision(ctx context.Context, req auth.ProvisionRequest) (auth.ProvisionResult, auth.Undo, error)
}

type sessionStore interface {
	Create(ctx context.Context, userID *uuid.UUID) (*models.CheckoutSession, error)
	Resolve(ctx context.Context, token string) (*models.CheckoutSession, error)
	BindUser(ctx context.Context, session *models.CheckoutSession, userID uuid.UUID) error
	Save(ctx context.Context, sessionID uuid.UUID, snap sessions.Snapshot) error
	Complete(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) error
}

type responseStore interface {
	SaveResponses(ctx context.Context, userID uuid.UUID, verticalSlug string, raw datatypes.JSON) types.Outcome
}

type patientEnsurer interface {
	EnsurePatient(ctx context.Context, req patients.EnsureRequest) (patients.Result, error)
}

type customerEnsurer interface {
	EnsureCustomer(ctx context.Context, req billingcustomers.EnsureRequest) billingcustomers.Result
}

type orderMaterializer interface {
	Materialize(ctx context.Context, in orders.MaterializeInput) (orders.Materialized, error)
}

type accountStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
}

type paymentMethodLister interface {
	ListPaymentMethods(ctx context.Context, userID uuid.UUID) ([]payments.PaymentMethodDTO, error)
}

// Service runs the synchronous checkout path.
type Service interface {
	Execute(ctx context.Context, in Input) (*Result, error)
	PlaceOrder(ctx context.Context, userID uuid.UUID, sessionToken string) (*orders.Materialized, error)
}

type ServiceParams struct {
	Provisioner  provisioner
	Sessions     sessionStore
	Responses    responseStore
	Patients     patientEnsurer
	Customers    customerEnsurer
	Materializer orderMaterializer
	Accounts     accountStore
	Methods      paymentMethodLister
	Metrics      *metrics.Storefront
	Logger       *logger.Logger
}

type service struct {
	provisioner  provisioner
	sessions     sessionStore
	responses    responseStore
	patients     patientEnsurer
	customers    customerEnsurer
	materializer orderMaterializer
	accounts     accountStore
	methods      paymentMethodLister
	metrics      *metrics.Storefront
	logg         *logger.Logger
	now          func() time.Time
}

// NewService builds the checkout orchestrator.
func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Provisioner == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "account provisioner required")
	case p.Sessions == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session store required")
	case p.Responses == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "questionnaire response store required")
	case p.Patients == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "patient bridge required")
	case p.Customers == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing customer bridge required")
	case p.Materializer == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order materializer required")
	case p.Accounts == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "account store required")
	case p.Methods == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment method lister required")
	case p.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &service{
		provisioner:  p.Provisioner,
		sessions:     p.Sessions,
		responses:    p.Responses,
		patients:     p.Patients,
		customers:    p.Customers,
		materializer: p.Materializer,
		accounts:     p.Accounts,
		methods:      p.Methods,
		metrics:      p.Metrics,
		logg:         p.Logger,
		now:          time.Now,
	}, nil
}

// Execute classifies the cart and runs either the signup or the signed-in branch.
// Steps run in order; the context is cancelled as soon as a fatal step fails.
func (s *service) Execute(ctx context.Context, in Input) (*Result, error) {
	started := s.now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	decision := ClassifyFlow(in.Form.Cart, in.authenticated())
	ctx = s.logg.WithFields(ctx, map[string]any{
		"flow_type":  string(decision.FlowType),
		"cart_items": len(in.Form.Cart),
	})

	var (
		result *Result
		err    error
	)
	if decision.FlowType == enums.FlowAuthenticatedUser {
		result, err = s.executeAuthenticated(ctx, *in.UserID, in.Form, decision)
	} else {
		result, err = s.executeSignup(ctx, in.Form, decision)
	}
	if err != nil {
		cancel()
		outcome := "failed"
		if pkgerrors.HasCode(err, pkgerrors.CodeValidation) || pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
			outcome = "rejected"
			s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "checkout rejected")
		} else {
			s.logg.Error(ctx, "checkout failed", err)
		}
		s.metrics.ObserveCheckout(string(decision.FlowType), outcome, s.now().Sub(started))
		return nil, err
	}

	s.recordIntegrations(result.Integrations)
	s.metrics.ObserveCheckout(string(decision.FlowType), "succeeded", s.now().Sub(started))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"user_id":      result.UserID.String(),
		"payment_flow": string(result.PaymentFlowType),
		"emed_ok":      result.EMedIntegrationSuccess,
		"genie_ok":     result.GenieIntegrationSuccess,
	}), "checkout completed")
	return result, nil
}

func (s *service) executeSignup(ctx context.Context, form Form, decision FlowDecision) (*Result, error) {
	if err := helpers.ValidateCart(form.Cart); err != nil {
		return nil, err
	}
	if err := helpers.ValidateSignup(form.Account); err != nil {
		return nil, err
	}
	if err := helpers.ValidateAddress(form.Address); err != nil {
		return nil, err
	}
	if err := form.ParseQuiz(); err != nil {
		return nil, err
	}

	// A resumed session is resolved before provisioning. A fresh one is created only once
	// the account exists, so a rejected signup leaves no session behind.
	var session *models.CheckoutSession
	if strings.TrimSpace(form.SessionToken) != "" {
		resumed, err := s.sessions.Resolve(ctx, form.SessionToken)
		if err != nil {
			return nil, err
		}
		session = resumed
	}

	var undo saga
	fail := func(err error) (*Result, error) {
		s.compensate(ctx, &undo, err)
		return nil, err
	}

	account := form.Account
	provisioned, rollback, err := s.provisioner.Provision(ctx, auth.ProvisionRequest{
		Email:           account.Email,
		Password:        account.Password,
		FirstName:       account.FirstName,
		LastName:        account.LastName,
		DateOfBirth:     account.DateOfBirth,
		Phone:           account.Phone,
		NIC:             account.NIC,
		Sex:             account.Sex,
		Address:         form.Address,
		AgreedToTerms:   account.AgreedToTerms,
		AgreedToPrivacy: account.AgreedToPrivacy,
		MarketingOptOut: account.MarketingOptOut,
	})
	if err != nil {
		return nil, err
	}
	undo.add(rollback)

	userID := provisioned.UserID
	ctx = s.logg.WithUserID(ctx, userID.String())

	if err := checkpoint(ctx); err != nil {
		return fail(err)
	}
	if session == nil {
		if session, err = s.sessions.Create(ctx, &userID); err != nil {
			return fail(err)
		}
	}
	ctx = s.logg.WithSessionToken(ctx, session.SessionToken)
	if session.UserID == nil || *session.UserID != userID {
		if err := s.sessions.BindUser(ctx, session, userID); err != nil {
			return fail(err)
		}
	}

	paymentFlow := PaymentFlowFor(form.Cart)
	result := &Result{
		Success:         true,
		FlowType:        decision.FlowType,
		PaymentFlowType: paymentFlow,
		UserID:          userID,
		IsNewUser:       provisioned.IsNewUser,
		NextStep:        enums.StepAddressPayment,
		SessionToken:    session.SessionToken,
	}
	result.Integrations.AccountProfile = types.Succeeded()
	if provisioned.ProfileErr != nil {
		result.Integrations.AccountProfile = types.Failed(provisioned.ProfileErr)
	}

	result.Integrations.QuizResponses = types.Skipped("questionnaire not required")
	if decision.RequiresQuestionnaire {
		result.Integrations.QuizResponses = s.responses.SaveResponses(ctx, userID, form.Cart.VerticalSlug(), form.Quiz)
	}

	customer := customerFromAccount(account)
	result.Integrations.EMed, result.Integrations.QuestionnaireRelay = s.ensurePatient(ctx, userID, customer, form, decision.RequiresQuestionnaire, stringValue(account.NIC))
	result.EMedIntegrationSuccess = result.Integrations.EMed.OK()

	if err := checkpoint(ctx); err != nil {
		return fail(err)
	}
	if err := s.sessions.Save(ctx, session.ID, sessions.Snapshot{
		Customer: customer,
		Address:  form.Address,
		Cart:     form.Cart,
		Quiz:     form.Quiz,
		Step:     stepFor(paymentFlow),
	}); err != nil {
		return fail(err)
	}

	if paymentFlow == enums.PaymentFlowFullUpfront {
		if err := checkpoint(ctx); err != nil {
			return fail(err)
		}
		sessionID := session.ID
		order, err := s.materializer.Materialize(ctx, orders.MaterializeInput{
			UserID:            userID,
			CheckoutSessionID: &sessionID,
			Customer:          customer,
			Address:           form.Address,
			Items:             form.Cart,
		})
		if err != nil {
			return fail(err)
		}
		result.OrderID = &order.OrderID
		result.OrderNumber = order.OrderNumber
		result.RedirectURL = order.RedirectURL
		if err := s.sessions.Complete(ctx, nil, session.ID); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "checkout session completion failed")
		}
	}

	billing := s.customers.EnsureCustomer(ctx, billingcustomers.EnsureRequest{
		UserID:    userID,
		Email:     customer.Email,
		FirstName: customer.FirstName,
		LastName:  customer.LastName,
		Phone:     customer.Phone,
		Address:   form.Address,
	})
	result.Integrations.Genie = billing.Outcome
	result.GenieIntegrationSuccess = billing.CustomerID != ""

	result.Message = signupMessage(paymentFlow)
	return result, nil
}

func (s *service) executeAuthenticated(ctx context.Context, userID uuid.UUID, form Form, decision FlowDecision) (*Result, error) {
	ctx = s.logg.WithUserID(ctx, userID.String())
	if err := helpers.ValidateCart(form.Cart); err != nil {
		return nil, err
	}
	if !form.Address.IsZero() {
		if err := helpers.ValidateAddress(form.Address); err != nil {
			return nil, err
		}
	}
	if err := form.ParseQuiz(); err != nil {
		return nil, err
	}

	user, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load user")
	}
	profile, err := s.accounts.FindProfile(ctx, userID)
	if err != nil && !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load profile")
	}
	if profile == nil {
		s.logg.Warn(ctx, "signed-in user has no profile")
	}

	session, err := s.openSession(ctx, form.SessionToken, &userID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithSessionToken(ctx, session.SessionToken)
	if session.UserID == nil || *session.UserID != userID {
		if err := s.sessions.BindUser(ctx, session, userID); err != nil {
			return nil, err
		}
	}

	paymentFlow := PaymentFlowFor(form.Cart)
	result := &Result{
		Success:         true,
		FlowType:        decision.FlowType,
		PaymentFlowType: paymentFlow,
		UserID:          userID,
		NextStep:        decision.NextStep,
		SessionToken:    session.SessionToken,
		Message:         "Confirm your delivery address and payment method",
	}
	result.Integrations.AccountProfile = types.Skipped("existing account")
	result.Integrations.QuizResponses = types.Skipped("questionnaire not required")
	result.Integrations.EMed = types.Skipped("questionnaire not required")
	result.Integrations.QuestionnaireRelay = types.Skipped("questionnaire not required")

	customer := customerFromProfile(user, profile)
	address := form.Address
	if address.IsZero() && profile != nil {
		address = profile.Address
	}

	if decision.RequiresQuestionnaire {
		if len(form.Quiz) > 0 {
			result.Integrations.QuizResponses = s.responses.SaveResponses(ctx, userID, form.Cart.VerticalSlug(), form.Quiz)
		}
		nic := ""
		if profile != nil {
			nic = stringValue(profile.NIC)
		}
		result.Integrations.EMed, result.Integrations.QuestionnaireRelay = s.ensurePatient(ctx, userID, customer,
			Form{Address: address, Cart: form.Cart, Quiz: form.Quiz, Answers: form.Answers}, len(form.Answers) > 0, nic)
	}
	result.EMedIntegrationSuccess = result.Integrations.EMed.OK()

	if err := checkpoint(ctx); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session.ID, sessions.Snapshot{
		Customer: customer,
		Address:  address,
		Cart:     form.Cart,
		Quiz:     form.Quiz,
		Step:     stepFor(paymentFlow),
	}); err != nil {
		return nil, err
	}

	customerID := ""
	if profile != nil && profile.GenieCustomerID != nil {
		customerID = *profile.GenieCustomerID
	}
	if customerID == "" {
		billing := s.customers.EnsureCustomer(ctx, billingcustomers.EnsureRequest{
			UserID:    userID,
			Email:     customer.Email,
			FirstName: customer.FirstName,
			LastName:  customer.LastName,
			Phone:     customer.Phone,
			Address:   address,
		})
		customerID = billing.CustomerID
		result.Integrations.Genie = billing.Outcome
	} else {
		result.Integrations.Genie = types.Skipped("billing customer already linked")
	}
	result.GenieIntegrationSuccess = customerID != ""

	methods, err := s.methods.ListPaymentMethods(ctx, userID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "payment methods unavailable")
		methods = []payments.PaymentMethodDTO{}
	}
	data := &AddressPaymentData{
		PaymentMethods:        methods,
		HasBillingAccount:     customerID != "",
		RequiresQuestionnaire: decision.RequiresQuestionnaire,
	}
	if !address.IsZero() {
		data.Address = &address
	}
	result.AddressPaymentData = data
	return result, nil
}

// PlaceOrder materializes the order for a full-upfront cart held on the caller's
// session. Consultation-first carts get their order from the payment webhook instead.
func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, sessionToken string) (*orders.Materialized, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	ctx = s.logg.WithUserID(ctx, userID.String())

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
	if err := helpers.ValidateCart(snap.Cart); err != nil {
		return nil, err
	}
	if PaymentFlowFor(snap.Cart) != enums.PaymentFlowFullUpfront {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "consultation payment required before the order is created")
	}
	if err := helpers.ValidateAddress(snap.Address); err != nil {
		return nil, err
	}

	sessionID := session.ID
	order, err := s.materializer.Materialize(ctx, orders.MaterializeInput{
		UserID:            userID,
		CheckoutSessionID: &sessionID,
		Customer:          snap.Customer,
		Address:           snap.Address,
		Items:             snap.Cart,
	})
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Complete(ctx, nil, session.ID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "checkout session completion failed")
	}
	return &order, nil
}

func (s *service) openSession(ctx context.Context, token string, userID *uuid.UUID) (*models.CheckoutSession, error) {
	if strings.TrimSpace(token) == "" {
		return s.sessions.Create(ctx, userID)
	}
	return s.sessions.Resolve(ctx, token)
}

// ensurePatient returns the outcome of the patient link and of the questionnaire relay.
func (s *service) ensurePatient(ctx context.Context, userID uuid.UUID, customer types.CustomerInfo, form Form, requiresQuestionnaire bool, nic string) (types.Outcome, types.Outcome) {
	relaySkipped := types.Skipped("questionnaire not required")
	if err := checkpoint(ctx); err != nil {
		return types.Failed(err), relaySkipped
	}
	req := patients.EnsureRequest{
		UserID: userID,
		Demographics: emed.Demographics{
			FirstName: customer.FirstName,
			LastName:  customer.LastName,
			Phone:     customer.Phone,
			Email:     customer.Email,
			Address:   form.Address,
		},
		NIC:                   nic,
		RequiresQuestionnaire: requiresQuestionnaire,
		VerticalSlug:          form.Cart.VerticalSlug(),
		Cart:                  patients.CartItems(form.Cart),
	}
	if requiresQuestionnaire {
		req.Answers = form.Answers
	}

	res, err := s.patients.EnsurePatient(ctx, req)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "clinical identity bridge failed, continuing")
		if requiresQuestionnaire {
			return types.Failed(err), types.Skipped("no patient id")
		}
		return types.Failed(err), relaySkipped
	}
	if !requiresQuestionnaire {
		return types.Succeeded(), relaySkipped
	}
	if !res.Relay.OK() {
		s.logg.Warn(s.logg.WithField(ctx, "relay_status", string(res.Relay.Status)), "questionnaire relay did not complete")
	}
	return types.Succeeded(), res.Relay
}

func (s *service) compensate(ctx context.Context, undo *saga, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := undo.rollback(ctx); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "cause", cause.Error()), "checkout compensation incomplete", err)
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "cause", cause.Error()), "checkout rolled back")
}

func (s *service) recordIntegrations(in Integrations) {
	s.metrics.IncIntegration(integrationAccountProfile, string(in.AccountProfile.Status))
	s.metrics.IncIntegration(integrationQuizResponses, string(in.QuizResponses.Status))
	s.metrics.IncIntegration(integrationEMed, string(in.EMed.Status))
	s.metrics.IncIntegration(integrationRelay, string(in.QuestionnaireRelay.Status))
	s.metrics.IncIntegration(integrationGenie, string(in.Genie.Status))
}

func checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeCancelled, err, "operation cancelled")
	}
	return nil
}

func stepFor(flow enums.PaymentFlowType) enums.CheckoutStep {
	if flow == enums.PaymentFlowConsultationFirst {
		return enums.StepConsultationPayment
	}
	return enums.StepAddressPayment
}

func signupMessage(flow enums.PaymentFlowType) string {
	if flow == enums.PaymentFlowConsultationFirst {
		return "Account created. Pay the consultation fee to start your physician review"
	}
	return "Account created. Complete payment to confirm your order"
}

func customerFromAccount(account AccountInput) types.CustomerInfo {
	return types.CustomerInfo{
		FirstName: strings.TrimSpace(account.FirstName),
		LastName:  strings.TrimSpace(account.LastName),
		Email:     strings.ToLower(strings.TrimSpace(account.Email)),
		Phone:     stringValue(account.Phone),
	}
}

func customerFromProfile(user *models.User, profile *models.UserProfile) types.CustomerInfo {
	info := types.CustomerInfo{Email: user.Email}
	if profile != nil {
		info.FirstName = profile.FirstName
		info.LastName = profile.LastName
		info.Phone = stringValue(profile.Phone)
	}
	return info
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
