package checkout

import (
	"time"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/internal/payments"
	"github.com/vitalcart/storefront-backend/internal/questionnaires"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/types"
	"gorm.io/datatypes"
)

// AccountInput is the signup section of the checkout form. It is ignored for signed-in callers.
type AccountInput struct {
	Email           string     `json:"email" validate:"required,email"`
	Password        string     `json:"password" validate:"required,min=8"`
	FirstName       string     `json:"firstName" validate:"required"`
	LastName        string     `json:"lastName" validate:"required"`
	DateOfBirth     *time.Time `json:"dateOfBirth,omitempty"`
	Phone           *string    `json:"phone,omitempty" validate:"omitempty,min=9,max=15"`
	NIC             *string    `json:"nic,omitempty" validate:"omitempty,min=10,max=12"`
	Sex             enums.Sex  `json:"sex,omitempty" validate:"omitempty,oneof=male female other unknown"`
	AgreedToTerms   bool       `json:"agreedToTerms" validate:"eq=true"`
	AgreedToPrivacy bool       `json:"agreedToPrivacy" validate:"eq=true"`
	MarketingOptOut bool       `json:"marketingOptOut"`
}

// Form is the full checkout submission.
type Form struct {
	SessionToken string         `json:"sessionToken"`
	Account      AccountInput   `json:"account"`
	Address      types.Address  `json:"address"`
	Cart         types.Cart     `json:"cartItems"`
	Quiz         datatypes.JSON `json:"quizResponses,omitempty"`

	// Answers is Quiz with every answer's kind decided, filled by ParseQuiz.
	Answers []questionnaires.Answer `json:"-"`
}

// ParseQuiz decides the kind of every quiz answer once. A document that is not a
// JSON object, or a file answer that is not base64, is a validation error.
func (f *Form) ParseQuiz() error {
	if f.Answers != nil {
		return nil
	}
	answers, err := questionnaires.DecodeAnswers(f.Quiz)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "quiz responses are malformed").
			WithDetails(map[string]string{"quizResponses": err.Error()})
	}
	f.Answers = answers
	return nil
}

// Input pairs the form with the caller identity resolved by the auth middleware.
type Input struct {
	Form   Form
	UserID *uuid.UUID
}

func (in Input) authenticated() bool {
	return in.UserID != nil && *in.UserID != uuid.Nil
}

type AddressPaymentData struct {
	Address               *types.Address              `json:"address,omitempty"`
	PaymentMethods        []payments.PaymentMethodDTO `json:"paymentMethods"`
	HasBillingAccount     bool                        `json:"hasBillingAccount"`
	RequiresQuestionnaire bool                        `json:"requiresQuestionnaire"`
}

// Integrations reports every best-effort side effect of a checkout.
type Integrations struct {
	AccountProfile     types.Outcome `json:"account_profile"`
	QuizResponses      types.Outcome `json:"quiz_responses"`
	EMed               types.Outcome `json:"emed"`
	QuestionnaireRelay types.Outcome `json:"questionnaire_relay"`
	Genie              types.Outcome `json:"genie"`
}

// Result is returned for a successful checkout. Failures surface as errors.
type Result struct {
	Success                 bool                  `json:"success"`
	FlowType                enums.FlowType        `json:"flowType"`
	PaymentFlowType         enums.PaymentFlowType `json:"paymentFlowType"`
	OrderID                 *uuid.UUID            `json:"orderId,omitempty"`
	OrderNumber             string                `json:"orderNumber,omitempty"`
	RedirectURL             string                `json:"redirectUrl,omitempty"`
	UserID                  uuid.UUID             `json:"userId"`
	IsNewUser               bool                  `json:"isNewUser"`
	NextStep                enums.CheckoutStep    `json:"nextStep"`
	SessionToken            string                `json:"sessionToken,omitempty"`
	AddressPaymentData      *AddressPaymentData   `json:"addressPaymentData,omitempty"`
	Message                 string                `json:"message"`
	Integrations            Integrations          `json:"integrations"`
	EMedIntegrationSuccess  bool                  `json:"emedIntegrationSuccess"`
	GenieIntegrationSuccess bool                  `json:"genieIntegrationSuccess"`
}
