package enums

import "fmt"

// FlowType is the checkout path chosen for a cart and auth state.
type FlowType string

const (
	FlowAuthenticatedUser          FlowType = "authenticated_user"
	FlowSignupWithQuestionnaire    FlowType = "signup_with_questionnaire"
	FlowSignupWithoutQuestionnaire FlowType = "signup_without_questionnaire"
)

var validFlowTypes = []FlowType{
	FlowAuthenticatedUser,
	FlowSignupWithQuestionnaire,
	FlowSignupWithoutQuestionnaire,
}

func (f FlowType) String() string {
	return string(f)
}

func (f FlowType) IsValid() bool {
	for _, candidate := range validFlowTypes {
		if candidate == f {
			return true
		}
	}
	return false
}

func ParseFlowType(value string) (FlowType, error) {
	for _, candidate := range validFlowTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid flow type %q", value)
}

type CheckoutStep string

const (
	StepQuestionnaire               CheckoutStep = "questionnaire"
	StepAccount                     CheckoutStep = "account"
	StepAddressPayment              CheckoutStep = "address_payment"
	StepConsultationPayment         CheckoutStep = "consultation_payment"
	StepAwaitingConsultationPayment CheckoutStep = "awaiting_consultation_payment"
	StepCompleted                   CheckoutStep = "completed"
)

var validCheckoutSteps = []CheckoutStep{
	StepQuestionnaire,
	StepAccount,
	StepAddressPayment,
	StepConsultationPayment,
	StepAwaitingConsultationPayment,
	StepCompleted,
}

func (c CheckoutStep) String() string {
	return string(c)
}

func (c CheckoutStep) IsValid() bool {
	for _, candidate := range validCheckoutSteps {
		if candidate == c {
			return true
		}
	}
	return false
}

func ParseCheckoutStep(value string) (CheckoutStep, error) {
	for _, candidate := range validCheckoutSteps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout step %q", value)
}

// Lifecycle of a checkout_sessions row.
type CheckoutSessionStatus string

const (
	CheckoutSessionActive    CheckoutSessionStatus = "active"
	CheckoutSessionCompleted CheckoutSessionStatus = "completed"
	CheckoutSessionExpired   CheckoutSessionStatus = "expired"
	CheckoutSessionAbandoned CheckoutSessionStatus = "abandoned"
)

var validCheckoutSessionStatuses = []CheckoutSessionStatus{
	CheckoutSessionActive,
	CheckoutSessionCompleted,
	CheckoutSessionExpired,
	CheckoutSessionAbandoned,
}

func (c CheckoutSessionStatus) String() string {
	return string(c)
}

func (c CheckoutSessionStatus) IsValid() bool {
	for _, candidate := range validCheckoutSessionStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

func ParseCheckoutSessionStatus(value string) (CheckoutSessionStatus, error) {
	for _, candidate := range validCheckoutSessionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout session status %q", value)
}

// PaymentFlowType decides whether an order exists before payment.
type PaymentFlowType string

const (
	PaymentFlowConsultationFirst PaymentFlowType = "consultation_first"
	PaymentFlowFullUpfront       PaymentFlowType = "full_upfront"
)

var validPaymentFlowTypes = []PaymentFlowType{
	PaymentFlowConsultationFirst,
	PaymentFlowFullUpfront,
}

func (p PaymentFlowType) String() string {
	return string(p)
}

func (p PaymentFlowType) IsValid() bool {
	for _, candidate := range validPaymentFlowTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParsePaymentFlowType(value string) (PaymentFlowType, error) {
	for _, candidate := range validPaymentFlowTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment flow type %q", value)
}
