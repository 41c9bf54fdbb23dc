package checkout

import (
	"github.com/vitalcart/storefront-backend/pkg/enums"
	"github.com/vitalcart/storefront-backend/pkg/types"
)

// FlowDecision tells the storefront which checkout steps the cart needs.
type FlowDecision struct {
	FlowType              enums.FlowType     `json:"flowType"`
	RequiresSignup        bool               `json:"requiresSignup"`
	RequiresQuestionnaire bool               `json:"requiresQuestionnaire"`
	NextStep              enums.CheckoutStep `json:"nextStep"`
}

// ClassifyFlow picks the checkout flow for a cart. Signed-in users always get
// the authenticated flow; the questionnaire requirement is reported but not enforced for them.
func ClassifyFlow(items types.Cart, isAuthenticated bool) FlowDecision {
	requiresQuestionnaire := items.AnyRequiresQuestionnaire()
	switch {
	case isAuthenticated:
		return FlowDecision{
			FlowType:              enums.FlowAuthenticatedUser,
			RequiresQuestionnaire: requiresQuestionnaire,
			NextStep:              enums.StepAddressPayment,
		}
	case requiresQuestionnaire:
		return FlowDecision{
			FlowType:              enums.FlowSignupWithQuestionnaire,
			RequiresSignup:        true,
			RequiresQuestionnaire: true,
			NextStep:              enums.StepQuestionnaire,
		}
	default:
		return FlowDecision{
			FlowType:       enums.FlowSignupWithoutQuestionnaire,
			RequiresSignup: true,
			NextStep:       enums.StepAccount,
		}
	}
}

// PaymentFlowFor decides whether the order waits for a paid consultation.
func PaymentFlowFor(items types.Cart) enums.PaymentFlowType {
	if items.AnyPrescriptionRequired() {
		return enums.PaymentFlowConsultationFirst
	}
	return enums.PaymentFlowFullUpfront
}
