package enums

import "fmt"

type PaymentPhase string

const (
	PaymentPhaseConsultation PaymentPhase = "consultation"
	PaymentPhaseProducts     PaymentPhase = "products"
)

var validPaymentPhases = []PaymentPhase{
	PaymentPhaseConsultation,
	PaymentPhaseProducts,
}

func (p PaymentPhase) String() string {
	return string(p)
}

func (p PaymentPhase) IsValid() bool {
	for _, candidate := range validPaymentPhases {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParsePaymentPhase(value string) (PaymentPhase, error) {
	for _, candidate := range validPaymentPhases {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment phase %q", value)
}

// PhaseStatus tracks a single order_payment_phases row.
type PhaseStatus string

const (
	PhaseStatusPending   PhaseStatus = "pending"
	PhaseStatusCompleted PhaseStatus = "completed"
	PhaseStatusVoided    PhaseStatus = "voided"
	PhaseStatusCancelled PhaseStatus = "cancelled"
	PhaseStatusFailed    PhaseStatus = "failed"
)

var validPhaseStatuses = []PhaseStatus{
	PhaseStatusPending,
	PhaseStatusCompleted,
	PhaseStatusVoided,
	PhaseStatusCancelled,
	PhaseStatusFailed,
}

func (p PhaseStatus) String() string {
	return string(p)
}

func (p PhaseStatus) IsValid() bool {
	for _, candidate := range validPhaseStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParsePhaseStatus(value string) (PhaseStatus, error) {
	for _, candidate := range validPhaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid phase status %q", value)
}

type PaymentIntentStatus string

const (
	PaymentIntentOpen      PaymentIntentStatus = "open"
	PaymentIntentConfirmed PaymentIntentStatus = "confirmed"
	PaymentIntentVoided    PaymentIntentStatus = "voided"
	PaymentIntentCancelled PaymentIntentStatus = "cancelled"
	PaymentIntentFailed    PaymentIntentStatus = "failed"
)

var validPaymentIntentStatuses = []PaymentIntentStatus{
	PaymentIntentOpen,
	PaymentIntentConfirmed,
	PaymentIntentVoided,
	PaymentIntentCancelled,
	PaymentIntentFailed,
}

func (p PaymentIntentStatus) String() string {
	return string(p)
}

func (p PaymentIntentStatus) IsValid() bool {
	for _, candidate := range validPaymentIntentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParsePaymentIntentStatus(value string) (PaymentIntentStatus, error) {
	for _, candidate := range validPaymentIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment intent status %q", value)
}

// Currency represents supported settlement currencies.
type Currency string

const (
	CurrencyLKR Currency = "LKR"
)

var validCurrencies = []Currency{
	CurrencyLKR,
}

func (c Currency) String() string {
	return string(c)
}

func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

func ParseCurrency(value string) (Currency, error) {
	for _, candidate := range validCurrencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
