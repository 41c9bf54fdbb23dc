package enums

import "fmt"

// GenieEventType discriminates inbound gateway webhook bodies.
type GenieEventType string

const (
	GenieEventTokenisationStatus GenieEventType = "NOTIFY_TOKENISATION_STATUS"
	GenieEventTransactionChange  GenieEventType = "NOTIFY_TRANSACTION_CHANGE"
)

var validGenieEventTypes = []GenieEventType{
	GenieEventTokenisationStatus,
	GenieEventTransactionChange,
}

func (g GenieEventType) String() string {
	return string(g)
}

func (g GenieEventType) IsValid() bool {
	for _, candidate := range validGenieEventTypes {
		if candidate == g {
			return true
		}
	}
	return false
}

func ParseGenieEventType(value string) (GenieEventType, error) {
	for _, candidate := range validGenieEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid genie event type %q", value)
}

type GenieTransactionState string

const (
	GenieStateInitiated       GenieTransactionState = "INITIATED"
	GenieStateQRCodeGenerated GenieTransactionState = "QR_CODE_GENERATED"
	GenieStateConfirmed       GenieTransactionState = "CONFIRMED"
	GenieStateVoided          GenieTransactionState = "VOIDED"
	GenieStateCancelled       GenieTransactionState = "CANCELLED"
	GenieStateFailed          GenieTransactionState = "FAILED"
)

var validGenieTransactionStates = []GenieTransactionState{
	GenieStateInitiated,
	GenieStateQRCodeGenerated,
	GenieStateConfirmed,
	GenieStateVoided,
	GenieStateCancelled,
	GenieStateFailed,
}

func (g GenieTransactionState) String() string {
	return string(g)
}

func (g GenieTransactionState) IsValid() bool {
	for _, candidate := range validGenieTransactionStates {
		if candidate == g {
			return true
		}
	}
	return false
}

func ParseGenieTransactionState(value string) (GenieTransactionState, error) {
	for _, candidate := range validGenieTransactionStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid genie transaction state %q", value)
}
