package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder           OutboxAggregateType = "order"
	AggregateCheckoutSession OutboxAggregateType = "checkout_session"
	AggregatePaymentToken    OutboxAggregateType = "payment_token"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateCheckoutSession,
	AggregatePaymentToken,
}

func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderConsultationPaid OutboxEventType = "order_consultation_paid"
	EventOrderPaid             OutboxEventType = "order_paid"
	EventOrderPaymentTerminal  OutboxEventType = "order_payment_terminal"
	EventPaymentTokensSynced   OutboxEventType = "payment_tokens_synced"
)

var validEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderConsultationPaid,
	EventOrderPaid,
	EventOrderPaymentTerminal,
	EventPaymentTokensSynced,
}

func (e OutboxEventType) String() string {
	return string(e)
}

func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
