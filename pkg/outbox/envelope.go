package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event. Webhook driven events carry no actor.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Source string    `json:"source,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// OrderEvent is the data block for every order_* event.
type OrderEvent struct {
	OrderID            uuid.UUID `json:"orderId"`
	UserID             uuid.UUID `json:"userId"`
	OrderNumber        string    `json:"orderNumber"`
	Status             string    `json:"status"`
	PaymentStatus      string    `json:"paymentStatus"`
	PaymentFlowType    string    `json:"paymentFlowType"`
	TotalAmount        string    `json:"totalAmount"`
	TransactionID      string    `json:"transactionId,omitempty"`
	GatewayState       string    `json:"gatewayState,omitempty"`
	ConsultationStatus string    `json:"consultationStatus,omitempty"`
}

// TokensSyncedEvent is emitted after new stored cards were added for a customer.
type TokensSyncedEvent struct {
	UserID          uuid.UUID `json:"userId"`
	GenieCustomerID string    `json:"genieCustomerId"`
	Added           int       `json:"added"`
}
