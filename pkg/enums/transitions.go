package enums

// IsTerminal reports whether the gateway will send no further state for the transaction.
func (g GenieTransactionState) IsTerminal() bool {
	switch g {
	case GenieStateConfirmed, GenieStateVoided, GenieStateCancelled, GenieStateFailed:
		return true
	}
	return false
}

// PhaseStatus maps a terminal gateway state onto the payment phase status it drives.
func (g GenieTransactionState) PhaseStatus() (PhaseStatus, bool) {
	switch g {
	case GenieStateConfirmed:
		return PhaseStatusCompleted, true
	case GenieStateVoided:
		return PhaseStatusVoided, true
	case GenieStateCancelled:
		return PhaseStatusCancelled, true
	case GenieStateFailed:
		return PhaseStatusFailed, true
	}
	return "", false
}

// IntentStatus maps a terminal gateway state onto the payment intent status.
func (g GenieTransactionState) IntentStatus() (PaymentIntentStatus, bool) {
	switch g {
	case GenieStateConfirmed:
		return PaymentIntentConfirmed, true
	case GenieStateVoided:
		return PaymentIntentVoided, true
	case GenieStateCancelled:
		return PaymentIntentCancelled, true
	case GenieStateFailed:
		return PaymentIntentFailed, true
	}
	return "", false
}

// phaseSources lists, per target status, the statuses a phase may move from.
// completed may only be reversed by a void; every other terminal is final.
var phaseSources = map[PhaseStatus][]PhaseStatus{
	PhaseStatusCompleted: {PhaseStatusPending},
	PhaseStatusVoided:    {PhaseStatusPending, PhaseStatusCompleted},
	PhaseStatusCancelled: {PhaseStatusPending},
	PhaseStatusFailed:    {PhaseStatusPending},
}

// PhaseSourcesFor returns the statuses from which target is reachable.
func PhaseSourcesFor(target PhaseStatus) []PhaseStatus {
	return phaseSources[target]
}

// CanTransitionTo reports whether a phase in status p may move to next.
func (p PhaseStatus) CanTransitionTo(next PhaseStatus) bool {
	for _, src := range phaseSources[next] {
		if src == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition leaves p.
func (p PhaseStatus) IsTerminal() bool {
	return p == PhaseStatusVoided || p == PhaseStatusCancelled || p == PhaseStatusFailed
}

// OrderOutcome describes the order-level fields written for a terminal
// non-confirmed gateway state.
type OrderOutcome struct {
	Status         OrderStatus
	PaymentStatus  OrderPaymentStatus
	PhaseStatus    PhaseStatus
	AllowedSources []OrderStatus
}

// OrderOutcomeFor maps VOIDED, CANCELLED and FAILED onto order updates.
// Fulfilment statuses are never reverted by a late cancel or failure; only a
// void (refund) may cancel an order that is already processing.
func OrderOutcomeFor(state GenieTransactionState) (OrderOutcome, bool) {
	early := []OrderStatus{OrderStatusPendingPayment, OrderStatusPhysicianReview}
	switch state {
	case GenieStateVoided:
		return OrderOutcome{
			Status:         OrderStatusCancelled,
			PaymentStatus:  OrderPaymentCancelled,
			PhaseStatus:    PhaseStatusVoided,
			AllowedSources: append(early, OrderStatusProcessing),
		}, true
	case GenieStateCancelled:
		return OrderOutcome{
			Status:         OrderStatusCancelled,
			PaymentStatus:  OrderPaymentCancelled,
			PhaseStatus:    PhaseStatusCancelled,
			AllowedSources: early,
		}, true
	case GenieStateFailed:
		return OrderOutcome{
			Status:         OrderStatusPaymentFailed,
			PaymentStatus:  OrderPaymentFailed,
			PhaseStatus:    PhaseStatusFailed,
			AllowedSources: early,
		}, true
	}
	return OrderOutcome{}, false
}
