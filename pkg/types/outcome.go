package types

import "github.com/vitalcart/storefront-backend/pkg/enums"

// Outcome reports how a best-effort integration step ended.
type Outcome struct {
	Attempted bool                    `json:"attempted"`
	Status    enums.IntegrationStatus `json:"status"`
	Error     string                  `json:"error,omitempty"`
}

func Succeeded() Outcome {
	return Outcome{Attempted: true, Status: enums.IntegrationSucceeded}
}

func Failed(err error) Outcome {
	out := Outcome{Attempted: true, Status: enums.IntegrationFailed}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// Skipped marks a step that was not attempted, with the reason in Error.
func Skipped(reason string) Outcome {
	return Outcome{Status: enums.IntegrationSkipped, Error: reason}
}

func (o Outcome) OK() bool {
	return o.Status == enums.IntegrationSucceeded
}
