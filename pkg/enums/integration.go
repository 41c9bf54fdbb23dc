package enums

import "fmt"

// IntegrationStatus reports what happened to a best-effort side effect.
type IntegrationStatus string

const (
	IntegrationSucceeded IntegrationStatus = "succeeded"
	IntegrationFailed    IntegrationStatus = "failed"
	IntegrationSkipped   IntegrationStatus = "skipped"
)

var validIntegrationStatuses = []IntegrationStatus{
	IntegrationSucceeded,
	IntegrationFailed,
	IntegrationSkipped,
}

func (i IntegrationStatus) String() string {
	return string(i)
}

func (i IntegrationStatus) IsValid() bool {
	for _, candidate := range validIntegrationStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

func ParseIntegrationStatus(value string) (IntegrationStatus, error) {
	for _, candidate := range validIntegrationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid integration status %q", value)
}
