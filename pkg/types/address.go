package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	DefaultCity       = "Colombo"
	DefaultPostalCode = "00000"
	DefaultCountry    = "LK"
)

// Address is a Sri Lankan postal address stored as jsonb.
type Address struct {
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city" validate:"required"`
	District   string  `json:"district,omitempty"`
	PostalCode string  `json:"postal_code,omitempty"`
	Country    string  `json:"country,omitempty"`
}

// IsZero reports whether no meaningful address line was captured.
func (a Address) IsZero() bool {
	return strings.TrimSpace(a.Line1) == "" && strings.TrimSpace(a.City) == ""
}

// WithDefaults fills the billing defaults used when a profile has no full address.
func (a Address) WithDefaults() Address {
	out := a
	if strings.TrimSpace(out.City) == "" {
		out.City = DefaultCity
	}
	if strings.TrimSpace(out.PostalCode) == "" {
		out.PostalCode = DefaultPostalCode
	}
	if strings.TrimSpace(out.Country) == "" {
		out.Country = DefaultCountry
	}
	return out
}

// Lines returns the non-empty street lines.
func (a Address) Lines() []string {
	lines := []string{}
	if l := strings.TrimSpace(a.Line1); l != "" {
		lines = append(lines, l)
	}
	if a.Line2 != nil {
		if l := strings.TrimSpace(*a.Line2); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func (a Address) Value() (driver.Value, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("address: marshal %w", err)
	}
	return string(raw), nil
}

func (a *Address) Scan(value any) error {
	if value == nil {
		*a = Address{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("address: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*a = Address{}
		return nil
	}
	return json.Unmarshal(raw, a)
}
