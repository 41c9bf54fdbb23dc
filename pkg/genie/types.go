package genie

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// BillingAddress is the customer address Genie keeps on file.
type BillingAddress struct {
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
}

type CreateCustomerRequest struct {
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	PhoneNumber    string         `json:"phoneNumber,omitempty"`
	Currency       string         `json:"currency"`
	BillingAddress BillingAddress `json:"billingAddress"`
	ExternalRef    string         `json:"externalReference,omitempty"`
}

type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// LineItem is one product on a gateway transaction.
type LineItem struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

type CreateTransactionRequest struct {
	CustomerID  string
	Currency    string
	Items       []LineItem
	LocalID     string
	WebhookURL  string
	RedirectURL string
	Tokenise    bool
}

// Total sums quantity * unit price over the line items.
func (r CreateTransactionRequest) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

type Transaction struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	State   string `json:"state"`
	LocalID string `json:"localId"`
	Amount  int64  `json:"amount"`
}

type ChargeResult struct {
	Success bool   `json:"success"`
	State   string `json:"state"`
}

// Token is a stored card as returned by the customer token listing.
// ExpiryYear is the two digit year Genie reports.
type Token struct {
	ID           string `json:"id"`
	Brand        string `json:"brand"`
	MaskedNumber string `json:"maskedNumber"`
	ExpiryMonth  int    `json:"expiryMonth"`
	ExpiryYear   int    `json:"expiryYear"`
	IsDefault    bool   `json:"defaultToken"`
}

// UnmarshalJSON accepts the expiry fields as numbers or as numeric strings such as "05".
func (t *Token) UnmarshalJSON(data []byte) error {
	type plain Token
	aux := struct {
		*plain
		ExpiryMonth json.RawMessage `json:"expiryMonth"`
		ExpiryYear  json.RawMessage `json:"expiryYear"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	month, err := lenientInt(aux.ExpiryMonth)
	if err != nil {
		return fmt.Errorf("expiryMonth: %w", err)
	}
	year, err := lenientInt(aux.ExpiryYear)
	if err != nil {
		return fmt.Errorf("expiryYear: %w", err)
	}
	t.ExpiryMonth, t.ExpiryYear = month, year
	return nil
}

func lenientInt(raw json.RawMessage) (int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return 0, err
		}
		trimmed = bytes.TrimSpace([]byte(s))
		if len(trimmed) == 0 {
			return 0, nil
		}
	}
	return strconv.Atoi(string(trimmed))
}

type transactionItemPayload struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Amount   int64  `json:"amount"`
}

type transactionPayload struct {
	Amount      int64                    `json:"amount"`
	Currency    string                   `json:"currency"`
	CustomerID  string                   `json:"customerId"`
	LocalID     string                   `json:"localId"`
	WebhookURL  string                   `json:"webhook,omitempty"`
	RedirectURL string                   `json:"redirectUrl,omitempty"`
	Tokenise    bool                     `json:"tokenise,omitempty"`
	Items       []transactionItemPayload `json:"items"`
}

type chargePayload struct {
	CustomerID string `json:"customerId"`
	TokenID    string `json:"tokenId,omitempty"`
}

type tokensResponse struct {
	Tokens []Token `json:"tokens"`
}
