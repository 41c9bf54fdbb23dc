package genie

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/vitalcart/storefront-backend/pkg/enums"
)

const (
	HeaderSignature          = "X-Signature"
	HeaderSignatureNonce     = "X-Signature-Nonce"
	HeaderSignatureTimestamp = "X-Signature-Timestamp"

	TokenisationSucceeded = "SUCCESS"
)

// WebhookEvent is the body of a gateway notification. Tokenisation and
// transaction notifications share the envelope and fill different fields.
type WebhookEvent struct {
	EventType          enums.GenieEventType        `json:"eventType"`
	TransactionID      string                      `json:"transactionId"`
	State              enums.GenieTransactionState `json:"state"`
	LocalID            string                      `json:"localId"`
	CustomerID         string                      `json:"customerId"`
	Amount             int64                       `json:"amount"`
	Currency           string                      `json:"currency"`
	TokenisationStatus string                      `json:"tokenisationStatus"`
}

// TokenisationSucceeded reports whether a tokenisation notification carries a usable card.
func (e WebhookEvent) TokenisationSucceeded() bool {
	return strings.EqualFold(strings.TrimSpace(e.TokenisationStatus), TokenisationSucceeded)
}

// Signature computes hex(sha256(nonce + timestamp + apiKey)).
func Signature(nonce, timestamp, apiKey string) string {
	sum := sha256.Sum256([]byte(nonce + timestamp + apiKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature compares the supplied signature against the expected digest in constant time.
func VerifySignature(nonce, timestamp, signature, apiKey string) bool {
	if nonce == "" || timestamp == "" || signature == "" || apiKey == "" {
		return false
	}
	expected := Signature(nonce, timestamp, apiKey)
	provided := strings.ToLower(strings.TrimSpace(signature))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
