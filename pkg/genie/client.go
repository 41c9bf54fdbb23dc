package genie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vitalcart/storefront-backend/pkg/config"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"github.com/vitalcart/storefront-backend/pkg/types"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	maxErrorBody = 4096
)

var (
	errAPIKeyRequired  = errors.New("genie api key is required")
	errLoggerRequired  = errors.New("genie logger is required")
	errInvalidGenieEnv = fmt.Errorf("genie environment must be %q or %q", sandboxEnv, productionEnv)
)

// Client wraps the Genie payment gateway REST API with auth, logging and error mapping.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	environment string
	webhookURL  string
	redirectURL string
	logger      *logger.Logger
}

func NewClient(ctx context.Context, cfg config.GenieConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		environment: env,
		webhookURL:  cfg.WebhookURL,
		redirectURL: cfg.RedirectURL,
		logger:      logg,
	}
	logg.Info(logg.WithField(ctx, "genie_env", env), "genie client initialized")
	return c, nil
}

// APIKey returns the key used both for API auth and webhook signatures.
func (c *Client) APIKey() string {
	if c == nil {
		return ""
	}
	return c.apiKey
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func (c *Client) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	if req.Currency == "" {
		req.Currency = string(enums.CurrencyLKR)
	}
	c.log(ctx, "request", "create_customer", map[string]any{"email": req.Email, "city": req.BillingAddress.City})

	var out Customer
	if err := c.do(ctx, http.MethodPost, "/v2/customers", req, &out); err != nil {
		c.log(ctx, "error", "create_customer", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "create customer")
	}
	if out.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "genie create customer returned no id")
	}
	c.log(ctx, "response", "create_customer", map[string]any{"customer_id": out.ID})
	return &out, nil
}

// CreateTransaction opens a hosted payment page. Webhook and redirect URLs default to the configured ones.
func (c *Client) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*Transaction, error) {
	payload, err := c.transactionPayload(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction amount")
	}
	c.log(ctx, "request", "create_transaction", map[string]any{
		"customer_id": req.CustomerID,
		"local_id":    req.LocalID,
		"amount":      payload.Amount,
	})

	var out Transaction
	if err := c.do(ctx, http.MethodPost, "/v2/transactions", payload, &out); err != nil {
		c.log(ctx, "error", "create_transaction", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "create transaction")
	}
	if out.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "genie create transaction returned no id")
	}
	c.log(ctx, "response", "create_transaction", map[string]any{"transaction_id": out.ID, "state": out.State})
	return &out, nil
}

// ChargeStoredToken charges a stored card against an open transaction. An empty tokenID uses the default card.
func (c *Client) ChargeStoredToken(ctx context.Context, customerID, transactionID, tokenID string) (*ChargeResult, error) {
	c.log(ctx, "request", "charge_stored_token", map[string]any{
		"customer_id":    customerID,
		"transaction_id": transactionID,
		"token_id":       tokenID,
	})

	path := fmt.Sprintf("/v2/transactions/%s/charge", url.PathEscape(transactionID))
	var out ChargeResult
	if err := c.do(ctx, http.MethodPost, path, chargePayload{CustomerID: customerID, TokenID: tokenID}, &out); err != nil {
		c.log(ctx, "error", "charge_stored_token", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "charge stored token")
	}
	c.log(ctx, "response", "charge_stored_token", map[string]any{"transaction_id": transactionID, "success": out.Success})
	return &out, nil
}

func (c *Client) GetCustomerTokens(ctx context.Context, customerID string) ([]Token, error) {
	c.log(ctx, "request", "get_customer_tokens", map[string]any{"customer_id": customerID})

	path := fmt.Sprintf("/v2/customers/%s/tokens", url.PathEscape(customerID))
	var out tokensResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		c.log(ctx, "error", "get_customer_tokens", map[string]any{"error": err.Error()})
		return nil, c.mapError(err, "get customer tokens")
	}
	c.log(ctx, "response", "get_customer_tokens", map[string]any{"customer_id": customerID, "count": len(out.Tokens)})
	return out.Tokens, nil
}

func (c *Client) transactionPayload(req CreateTransactionRequest) (transactionPayload, error) {
	payload := transactionPayload{
		Currency:    req.Currency,
		CustomerID:  req.CustomerID,
		LocalID:     req.LocalID,
		WebhookURL:  req.WebhookURL,
		RedirectURL: req.RedirectURL,
		Tokenise:    req.Tokenise,
	}
	if payload.Currency == "" {
		payload.Currency = string(enums.CurrencyLKR)
	}
	if payload.WebhookURL == "" {
		payload.WebhookURL = c.webhookURL
	}
	if payload.RedirectURL == "" {
		payload.RedirectURL = c.redirectURL
	}
	for _, item := range req.Items {
		cents, err := types.ToCents(item.UnitPrice)
		if err != nil {
			return transactionPayload{}, err
		}
		payload.Items = append(payload.Items, transactionItemPayload{
			Name:     item.Name,
			Quantity: item.Quantity,
			Amount:   cents,
		})
	}
	total, err := types.ToCents(req.Total())
	if err != nil {
		return transactionPayload{}, err
	}
	if total <= 0 {
		return transactionPayload{}, errors.New("transaction total must be positive")
	}
	payload.Amount = total
	return payload, nil
}

// apiError carries the HTTP status of a non-2xx gateway response.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("genie returned status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &apiError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode genie response: %w", err)
	}
	return nil
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("genie %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("genie %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "card", "secret", "key", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return pkgerrors.Wrap(domainCodeForStatus(apiErr.StatusCode), err, fmt.Sprintf("genie %s failed", op))
	}
	if errors.Is(err, context.Canceled) {
		return pkgerrors.Wrap(pkgerrors.CodeCancelled, err, fmt.Sprintf("genie %s cancelled", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("genie %s failed", op))
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidGenieEnv
	}
}
