package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/vitalcart/storefront-backend/internal/auth"
	"github.com/vitalcart/storefront-backend/internal/checkout"
	internalorders "github.com/vitalcart/storefront-backend/internal/orders"
	internalpayments "github.com/vitalcart/storefront-backend/internal/payments"
	pkgAuth "github.com/vitalcart/storefront-backend/pkg/auth"
	"github.com/vitalcart/storefront-backend/pkg/config"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	"github.com/vitalcart/storefront-backend/pkg/genie"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"github.com/vitalcart/storefront-backend/pkg/metrics"
	"github.com/vitalcart/storefront-backend/pkg/pagination"
	"github.com/vitalcart/storefront-backend/pkg/redis"
)

var _ Cache = (*redis.Client)(nil)

type memoryCache struct {
	data map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string]string{}}
}

func (m *memoryCache) Ping(context.Context) error { return nil }

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (m *memoryCache) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key], _ = value.(string)
	return nil
}

func (m *memoryCache) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryCache) FixedWindowAllow(context.Context, string, int64, time.Duration) (bool, int64, error) {
	return true, 1, nil
}

func (m *memoryCache) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubAuthService struct{}

func (stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return nil, errors.New("not implemented")
}

type stubSessionManager struct{}

func (stubSessionManager) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

func (stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	return "", "", nil
}

func (stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	return nil
}

type stubCheckoutService struct {
	calls int
}

func (s *stubCheckoutService) Execute(ctx context.Context, in checkout.Input) (*checkout.Result, error) {
	s.calls++
	return &checkout.Result{
		Success:  true,
		FlowType: enums.FlowSignupWithoutQuestionnaire,
		UserID:   uuid.New(),
		NextStep: enums.StepAddressPayment,
	}, nil
}

func (s *stubCheckoutService) PlaceOrder(ctx context.Context, userID uuid.UUID, sessionToken string) (*internalorders.Materialized, error) {
	return &internalorders.Materialized{OrderID: uuid.New(), OrderNumber: "VC-1"}, nil
}

type stubGenieWebhook struct {
	calls int
}

func (s *stubGenieWebhook) HandleEvent(ctx context.Context, event genie.WebhookEvent) error {
	s.calls++
	return nil
}

type stubOrdersService struct{}

func (stubOrdersService) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
	return &internalorders.OrderList{Orders: []internalorders.OrderSummary{}}, nil
}

func (stubOrdersService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*internalorders.OrderDetail, error) {
	return &internalorders.OrderDetail{}, nil
}

type stubPaymentService struct {
	synced []string
}

func (s *stubPaymentService) StartConsultationPayment(ctx context.Context, userID uuid.UUID, sessionToken string) (*internalpayments.Started, error) {
	return &internalpayments.Started{TransactionID: "txn-1", URL: "https://pay.example/txn-1"}, nil
}

func (s *stubPaymentService) StartProductPayment(ctx context.Context, userID, orderID uuid.UUID, tokenID *uuid.UUID) (*internalpayments.Started, error) {
	return &internalpayments.Started{TransactionID: "txn-2"}, nil
}

func (s *stubPaymentService) ListPaymentMethods(ctx context.Context, userID uuid.UUID) ([]internalpayments.PaymentMethodDTO, error) {
	return nil, nil
}

func (s *stubPaymentService) SyncTokens(ctx context.Context, customerID string) (int, error) {
	s.synced = append(s.synced, customerID)
	return 2, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0", AllowedOrigins: "*"},
		JWT: config.JWTConfig{
			Secret:                 "secret",
			Issuer:                 "issuer",
			ExpirationMinutes:      60,
			RefreshTokenTTLMinutes: 120,
		},
		AuthRateLimit: config.AuthRateLimitConfig{
			LoginWindow:     time.Minute,
			LoginIPLimit:    10,
			LoginEmailLimit: 5,
		},
		Genie: config.GenieConfig{APIKey: "genie-key"},
	}
}

type harness struct {
	cfg      *config.Config
	handler  http.Handler
	checkout *stubCheckoutService
	payments *stubPaymentService
	webhook  *stubGenieWebhook
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithCache(t, nil)
}

func newHarnessWithCache(t *testing.T, cache Cache) *harness {
	t.Helper()
	h := &harness{
		cfg:      testConfig(),
		checkout: &stubCheckoutService{},
		payments: &stubPaymentService{},
		webhook:  &stubGenieWebhook{},
	}
	registry := prometheus.NewRegistry()
	h.handler = NewRouter(h.cfg, logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard}), Dependencies{
		DB:       stubPinger{},
		Redis:    cache,
		Sessions: stubSessionManager{},
		Gatherer: registry,
		Metrics:  metrics.NewStorefront(registry),
		Auth:     stubAuthService{},
		Checkout: h.checkout,
		Orders:   stubOrdersService{},
		Payments: h.payments,

		GenieWebhook: h.webhook,
	})
	return h
}

func (h *harness) token(t *testing.T, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(h.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "kamala@example.lk",
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (h *harness) do(method, path, body, token string) *httptest.ResponseRecorder {
	return h.doWithHeaders(method, path, body, token, nil)
}

func (h *harness) doWithHeaders(method, path, body, token string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t)

	if rec := h.do(http.MethodGet, "/health/live", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/health/ready", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestReadinessSkipsUnconfiguredRedis(t *testing.T) {
	checks := readinessChecks(Dependencies{DB: stubPinger{}})
	if _, ok := checks["redis"]; ok {
		t.Fatalf("nil redis should not be probed")
	}
	if _, ok := checks["db"]; !ok {
		t.Fatalf("db probe missing")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/orders"},
		{http.MethodGet, "/api/v1/orders/" + uuid.NewString()},
		{http.MethodGet, "/api/v1/payment-methods"},
		{http.MethodPost, "/api/v1/payments/consultation"},
		{http.MethodPost, "/api/v1/checkout/orders"},
	}
	for _, tc := range cases {
		rec := h.do(tc.method, tc.path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestOrdersListWithToken(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/v1/orders", "", h.token(t, enums.UserRoleCustomer))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestSupportSyncRequiresSupportRole(t *testing.T) {
	h := newHarness(t)
	path := "/api/v1/support/customers/cus_77/payment-methods/sync"

	rec := h.do(http.MethodPost, path, "", h.token(t, enums.UserRoleCustomer))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("customer: expected 403 got %d", rec.Code)
	}
	if len(h.payments.synced) != 0 {
		t.Fatalf("sync should not run for customers")
	}

	rec = h.do(http.MethodPost, path, "", h.token(t, enums.UserRoleSupport))
	if rec.Code != http.StatusOK {
		t.Fatalf("support: expected 200 got %d body=%s", rec.Code, rec.Body.String())
	}
	if len(h.payments.synced) != 1 || h.payments.synced[0] != "cus_77" {
		t.Fatalf("unexpected sync calls %v", h.payments.synced)
	}
}

func TestCheckoutOpenToGuests(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/v1/checkout", `{"cart":[]}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", rec.Code, rec.Body.String())
	}
	if h.checkout.calls != 1 {
		t.Fatalf("expected checkout to run once, got %d", h.checkout.calls)
	}
	var body checkout.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.NextStep != enums.StepAddressPayment {
		t.Fatalf("unexpected result %+v", body)
	}
}

func TestCheckoutReplaysIdempotentRequest(t *testing.T) {
	h := newHarnessWithCache(t, newMemoryCache())
	headers := map[string]string{"Idempotency-Key": "checkout-1"}

	rec := h.do(http.MethodPost, "/api/v1/checkout", `{"cartItems":[]}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing key: expected 400 got %d", rec.Code)
	}

	first := h.doWithHeaders(http.MethodPost, "/api/v1/checkout", `{"cartItems":[]}`, "", headers)
	if first.Code != http.StatusOK {
		t.Fatalf("first: expected 200 got %d body=%s", first.Code, first.Body.String())
	}
	second := h.doWithHeaders(http.MethodPost, "/api/v1/checkout", `{"cartItems":[]}`, "", headers)
	if second.Code != http.StatusOK {
		t.Fatalf("replay: expected 200 got %d body=%s", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replayed header on second response")
	}
	if h.checkout.calls != 1 {
		t.Fatalf("expected checkout to run once, got %d", h.checkout.calls)
	}
}

func TestCheckoutRejectsBrokenToken(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/v1/checkout", `{"cart":[]}`, "not-a-jwt")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if h.checkout.calls != 0 {
		t.Fatalf("checkout should not run")
	}
}

func TestGenieWebhookRoutes(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/v1/webhooks/genie", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200 got %d", rec.Code)
	}

	rec = h.do(http.MethodPost, "/api/v1/webhooks/genie", `{"eventType":"TRANSACTION_UPDATED"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned: expected 401 got %d", rec.Code)
	}
	if h.webhook.calls != 0 {
		t.Fatalf("unsigned event reached the service")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}
