package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vitalcart/storefront-backend/pkg/enums"
	"github.com/vitalcart/storefront-backend/pkg/genie"
	"github.com/vitalcart/storefront-backend/pkg/metrics"
)

const testAPIKey = "genie-api-key"

type stubGenieService struct {
	events []genie.WebhookEvent
	err    error
}

func (s *stubGenieService) HandleEvent(ctx context.Context, event genie.WebhookEvent) error {
	s.events = append(s.events, event)
	return s.err
}

type stubGuard struct {
	seen     map[string]bool
	checks   int
	released []string
}

func newStubGuard() *stubGuard {
	return &stubGuard{seen: map[string]bool{}}
}

func (g *stubGuard) CheckAndMark(ctx context.Context, key string) (bool, error) {
	g.checks++
	if g.seen[key] {
		return true, nil
	}
	g.seen[key] = true
	return false, nil
}

func (g *stubGuard) Release(ctx context.Context, key string) error {
	g.released = append(g.released, key)
	delete(g.seen, key)
	return nil
}

func signedRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/genie", strings.NewReader(body))
	req.Header.Set(genie.HeaderSignatureNonce, "nonce-1")
	req.Header.Set(genie.HeaderSignatureTimestamp, "1718000000")
	if signature == "" {
		signature = genie.Signature("nonce-1", "1718000000", testAPIKey)
	}
	req.Header.Set(genie.HeaderSignature, signature)
	return req
}

func TestGenieWebhookRejectsTamperedSignatureForEveryEventType(t *testing.T) {
	bodies := map[string]string{
		"transaction":  `{"eventType":"NOTIFY_TRANSACTION_CHANGE","transactionId":"txn-1","state":"CONFIRMED","localId":"consul_x_y"}`,
		"tokenisation": `{"eventType":"NOTIFY_TOKENISATION_STATUS","customerId":"cus-1","tokenisationStatus":"SUCCESS"}`,
		"unknown":      `{"eventType":"SOMETHING_ELSE"}`,
	}
	valid := genie.Signature("nonce-1", "1718000000", testAPIKey)
	tampered := strings.Repeat("0", len(valid))

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			svc := &stubGenieService{}
			guard := newStubGuard()
			registry := prometheus.NewRegistry()
			handler := GenieWebhook(svc, testAPIKey, guard, metrics.NewStorefront(registry), nil)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, signedRequest(body, tampered))

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			var payload map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if payload["error"] == "" {
				t.Fatalf("expected error message, got %v", payload)
			}
			if len(svc.events) != 0 || guard.checks != 0 {
				t.Fatalf("rejected webhook reached storage: events=%d guard=%d", len(svc.events), guard.checks)
			}
			count, err := testutil.GatherAndCount(registry, "genie_webhook_events_total")
			if err != nil {
				t.Fatalf("gather: %v", err)
			}
			if count != 1 {
				t.Fatalf("expected one webhook series, got %d", count)
			}
		})
	}
}

func TestGenieWebhookMissingSignatureHeaders(t *testing.T) {
	svc := &stubGenieService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/genie", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	GenieWebhook(svc, testAPIKey, newStubGuard(), nil, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized || len(svc.events) != 0 {
		t.Fatalf("expected 401 without processing, got %d events=%d", rec.Code, len(svc.events))
	}
}

func TestGenieWebhookProcessesAndAcknowledgesReplay(t *testing.T) {
	svc := &stubGenieService{}
	guard := newStubGuard()
	handler := GenieWebhook(svc, testAPIKey, guard, nil, nil)
	body := `{"eventType":"NOTIFY_TRANSACTION_CHANGE","transactionId":"txn-1","state":"CONFIRMED"}`

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, signedRequest(body, ""))
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i, rec.Code)
		}
		if strings.TrimSpace(rec.Body.String()) != `{"success":true}` {
			t.Fatalf("unexpected body %s", rec.Body.String())
		}
	}
	if len(svc.events) != 1 {
		t.Fatalf("expected the replay to be skipped, got %d events", len(svc.events))
	}
	if svc.events[0].State != enums.GenieStateConfirmed {
		t.Fatalf("unexpected state %s", svc.events[0].State)
	}
}

func TestGenieWebhookNonTerminalStatesAreNotGuarded(t *testing.T) {
	svc := &stubGenieService{}
	guard := newStubGuard()
	body := `{"eventType":"NOTIFY_TRANSACTION_CHANGE","transactionId":"txn-1","state":"INITIATED"}`

	rec := httptest.NewRecorder()
	GenieWebhook(svc, testAPIKey, guard, nil, nil).ServeHTTP(rec, signedRequest(body, ""))

	if rec.Code != http.StatusOK || guard.checks != 0 || len(svc.events) != 1 {
		t.Fatalf("unexpected outcome code=%d checks=%d events=%d", rec.Code, guard.checks, len(svc.events))
	}
}

func TestGenieWebhookFailureReleasesReplayKey(t *testing.T) {
	svc := &stubGenieService{err: errors.New("db unavailable")}
	guard := newStubGuard()
	body := `{"eventType":"NOTIFY_TRANSACTION_CHANGE","transactionId":"txn-2","state":"FAILED"}`

	rec := httptest.NewRecorder()
	GenieWebhook(svc, testAPIKey, guard, nil, nil).ServeHTTP(rec, signedRequest(body, ""))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Fatalf("expected error body, got %s", rec.Body.String())
	}
	if len(guard.released) != 1 || guard.released[0] != "txn-2:FAILED" {
		t.Fatalf("expected replay key released, got %v", guard.released)
	}
}

func TestGenieWebhookMalformedBodyIs500(t *testing.T) {
	svc := &stubGenieService{}
	rec := httptest.NewRecorder()
	GenieWebhook(svc, testAPIKey, newStubGuard(), nil, nil).ServeHTTP(rec, signedRequest(`{"eventType":`, ""))

	if rec.Code != http.StatusInternalServerError || len(svc.events) != 0 {
		t.Fatalf("expected 500 without processing, got %d events=%d", rec.Code, len(svc.events))
	}
}

func TestGenieWebhookHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	GenieWebhookHealth().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/webhooks/genie", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}
