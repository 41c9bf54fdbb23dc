package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/vitalcart/storefront-backend/pkg/logger"
)

func TestLoggingRecordsRouteAndStatus(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "api-test", Level: zerolog.DebugLevel, Output: &buf})

	r := chi.NewRouter()
	r.Use(Logging(logg))
	r.Get("/api/v1/orders/{orderId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{}}`))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/orders/abc", nil))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["route"] != "/api/v1/orders/{orderId}" {
		t.Fatalf("unexpected route %v", line["route"])
	}
	if line["status"] != float64(http.StatusNotFound) || line["bytes"] != float64(12) {
		t.Fatalf("unexpected status/bytes %v/%v", line["status"], line["bytes"])
	}
}

func TestLoggingProbesAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "api-test", Level: zerolog.InfoLevel, Output: &buf})

	handler := Logging(logg)(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if buf.Len() != 0 {
		t.Fatalf("probe should not log at info: %s", buf.String())
	}
}
