package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
)

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	if _, err := QueryInt(req, "limit", 20, 1, 100); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/?limit=ten", nil)
	if _, err := QueryInt(req, "limit", 20, 1, 100); err == nil {
		t.Fatal("expected non-numeric rejection")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	got, err := QueryInt(req, "limit", 20, 1, 100)
	if err != nil || got != 20 {
		t.Fatalf("expected default 20, got %d err=%v", got, err)
	}
}

func TestPathUUID(t *testing.T) {
	id := uuid.New()
	if got, err := PathUUID(withParam("orderId", id.String()), "orderId"); err != nil || got != id {
		t.Fatalf("expected %s, got %s err=%v", id, got, err)
	}
	if _, err := PathUUID(withParam("orderId", "VC-1"), "orderId"); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := PathUUID(withParam("orderId", " "), "orderId"); err == nil {
		t.Fatal("expected missing param rejection")
	}
}

func TestPathString(t *testing.T) {
	if got, err := PathString(withParam("customerId", " cus_77 "), "customerId", 64); err != nil || got != "cus_77" {
		t.Fatalf("expected cus_77, got %q err=%v", got, err)
	}
	if _, err := PathString(withParam("customerId", "cus_0123456789"), "customerId", 5); err == nil {
		t.Fatal("expected length rejection")
	}
}

func TestCleanText(t *testing.T) {
	if got := CleanText("  scalp\x00photo.jpg\n", 0); got != "scalpphoto.jpg" {
		t.Fatalf("unexpected cleaned value %q", got)
	}
	if got := CleanText("Ωmega", 2); got != "Ωm" {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
}

func withParam(key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
