package env

import "testing"

func TestGetTrimsAndFallsBack(t *testing.T) {
	t.Setenv("STOREFRONT_TEST_FORMAT", "  console ")
	if got := Get("STOREFRONT_TEST_FORMAT", "json"); got != "console" {
		t.Fatalf("expected console, got %q", got)
	}
	t.Setenv("STOREFRONT_TEST_FORMAT", "   ")
	if got := Get("STOREFRONT_TEST_FORMAT", "json"); got != "json" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestFirstSkipsBlankKeys(t *testing.T) {
	t.Setenv("STOREFRONT_TEST_A", "")
	t.Setenv("STOREFRONT_TEST_B", "web.2")
	got, ok := First("STOREFRONT_TEST_A", "STOREFRONT_TEST_B")
	if !ok || got != "web.2" {
		t.Fatalf("expected web.2, got %q ok=%v", got, ok)
	}
	if _, ok := First("STOREFRONT_TEST_MISSING"); ok {
		t.Fatal("expected no match")
	}
}
