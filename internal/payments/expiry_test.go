package payments

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestExpiryYearRollsOverCentury(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	cases := map[int]int{
		25: 2025,
		24: 2024,
		20: 2120,
		99: 2099,
		0:  2100,
	}
	for twoDigit, want := range cases {
		if got := ExpiryYear(twoDigit, now); got != want {
			t.Fatalf("ExpiryYear(%d) = %d, want %d", twoDigit, got, want)
		}
	}
	if got := ExpiryYear(2031, now); got != 2031 {
		t.Fatalf("four digit years pass through, got %d", got)
	}
}

func TestConsultationLocalIDRoundTrip(t *testing.T) {
	userID, sessionID := uuid.New(), uuid.New()
	u, s, ok := ParseConsultationLocalID(ConsultationLocalID(userID, sessionID))
	if !ok || u != userID || s != sessionID {
		t.Fatalf("round trip failed: %v %v %v", u, s, ok)
	}
	for _, bad := range []string{"", "prod_" + uuid.NewString(), "consul_x_y", "consul_" + uuid.NewString()} {
		if _, _, ok := ParseConsultationLocalID(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
