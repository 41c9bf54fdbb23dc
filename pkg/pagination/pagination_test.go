package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTripIsURLSafe(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Date(2026, 3, 1, 10, 4, 5, 123, time.UTC), ID: uuid.New()}
	encoded := EncodeCursor(cursor)
	for _, r := range encoded {
		if r == '+' || r == '/' || r == '=' {
			t.Fatalf("cursor %q is not url safe", encoded)
		}
	}
	decoded, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !decoded.CreatedAt.Equal(cursor.CreatedAt) || decoded.ID != cursor.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, cursor)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	if c, err := ParseCursor("  "); err != nil || c != nil {
		t.Fatalf("empty cursor should be nil, got %v %v", c, err)
	}
	if _, err := ParseCursor("!!!"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestTrim(t *testing.T) {
	now := time.Now().UTC()
	rows := []Cursor{{CreatedAt: now, ID: uuid.New()}, {CreatedAt: now.Add(-time.Second), ID: uuid.New()}, {CreatedAt: now.Add(-2 * time.Second), ID: uuid.New()}}

	page, next := Trim(rows, 2, func(c Cursor) Cursor { return c })
	if len(page) != 2 || next == "" {
		t.Fatalf("expected a full page with a cursor, got %d %q", len(page), next)
	}
	page, next = Trim(rows, 5, func(c Cursor) Cursor { return c })
	if len(page) != 3 || next != "" {
		t.Fatalf("expected last page, got %d %q", len(page), next)
	}
	if NormalizeLimit(0) != DefaultLimit || NormalizeLimit(1000) != MaxLimit {
		t.Fatal("limit normalisation broken")
	}
}
