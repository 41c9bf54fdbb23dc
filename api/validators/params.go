package validators

import (
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
)

// QueryInt reads an optional bounded integer query parameter.
func QueryInt(r *http.Request, key string, def, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" must be a number").
			WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" out of range").
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// PathUUID parses a required uuid route parameter.
func PathUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, key+" required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key).
			WithDetails(map[string]any{"field": key})
	}
	return id, nil
}

// PathString reads a required route parameter such as a gateway customer id.
func PathString(r *http.Request, key string, maxLen int) (string, error) {
	value := CleanText(chi.URLParam(r, key), 0)
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, key+" required")
	}
	if maxLen > 0 && utf8.RuneCountInString(value) > maxLen {
		return "", pkgerrors.New(pkgerrors.CodeValidation, key+" too long")
	}
	return value, nil
}

// CleanText trims, drops control characters, and cuts to maxLen runes (0 means no limit).
func CleanText(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(input))

	if maxLen > 0 && utf8.RuneCountInString(cleaned) > maxLen {
		runes := []rune(cleaned)
		cleaned = string(runes[:maxLen])
	}
	return cleaned
}
