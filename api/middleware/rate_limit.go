package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/vitalcart/storefront-backend/api/responses"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/logger"
)

const maxRateLimitBody = 1 << 20

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy throttles one surface per client IP and per submitted email.
type RateLimitPolicy struct {
	Name       string
	Window     time.Duration
	IPLimit    int
	EmailLimit int
	// EmailPath locates the email inside the JSON body, e.g. {"account","email"}.
	EmailPath []string
	// GuestsOnly lets callers identified by the auth middleware through untouched.
	GuestsOnly bool
}

// LoginPolicy limits password attempts on /auth/login.
func LoginPolicy(window time.Duration, ipLimit, emailLimit int) RateLimitPolicy {
	return RateLimitPolicy{
		Name:       "login",
		Window:     window,
		IPLimit:    ipLimit,
		EmailLimit: emailLimit,
		EmailPath:  []string{"email"},
	}
}

// SignupPolicy limits guest checkouts, which create accounts.
func SignupPolicy(window time.Duration, ipLimit, emailLimit int) RateLimitPolicy {
	return RateLimitPolicy{
		Name:       "checkout-signup",
		Window:     window,
		IPLimit:    ipLimit,
		EmailLimit: emailLimit,
		EmailPath:  []string{"account", "email"},
		GuestsOnly: true,
	}
}

func (p RateLimitPolicy) enabled() bool {
	return p.Window > 0 && (p.IPLimit > 0 || p.EmailLimit > 0)
}

func (p RateLimitPolicy) scope(kind, value string) string {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	if name == "" {
		name = "default"
	}
	return name + ":" + kind + ":" + value
}

// RateLimit rejects requests over the policy with 429. A store outage fails closed with 503.
func RateLimit(policy RateLimitPolicy, store rateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if policy.GuestsOnly && UserIDFromContext(ctx) != "" {
				next.ServeHTTP(w, r)
				return
			}

			if ip := clientIP(r); policy.IPLimit > 0 && ip != "" {
				if !check(ctx, w, logg, store, policy, "ip", ip, policy.IPLimit) {
					return
				}
			}

			if policy.EmailLimit > 0 && r.Body != nil {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxRateLimitBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				if email := normalizeEmail(emailAt(body, policy.EmailPath)); email != "" {
					if !check(ctx, w, logg, store, policy, "email", hashValue(email), policy.EmailLimit) {
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func check(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, store rateLimiter, policy RateLimitPolicy, kind, value string, limit int) bool {
	allowed, count, err := store.FixedWindowAllow(ctx, policy.scope(kind, value), int64(limit), policy.Window)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting unavailable"))
		return false
	}
	if allowed {
		return true
	}

	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":         policy.Name,
			"scope":          kind,
			"attempts":       count,
			"limit":          limit,
			"window_seconds": int(policy.Window.Seconds()),
		}), "rate limit blocked request")
	}
	responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
	return false
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// emailAt walks path through nested JSON objects and returns the string found there.
func emailAt(payload []byte, path []string) string {
	raw := json.RawMessage(payload)
	for _, key := range path {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return ""
		}
		next, ok := obj[key]
		if !ok {
			return ""
		}
		raw = next
	}
	var email string
	if err := json.Unmarshal(raw, &email); err != nil {
		return ""
	}
	return email
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
