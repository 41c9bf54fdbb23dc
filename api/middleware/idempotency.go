package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/vitalcart/storefront-backend/api/responses"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/logger"
)

const (
	idempotencyHeader    = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 255
	maxIdempotentBody    = 1 << 20
	// inFlightTTL bounds how long a crashed request can block its key.
	inFlightTTL = 2 * time.Minute
)

// IdempotentRoute names a chi route whose responses are kept for TTL.
type IdempotentRoute struct {
	Method  string
	Pattern string
	TTL     time.Duration
}

// StorefrontIdempotentRoutes are the money-moving endpoints. Order creation keeps
// its result for a week since clients retry it across app restarts.
var StorefrontIdempotentRoutes = []IdempotentRoute{
	{Method: http.MethodPost, Pattern: "/api/v1/checkout", TTL: 7 * 24 * time.Hour},
	{Method: http.MethodPost, Pattern: "/api/v1/checkout/orders", TTL: 7 * 24 * time.Hour},
	{Method: http.MethodPost, Pattern: "/api/v1/payments/consultation", TTL: 24 * time.Hour},
	{Method: http.MethodPost, Pattern: "/api/v1/orders/{orderId}/payments", TTL: 24 * time.Hour},
}

type idempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type entryState string

const (
	entryInFlight entryState = "in_flight"
	entryDone     entryState = "done"
)

type idempotencyEntry struct {
	State       entryState `json:"state"`
	Fingerprint string     `json:"fingerprint"`
	Status      int        `json:"status,omitempty"`
	ContentType string     `json:"content_type,omitempty"`
	Body        []byte     `json:"body,omitempty"`
}

// Idempotency claims the Idempotency-Key before running the handler, then stores the
// response for replay. A concurrent duplicate gets 409 while the first is in flight.
// 5xx responses release the key so the client can retry.
func Idempotency(store idempotencyStore, logg *logger.Logger, routes ...IdempotentRoute) func(http.Handler) http.Handler {
	if len(routes) == 0 {
		routes = StorefrontIdempotentRoutes
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			route, ok := matchIdempotentRoute(routes, r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			switch {
			case clientKey == "":
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case len(clientKey) > maxIdempotencyKeyLen:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long"))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBody+1))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			if len(body) > maxIdempotentBody {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body is too large"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := fingerprint(route, body)
			key := store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)

			claim, _ := json.Marshal(idempotencyEntry{State: entryInFlight, Fingerprint: fingerprint})
			claimed, err := store.SetNX(ctx, key, string(claim), inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayExisting(ctx, w, logg, store, key, fingerprint)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			// The handler already wrote to the client; storage failures are only logged.
			storeCtx := context.WithoutCancel(ctx)
			if capture.statusOrOK() >= http.StatusInternalServerError {
				if err := store.Del(storeCtx, key); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency key", err)
				}
				return
			}
			done, _ := json.Marshal(idempotencyEntry{
				State:       entryDone,
				Fingerprint: fingerprint,
				Status:      capture.statusOrOK(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err := store.Set(storeCtx, key, string(done), route.TTL); err != nil && logg != nil {
				logg.Error(ctx, "persist idempotency response", err)
			}
		})
	}
}

func replayExisting(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, store idempotencyStore, key, fingerprint string) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// Released between our claim attempt and this read.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is being retried, try again"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency key"))
		return
	}

	var entry idempotencyEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency entry"))
		return
	}
	if entry.Fingerprint != fingerprint {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if entry.State != entryDone {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
		return
	}

	if entry.ContentType != "" {
		w.Header().Set("Content-Type", entry.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(entry.Status)
	_, _ = w.Write(entry.Body)
}

func matchIdempotentRoute(routes []IdempotentRoute, r *http.Request) (IdempotentRoute, bool) {
	pattern := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			pattern = p
		}
	}
	for _, route := range routes {
		if route.Method == r.Method && route.Pattern == pattern {
			return route, true
		}
	}
	return IdempotentRoute{}, false
}

func fingerprint(route IdempotentRoute, body []byte) string {
	h := sha256.New()
	h.Write([]byte(route.Method + " " + route.Pattern + "\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
