package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/vitalcart/storefront-backend/api/responses"
	geniewebhook "github.com/vitalcart/storefront-backend/internal/webhooks/genie"
	"github.com/vitalcart/storefront-backend/pkg/genie"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"github.com/vitalcart/storefront-backend/pkg/metrics"
)

const maxWebhookBody = 1 << 20

type GenieWebhookService interface {
	HandleEvent(ctx context.Context, event genie.WebhookEvent) error
}

type genieReplayGuard interface {
	CheckAndMark(ctx context.Context, eventKey string) (bool, error)
	Release(ctx context.Context, eventKey string) error
}

type webhookAck struct {
	Success bool `json:"success"`
}

type webhookError struct {
	Error string `json:"error"`
}

// GenieWebhook verifies and applies gateway notifications. Nothing is read
// from or written to storage before the signature check passes.
func GenieWebhook(svc GenieWebhookService, apiKey string, guard genieReplayGuard, m *metrics.Storefront, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteJSON(w, http.StatusInternalServerError, webhookError{Error: "webhook service unavailable"})
			return
		}

		nonce := r.Header.Get(genie.HeaderSignatureNonce)
		timestamp := r.Header.Get(genie.HeaderSignatureTimestamp)
		signature := r.Header.Get(genie.HeaderSignature)
		if !genie.VerifySignature(nonce, timestamp, signature, apiKey) {
			m.IncWebhook("unknown", "unauthorized")
			if logg != nil {
				logg.Warn(ctx, "genie webhook signature rejected")
			}
			responses.WriteJSON(w, http.StatusUnauthorized, webhookError{Error: "invalid signature"})
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			fail(ctx, w, m, logg, "unknown", "read webhook body", err)
			return
		}

		var event genie.WebhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			fail(ctx, w, m, logg, "unknown", "decode webhook body", err)
			return
		}
		eventType := string(event.EventType)
		if logg != nil {
			ctx = logg.WithTransactionID(ctx, event.TransactionID)
		}

		eventKey, guarded := geniewebhook.EventKey(event)
		if guarded && guard != nil {
			seen, err := guard.CheckAndMark(ctx, eventKey)
			if err != nil {
				fail(ctx, w, m, logg, eventType, "check webhook replay", err)
				return
			}
			if seen {
				m.IncWebhook(eventType, "replayed")
				responses.WriteJSON(w, http.StatusOK, webhookAck{Success: true})
				return
			}
		}

		if err := svc.HandleEvent(ctx, event); err != nil {
			if guarded && guard != nil {
				if relErr := guard.Release(ctx, eventKey); relErr != nil && logg != nil {
					logg.Error(ctx, "release webhook replay key", relErr)
				}
			}
			fail(ctx, w, m, logg, eventType, "process genie webhook", err)
			return
		}

		m.IncWebhook(eventType, "processed")
		responses.WriteJSON(w, http.StatusOK, webhookAck{Success: true})
	}
}

// GenieWebhookHealth answers the gateway's reachability probe.
func GenieWebhookHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "genie-webhook",
		})
	}
}

func fail(ctx context.Context, w http.ResponseWriter, m *metrics.Storefront, logg *logger.Logger, eventType, msg string, err error) {
	m.IncWebhook(eventType, "failed")
	if logg != nil {
		logg.Error(ctx, msg, err)
	}
	responses.WriteJSON(w, http.StatusInternalServerError, webhookError{Error: msg})
}
