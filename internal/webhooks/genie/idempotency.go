package geniewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vitalcart/storefront-backend/pkg/enums"
	"github.com/vitalcart/storefront-backend/pkg/genie"
)

const provider = "genie"

type guardStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookEventKey(provider, eventID string) string
}

// ReplayGuard marks transaction notifications as seen so redelivered
// terminal states are acknowledged without touching the database again.
type ReplayGuard struct {
	store guardStore
	ttl   time.Duration
}

func NewReplayGuard(store guardStore, ttl time.Duration) (*ReplayGuard, error) {
	if store == nil {
		return nil, errors.New("replay store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &ReplayGuard{store: store, ttl: ttl}, nil
}

// EventKey identifies a delivery by transaction and state. Only terminal
// transaction states are guarded; tokenisation syncs dedupe on their own.
func EventKey(event genie.WebhookEvent) (string, bool) {
	if event.EventType != enums.GenieEventTransactionChange || event.TransactionID == "" || !event.State.IsTerminal() {
		return "", false
	}
	return event.TransactionID + ":" + string(event.State), true
}

// CheckAndMark reports whether eventKey was already processed, marking it otherwise.
func (g *ReplayGuard) CheckAndMark(ctx context.Context, eventKey string) (bool, error) {
	if eventKey == "" {
		return false, errors.New("event key is required")
	}
	set, err := g.store.SetNX(ctx, g.store.WebhookEventKey(provider, eventKey), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set replay key: %w", err)
	}
	return !set, nil
}

// Release forgets eventKey so the gateway's retry is processed.
func (g *ReplayGuard) Release(ctx context.Context, eventKey string) error {
	if eventKey == "" {
		return errors.New("event key is required")
	}
	return g.store.Del(ctx, g.store.WebhookEventKey(provider, eventKey))
}
