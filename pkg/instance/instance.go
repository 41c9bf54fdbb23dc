package instance

import (
	"os"

	"github.com/vitalcart/storefront-backend/pkg/env"
)

// GetID returns the process identifier used in logs and outbox claims.
func GetID() string {
	if id, ok := env.First("STOREFRONT_INSTANCE_ID", "DYNO", "WORKER_ID"); ok {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
