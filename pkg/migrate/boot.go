package migrate

import (
	"context"
	"fmt"

	"github.com/vitalcart/storefront-backend/pkg/config"
	"github.com/vitalcart/storefront-backend/pkg/db"
	"github.com/vitalcart/storefront-backend/pkg/logger"
)

// ApplyOnBoot runs pending migrations at process start when STOREFRONT_AUTO_MIGRATE is set
// in the dev environment. Other environments run cmd/migrate explicitly.
func ApplyOnBoot(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, Migrations())
	if err != nil {
		return err
	}

	pending, err := runner.Pending(ctx)
	if err != nil {
		return err
	}
	if !pending {
		return nil
	}

	results, err := runner.Up(ctx)
	for _, res := range results {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"file":        res.Source.Path,
			"duration_ms": res.Duration.Milliseconds(),
		}), "migration applied")
	}
	return err
}
