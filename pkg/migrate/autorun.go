package migrate

import (
	"context"
	"fmt"
	"io"

	"github.com/angelmondragon/studyhub-backend/pkg/config"
	"github.com/angelmondragon/studyhub-backend/pkg/db"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot in dev when
// STUDYHUB_AUTO_MIGRATE is set and a SQL store is selected.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client == nil || !cfg.App.IsDev() || !cfg.Store.AutoMigrate || !cfg.Store.UsesSQL() {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	provider, err := NewProvider(sqlDB, cfg.Store.NormalizedDriver(), nil)
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "store", cfg.Store.NormalizedDriver())
	logg.Info(ctx, "applying migrations (dev auto-run)")
	if err := Run(ctx, provider, "up", "", io.Discard); err != nil {
		return err
	}
	version, err := provider.GetDBVersion(ctx)
	if err == nil {
		ctx = logg.WithField(ctx, "version", version)
	}
	logg.Info(ctx, "migrations applied")
	return nil
}
