package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/ghanadude-checkout/pkg/config"
	"github.com/angelmondragon/ghanadude-checkout/pkg/db"
	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot for dev environments
// with GHANADUDE_AUTO_MIGRATE set. Other environments run cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	fsys, err := Source("")
	if err != nil {
		return err
	}
	dialect := Dialect(cfg.DB)
	migrator, err := New(sqlDB, dialect, fsys)
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": string(dialect)})
	applied, err := migrator.Up(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", applied), "dev migrations up to date")
	return nil
}
