package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"maintflow/internal/bootstrap/config"
	"maintflow/internal/bootstrap/logging"
	"maintflow/internal/errs"
	"maintflow/internal/infrastructure/persistence/schema"
	"maintflow/internal/infrastructure/persistence/sqlite/model"
)

type App struct {
	Config config.Config
	DB     *gorm.DB
}

// InitSchema creates or migrates every table the lifecycle and relay use and
// stamps the schema version. It returns the version found before the stamp.
func (a *App) InitSchema(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	tables := append(model.All(), &schema.Meta{})
	if err := a.DB.WithContext(ctx).AutoMigrate(tables...); err != nil {
		return "", errs.Wrap(err, "auto migrate schema")
	}
	previous, err := schema.Stamp(ctx, a.DB)
	if err != nil {
		return "", errs.Wrap(err, "stamp schema version")
	}

	logging.Info(logCtx, "schema migration completed",
		slog.Int("tables", len(tables)),
		slog.String("previous_version", previous),
		slog.String("schema_version", schema.Version),
	)
	return previous, nil
}
