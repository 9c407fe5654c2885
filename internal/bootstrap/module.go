package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"maintflow/internal/bootstrap/config"
	"maintflow/internal/bootstrap/database"
	"maintflow/internal/bootstrap/logging"
	"maintflow/internal/domain/workorder"
	"maintflow/internal/infrastructure/authz"
	cacheinfra "maintflow/internal/infrastructure/cache"
	"maintflow/internal/infrastructure/directory"
	notifyinfra "maintflow/internal/infrastructure/notify"
	"maintflow/internal/infrastructure/observability"
	sqliterepo "maintflow/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "maintflow/internal/infrastructure/persistence/sqlite/uow"
	"maintflow/internal/ports"
	"maintflow/internal/usecase/lifecycle"
	"maintflow/internal/usecase/notify"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		sqliterepo.NewWorkOrderRepository,
		func(r *sqliterepo.WorkOrderRepository) ports.WorkOrderRepository { return r },
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewCatalogRepository,
			fx.As(new(ports.PartCatalog)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideAuthorizer),
	fx.Provide(provideDirectory),
	fx.Provide(provideMetrics),
	fx.Provide(provideLifecycle),
	fx.Provide(provideSink),
	fx.Provide(provideRelay),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	cfg, err := config.Load(ctx, p.ConfigFile)
	if err != nil {
		return config.Config{}, err
	}
	if _, err := logging.Configure(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideAuthorizer(cfg config.Config) (ports.Authorizer, error) {
	return authz.LoadPolicy(cfg.Authz.PolicyFile)
}

func provideDirectory(cfg config.Config) (ports.TargetDirectory, error) {
	return directory.LoadFile(cfg.Directory.File)
}

func provideMetrics() (*observability.LifecycleMetrics, error) {
	return observability.NewLifecycleMetrics(nil)
}

type lifecycleParams struct {
	fx.In

	Config     config.Config
	Repo       ports.WorkOrderRepository
	Catalog    ports.PartCatalog
	UnitOfWork ports.UnitOfWork
	Authorizer ports.Authorizer
	Directory  ports.TargetDirectory
	Metrics    *observability.LifecycleMetrics
}

func provideLifecycle(p lifecycleParams) *lifecycle.Service {
	return lifecycle.NewService(lifecycle.Dependencies{
		Repo:       p.Repo,
		Catalog:    p.Catalog,
		UnitOfWork: p.UnitOfWork,
		Authorizer: p.Authorizer,
		Directory:  p.Directory,
		Metrics:    p.Metrics,
	}, lifecycle.Options{
		LaborRate:            workorder.Money(p.Config.Lifecycle.LaborRateCents),
		PreventDoubleBooking: p.Config.Lifecycle.PreventDoubleBooking,
	})
}

func provideSink(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.NotificationSink, error) {
	switch strings.ToLower(cfg.Notify.Driver) {
	case "log":
		return notifyinfra.NewLogSink(), nil
	case "nats":
		sink, err := notifyinfra.DialNATS(ctx, cfg.Notify.NATSURL, cfg.Notify.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				return sink.Close()
			},
		})
		return sink, nil
	}
	return nil, fmt.Errorf("unsupported notify driver %q", cfg.Notify.Driver)
}

func provideRelay(
	cfg config.Config,
	repo *sqliterepo.WorkOrderRepository,
	cache ports.Cache,
	sink ports.NotificationSink,
	metrics *observability.LifecycleMetrics,
) *notify.Relay {
	return notify.NewRelay(repo, cache, sink, metrics, notify.Options{
		BatchSize:     cfg.Notify.BatchSize,
		RatePerSecond: cfg.Notify.RatePerSecond,
	})
}
