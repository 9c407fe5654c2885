package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"maintflow/internal/bootstrap"
	"maintflow/internal/bootstrap/logging"
	"maintflow/internal/errs"
	"maintflow/internal/usecase/lifecycle"
	"maintflow/internal/usecase/notify"
)

// startApp builds the fx graph and fills targets. Only the constructors the
// targets need are invoked, so plain work order commands never dial NATS.
func startApp(cmd *cobra.Command, targets ...any) (func(), error) {
	ctx := logging.WithAttrs(
		cmd.Context(),
		slog.String("command", cmd.CommandPath()),
		slog.String("config_file", cfgFile),
	)

	fxApp := fx.New(
		bootstrap.Module,
		fx.NopLogger,
		fx.Provide(func() context.Context { return ctx }),
		fx.Provide(
			fx.Annotate(
				func() string { return cfgFile },
				fx.ResultTags(`name:"configFile"`),
			),
		),
		fx.Populate(targets...),
	)

	startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
	defer cancelStart()
	if err := fxApp.Start(startCtx); err != nil {
		logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
		return nil, errs.Wrap(err, "start fx application")
	}

	return func() {
		stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelStop()
		if err := fxApp.Stop(stopCtx); err != nil {
			logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
		}
	}, nil
}

func withApp(run func(cmd *cobra.Command, app *bootstrap.App, svc *lifecycle.Service) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var app *bootstrap.App
		var svc *lifecycle.Service
		stop, err := startApp(cmd, &app, &svc)
		if err != nil {
			return err
		}
		defer stop()

		if err := run(cmd, app, svc); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}

func withRelay(run func(cmd *cobra.Command, app *bootstrap.App, relay *notify.Relay) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var app *bootstrap.App
		var relay *notify.Relay
		stop, err := startApp(cmd, &app, &relay)
		if err != nil {
			return err
		}
		defer stop()

		if err := run(cmd, app, relay); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
