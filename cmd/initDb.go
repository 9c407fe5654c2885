/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"maintflow/internal/bootstrap"
	"maintflow/internal/bootstrap/logging"
	"maintflow/internal/errs"
	"maintflow/internal/infrastructure/persistence/schema"
)

// initDbCmd represents the initDb command
var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		logging.Info(ctx, "start init-db")

		var app *bootstrap.App
		stop, err := startApp(cmd, &app)
		if err != nil {
			return err
		}
		defer stop()

		previous, err := app.InitSchema(ctx)
		if err != nil {
			logging.Error(ctx, "initialize schema failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "initialize schema")
		}

		logging.Info(ctx, "init-db finished", slog.String("database_driver", app.Config.Database.Driver))
		if previous == "" {
			previous = "none"
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "database schema initialized: %s (version %s, was %s)\n",
			app.Config.Database.Driver, schema.Version, previous); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initDbCmd)
}
