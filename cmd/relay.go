package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"maintflow/internal/bootstrap"
	"maintflow/internal/bootstrap/logging"
	"maintflow/internal/errs"
	"maintflow/internal/infrastructure/observability"
	"maintflow/internal/usecase/notify"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Forward status history to the configured notification sink",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The meter provider must be global before fx builds the counters.
		metricsHandler, shutdownMetrics, err := observability.InitMetrics()
		if err != nil {
			return err
		}
		defer func() {
			_ = shutdownMetrics(context.Background())
		}()

		return withRelay(func(cmd *cobra.Command, app *bootstrap.App, relay *notify.Relay) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			once, _ := cmd.Flags().GetBool("once")
			interval, _ := cmd.Flags().GetDuration("interval")
			if !cmd.Flags().Changed("interval") {
				interval = app.Config.Notify.Interval
			}
			addr, _ := cmd.Flags().GetString("metrics-addr")
			if !cmd.Flags().Changed("metrics-addr") {
				addr = app.Config.Metrics.Addr
			}

			report := func(result notify.RunResult) {
				if result.Published == 0 {
					return
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "relay cursor=%d->%d published=%d\n",
					result.CursorBefore, result.CursorAfter, result.Published)
			}

			if once {
				result, err := relay.RunOnce(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "relay cursor=%d->%d fetched=%d published=%d\n",
					result.CursorBefore, result.CursorAfter, result.Fetched, result.Published)
				return errs.Wrap(err, "write relay output")
			}

			if addr != "" {
				go func() {
					if err := observability.Serve(ctx, addr, metricsHandler); err != nil {
						logging.Error(ctx, "metrics endpoint stopped", slog.Any("err", errs.Loggable(err)))
					}
				}()
			}
			logging.Info(ctx, "relay started", slog.Duration("interval", interval), slog.String("metrics_addr", addr))
			return relay.Run(ctx, interval, report)
		})(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(relayCmd)

	relayCmd.Flags().Bool("once", false, "Relay one batch and exit")
	relayCmd.Flags().Duration("interval", 5*time.Second, "Polling interval (defaults to notify.interval)")
	relayCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9464 (defaults to metrics.addr)")
}
