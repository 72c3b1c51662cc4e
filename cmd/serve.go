package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"distill/internal/publisher"
	"distill/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const metricsShutdownTimeout = 5 * time.Second

func serveCmd(a *app) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Re-summarize watched sources on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			start := time.Now()

			p, err := a.pipeline()
			if err != nil {
				return err
			}

			pub, err := a.publishers(cmd)
			if err != nil {
				return err
			}

			sched := scheduler.New(ctx, p, a.db, pub, scheduler.Config{
				WatchSpec: a.cfg.WatchSpec,
				PruneSpec: a.cfg.PruneSpec,
				Retention: a.cfg.Retention,
			}, a.log)

			if once {
				return sched.CheckWatches(ctx)
			}

			if err = sched.Start(); err != nil {
				a.log.ErrorContext(ctx, "Failed to start scheduler",
					"error", err,
					"watchSpec", a.cfg.WatchSpec,
					"pruneSpec", a.cfg.PruneSpec)

				return err
			}
			defer sched.Stop()
			a.log.InfoContext(ctx, "Scheduler is started",
				"watchSpec", a.cfg.WatchSpec,
				"pruneSpec", a.cfg.PruneSpec,
				"timezone", scheduler.Timezone)

			if a.cfg.MetricsAddr != "" {
				stopMetrics := a.serveMetrics(ctx)
				defer stopMetrics()
			}

			<-ctx.Done()
			a.log.InfoContext(ctx, "Shutdown signal is received",
				"error", ctx.Err())

			a.log.InfoContext(ctx, "Exiting...",
				"uptimeSeconds", time.Since(start).Seconds())

			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "check watches once and exit")

	return cmd
}

func (a *app) publishers(cmd *cobra.Command) (publisher.Publisher, error) {
	pubs := publisher.Multi{publisher.NewWriter(cmd.OutOrStdout(), false)}

	if a.cfg.TelegramToken != "" {
		tg, err := publisher.NewTelegram(a.cfg.TelegramToken, a.cfg.TelegramChatID, "", a.log)
		if err != nil {
			return nil, err
		}

		pubs = append(pubs, tg)
		a.log.InfoContext(cmd.Context(), "Telegram publisher is initialized",
			"chatID", a.cfg.TelegramChatID)
	}

	return pubs, nil
}

// serveMetrics exposes the registry until the returned function is called.
func (a *app) serveMetrics(ctx context.Context) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{Registry: a.reg}))

	server := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.ErrorContext(ctx, "Metrics server failed",
				"error", err,
				"addr", a.cfg.MetricsAddr)
		}
	}()
	a.log.InfoContext(ctx, "Metrics server is started",
		"addr", a.cfg.MetricsAddr)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			a.log.ErrorContext(shutdownCtx, "Failed to stop metrics server",
				"error", err)
		}
	}
}
