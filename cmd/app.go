package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"distill/internal/config"
	"distill/internal/database"
	"distill/internal/logging"
	"distill/internal/pipeline"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// app holds the process-wide dependencies shared by every command.
type app struct {
	cfg config.Config
	log *slog.Logger
	db  *database.Database
	reg *prometheus.Registry
}

func (a *app) init(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a.cfg = cfg
	a.log = logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(a.log)

	a.reg = prometheus.NewRegistry()
	a.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	db, err := database.New(ctx, cfg.DBPath, a.log)
	if err != nil {
		return fmt.Errorf("initialize db %s: %w", cfg.DBPath, err)
	}
	a.db = db

	a.log.DebugContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	return nil
}

func (a *app) close(ctx context.Context) {
	if a.db == nil {
		return
	}

	if err := a.db.Close(); err != nil {
		a.log.ErrorContext(ctx, "Failed to close db",
			"error", err,
			"dbPath", a.cfg.DBPath)
	}
}

func (a *app) pipeline() (*pipeline.Pipeline, error) {
	return pipeline.NewFromConfig(a.cfg, a.db, a.reg, a.log)
}

func rootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "distill",
		Short:         "Summarize text, files, web pages, videos, PDFs and arXiv papers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
	}

	root.AddCommand(summaryCmds(a)...)
	root.AddCommand(
		historyCmd(a),
		showCmd(a),
		watchCmd(a),
		serveCmd(a),
	)

	return root
}
