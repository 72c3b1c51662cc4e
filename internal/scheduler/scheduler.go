package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"distill/internal/domain"
	"distill/internal/pipeline"
	"distill/internal/publisher"

	"github.com/robfig/cron/v3"
)

const (
	DefaultWatchSpec      = "0 * * * *"
	DefaultPruneSpec      = "@daily"
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	checkWatchesTimeout   = 30 * time.Minute
	pruneTimeout          = time.Minute
)

type Source interface {
	Extract(ctx context.Context, kind domain.SourceKind, handle string) (*domain.Document, error)
	SummarizeDocument(
		ctx context.Context,
		doc *domain.Document,
		opts pipeline.Options,
	) (*domain.SummaryResult, error)
}

type Store interface {
	ListWatches(ctx context.Context) ([]domain.Watch, error)
	UpdateWatchHash(ctx context.Context, id int64, hash string, at time.Time) error
	PruneSummaries(ctx context.Context, before time.Time) (int64, error)
}

type Config struct {
	WatchSpec string
	PruneSpec string
	// Retention disables pruning when zero.
	Retention time.Duration
}

type Scheduler struct {
	ctx       context.Context
	cron      *cron.Cron
	source    Source
	store     Store
	publisher publisher.Publisher
	cfg       Config
	log       *slog.Logger
}

func New(
	ctx context.Context,
	source Source,
	store Store,
	pub publisher.Publisher,
	cfg Config,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	if cfg.WatchSpec == "" {
		cfg.WatchSpec = DefaultWatchSpec
	}
	if cfg.PruneSpec == "" {
		cfg.PruneSpec = DefaultPruneSpec
	}

	return &Scheduler{
		ctx:       ctx,
		cron:      c,
		source:    source,
		store:     store,
		publisher: pub,
		cfg:       cfg,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.WatchSpec, s.checkWatches); err != nil {
		return err
	}

	if s.cfg.Retention > 0 {
		if _, err := s.cron.AddFunc(s.cfg.PruneSpec, s.prune); err != nil {
			return err
		}
	}

	s.cron.Start()

	return nil
}

// Stop halts the schedule and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) checkWatches() {
	ctx, cancel := context.WithTimeout(s.ctx, checkWatchesTimeout)
	defer cancel()

	if err := s.CheckWatches(ctx); err != nil {
		s.log.ErrorContext(ctx, "Failed to check watches",
			"error", err,
			"spec", s.cfg.WatchSpec)
	}
}

func (s *Scheduler) prune() {
	ctx, cancel := context.WithTimeout(s.ctx, pruneTimeout)
	defer cancel()

	if _, err := s.Prune(ctx); err != nil {
		s.log.ErrorContext(ctx, "Failed to prune summaries",
			"error", err,
			"retention", s.cfg.Retention.String())
	}
}

// CheckWatches summarizes every watched source whose content changed since
// the last run. A failing watch does not stop the others.
func (s *Scheduler) CheckWatches(ctx context.Context) error {
	watches, err := s.store.ListWatches(ctx)
	if err != nil {
		return err
	}

	var errs []error

	for _, w := range watches {
		if ctx.Err() != nil {
			s.log.InfoContext(ctx, "Scheduler context is done",
				"error", ctx.Err())

			return errors.Join(append(errs, ctx.Err())...)
		}

		if err = s.checkWatch(ctx, w); err != nil {
			s.log.ErrorContext(ctx, "Failed to check watch",
				"error", err,
				"watchID", w.ID,
				"kind", w.Kind,
				"handle", w.Handle)

			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *Scheduler) checkWatch(ctx context.Context, w domain.Watch) error {
	doc, err := s.source.Extract(ctx, w.Kind, w.Handle)
	if err != nil {
		return err
	}

	hash := doc.Hash()
	if hash == w.LastHash {
		s.log.DebugContext(ctx, "Watched source is unchanged",
			"watchID", w.ID,
			"handle", w.Handle)

		return nil
	}

	result, err := s.source.SummarizeDocument(ctx, doc, pipeline.Options{})
	if err != nil {
		return err
	}

	if s.publisher != nil {
		if err = s.publisher.Publish(ctx, result); err != nil {
			return err
		}
	}

	if err = s.store.UpdateWatchHash(ctx, w.ID, hash, time.Now()); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "Watched source is summarized",
		"watchID", w.ID,
		"handle", w.Handle,
		"runID", result.RunID,
		"partial", result.Partial)

	return nil
}

// Prune deletes history older than the retention window.
func (s *Scheduler) Prune(ctx context.Context) (int64, error) {
	if s.cfg.Retention <= 0 {
		return 0, nil
	}

	before := time.Now().Add(-s.cfg.Retention)

	deleted, err := s.store.PruneSummaries(ctx, before)
	if err != nil {
		return 0, err
	}

	s.log.InfoContext(ctx, "Summaries are pruned",
		"deleted", deleted,
		"before", before.UTC().Format(time.RFC3339))

	return deleted, nil
}
