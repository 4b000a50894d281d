package scheduler

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/vats98754/aus-job-fetcher/common/telemetry"
	"github.com/vats98754/aus-job-fetcher/internal/aggregator"
	"github.com/vats98754/aus-job-fetcher/internal/errors"
	"github.com/vats98754/aus-job-fetcher/internal/messaging"
	"github.com/vats98754/aus-job-fetcher/internal/runlock"
)

var tracer = telemetry.GetTracer("aus-job-fetcher/scheduler")

type Engine interface {
	Run(ctx context.Context) (*aggregator.Report, error)
}

// Cycle is one guarded aggregation: take the run lock, run the engine,
// announce the outcome.
type Cycle struct {
	engine    Engine
	fresh     Engine
	lock      runlock.Locker
	publisher messaging.Publisher
	logger    *zap.Logger
}

// NewCycle builds a Cycle. fresh serves requests that skip the stored set;
// when nil those requests use engine.
func NewCycle(engine, fresh Engine, lock runlock.Locker, publisher messaging.Publisher, logger *zap.Logger) *Cycle {
	if fresh == nil {
		fresh = engine
	}
	if lock == nil {
		lock = runlock.NewLocal()
	}
	if publisher == nil {
		publisher = messaging.Noop{}
	}
	return &Cycle{
		engine:    engine,
		fresh:     fresh,
		lock:      lock,
		publisher: publisher,
		logger:    logger.Named("cycle"),
	}
}

// Run returns runlock.ErrHeld without running when another run owns the
// lock. A report is returned whenever the engine ran, even on error.
func (c *Cycle) Run(ctx context.Context, fresh bool) (*aggregator.Report, error) {
	ctx, span := tracer.Start(ctx, "Cycle.Run")
	defer span.End()
	span.SetAttributes(telemetry.Bool("run.fresh", fresh))

	release, err := c.lock.Acquire(ctx)
	if stderrors.Is(err, runlock.ErrHeld) {
		c.logger.Info("another run holds the lock, skipping")
		return nil, err
	}
	if err != nil {
		span.RecordError(err)
		return nil, errors.Unavailable("acquiring run lock", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			c.logger.Warn("failed to release run lock", zap.Error(err))
		}
	}()

	engine := c.engine
	if fresh {
		engine = c.fresh
	}

	report, runErr := engine.Run(ctx)
	if report == nil {
		span.RecordError(runErr)
		return nil, runErr
	}

	LogReport(c.logger, report)

	if runErr == nil {
		if err := c.publisher.PublishRecords(ctx, report.NewRecords()); err != nil {
			c.logger.Warn("failed to publish new records", zap.Error(err))
		}
	} else {
		span.RecordError(runErr)
	}
	if err := c.publisher.PublishRunSummary(ctx, report.Summary()); err != nil {
		c.logger.Warn("failed to publish run summary", zap.Error(err))
	}

	return report, runErr
}

// LogReport writes the end-of-run summary: totals, recency buckets and one
// line per source.
func LogReport(logger *zap.Logger, report *aggregator.Report) {
	logger.Info("run finished",
		zap.String("run_id", report.RunID),
		zap.Int("total", report.Stats.Total),
		zap.Int("new", report.Stats.New),
		zap.Int("with_posted_at", report.Stats.WithPostedAt),
		zap.Int("within_1h", report.Stats.WithinHour),
		zap.Int("within_24h", report.Stats.WithinDay),
		zap.Int("fetched", report.Stats.Fetched),
		zap.Int("filtered", report.Stats.Filtered),
		zap.Int("dropped", report.Stats.Dropped),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))

	for _, s := range report.Sources {
		fields := []zap.Field{
			zap.String("source", s.Source),
			zap.String("status", string(s.Status)),
			zap.Int("fetched", s.Fetched),
			zap.Int("accepted", s.Accepted),
			zap.Duration("duration", s.Duration),
		}
		if s.Failed() {
			logger.Warn("source failed", append(fields, zap.String("reason", s.Reason))...)
			continue
		}
		logger.Info("source finished", fields...)
	}

	if report.PersistErr != nil {
		logger.Error("results were not persisted", zap.Error(report.PersistErr))
	}
}
