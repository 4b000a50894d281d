// Package aggregator runs the sources, turns what they return into
// canonical records and merges them into the persisted set.
package aggregator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vats98754/aus-job-fetcher/common/telemetry"
	"github.com/vats98754/aus-job-fetcher/internal/errors"
	"github.com/vats98754/aus-job-fetcher/internal/filter"
	"github.com/vats98754/aus-job-fetcher/internal/models"
	"github.com/vats98754/aus-job-fetcher/internal/recency"
	"github.com/vats98754/aus-job-fetcher/internal/sources"
	"github.com/vats98754/aus-job-fetcher/internal/store"
)

var tracer = telemetry.GetTracer("aus-job-fetcher/aggregator")

type Options struct {
	// Incremental merges the run into the stored set instead of replacing it.
	Incremental   bool
	SourceTimeout time.Duration
	// Exemptions is keyed by source name.
	Exemptions  map[string]filter.Exemption
	Workers     int
	MergePolicy MergePolicy
}

type Report struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Incremental bool
	Records     []models.CanonicalRecord
	Stats       models.Stats
	Sources     []models.SourceResult
	// NewIDs are ids of this run's records the store did not hold before.
	NewIDs []string
	// PersistErr is set when the store could not be read or written. The
	// records are still the run's result.
	PersistErr error
}

func (r *Report) Summary() models.RunSummary {
	s := models.RunSummary{
		RunID:       r.RunID,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Incremental: r.Incremental,
		Stats:       r.Stats,
		Sources:     r.Sources,
	}
	if r.PersistErr != nil {
		s.PersistErr = r.PersistErr.Error()
	}
	return s
}

// NewRecords returns the report's records whose ids are in NewIDs.
func (r *Report) NewRecords() []models.CanonicalRecord {
	if len(r.NewIDs) == 0 {
		return nil
	}
	ids := make(map[string]struct{}, len(r.NewIDs))
	for _, id := range r.NewIDs {
		ids[id] = struct{}{}
	}
	out := make([]models.CanonicalRecord, 0, len(r.NewIDs))
	for _, rec := range r.Records {
		if _, ok := ids[rec.ID]; ok {
			out = append(out, rec)
		}
	}
	return out
}

type Engine struct {
	sources  []sources.Source
	store    store.Store
	filter   *filter.TopicFilter
	resolver *recency.Resolver
	opts     Options
	logger   *zap.Logger
	newRunID func() string
}

// NewEngine returns an Engine. The order of srcs is the priority order
// used when two sources report the same posting.
func NewEngine(srcs []sources.Source, st store.Store, tf *filter.TopicFilter, resolver *recency.Resolver, opts Options, logger *zap.Logger) *Engine {
	if resolver == nil {
		resolver = recency.NewResolver(nil)
	}
	if opts.MergePolicy == "" {
		opts.MergePolicy = MergeRefresh
	}
	return &Engine{
		sources:  srcs,
		store:    st,
		filter:   tf,
		resolver: resolver,
		opts:     opts,
		logger:   logger.Named("aggregator"),
		newRunID: uuid.NewString,
	}
}

// Run executes one aggregation. Source failures never fail the run; they
// are reported per source. A store failure returns the report together
// with an UNAVAILABLE error.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	ctx, span := tracer.Start(ctx, "Engine.Run")
	defer span.End()

	fetchedAt := e.resolver.Now()
	report := &Report{
		RunID:       e.newRunID(),
		StartedAt:   fetchedAt,
		Incremental: e.opts.Incremental,
	}
	span.SetAttributes(
		telemetry.String("run.id", report.RunID),
		telemetry.Bool("run.incremental", e.opts.Incremental),
		telemetry.Int("run.sources", len(e.sources)),
	)
	e.logger.Info("starting run",
		zap.String("run_id", report.RunID),
		zap.Bool("incremental", e.opts.Incremental),
		zap.Int("sources", len(e.sources)))

	report.Sources = e.collect(ctx)
	batch, stats := e.canonicalize(report.Sources, fetchedAt)
	batch = DedupFirstSeen(batch)

	var existing []models.CanonicalRecord
	if e.opts.Incremental {
		loaded, err := e.store.Load(ctx)
		if err != nil {
			span.RecordError(err)
			e.logger.Error("failed to load store, keeping it untouched", zap.Error(err))
			SortByFetchedAt(batch)
			report.Records = batch
			report.Stats = ComputeStats(batch, stats)
			report.PersistErr = err
			report.FinishedAt = e.resolver.Now()
			return report, errors.Unavailable("loading store", err)
		}
		existing = loaded
	}

	merged := Merge(batch, existing, e.opts.MergePolicy)
	SortByFetchedAt(merged)

	report.Records = merged
	report.NewIDs = NewIDs(batch, existing)
	stats.New = len(report.NewIDs)
	report.Stats = ComputeStats(merged, stats)

	if err := e.store.Save(ctx, merged); err != nil {
		span.RecordError(err)
		e.logger.Error("failed to save store", zap.Error(err))
		report.PersistErr = err
		report.FinishedAt = e.resolver.Now()
		return report, errors.Unavailable("saving store", err)
	}

	report.FinishedAt = e.resolver.Now()
	if recorder, ok := e.store.(store.RunRecorder); ok {
		if err := recorder.RecordRun(ctx, report.Summary()); err != nil {
			e.logger.Warn("failed to record run", zap.Error(err))
		}
	}

	span.SetAttributes(
		telemetry.Int("run.total", report.Stats.Total),
		telemetry.Int("run.new", report.Stats.New),
	)
	return report, nil
}

// canonicalize filters and canonicalizes every source's records in source
// order, filling each result's Accepted count.
func (e *Engine) canonicalize(results []models.SourceResult, fetchedAt time.Time) ([]models.CanonicalRecord, models.Stats) {
	var (
		batch []models.CanonicalRecord
		stats models.Stats
	)
	for i := range results {
		res := &results[i]
		exemption := e.opts.Exemptions[res.Source]
		for _, raw := range res.Records {
			stats.Fetched++
			if raw.Source == "" {
				raw.Source = res.Source
			}
			if verdict := e.filter.Evaluate(raw, exemption); verdict != filter.Accepted {
				stats.Filtered++
				e.logger.Debug("record filtered",
					zap.String("source", res.Source),
					zap.String("title", raw.Title),
					zap.String("verdict", string(verdict)))
				continue
			}
			rec, ok := Canonicalize(raw, fetchedAt)
			if !ok {
				stats.Dropped++
				e.logger.Debug("record dropped",
					zap.String("source", res.Source),
					zap.String("title", raw.Title),
					zap.String("url", raw.URL))
				continue
			}
			res.Accepted++
			batch = append(batch, rec)
		}
	}
	return batch, stats
}

// WithIncremental returns a copy of the engine with the incremental setting
// replaced. Sources, store and filter are shared.
func (e *Engine) WithIncremental(incremental bool) *Engine {
	c := *e
	c.opts.Incremental = incremental
	return &c
}
