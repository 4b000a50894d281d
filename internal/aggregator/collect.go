package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vats98754/aus-job-fetcher/common/telemetry"
	"github.com/vats98754/aus-job-fetcher/internal/errors"
	"github.com/vats98754/aus-job-fetcher/internal/models"
	"github.com/vats98754/aus-job-fetcher/internal/sources"
)

type fetchOutcome struct {
	records []models.RawRecord
	err     error
}

// collect runs every source on a bounded pool. Results are slotted by
// source index so later stages see them in priority order no matter which
// source finished first.
func (e *Engine) collect(ctx context.Context) []models.SourceResult {
	results := make([]models.SourceResult, len(e.sources))
	if len(e.sources) == 0 {
		return results
	}

	workers := e.opts.Workers
	if workers <= 0 || workers > len(e.sources) {
		workers = len(e.sources)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = e.runSource(ctx, e.sources[idx])
			}
		}()
	}

	for idx := range e.sources {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	return results
}

// runSource fetches one source under its own deadline. A source that
// ignores its context is abandoned when the deadline passes; a panic is
// reported as a failure.
func (e *Engine) runSource(ctx context.Context, src sources.Source) models.SourceResult {
	name := src.Name()
	ctx, span := tracer.Start(ctx, "Engine.runSource")
	defer span.End()
	span.SetAttributes(telemetry.String("source", name))

	sctx := ctx
	cancel := func() {}
	if e.opts.SourceTimeout > 0 {
		sctx, cancel = context.WithTimeout(ctx, e.opts.SourceTimeout)
	}
	defer cancel()

	start := time.Now()
	done := make(chan fetchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchOutcome{err: errors.Internal(fmt.Sprintf("source %s panicked: %v", name, r), nil)}
			}
		}()
		records, err := src.Fetch(sctx)
		done <- fetchOutcome{records: records, err: err}
	}()

	var out fetchOutcome
	select {
	case out = <-done:
	case <-sctx.Done():
		out = fetchOutcome{err: errors.Timeout(fmt.Sprintf("source %s did not finish in time", name), sctx.Err())}
	}

	result := models.SourceResult{
		Source:   name,
		Status:   models.SourceOK,
		Duration: time.Since(start),
	}
	switch {
	case out.err == nil:
		result.Records = out.records
	case errors.Is(out.err, errors.ErrTypeTimeout):
		result.Status = models.SourceTimeout
	default:
		result.Status = models.SourceFailed
		result.Records = out.records
	}
	if out.err != nil {
		result.Err = out.err
		result.Reason = out.err.Error()
		span.RecordError(out.err)
	}
	result.Fetched = len(result.Records)

	span.SetAttributes(
		telemetry.String("source.status", string(result.Status)),
		telemetry.Int("source.fetched", result.Fetched),
		telemetry.Duration("source.duration_ms", result.Duration),
	)

	fields := []zap.Field{
		zap.String("source", name),
		zap.String("status", string(result.Status)),
		zap.Int("fetched", result.Fetched),
		zap.Duration("duration", result.Duration),
	}
	if out.err != nil {
		e.logger.Warn("source finished with error", append(fields, zap.Error(out.err))...)
	} else {
		e.logger.Info("source finished", fields...)
	}
	return result
}
