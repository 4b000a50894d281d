// Package sources holds one adapter per job board. Every adapter turns a
// board's listing format into models.RawRecord values and nothing more:
// filtering, identity and recency belong to the aggregator.
package sources

import (
	"context"

	"github.com/vats98754/aus-job-fetcher/common/telemetry"
	"github.com/vats98754/aus-job-fetcher/internal/models"
)

var tracer = telemetry.GetTracer("aus-job-fetcher/sources")

const (
	CuratedName    = "GitHub-AusJobs"
	SeekName       = "SEEK"
	AdzunaName     = "Adzuna"
	HackerNewsName = "HN-WhoIsHiring"
)

// Source fetches the current listings of one board. Fetch may return the
// records gathered so far together with an error.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.RawRecord, error)
}

// Func adapts a plain function to Source.
type Func struct {
	SourceName string
	FetchFunc  func(ctx context.Context) ([]models.RawRecord, error)
}

func (f Func) Name() string {
	return f.SourceName
}

func (f Func) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	return f.FetchFunc(ctx)
}
