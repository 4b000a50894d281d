// Package store persists the canonical record set between runs.
package store

import (
	"context"

	"github.com/vats98754/aus-job-fetcher/common/telemetry"
	"github.com/vats98754/aus-job-fetcher/internal/models"
)

var tracer = telemetry.GetTracer("aus-job-fetcher/store")

// Store loads the prior record set and replaces it after a run. Save leaves
// exactly the given records behind, so ids missing from records are removed.
// Load on a store that was never written returns an empty slice and no error.
type Store interface {
	Load(ctx context.Context) ([]models.CanonicalRecord, error)
	Save(ctx context.Context, records []models.CanonicalRecord) error
}

// RunRecorder is implemented by stores that also keep a history of runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, run models.RunSummary) error
}

// recordIDs is never nil so SQL drivers bind an empty array, not NULL.
func recordIDs(records []models.CanonicalRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}
