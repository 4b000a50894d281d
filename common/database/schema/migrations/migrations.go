package migrations

import "github.com/vats98754/aus-job-fetcher/common/database/schema"

// All lists every migration in version order.
func All() []schema.Migration {
	return []schema.Migration{
		CreateJobRecordsTable,
		CreateAggregationRunsTable,
	}
}
