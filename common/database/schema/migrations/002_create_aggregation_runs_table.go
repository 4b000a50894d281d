package migrations

import "github.com/vats98754/aus-job-fetcher/common/database/schema"

var CreateAggregationRunsTable = schema.Migration{
	Version:     2,
	Description: "Create aggregation_runs table",
	Up: `
		CREATE TABLE IF NOT EXISTS aggregation_runs (
			run_id UUID,
			started_at DateTime64(3, 'UTC'),
			incremental Bool,
			total UInt32,
			with_posted_at UInt32,
			within_hour UInt32,
			within_day UInt32,
			new_records UInt32,
			failed_sources Array(String)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(started_at)
		ORDER BY (started_at, run_id)
	`,
	Down: `DROP TABLE IF EXISTS aggregation_runs`,
}
