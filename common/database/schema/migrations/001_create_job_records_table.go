package migrations

import "github.com/vats98754/aus-job-fetcher/common/database/schema"

var CreateJobRecordsTable = schema.Migration{
	Version:     1,
	Description: "Create job_records table",
	Up: `
		CREATE TABLE IF NOT EXISTS job_records (
			id FixedString(16),
			title String,
			company String,
			location String,
			salary String,
			url String,
			source LowCardinality(String),
			posted_at Nullable(DateTime64(3, 'UTC')),
			fetched_at DateTime64(3, 'UTC'),
			hours_since_posted Nullable(Float64)
		) ENGINE = ReplacingMergeTree(fetched_at)
		ORDER BY id
		SETTINGS index_granularity = 8192
	`,
	Down: `DROP TABLE IF EXISTS job_records`,
}
