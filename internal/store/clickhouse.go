package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vats98754/aus-job-fetcher/common/telemetry"
	"github.com/vats98754/aus-job-fetcher/internal/errors"
	"github.com/vats98754/aus-job-fetcher/internal/models"
)

const (
	selectRecordsQuery = `
		SELECT id, title, company, location, salary, url, source,
			posted_at, fetched_at, hours_since_posted
		FROM job_records FINAL
		ORDER BY fetched_at DESC
	`
	insertRecordsQuery = `
		INSERT INTO job_records (
			id, title, company, location, salary, url, source,
			posted_at, fetched_at, hours_since_posted
		)
	`
	insertRunQuery = `
		INSERT INTO aggregation_runs (
			run_id, started_at, incremental, total, with_posted_at,
			within_hour, within_day, new_records, failed_sources
		)
	`
)

const (
	chDeleteStaleRecordsQuery = `DELETE FROM job_records WHERE NOT has(?, toString(id))`
	truncateRecordsQuery      = `TRUNCATE TABLE job_records`
)

// ClickHouseStore keeps records in job_records, a ReplacingMergeTree keyed
// on id. Saving re-inserts every record and then deletes ids that are no
// longer present; reads use FINAL so each id resolves to its latest fetch.
type ClickHouseStore struct {
	db     clickhouse.Conn
	logger *zap.Logger
}

func NewClickHouseStore(db clickhouse.Conn, logger *zap.Logger) *ClickHouseStore {
	return &ClickHouseStore{
		db:     db,
		logger: logger.Named("clickhouse_store"),
	}
}

func (s *ClickHouseStore) Load(ctx context.Context) ([]models.CanonicalRecord, error) {
	ctx, span := tracer.Start(ctx, "ClickHouseStore.Load")
	defer span.End()

	rows, err := s.db.Query(ctx, selectRecordsQuery)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Unavailable("query job records", err)
	}
	defer rows.Close()

	records := []models.CanonicalRecord{}
	for rows.Next() {
		var (
			r        models.CanonicalRecord
			postedAt *time.Time
			hours    *float64
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Company, &r.Location, &r.Salary, &r.URL, &r.Source,
			&postedAt, &r.FetchedAt, &hours); err != nil {
			span.RecordError(err)
			return nil, errors.Internal("scan job record", err)
		}
		r.PostedAt = postedAt
		r.HoursSincePosted = hours
		r.FetchedAt = r.FetchedAt.UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, errors.Unavailable("iterate job records", err)
	}

	span.SetAttributes(telemetry.Int("records.count", len(records)))
	return records, nil
}

func (s *ClickHouseStore) Save(ctx context.Context, records []models.CanonicalRecord) error {
	ctx, span := tracer.Start(ctx, "ClickHouseStore.Save")
	defer span.End()
	span.SetAttributes(telemetry.Int("records.count", len(records)))

	if len(records) == 0 {
		if err := s.db.Exec(ctx, truncateRecordsQuery); err != nil {
			span.RecordError(err)
			return errors.Unavailable("truncate job records", err)
		}
		s.logger.Info("cleared records")
		return nil
	}

	batch, err := s.db.PrepareBatch(ctx, insertRecordsQuery)
	if err != nil {
		span.RecordError(err)
		return errors.Unavailable("prepare job records batch", err)
	}

	for _, r := range records {
		if err := batch.Append(
			r.ID,
			r.Title,
			r.Company,
			r.Location,
			r.Salary,
			r.URL,
			r.Source,
			r.PostedAt,
			r.FetchedAt,
			r.HoursSincePosted,
		); err != nil {
			_ = batch.Abort()
			span.RecordError(err)
			return errors.Internal(fmt.Sprintf("append job record %s", r.ID), err)
		}
	}

	if err := batch.Send(); err != nil {
		span.RecordError(err)
		return errors.Unavailable("send job records batch", err)
	}

	if err := s.db.Exec(ctx, chDeleteStaleRecordsQuery, recordIDs(records)); err != nil {
		span.RecordError(err)
		return errors.Unavailable("delete stale job records", err)
	}

	s.logger.Info("saved records", zap.Int("count", len(records)))
	return nil
}

func (s *ClickHouseStore) RecordRun(ctx context.Context, run models.RunSummary) error {
	ctx, span := tracer.Start(ctx, "ClickHouseStore.RecordRun")
	defer span.End()

	runID, err := uuid.Parse(run.RunID)
	if err != nil {
		return errors.InvalidInput("run id", err)
	}

	failed := run.FailedSources()
	if failed == nil {
		failed = []string{}
	}

	batch, err := s.db.PrepareBatch(ctx, insertRunQuery)
	if err != nil {
		span.RecordError(err)
		return errors.Unavailable("prepare run batch", err)
	}
	if err := batch.Append(
		runID,
		run.StartedAt,
		run.Incremental,
		uint32(run.Stats.Total),
		uint32(run.Stats.WithPostedAt),
		uint32(run.Stats.WithinHour),
		uint32(run.Stats.WithinDay),
		uint32(run.Stats.New),
		failed,
	); err != nil {
		_ = batch.Abort()
		span.RecordError(err)
		return errors.Internal("append run", err)
	}
	if err := batch.Send(); err != nil {
		span.RecordError(err)
		return errors.Unavailable("send run batch", err)
	}
	return nil
}
