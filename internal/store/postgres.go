package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/vats98754/aus-job-fetcher/common/telemetry"
	"github.com/vats98754/aus-job-fetcher/internal/errors"
	"github.com/vats98754/aus-job-fetcher/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS job_records (
	id                 CHAR(16) PRIMARY KEY,
	title              TEXT NOT NULL,
	company            TEXT NOT NULL DEFAULT '',
	location           TEXT NOT NULL DEFAULT '',
	salary             TEXT NOT NULL DEFAULT '',
	url                TEXT NOT NULL,
	source             TEXT NOT NULL,
	posted_at          TIMESTAMPTZ,
	fetched_at         TIMESTAMPTZ NOT NULL,
	hours_since_posted DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS job_records_fetched_at_idx ON job_records (fetched_at DESC);
CREATE TABLE IF NOT EXISTS aggregation_runs (
	run_id         UUID PRIMARY KEY,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL,
	incremental    BOOLEAN NOT NULL,
	total          INTEGER NOT NULL,
	with_posted_at INTEGER NOT NULL,
	within_hour    INTEGER NOT NULL,
	within_day     INTEGER NOT NULL,
	new_records    INTEGER NOT NULL,
	failed_sources TEXT[] NOT NULL DEFAULT '{}'
);`

const upsertRecordQuery = `
INSERT INTO job_records (
	id, title, company, location, salary, url, source,
	posted_at, fetched_at, hours_since_posted
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	company = EXCLUDED.company,
	location = EXCLUDED.location,
	salary = EXCLUDED.salary,
	url = EXCLUDED.url,
	source = EXCLUDED.source,
	posted_at = EXCLUDED.posted_at,
	fetched_at = EXCLUDED.fetched_at,
	hours_since_posted = EXCLUDED.hours_since_posted`

const pgDeleteStaleRecordsQuery = `DELETE FROM job_records WHERE NOT (id = ANY($1))`

// PostgresStore upserts records by id and deletes every other row, in a
// single transaction per save.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: logger.Named("postgres_store"),
	}
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return errors.Unavailable("create postgres schema", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]models.CanonicalRecord, error) {
	ctx, span := tracer.Start(ctx, "PostgresStore.Load")
	defer span.End()

	rows, err := s.pool.Query(ctx, `
		SELECT id, title, company, location, salary, url, source,
			posted_at, fetched_at, hours_since_posted
		FROM job_records
		ORDER BY fetched_at DESC, id`)
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
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Company, &r.Location, &r.Salary, &r.URL, &r.Source,
			&postedAt, &r.FetchedAt, &r.HoursSincePosted); err != nil {
			span.RecordError(err)
			return nil, errors.Internal("scan job record", err)
		}
		if postedAt != nil {
			utc := postedAt.UTC()
			r.PostedAt = &utc
		}
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

func (s *PostgresStore) Save(ctx context.Context, records []models.CanonicalRecord) error {
	ctx, span := tracer.Start(ctx, "PostgresStore.Save")
	defer span.End()
	span.SetAttributes(telemetry.Int("records.count", len(records)))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return errors.Unavailable("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(upsertRecordQuery,
			r.ID, r.Title, r.Company, r.Location, r.Salary, r.URL, r.Source,
			r.PostedAt, r.FetchedAt, r.HoursSincePosted)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		span.RecordError(err)
		return errors.Unavailable("upsert job records", err)
	}

	tag, err := tx.Exec(ctx, pgDeleteStaleRecordsQuery, recordIDs(records))
	if err != nil {
		span.RecordError(err)
		return errors.Unavailable("delete stale job records", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return errors.Unavailable("commit job records", err)
	}

	s.logger.Info("saved records",
		zap.Int("count", len(records)),
		zap.Int64("removed", tag.RowsAffected()))
	return nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, run models.RunSummary) error {
	failed := run.FailedSources()
	if failed == nil {
		failed = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregation_runs (
			run_id, started_at, finished_at, incremental, total, with_posted_at,
			within_hour, within_day, new_records, failed_sources
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id) DO NOTHING`,
		run.RunID, run.StartedAt, run.FinishedAt, run.Incremental,
		run.Stats.Total, run.Stats.WithPostedAt, run.Stats.WithinHour, run.Stats.WithinDay,
		run.Stats.New, failed)
	if err != nil {
		return errors.Unavailable("insert aggregation run", err)
	}
	return nil
}
