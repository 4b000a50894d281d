package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/vats98754/aus-job-fetcher/common/telemetry"
	"github.com/vats98754/aus-job-fetcher/internal/errors"
	"github.com/vats98754/aus-job-fetcher/internal/models"
)

var tracer = telemetry.GetTracer("aus-job-fetcher/messaging")

const (
	NewRecordsSubject   = "jobs.new"
	RunCompletedSubject = "jobs.run.completed"
	RunRequestSubject   = "jobs.run.request"

	flushTimeout = 5 * time.Second
)

type Publisher interface {
	PublishRecords(ctx context.Context, records []models.CanonicalRecord) error
	PublishRunSummary(ctx context.Context, summary models.RunSummary) error
	Close()
}

// Connect dials NATS with reconnects enabled.
func Connect(url, name string, timeout time.Duration) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(timeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, errors.Unavailable("connecting to NATS", err)
	}
	return conn, nil
}

type natsPublisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

func NewPublisher(conn *nats.Conn, logger *zap.Logger) Publisher {
	return &natsPublisher{
		conn:   conn,
		logger: logger.Named("publisher"),
	}
}

// PublishRecords sends one message per record on NewRecordsSubject and
// flushes once at the end.
func (p *natsPublisher) PublishRecords(ctx context.Context, records []models.CanonicalRecord) error {
	_, span := tracer.Start(ctx, "PublishRecords")
	defer span.End()
	span.SetAttributes(
		telemetry.String("nats.subject", NewRecordsSubject),
		telemetry.Int("records.count", len(records)),
	)

	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			span.RecordError(err)
			return errors.Internal("marshaling job record", err)
		}
		if err := p.conn.Publish(NewRecordsSubject, data); err != nil {
			span.RecordError(err)
			p.logger.Error("failed to publish job record",
				zap.String("id", r.ID),
				zap.Error(err))
			return errors.Unavailable("publishing to NATS", err)
		}
	}

	if err := p.conn.FlushTimeout(flushTimeout); err != nil {
		span.RecordError(err)
		return errors.Unavailable("flushing NATS", err)
	}

	p.logger.Debug("published job records",
		zap.Int("count", len(records)),
		zap.String("subject", NewRecordsSubject))
	return nil
}

func (p *natsPublisher) PublishRunSummary(ctx context.Context, summary models.RunSummary) error {
	_, span := tracer.Start(ctx, "PublishRunSummary")
	defer span.End()

	data, err := json.Marshal(summary)
	if err != nil {
		span.RecordError(err)
		return errors.Internal("marshaling run summary", err)
	}

	span.SetAttributes(
		telemetry.String("nats.subject", RunCompletedSubject),
		telemetry.Int("message.size", len(data)),
	)

	if err := p.conn.Publish(RunCompletedSubject, data); err != nil {
		span.RecordError(err)
		return errors.Unavailable("publishing to NATS", err)
	}

	p.logger.Debug("published run summary",
		zap.String("run_id", summary.RunID),
		zap.String("subject", RunCompletedSubject))
	return nil
}

func (p *natsPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// Noop discards everything. Used when NATS is not configured.
type Noop struct{}

func (Noop) PublishRecords(context.Context, []models.CanonicalRecord) error { return nil }

func (Noop) PublishRunSummary(context.Context, models.RunSummary) error { return nil }

func (Noop) Close() {}
