package scheduler

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/vats98754/aus-job-fetcher/internal/aggregator"
	"github.com/vats98754/aus-job-fetcher/internal/errors"
	"github.com/vats98754/aus-job-fetcher/internal/messaging"
	"github.com/vats98754/aus-job-fetcher/internal/models"
	"github.com/vats98754/aus-job-fetcher/internal/runlock"
)

type fakeEngine struct {
	mu     sync.Mutex
	calls  int
	report *aggregator.Report
	err    error
	ran    chan struct{}
}

func (e *fakeEngine) Run(ctx context.Context) (*aggregator.Report, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.ran != nil {
		select {
		case e.ran <- struct{}{}:
		default:
		}
	}
	return e.report, e.err
}

func (e *fakeEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type recordingPublisher struct {
	mu        sync.Mutex
	records   []models.CanonicalRecord
	summaries []models.RunSummary
}

func (p *recordingPublisher) PublishRecords(_ context.Context, records []models.CanonicalRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, records...)
	return nil
}

func (p *recordingPublisher) PublishRunSummary(_ context.Context, s models.RunSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summaries = append(p.summaries, s)
	return nil
}

func (p *recordingPublisher) Close() {}

func sampleReport() *aggregator.Report {
	start := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	return &aggregator.Report{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
		Records: []models.CanonicalRecord{
			{ID: "a", Title: "Graduate Engineer"},
			{ID: "b", Title: "Software Intern"},
		},
		NewIDs: []string{"b"},
		Stats:  models.Stats{Total: 2, New: 1},
		Sources: []models.SourceResult{
			{Source: "SEEK", Status: models.SourceOK, Fetched: 2, Accepted: 2},
			{Source: "Adzuna", Status: models.SourceFailed, Reason: "boom"},
		},
	}
}

func TestCyclePublishesNewRecords(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{report: sampleReport()}
	pub := &recordingPublisher{}
	c := NewCycle(engine, nil, runlock.NewLocal(), pub, zaptest.NewLogger(t))

	report, err := c.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.RunID != "run-1" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(pub.records) != 1 || pub.records[0].ID != "b" {
		t.Fatalf("expected only the new record to be published, got %+v", pub.records)
	}
	if len(pub.summaries) != 1 || pub.summaries[0].RunID != "run-1" {
		t.Fatalf("unexpected summaries: %+v", pub.summaries)
	}
}

func TestCycleSkipsRecordsWhenNotPersisted(t *testing.T) {
	t.Parallel()

	report := sampleReport()
	report.PersistErr = stderrors.New("disk full")
	engine := &fakeEngine{report: report, err: errors.Unavailable("saving store", report.PersistErr)}
	pub := &recordingPublisher{}
	c := NewCycle(engine, nil, nil, pub, zaptest.NewLogger(t))

	got, err := c.Run(context.Background(), false)
	if !errors.Is(err, errors.ErrTypeUnavailable) {
		t.Fatalf("expected UNAVAILABLE, got %v", err)
	}
	if got == nil {
		t.Fatal("expected report alongside the error")
	}
	if len(pub.records) != 0 {
		t.Fatalf("records must not be announced when the store was not written: %+v", pub.records)
	}
	if len(pub.summaries) != 1 || pub.summaries[0].PersistErr != "disk full" {
		t.Fatalf("unexpected summaries: %+v", pub.summaries)
	}
}

func TestCycleFreshUsesFreshEngine(t *testing.T) {
	t.Parallel()

	incremental := &fakeEngine{report: sampleReport()}
	fresh := &fakeEngine{report: sampleReport()}
	c := NewCycle(incremental, fresh, nil, nil, zaptest.NewLogger(t))

	if _, err := c.Run(context.Background(), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh.Calls() != 1 || incremental.Calls() != 0 {
		t.Fatalf("expected fresh engine only, got fresh=%d incremental=%d", fresh.Calls(), incremental.Calls())
	}
}

func TestCycleSkipsWhenLockHeld(t *testing.T) {
	t.Parallel()

	lock := runlock.NewLocal()
	release, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer release(context.Background())

	engine := &fakeEngine{report: sampleReport()}
	c := NewCycle(engine, nil, lock, nil, zaptest.NewLogger(t))

	if _, err := c.Run(context.Background(), false); !stderrors.Is(err, runlock.ErrHeld) {
		t.Fatalf("expected ErrHeld, got %v", err)
	}
	if engine.Calls() != 0 {
		t.Fatal("engine must not run while the lock is held")
	}
}

func TestNewJobSchedulerRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	c := NewCycle(&fakeEngine{}, nil, nil, nil, zaptest.NewLogger(t))
	_, err := NewJobScheduler(c, Options{Schedule: "every now and then"}, zaptest.NewLogger(t))
	if !errors.Is(err, errors.ErrTypeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestTrigger(t *testing.T) {
	t.Parallel()

	lock := runlock.NewLocal()
	c := NewCycle(&fakeEngine{report: sampleReport()}, nil, lock, nil, zaptest.NewLogger(t))
	s, err := NewJobScheduler(c, Options{Schedule: "@hourly", RunTimeout: time.Minute}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summary, err := s.Trigger(context.Background(), messaging.RunRequest{RequestedBy: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary == nil || summary.RunID != "run-1" || len(summary.FailedSources()) != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	release, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer release(context.Background())

	summary, err = s.Trigger(context.Background(), messaging.RunRequest{})
	if err != nil || summary != nil {
		t.Fatalf("expected skipped trigger, got %+v, %v", summary, err)
	}
}

func TestSchedulerRunsOnStart(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{report: sampleReport(), ran: make(chan struct{}, 1)}
	c := NewCycle(engine, nil, nil, nil, zaptest.NewLogger(t))
	s, err := NewJobScheduler(c, Options{Schedule: "@every 1h", RunOnStart: true}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// starting twice is a no-op
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-engine.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a run on start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine.Calls() != 1 {
		t.Fatalf("expected one run, got %d", engine.Calls())
	}
}
