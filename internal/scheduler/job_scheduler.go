package scheduler

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vats98754/aus-job-fetcher/internal/errors"
	"github.com/vats98754/aus-job-fetcher/internal/messaging"
	"github.com/vats98754/aus-job-fetcher/internal/models"
	"github.com/vats98754/aus-job-fetcher/internal/runlock"
)

type Options struct {
	// Schedule is a standard five field cron expression or a descriptor
	// such as "@every 1h" or "@hourly".
	Schedule string
	// RunOnStart triggers one run as soon as the scheduler starts.
	RunOnStart bool
	// RunTimeout bounds a single run. Zero means no bound.
	RunTimeout time.Duration
}

type JobScheduler struct {
	cycle    *Cycle
	cron     *cron.Cron
	opts     Options
	logger   *zap.Logger
	mutex    sync.Mutex
	isActive bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewJobScheduler(cycle *Cycle, opts Options, logger *zap.Logger) (*JobScheduler, error) {
	logger = logger.Named("scheduler")
	if _, err := cron.ParseStandard(opts.Schedule); err != nil {
		return nil, errors.InvalidInput("invalid schedule "+opts.Schedule, err)
	}

	cronLog := zapCronLogger{logger: logger.Sugar()}
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	return &JobScheduler{
		cycle:  cycle,
		cron:   c,
		opts:   opts,
		logger: logger,
	}, nil
}

// Start registers the cron entry and returns immediately. Runs use ctx
// until Stop is called.
func (s *JobScheduler) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.isActive {
		return nil
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if _, err := s.cron.AddFunc(s.opts.Schedule, func() { s.runScheduled(ctx) }); err != nil {
		cancel()
		return errors.InvalidInput("invalid schedule "+s.opts.Schedule, err)
	}

	s.cancel = cancel
	s.isActive = true
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("schedule", s.opts.Schedule))

	if s.opts.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runScheduled(ctx)
		}()
	}
	return nil
}

// Stop cancels in-flight runs and waits for them, or for ctx.
func (s *JobScheduler) Stop(ctx context.Context) error {
	s.mutex.Lock()
	if !s.isActive {
		s.mutex.Unlock()
		return nil
	}
	s.isActive = false
	s.cancel()
	s.mutex.Unlock()

	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return errors.Timeout("waiting for running aggregation", ctx.Err())
	}
}

// Trigger runs immediately on behalf of an external request. It returns a
// nil summary and nil error when another run is in progress.
func (s *JobScheduler) Trigger(ctx context.Context, req messaging.RunRequest) (*models.RunSummary, error) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	report, err := s.cycle.Run(ctx, req.Fresh)
	if stderrors.Is(err, runlock.ErrHeld) {
		return nil, nil
	}
	if report == nil {
		return nil, err
	}
	summary := report.Summary()
	return &summary, err
}

func (s *JobScheduler) runScheduled(ctx context.Context) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	if _, err := s.cycle.Run(ctx, false); err != nil && !stderrors.Is(err, runlock.ErrHeld) {
		s.logger.Error("scheduled run failed", zap.Error(err))
	}
}

func (s *JobScheduler) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.RunTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.RunTimeout)
	}
	return context.WithCancel(ctx)
}

// zapCronLogger adapts zap to cron.Logger. cron's info output is chatty so
// it goes to debug.
type zapCronLogger struct {
	logger *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
