package scheduler

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/ecodanctl/internal/errors"
	"codeberg.org/mutker/ecodanctl/internal/logger"
	"github.com/robfig/cron/v3"
)

// DefaultSpec fires on every :00 and :30 second of the wall clock.
const DefaultSpec = "0,30 * * * * *"

// Job is one scheduled unit of work.
type Job func(ctx context.Context)

// Scheduler fires a Job on a cron schedule with second precision. A firing
// that comes due while the previous run is still going is skipped, and a
// panicking run is logged instead of taking the process down.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	job    Job
	logger logger.Logger

	mu  sync.Mutex
	ctx context.Context
}

type Option func(*Scheduler)

func WithLogger(log logger.Logger) Option {
	return func(s *Scheduler) { s.logger = log }
}

var parser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate reports whether spec is a valid six-field schedule.
func Validate(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return errors.New().WithData(errors.ErrInvalidSchedule, struct {
			Spec  string
			Error string
		}{
			Spec:  spec,
			Error: err.Error(),
		})
	}
	return nil
}

func New(spec string, job Job, opts ...Option) (*Scheduler, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}

	s := &Scheduler{
		spec:   spec,
		job:    job,
		logger: logger.With("scheduler"),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
	)
	if _, err := s.cron.AddJob(spec, s.wrap(cl)); err != nil {
		return nil, errors.New().Wrap(errors.ErrInvalidSchedule, err)
	}

	return s, nil
}

func (s *Scheduler) wrap(l cron.Logger) cron.Job {
	return cron.NewChain(cron.Recover(l), cron.SkipIfStillRunning(l)).
		Then(cron.FuncJob(func() {
			s.job(s.runContext())
		}))
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Run starts the schedule and blocks until ctx is cancelled, then waits for
// a running job to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info().
		Str("spec", s.spec).
		Time("next", s.Next()).
		Msg("Scheduler started")

	<-ctx.Done()

	s.logger.Debug().Msg("Stopping scheduler...")
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")

	return nil
}

// Next returns the next firing time, or the zero time before Run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// cronLogger adapts our logger to cron.Logger. Routine cron messages go to
// debug.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
