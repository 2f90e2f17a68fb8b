package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Schedule struct {
	Reminders   string
	Archive     string
	WeeklyStats string
	// Timeout bounds a single run.
	Timeout  time.Duration
	Location *time.Location
}

func DefaultSchedule() Schedule {
	return Schedule{
		Reminders:   "*/15 * * * *",
		Archive:     "0 3 * * *",
		WeeklyStats: "0 7 * * 1",
		Timeout:     5 * time.Minute,
		Location:    time.UTC,
	}
}

// Scheduler runs the sweeps on cron schedules. A run that is still going
// when its next tick fires is skipped.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *Sweeper
	logger  *slog.Logger
	timeout time.Duration
	ctx     context.Context
}

func NewScheduler(sw *Sweeper, logger *slog.Logger, sched Schedule) (*Scheduler, error) {
	def := DefaultSchedule()
	if sched.Location == nil {
		sched.Location = def.Location
	}
	if sched.Timeout <= 0 {
		sched.Timeout = def.Timeout
	}
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(sched.Location),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		sweeper: sw,
		logger:  logger,
		timeout: sched.Timeout,
		ctx:     context.Background(),
	}

	jobs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{"reminders", sched.Reminders, func(ctx context.Context) error {
			_, err := sw.Reminders(ctx)
			return err
		}},
		{"archive", sched.Archive, func(ctx context.Context) error {
			_, err := sw.Archive(ctx)
			return err
		}},
		{"weekly_stats", sched.WeeklyStats, func(ctx context.Context) error {
			_, err := sw.WeeklyStats(ctx)
			return err
		}},
	}
	for _, j := range jobs {
		if j.spec == "" || j.spec == "off" {
			logger.Info("sweep disabled", "sweep", j.name)
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, s.wrap(j.name, j.run)); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", j.name, j.spec, err)
		}
	}
	return s, nil
}

func (s *Scheduler) wrap(name string, run func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
		start := time.Now()
		if err := run(ctx); err != nil {
			s.logger.Error("sweep failed", "sweep", name, "err", err)
			return
		}
		s.logger.Debug("sweep finished", "sweep", name, "took", time.Since(start))
	}
}

// Entries reports how many sweeps are scheduled.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Run starts the cron loop and blocks until ctx is done, then waits for
// running sweeps to return.
func (s *Scheduler) Run(ctx context.Context) {
	s.ctx = context.WithoutCancel(ctx)
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
