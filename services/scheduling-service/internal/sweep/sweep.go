package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	otelx "github.com/md-rashed-zaman/supportsched/libs/otel"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/scheduling"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	ReminderWindow    = 24 * time.Hour
	DefaultArchiveAge = 180 * 24 * time.Hour
	defaultBatchSize  = 200
)

type Store interface {
	// DueReminders lists active confirmed or in-progress appointments with
	// reminders enabled and not yet sent, starting in [from, to).
	DueReminders(ctx context.Context, from, to time.Time, limit int) ([]model.Appointment, error)
	// MarkReminderSent flips reminder_sent and reports whether this call
	// did the flip.
	MarkReminderSent(ctx context.Context, id string) (bool, error)
	// ArchiveCancelled deactivates cancelled appointments scheduled before
	// cutoff and returns how many rows changed.
	ArchiveCancelled(ctx context.Context, cutoff time.Time) (int64, error)
}

type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Mailer interface {
	SendTemplate(ctx context.Context, tpl notify.Template, appt model.Appointment, vars map[string]string) error
	PublishWeeklyStats(ctx context.Context, s notify.WeeklyStats) error
}

type StatsSource interface {
	WeeklyStats(ctx context.Context) (scheduling.StatusStats, error)
}

type Config struct {
	ArchiveAfter time.Duration
	BatchSize    int
}

// Sweeper runs the periodic passes over stored appointments. Every pass is
// safe to re-run: reminders are claimed row by row and archival only
// touches rows that are still active.
type Sweeper struct {
	store  Store
	tx     TxRunner
	mailer Mailer
	stats  StatsSource
	logger *slog.Logger
	now    func() time.Time
	cfg    Config
	tracer trace.Tracer
}

func New(store Store, tx TxRunner, mailer Mailer, stats StatsSource, logger *slog.Logger, now func() time.Time, cfg Config) *Sweeper {
	if now == nil {
		now = time.Now
	}
	if cfg.ArchiveAfter <= 0 {
		cfg.ArchiveAfter = DefaultArchiveAge
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Sweeper{
		store:  store,
		tx:     tx,
		mailer: mailer,
		stats:  stats,
		logger: logger,
		now:    now,
		cfg:    cfg,
		tracer: otelx.Tracer("sweep"),
	}
}

// Reminders queues a reminder email for every appointment starting within
// the next 24 hours that has not had one. It returns the number queued.
func (s *Sweeper) Reminders(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "sweep.Reminders")
	defer span.End()

	now := s.now()
	due, err := s.store.DueReminders(ctx, now, now.Add(ReminderWindow), s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list due reminders: %w", err)
	}
	sent := 0
	for _, appt := range due {
		var claimed bool
		err := s.tx.WithTx(ctx, func(ctx context.Context) error {
			var err error
			if claimed, err = s.store.MarkReminderSent(ctx, appt.ID); err != nil || !claimed {
				return err
			}
			return s.mailer.SendTemplate(ctx, notify.TemplateReminder, appt, nil)
		})
		if err != nil {
			s.logger.Warn("reminder failed", "appointment_id", appt.ID, "err", err)
			continue
		}
		if claimed {
			sent++
		}
	}
	span.SetAttributes(attribute.Int("reminders.sent", sent))
	if sent > 0 {
		s.logger.Info("reminders queued", "count", sent)
	}
	return sent, nil
}

// Archive deactivates cancelled appointments older than the archive age.
func (s *Sweeper) Archive(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "sweep.Archive")
	defer span.End()

	cutoff := s.now().Add(-s.cfg.ArchiveAfter)
	n, err := s.store.ArchiveCancelled(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("archive cancelled: %w", err)
	}
	span.SetAttributes(attribute.Int64("appointments.archived", n))
	if n > 0 {
		s.logger.Info("archived cancelled appointments", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// WeeklyStats publishes the trailing seven day status counts.
func (s *Sweeper) WeeklyStats(ctx context.Context) (scheduling.StatusStats, error) {
	ctx, span := s.tracer.Start(ctx, "sweep.WeeklyStats")
	defer span.End()

	st, err := s.stats.WeeklyStats(ctx)
	if err != nil {
		return scheduling.StatusStats{}, fmt.Errorf("weekly stats: %w", err)
	}
	byStatus := make(map[string]int, len(st.ByStatus))
	for status, n := range st.ByStatus {
		byStatus[string(status)] = n
	}
	err = s.mailer.PublishWeeklyStats(ctx, notify.WeeklyStats{
		From:     st.From,
		To:       st.To,
		Total:    st.Total,
		ByStatus: byStatus,
	})
	if err != nil {
		return scheduling.StatusStats{}, fmt.Errorf("publish weekly stats: %w", err)
	}
	s.logger.Info("weekly stats published", "total", st.Total)
	return st, nil
}
