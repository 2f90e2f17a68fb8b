package sweep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/scheduling"
)

var now = time.Date(2024, 1, 9, 9, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu     sync.Mutex
	appts  map[string]model.Appointment
	cutoff time.Time
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	snapshot := make(map[string]model.Appointment, len(f.appts))
	for k, v := range f.appts {
		snapshot[k] = v
	}
	f.mu.Unlock()
	if err := fn(ctx); err != nil {
		f.mu.Lock()
		f.appts = snapshot
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeStore) DueReminders(_ context.Context, from, to time.Time, limit int) ([]model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Appointment
	for _, a := range f.appts {
		if !a.Active || !a.SendReminder || a.ReminderSent {
			continue
		}
		if a.Status != model.StatusConfirmed && a.Status != model.StatusInProgress {
			continue
		}
		if a.ScheduledStart.Before(from) || !a.ScheduledStart.Before(to) {
			continue
		}
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) MarkReminderSent(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.appts[id]
	if a.ReminderSent {
		return false, nil
	}
	a.ReminderSent = true
	f.appts[id] = a
	return true, nil
}

func (f *fakeStore) ArchiveCancelled(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoff = cutoff
	var n int64
	for id, a := range f.appts {
		if a.Status == model.StatusCancelled && a.Active && a.ScheduledStart.Before(cutoff) {
			a.Active = false
			f.appts[id] = a
			n++
		}
	}
	return n, nil
}

type fakeMailer struct {
	mu      sync.Mutex
	sent    []string
	stats   []notify.WeeklyStats
	failFor string
}

func (m *fakeMailer) SendTemplate(_ context.Context, tpl notify.Template, appt model.Appointment, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if appt.ID == m.failFor {
		return errors.New("outbox unavailable")
	}
	m.sent = append(m.sent, string(tpl)+":"+appt.ID)
	return nil
}

func (m *fakeMailer) PublishWeeklyStats(_ context.Context, s notify.WeeklyStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = append(m.stats, s)
	return nil
}

type fakeStats struct{}

func (fakeStats) WeeklyStats(context.Context) (scheduling.StatusStats, error) {
	return scheduling.StatusStats{
		From:  now.AddDate(0, 0, -7),
		To:    now,
		Total: 3,
		ByStatus: map[model.Status]int{
			model.StatusCompleted: 2,
			model.StatusCancelled: 1,
		},
	}, nil
}

func appt(id string, start time.Time, status model.Status) model.Appointment {
	return model.Appointment{
		ID:             id,
		TechnicianID:   "tech-a",
		ScheduledStart: start,
		DurationHours:  1,
		Status:         status,
		SendReminder:   true,
		Active:         true,
	}
}

func newSweeper(store *fakeStore, mailer *fakeMailer) *Sweeper {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, store, mailer, fakeStats{}, logger, func() time.Time { return now }, Config{})
}

func TestRemindersSendOncePerAppointment(t *testing.T) {
	store := &fakeStore{appts: map[string]model.Appointment{}}
	for _, a := range []model.Appointment{
		appt("due", now.Add(2*time.Hour), model.StatusConfirmed),
		appt("edge", now.Add(24*time.Hour), model.StatusConfirmed),
		appt("draft", now.Add(3*time.Hour), model.StatusDraft),
		appt("started", now.Add(time.Hour), model.StatusInProgress),
		appt("past", now.Add(-time.Hour), model.StatusConfirmed),
	} {
		store.appts[a.ID] = a
	}
	off := appt("off", now.Add(time.Hour), model.StatusConfirmed)
	off.SendReminder = false
	store.appts[off.ID] = off

	mailer := &fakeMailer{}
	sw := newSweeper(store, mailer)

	n, err := sw.Reminders(context.Background())
	if err != nil {
		t.Fatalf("reminders: %v", err)
	}
	if n != 2 || len(mailer.sent) != 2 {
		t.Fatalf("sent %d: %v", n, mailer.sent)
	}
	for _, id := range []string{"due", "started"} {
		if !store.appts[id].ReminderSent {
			t.Fatalf("%s should be marked", id)
		}
	}

	n, err = sw.Reminders(context.Background())
	if err != nil || n != 0 || len(mailer.sent) != 2 {
		t.Fatalf("second run should be a no-op: n=%d err=%v sent=%v", n, err, mailer.sent)
	}
}

func TestReminderFailureIsRetried(t *testing.T) {
	store := &fakeStore{appts: map[string]model.Appointment{
		"a1": appt("a1", now.Add(time.Hour), model.StatusConfirmed),
		"a2": appt("a2", now.Add(2*time.Hour), model.StatusConfirmed),
	}}
	mailer := &fakeMailer{failFor: "a1"}
	sw := newSweeper(store, mailer)

	n, err := sw.Reminders(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if store.appts["a1"].ReminderSent {
		t.Fatalf("failed send must release the claim")
	}

	mailer.failFor = ""
	if n, _ := sw.Reminders(context.Background()); n != 1 {
		t.Fatalf("retry should send the remaining reminder, got %d", n)
	}
}

func TestArchiveUsesCutoff(t *testing.T) {
	store := &fakeStore{appts: map[string]model.Appointment{
		"old":      appt("old", now.AddDate(0, 0, -200), model.StatusCancelled),
		"recent":   appt("recent", now.AddDate(0, 0, -10), model.StatusCancelled),
		"finished": appt("finished", now.AddDate(0, 0, -200), model.StatusCompleted),
	}}
	sw := newSweeper(store, &fakeMailer{})

	n, err := sw.Archive(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if want := now.Add(-180 * 24 * time.Hour); !store.cutoff.Equal(want) {
		t.Fatalf("cutoff = %s, want %s", store.cutoff, want)
	}
	if store.appts["old"].Active || !store.appts["recent"].Active || !store.appts["finished"].Active {
		t.Fatalf("archived the wrong rows: %+v", store.appts)
	}
	if n, _ := sw.Archive(context.Background()); n != 0 {
		t.Fatalf("second pass should archive nothing, got %d", n)
	}
}

func TestWeeklyStatsPublished(t *testing.T) {
	mailer := &fakeMailer{}
	sw := newSweeper(&fakeStore{appts: map[string]model.Appointment{}}, mailer)

	st, err := sw.WeeklyStats(context.Background())
	if err != nil {
		t.Fatalf("weekly stats: %v", err)
	}
	if st.Total != 3 || len(mailer.stats) != 1 {
		t.Fatalf("stats=%+v published=%+v", st, mailer.stats)
	}
	got := mailer.stats[0]
	if got.ByStatus["completed"] != 2 || got.ByStatus["cancelled"] != 1 || !got.To.Equal(now) {
		t.Fatalf("published = %+v", got)
	}
}

func TestSchedulerRegistersSweeps(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sw := newSweeper(&fakeStore{appts: map[string]model.Appointment{}}, &fakeMailer{})

	s, err := NewScheduler(sw, logger, DefaultSchedule())
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	if s.Entries() != 3 {
		t.Fatalf("entries = %d", s.Entries())
	}

	sched := DefaultSchedule()
	sched.WeeklyStats = "off"
	if s, err = NewScheduler(sw, logger, sched); err != nil || s.Entries() != 2 {
		t.Fatalf("disabled sweep should be skipped: err=%v", err)
	}

	sched.Archive = "not a cron line"
	if _, err := NewScheduler(sw, logger, sched); err == nil {
		t.Fatalf("expected an error for a bad schedule")
	}
}

func TestSchedulerRunStopsWithContext(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sw := newSweeper(&fakeStore{appts: map[string]model.Appointment{}}, &fakeMailer{})
	s, err := NewScheduler(sw, logger, DefaultSchedule())
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
