package settings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
)

type memStore struct {
	records []model.Settings
	inserts int
}

func (m *memStore) GetSettings(_ context.Context, technicianID string) (model.Settings, error) {
	for _, s := range m.records {
		if s.TechnicianID == technicianID {
			return s, nil
		}
	}
	return model.Settings{}, model.ErrNotFound
}

func (m *memStore) ListSettings(context.Context) ([]model.Settings, error) {
	return append([]model.Settings(nil), m.records...), nil
}

func (m *memStore) InsertSettings(_ context.Context, s model.Settings) error {
	m.inserts++
	m.records = append(m.records, s)
	return nil
}

func (m *memStore) UpdateSettings(_ context.Context, s model.Settings) error {
	for i := range m.records {
		if m.records[i].ID == s.ID {
			m.records[i] = s
			return nil
		}
	}
	return model.ErrNotFound
}

func newTestResolver(store Store) *Resolver {
	now := func() time.Time { return time.Date(2024, 1, 9, 9, 0, 0, 0, time.UTC) }
	return NewResolver(store, slog.New(slog.NewTextHandler(io.Discard, nil)), now)
}

func TestResolveCreatesDefaultOnce(t *testing.T) {
	store := &memStore{}
	r := newTestResolver(store)

	s, err := r.Resolve(context.Background(), "tech-a")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !s.Global() || s.WorkingHoursStart != 8 || s.WorkingHoursEnd != 17 || s.WorkingDays != "1,2,3,4,5" {
		t.Fatalf("unexpected default settings: %+v", s)
	}
	if s.MaxDailyAppointments != 8 || s.DefaultDurationHours != 1 || s.AdvanceBookingDays != 30 || s.BufferHours != 0.5 {
		t.Fatalf("unexpected default bounds: %+v", s)
	}
	if _, err := r.Resolve(context.Background(), "tech-b"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if store.inserts != 1 {
		t.Fatalf("expected one persisted default, got %d", store.inserts)
	}
}

func TestResolvePrefersTechnicianRecord(t *testing.T) {
	global := model.DefaultSettings()
	global.ID = "g"
	own := model.DefaultSettings()
	own.ID = "b"
	own.TechnicianID = "tech-b"
	own.WorkingHoursStart = 10
	store := &memStore{records: []model.Settings{global, own}}
	r := newTestResolver(store)

	s, err := r.Resolve(context.Background(), "tech-b")
	if err != nil || s.ID != "b" {
		t.Fatalf("expected technician record, got %+v err=%v", s, err)
	}
	s, err = r.Resolve(context.Background(), "tech-c")
	if err != nil || s.ID != "g" {
		t.Fatalf("expected global record, got %+v err=%v", s, err)
	}
}

func TestSaveRejectsDuplicateTechnician(t *testing.T) {
	existing := model.DefaultSettings()
	existing.ID = "b"
	existing.TechnicianID = "tech-b"
	r := newTestResolver(&memStore{records: []model.Settings{existing}})

	dup := model.DefaultSettings()
	dup.TechnicianID = "tech-b"
	_, err := r.Save(context.Background(), dup)
	var verr *model.ValidationError
	if !errors.As(err, &verr) || verr.Field != "technician_id" {
		t.Fatalf("expected technician_id validation error, got %v", err)
	}

	existing.WorkingDays = "5, 1,3"
	saved, err := r.Save(context.Background(), existing)
	if err != nil {
		t.Fatalf("updating own record should pass: %v", err)
	}
	if saved.WorkingDays != "1,3,5" {
		t.Fatalf("expected normalised days, got %q", saved.WorkingDays)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*model.Settings)
		field string
	}{
		{"start after end", func(s *model.Settings) { s.WorkingHoursStart = 18 }, "working_hours_start"},
		{"end above 24", func(s *model.Settings) { s.WorkingHoursEnd = 25 }, "working_hours_end"},
		{"bad day", func(s *model.Settings) { s.WorkingDays = "1,8" }, "working_days"},
		{"not a number", func(s *model.Settings) { s.WorkingDays = "mon" }, "working_days"},
		{"zero max", func(s *model.Settings) { s.MaxDailyAppointments = 0 }, "max_daily_appointments"},
		{"zero horizon", func(s *model.Settings) { s.AdvanceBookingDays = 0 }, "advance_booking_days"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := model.DefaultSettings()
			tc.edit(&s)
			var verr *model.ValidationError
			if err := Validate(s); !errors.As(err, &verr) || verr.Field != tc.field {
				t.Fatalf("expected %s error, got %v", tc.field, err)
			}
		})
	}
	if err := Validate(model.DefaultSettings()); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
}

func TestWorkingDayAndHour(t *testing.T) {
	s := model.DefaultSettings()
	s.TechnicianID = "tech-b"

	saturday := time.Date(2024, 1, 13, 10, 0, 0, 0, time.UTC)
	tuesday := time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC)
	if IsWorkingDay(s, saturday) {
		t.Fatal("saturday should not be a working day")
	}
	if !IsWorkingDay(s, tuesday) {
		t.Fatal("tuesday should be a working day")
	}

	if !IsWorkingHour(s, time.Date(2024, 1, 9, 17, 0, 0, 0, time.UTC)) {
		t.Fatal("17:00 is inclusive")
	}
	if IsWorkingHour(s, time.Date(2024, 1, 9, 7, 59, 0, 0, time.UTC)) {
		t.Fatal("07:59 is before hours")
	}
	if !WithinWorkingHours(s, tuesday.Add(6*time.Hour), tuesday.Add(7*time.Hour)) {
		t.Fatal("16:00-17:00 fits")
	}
	if WithinWorkingHours(s, tuesday.Add(6*time.Hour), tuesday.Add(7*time.Hour+30*time.Minute)) {
		t.Fatal("16:00-17:30 overruns")
	}
}

func TestCheckReportsViolations(t *testing.T) {
	s := model.DefaultSettings()
	now := time.Date(2024, 1, 9, 9, 0, 0, 0, time.UTC)

	if got := Check(s, time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), 1, now, 0); len(got) != 0 {
		t.Fatalf("expected no violations, got %v", got)
	}
	got := Check(s, time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC), 1, now, 8)
	if len(got) != 3 {
		t.Fatalf("expected weekend, horizon and daily limit violations, got %v", got)
	}
}
