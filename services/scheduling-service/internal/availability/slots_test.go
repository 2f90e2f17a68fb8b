package availability

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
)

func TestAvailableSlots_Basic(t *testing.T) {
	loc := time.UTC
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, loc)
	windowStart := day.Add(9 * time.Hour)
	windowEnd := day.Add(10 * time.Hour)

	busy := []Interval{
		{Start: day.Add(9*time.Hour + 15*time.Minute), End: day.Add(9*time.Hour + 45*time.Minute)},
	}

	slots := AvailableSlots(windowStart, windowEnd, 15*time.Minute, 15*time.Minute, busy, day)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].Equal(day.Add(9 * time.Hour)) {
		t.Fatalf("expected first slot 09:00, got %s", slots[0].Format(time.RFC3339))
	}
	if !slots[1].Equal(day.Add(9*time.Hour + 45*time.Minute)) {
		t.Fatalf("expected second slot 09:45, got %s", slots[1].Format(time.RFC3339))
	}
}

func TestAvailableSlots_SkipsPast(t *testing.T) {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	now := day.Add(9*time.Hour + 31*time.Minute)

	slots := AvailableSlots(day.Add(9*time.Hour), day.Add(10*time.Hour), 15*time.Minute, 15*time.Minute, nil, now)
	if len(slots) != 1 || !slots[0].Equal(day.Add(9*time.Hour+45*time.Minute)) {
		t.Fatalf("expected only 09:45, got %v", slots)
	}
}

func TestWorkingSlots_UsesSettingsAndBuffer(t *testing.T) {
	s := model.DefaultSettings()
	s.WorkingDays = "6"
	s.WorkingHoursStart = 9
	s.WorkingHoursEnd = 12
	s.BufferHours = 0.5

	now := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC) // Wednesday
	booked := []model.Appointment{{
		ScheduledStart: time.Date(2024, 1, 13, 10, 0, 0, 0, time.UTC),
		DurationHours:  1,
	}}

	slots := WorkingSlots(s, now, 7, time.Hour, 30*time.Minute, booked, now, 0)
	// Saturday only. 09:00-10:00 touches the buffer at 09:30, so nothing
	// before 11:30 fits, and 11:30-12:30 overruns closing.
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %v", slots)
	}

	s.BufferHours = 0
	slots = WorkingSlots(s, now, 7, time.Hour, 30*time.Minute, booked, now, 0)
	want := []time.Time{
		time.Date(2024, 1, 13, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 13, 11, 0, 0, 0, time.UTC),
	}
	if len(slots) != len(want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("slot %d: expected %s, got %s", i, want[i], slots[i])
		}
	}
}

func TestWorkingSlots_RespectsDailyCap(t *testing.T) {
	s := model.DefaultSettings()
	s.MaxDailyAppointments = 1

	now := time.Date(2024, 1, 10, 7, 0, 0, 0, time.UTC) // Wednesday
	booked := []model.Appointment{{
		Status:         model.StatusConfirmed,
		ScheduledStart: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
		DurationHours:  1,
	}}
	s.BufferHours = 0

	slots := WorkingSlots(s, now, 2, time.Hour, time.Hour, booked, now, 0)
	// Wednesday is full, Thursday has room for one more booking.
	want := []time.Time{time.Date(2024, 1, 11, 8, 0, 0, 0, time.UTC)}
	if len(slots) != len(want) || !slots[0].Equal(want[0]) {
		t.Fatalf("expected %v, got %v", want, slots)
	}

	s.MaxDailyAppointments = 3
	slots = WorkingSlots(s, now, 1, time.Hour, time.Hour, booked, now, 0)
	if len(slots) != 2 {
		t.Fatalf("expected two slots left on Wednesday, got %v", slots)
	}
}
