package availability

import (
	"context"
	"iter"
	"time"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
)

// Quick suggestions use a fixed Monday to Friday calendar with hourly
// starts from 08:00 to 16:00, independent of technician settings.
const (
	QuickFirstHour   = 8
	QuickLastHour    = 16
	DefaultHorizon   = 7
	DefaultMaxResult = 5
)

type ConflictFinder interface {
	Find(ctx context.Context, technicianID string, start, end time.Time, excludeID string) ([]model.Appointment, error)
}

type QuickRequest struct {
	TechnicianID  string
	DurationHours float64
	HorizonDays   int
	MaxResults    int
	// ExcludeID drops an appointment being rescheduled from the busy set.
	ExcludeID string
	// Skip, when set, is an hour slot that must not be offered again.
	Skip time.Time
}

// Candidates yields every start time the quick policy would consider, in
// chronological order: hourly slots on weekdays, never before the next full
// hour after now.
func Candidates(now time.Time, horizonDays int) iter.Seq[time.Time] {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizon
	}
	earliest := hourFloor(now)
	if !earliest.After(now) {
		earliest = earliest.Add(time.Hour)
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return func(yield func(time.Time) bool) {
		for i := 0; i < horizonDays; i++ {
			d := day.AddDate(0, 0, i)
			if weekdayIndex(d) >= 5 {
				continue
			}
			for h := QuickFirstHour; h <= QuickLastHour; h++ {
				slot := time.Date(d.Year(), d.Month(), d.Day(), h, 0, 0, 0, d.Location())
				if slot.Before(earliest) {
					continue
				}
				if !yield(slot) {
					return
				}
			}
		}
	}
}

func hourFloor(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// weekdayIndex numbers days from Monday = 0.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Suggest returns up to MaxResults conflict-free starts for the technician.
// Bookings are loaded once for the whole horizon.
func Suggest(ctx context.Context, finder ConflictFinder, req QuickRequest, now time.Time) ([]time.Time, error) {
	if req.DurationHours <= 0 {
		return nil, model.Invalid("duration", "must be positive")
	}
	horizon := req.HorizonDays
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	max := req.MaxResults
	if max <= 0 {
		max = DefaultMaxResult
	}
	duration := model.HoursToDuration(req.DurationHours)

	windowStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	windowEnd := windowStart.AddDate(0, 0, horizon+1)
	booked, err := finder.Find(ctx, req.TechnicianID, windowStart, windowEnd, req.ExcludeID)
	if err != nil {
		return nil, err
	}
	busy := BusyIntervals(booked, 0)

	skip := hourFloor(req.Skip)
	var out []time.Time
	for slot := range Candidates(now, horizon) {
		if !req.Skip.IsZero() && slot.Equal(skip) {
			continue
		}
		if overlapsAny(slot, slot.Add(duration), busy) {
			continue
		}
		out = append(out, slot)
		if len(out) >= max {
			break
		}
	}
	return out, nil
}
