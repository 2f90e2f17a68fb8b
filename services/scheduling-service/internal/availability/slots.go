package availability

import (
	"time"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/settings"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// BusyIntervals turns bookings into intervals widened by buffer on both
// sides, so back-to-back bookings keep travel time between them.
func BusyIntervals(appts []model.Appointment, buffer time.Duration) []Interval {
	out := make([]Interval, 0, len(appts))
	for _, a := range appts {
		out = append(out, Interval{Start: a.ScheduledStart.Add(-buffer), End: a.End().Add(buffer)})
	}
	return out
}

// AvailableSlots returns slot start times within [windowStart, windowEnd) where a booking of
// length duration would not overlap any of the busy intervals.
//
// All times are expected to be in the same location (timezone).
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) || windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if !t.After(now) {
			continue
		}
		if !overlapsAny(t, t.Add(duration), busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if model.Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// WorkingSlots applies the configurable policy: the technician's working
// days and hours, the buffer around existing bookings, the daily cap and
// the booking horizon. It scans days starting at from's date. A day offers
// at most as many slots as it has capacity left.
func WorkingSlots(s model.Settings, from time.Time, days int, duration, step time.Duration, booked []model.Appointment, now time.Time, max int) []time.Time {
	busy := BusyIntervals(booked, model.HoursToDuration(s.BufferHours))
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	perDay := bookingsPerDay(booked, from.Location())

	var out []time.Time
	for i := 0; i < days; i++ {
		d := day.AddDate(0, 0, i)
		if !settings.IsWorkingDay(s, d) {
			continue
		}
		left := s.MaxDailyAppointments - perDay[d.Format(time.DateOnly)]
		if s.MaxDailyAppointments > 0 && left <= 0 {
			continue
		}
		open := d.Add(model.HoursToDuration(s.WorkingHoursStart))
		closing := d.Add(model.HoursToDuration(s.WorkingHoursEnd))
		offered := 0
		for _, slot := range AvailableSlots(open, closing, duration, step, busy, now) {
			if !settings.WithinBookingHorizon(s, slot, now) {
				return out
			}
			out = append(out, slot)
			if max > 0 && len(out) >= max {
				return out
			}
			offered++
			if s.MaxDailyAppointments > 0 && offered >= left {
				break
			}
		}
	}
	return out
}

// bookingsPerDay counts non-cancelled bookings by local start date.
func bookingsPerDay(booked []model.Appointment, loc *time.Location) map[string]int {
	out := make(map[string]int)
	for _, a := range booked {
		if a.Status == model.StatusCancelled {
			continue
		}
		out[a.ScheduledStart.In(loc).Format(time.DateOnly)]++
	}
	return out
}
