package settings

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
)

// ParseWorkingDays parses a comma separated list of ISO weekdays (1 = Monday).
func ParseWorkingDays(raw string) ([]int, error) {
	var days []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return nil, model.Invalid("working_days", fmt.Sprintf("%q is not a number", part))
		}
		if d < 1 || d > 7 {
			return nil, model.Invalid("working_days", fmt.Sprintf("%d is outside 1-7", d))
		}
		if !slices.Contains(days, d) {
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		return nil, model.Invalid("working_days", "at least one day is required")
	}
	slices.Sort(days)
	return days, nil
}

func isoWeekday(t time.Time) int {
	if t.Weekday() == time.Sunday {
		return 7
	}
	return int(t.Weekday())
}

func hourOfDay(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
}

// IsWorkingDay reports whether t falls on one of the configured days.
// A malformed day list matches nothing.
func IsWorkingDay(s model.Settings, t time.Time) bool {
	days, err := ParseWorkingDays(s.WorkingDays)
	if err != nil {
		return false
	}
	return slices.Contains(days, isoWeekday(t))
}

// IsWorkingHour is inclusive at both ends.
func IsWorkingHour(s model.Settings, t time.Time) bool {
	h := hourOfDay(t)
	return s.WorkingHoursStart <= h && h <= s.WorkingHoursEnd
}

// WithinWorkingHours reports whether [start,end) sits inside a single
// working day's hours.
func WithinWorkingHours(s model.Settings, start, end time.Time) bool {
	if !IsWorkingDay(s, start) || !IsWorkingHour(s, start) {
		return false
	}
	y1, m1, d1 := start.Date()
	y2, m2, d2 := end.Date()
	sameDay := y1 == y2 && m1 == m2 && d1 == d2
	if !sameDay {
		return false
	}
	return hourOfDay(end) <= s.WorkingHoursEnd
}

func WithinBookingHorizon(s model.Settings, start, now time.Time) bool {
	return !start.After(now.AddDate(0, 0, s.AdvanceBookingDays))
}

// Check lists every policy the proposed booking breaks. dailyCount is the
// number of bookings the technician already holds on that day.
func Check(s model.Settings, start time.Time, durationHours float64, now time.Time, dailyCount int) []string {
	end := start.Add(model.HoursToDuration(durationHours))
	var out []string
	if !IsWorkingDay(s, start) {
		out = append(out, fmt.Sprintf("%s is not a working day", start.Weekday()))
	} else if !WithinWorkingHours(s, start, end) {
		out = append(out, fmt.Sprintf("%s-%s is outside working hours %s-%s",
			start.Format("15:04"), end.Format("15:04"),
			formatHour(s.WorkingHoursStart), formatHour(s.WorkingHoursEnd)))
	}
	if !WithinBookingHorizon(s, start, now) {
		out = append(out, fmt.Sprintf("bookings are only accepted %d days ahead", s.AdvanceBookingDays))
	}
	if s.MaxDailyAppointments > 0 && dailyCount >= s.MaxDailyAppointments {
		out = append(out, fmt.Sprintf("technician already has %d appointments that day (max %d)", dailyCount, s.MaxDailyAppointments))
	}
	return out
}

func formatHour(h float64) string {
	whole := math.Floor(h)
	return fmt.Sprintf("%02d:%02d", int(whole), int(math.Round((h-whole)*60)))
}

// Validate enforces the invariants every stored record must satisfy.
func Validate(s model.Settings) error {
	if s.WorkingHoursStart < 0 || s.WorkingHoursStart > 24 {
		return model.Invalid("working_hours_start", "must be between 0 and 24")
	}
	if s.WorkingHoursEnd < 0 || s.WorkingHoursEnd > 24 {
		return model.Invalid("working_hours_end", "must be between 0 and 24")
	}
	if s.WorkingHoursStart >= s.WorkingHoursEnd {
		return model.Invalid("working_hours_start", "must be before working_hours_end")
	}
	if _, err := ParseWorkingDays(s.WorkingDays); err != nil {
		return err
	}
	if s.MaxDailyAppointments <= 0 {
		return model.Invalid("max_daily_appointments", "must be positive")
	}
	if s.DefaultDurationHours <= 0 {
		return model.Invalid("default_duration", "must be positive")
	}
	if s.AdvanceBookingDays <= 0 {
		return model.Invalid("advance_booking_days", "must be positive")
	}
	if s.BufferHours < 0 {
		return model.Invalid("buffer_time", "must not be negative")
	}
	return nil
}
