package scheduling

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
)

func (s *Service) Get(ctx context.Context, actor lifecycle.Actor, id string) (model.Appointment, error) {
	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if !actor.CanView(appt) {
		return model.Appointment{}, &model.PermissionError{UserID: actor.ID, Action: "view appointment " + appt.Reference}
	}
	return appt, nil
}

// List returns the calendar. Technicians only ever see their own bookings.
func (s *Service) List(ctx context.Context, actor lifecycle.Actor, f model.ListFilter) ([]model.Appointment, error) {
	if !actor.Manager {
		if !actor.Technician {
			return nil, &model.PermissionError{UserID: actor.ID, Action: "view the appointment calendar"}
		}
		f.TechnicianID = actor.ID
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 200
	}
	return s.store.List(ctx, f)
}

func (s *Service) History(ctx context.Context, actor lifecycle.Actor, id string) ([]model.HistoryEntry, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, id)
}

// PreviewConflicts is the non-blocking form of the conflict check used
// while a booking is being entered.
func (s *Service) PreviewConflicts(ctx context.Context, technicianID string, start time.Time, durationHours float64, excludeID string) ([]model.Appointment, error) {
	if err := validateDuration(durationHours); err != nil {
		return nil, err
	}
	return s.detector.Find(ctx, technicianID, start, start.Add(model.HoursToDuration(durationHours)), excludeID)
}

type SlotPolicy string

const (
	PolicyQuick    SlotPolicy = "quick"
	PolicySettings SlotPolicy = "settings"
)

type SlotQuery struct {
	TechnicianID  string
	DurationHours float64
	HorizonDays   int
	MaxResults    int
	// AppointmentID suggests new times for an existing booking: it is left
	// out of the busy set and its current slot is not offered again.
	AppointmentID string
	Policy        SlotPolicy
}

// SuggestSlots finds free start times. The quick policy scans a fixed
// weekday calendar; the settings policy honours the technician's working
// days, hours, buffer and horizon.
func (s *Service) SuggestSlots(ctx context.Context, q SlotQuery) ([]time.Time, error) {
	var skip time.Time
	if q.AppointmentID != "" {
		appt, err := s.store.Get(ctx, q.AppointmentID)
		if err != nil {
			return nil, err
		}
		if q.TechnicianID == "" {
			q.TechnicianID = appt.TechnicianID
		}
		if q.DurationHours == 0 {
			q.DurationHours = appt.DurationHours
		}
		skip = appt.ScheduledStart.In(s.cfg.Location)
	}
	if q.TechnicianID == "" {
		return nil, model.Invalid("technician_id", "is required")
	}
	now := s.Now()

	if q.Policy == PolicySettings {
		cfg, err := s.settings.Resolve(ctx, q.TechnicianID)
		if err != nil {
			return nil, err
		}
		if q.DurationHours == 0 {
			q.DurationHours = cfg.DefaultDurationHours
		}
		if err := validateDuration(q.DurationHours); err != nil {
			return nil, err
		}
		horizon := q.HorizonDays
		if horizon <= 0 {
			horizon = availability.DefaultHorizon
		}
		max := q.MaxResults
		if max <= 0 {
			max = availability.DefaultMaxResult
		}
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		booked, err := s.detector.Find(ctx, q.TechnicianID, dayStart, dayStart.AddDate(0, 0, horizon+1), q.AppointmentID)
		if err != nil {
			return nil, err
		}
		return availability.WorkingSlots(cfg, now, horizon, model.HoursToDuration(q.DurationHours), time.Hour, booked, now, max), nil
	}

	if q.DurationHours == 0 {
		q.DurationHours = 1
	}
	return availability.Suggest(ctx, s.detector, availability.QuickRequest{
		TechnicianID:  q.TechnicianID,
		DurationHours: q.DurationHours,
		HorizonDays:   q.HorizonDays,
		MaxResults:    q.MaxResults,
		ExcludeID:     q.AppointmentID,
		Skip:          skip,
	}, now)
}

// AvailableTechnicians lists capability holders with no blocking booking
// overlapping [start, start+duration).
func (s *Service) AvailableTechnicians(ctx context.Context, start time.Time, durationHours float64) ([]string, error) {
	if err := validateDuration(durationHours); err != nil {
		return nil, err
	}
	ids, err := s.identity.ListWithCapability(ctx, model.CapabilityTechnician)
	if err != nil {
		return nil, err
	}
	end := start.Add(model.HoursToDuration(durationHours))
	var free []string
	for _, id := range ids {
		conflicts, err := s.detector.Find(ctx, id, start, end, "")
		if err != nil {
			return nil, err
		}
		if len(conflicts) == 0 {
			free = append(free, id)
		}
	}
	return free, nil
}

type StatusStats struct {
	From     time.Time
	To       time.Time
	Total    int
	ByStatus map[model.Status]int
}

// WeeklyStats counts appointments scheduled in the trailing seven days.
func (s *Service) WeeklyStats(ctx context.Context) (StatusStats, error) {
	to := s.Now()
	from := to.AddDate(0, 0, -7)
	counts, err := s.store.CountByStatus(ctx, from, to)
	if err != nil {
		return StatusStats{}, err
	}
	st := StatusStats{From: from, To: to, ByStatus: map[model.Status]int{}}
	for _, status := range []model.Status{model.StatusDraft, model.StatusConfirmed, model.StatusInProgress, model.StatusCompleted, model.StatusCancelled} {
		st.ByStatus[status] = counts[status]
		st.Total += counts[status]
	}
	return st, nil
}

// CancellationStats counts cancellations by reason for bookings scheduled
// in [from, to).
func (s *Service) CancellationStats(ctx context.Context, from, to time.Time) (map[model.CancelReason]int, error) {
	if !to.After(from) {
		return nil, model.Invalid("to", "must be after from")
	}
	counts, err := s.store.CountCancellations(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[model.CancelReason]int, len(model.CancelReasons))
	for _, r := range model.CancelReasons {
		out[r] = counts[r]
	}
	return out, nil
}
