package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/locks"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/settings"
)

// ErrBusy means another request is changing the same technician's calendar.
var ErrBusy = errors.New("technician calendar is busy, retry shortly")

// ResolveActor loads the capabilities of userID.
func (s *Service) ResolveActor(ctx context.Context, userID string) (lifecycle.Actor, error) {
	if userID == "" {
		return lifecycle.Actor{}, &model.PermissionError{Action: "use the scheduler without signing in"}
	}
	mgr, err := s.identity.HasCapability(ctx, userID, model.CapabilityManager)
	if err != nil {
		return lifecycle.Actor{}, fmt.Errorf("check manager capability: %w", err)
	}
	tech, err := s.identity.HasCapability(ctx, userID, model.CapabilityTechnician)
	if err != nil {
		return lifecycle.Actor{}, fmt.Errorf("check technician capability: %w", err)
	}
	return lifecycle.Actor{ID: userID, Manager: mgr, Technician: tech}, nil
}

func (s *Service) requireTechnician(ctx context.Context, technicianID string) error {
	if strings.TrimSpace(technicianID) == "" {
		return model.Invalid("technician_id", "is required")
	}
	ok, err := s.identity.HasCapability(ctx, technicianID, model.CapabilityTechnician)
	if err != nil {
		return fmt.Errorf("check technician capability: %w", err)
	}
	if !ok {
		return &model.PermissionError{UserID: technicianID, Action: "be assigned support appointments"}
	}
	return nil
}

func (s *Service) lockTechnicians(ctx context.Context, ids ...string) (locks.Release, error) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, locks.TechnicianKey(id))
	}
	rel, err := locks.AcquireAll(ctx, s.locker, keys...)
	if errors.Is(err, locks.ErrNotAcquired) {
		return nil, ErrBusy
	}
	return rel, err
}

func (s *Service) unlock(ctx context.Context, rel locks.Release) {
	if err := rel(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("release technician lock failed", "err", err)
	}
}

// checkPolicy applies the technician's settings to a proposed booking. The
// violations are returned as warnings unless enforcement is on.
func (s *Service) checkPolicy(ctx context.Context, technicianID string, start time.Time, durationHours float64, excludeID string) ([]string, error) {
	cfg, err := s.settings.Resolve(ctx, technicianID)
	if err != nil {
		return nil, err
	}
	local := start.In(s.cfg.Location)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.Location)
	count, err := s.store.CountOnDay(ctx, technicianID, dayStart, dayStart.AddDate(0, 0, 1), excludeID)
	if err != nil {
		return nil, fmt.Errorf("count daily appointments: %w", err)
	}
	violations := settings.Check(cfg, local, durationHours, s.Now(), count)
	if len(violations) > 0 && s.cfg.EnforceWorkingHours {
		return nil, model.Invalid("scheduled_start", strings.Join(violations, "; "))
	}
	return violations, nil
}

func (s *Service) audit(ctx context.Context, appointmentID, actorID, body string) error {
	if body == "" {
		return nil
	}
	err := s.store.AppendHistory(ctx, model.HistoryEntry{
		ID:            uuid.NewString(),
		AppointmentID: appointmentID,
		ActorID:       actorID,
		Body:          body,
		CreatedAt:     s.Now(),
	})
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *Service) loadEditable(ctx context.Context, actor lifecycle.Actor, id string, f lifecycle.Field, action string) (model.Appointment, error) {
	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if !actor.CanEdit(appt) {
		return model.Appointment{}, &model.PermissionError{UserID: actor.ID, Action: action + " appointment " + appt.Reference}
	}
	if appt.Status.Terminal() {
		return model.Appointment{}, &model.StateError{Op: action, Status: appt.Status}
	}
	if !actor.CanEditField(appt, f, s.Now()) {
		return model.Appointment{}, &model.PermissionError{UserID: actor.ID, Action: action + " appointment " + appt.Reference}
	}
	return appt, nil
}

func validateDuration(h float64) error {
	if h <= 0 {
		return model.Invalid("duration", "must be positive")
	}
	return nil
}
