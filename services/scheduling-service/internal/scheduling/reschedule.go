package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/notify"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type RescheduleRequest struct {
	NewStart time.Time
	// NewTechnicianID is optional; empty keeps the current technician.
	NewTechnicianID string
	Reason          string
	// Nil toggles default to true.
	NotifyCustomer   *bool
	NotifyTechnician *bool
}

type RescheduleResult struct {
	Appointment model.Appointment
	Warnings    []string
}

// Reschedule moves an appointment to a new start and optionally a new
// technician. Duration is kept.
func (s *Service) Reschedule(ctx context.Context, actor lifecycle.Actor, id string, req RescheduleRequest) (RescheduleResult, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.Reschedule", trace.WithAttributes(attribute.String("appointment_id", id)))
	defer span.End()

	appt, err := s.loadEditable(ctx, actor, id, lifecycle.FieldScheduledStart, "reschedule")
	if err != nil {
		return RescheduleResult{}, err
	}
	newTech := strings.TrimSpace(req.NewTechnicianID)
	if newTech == "" {
		newTech = appt.TechnicianID
	}
	techChanged := newTech != appt.TechnicianID
	if !techChanged && req.NewStart.Equal(appt.ScheduledStart) {
		return RescheduleResult{}, model.Invalid("new_start", "the new time is the same as the current one")
	}
	if techChanged && !actor.CanEditField(appt, lifecycle.FieldTechnician, s.Now()) {
		return RescheduleResult{}, &model.PermissionError{UserID: actor.ID, Action: "reassign appointment " + appt.Reference}
	}
	now := s.Now()
	if !req.NewStart.After(now) {
		return RescheduleResult{}, model.PastStart(req.NewStart, now)
	}
	if techChanged {
		if err := s.requireTechnician(ctx, newTech); err != nil {
			return RescheduleResult{}, err
		}
	}
	warnings, err := s.checkPolicy(ctx, newTech, req.NewStart, appt.DurationHours, appt.ID)
	if err != nil {
		return RescheduleResult{}, err
	}

	rel, err := s.lockTechnicians(ctx, appt.TechnicianID, newTech)
	if err != nil {
		return RescheduleResult{}, err
	}
	var before, after model.Appointment
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		cur, err := s.store.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status.Terminal() {
			return &model.StateError{Op: "reschedule", Status: cur.Status}
		}
		before, after = cur, cur
		after.ScheduledStart = req.NewStart.In(s.cfg.Location)
		after.TechnicianID = newTech
		after.UpdatedAt = now
		if err := s.detector.Check(ctx, newTech, after.ScheduledStart, after.End(), cur.ID); err != nil {
			return err
		}
		if err := s.store.Update(ctx, after); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		note := fmt.Sprintf("Appointment rescheduled from %s to %s",
			before.ScheduledStart.Format("2006-01-02 15:04"), after.ScheduledStart.Format("2006-01-02 15:04"))
		if techChanged {
			note += fmt.Sprintf("\nTechnician changed from %s to %s", before.TechnicianID, after.TechnicianID)
		}
		if r := strings.TrimSpace(req.Reason); r != "" {
			note += "\nReason: " + r
		}
		return s.audit(ctx, id, actor.ID, note)
	})
	s.unlock(ctx, rel)
	if err != nil {
		return RescheduleResult{}, err
	}

	s.logger.Info("appointment rescheduled", "appointment_id", id, "start", after.ScheduledStart, "technician_id", after.TechnicianID)
	if boolOr(req.NotifyCustomer, true) {
		s.sendTemplate(ctx, notify.TemplateReschedule, after, map[string]string{
			"reason":         req.Reason,
			"previous_start": before.ScheduledStart.Format(time.RFC3339),
		})
	}
	if techChanged && boolOr(req.NotifyTechnician, true) {
		s.notifyUser(ctx, newTech, after, "You have been assigned to rescheduled appointment "+after.Reference)
	}
	s.emit(ctx, "rescheduled", after)
	return RescheduleResult{Appointment: after, Warnings: warnings}, nil
}
