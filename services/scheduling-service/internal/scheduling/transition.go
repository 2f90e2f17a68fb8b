package scheduling

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/locks"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var transitionEvents = map[lifecycle.Action]string{
	lifecycle.ActionConfirm:  "confirmed",
	lifecycle.ActionStart:    "started",
	lifecycle.ActionComplete: "completed",
}

func (s *Service) Confirm(ctx context.Context, actor lifecycle.Actor, id string) (model.Appointment, error) {
	return s.transition(ctx, actor, id, lifecycle.ActionConfirm)
}

func (s *Service) Start(ctx context.Context, actor lifecycle.Actor, id string) (model.Appointment, error) {
	return s.transition(ctx, actor, id, lifecycle.ActionStart)
}

func (s *Service) Complete(ctx context.Context, actor lifecycle.Actor, id string) (model.Appointment, error) {
	return s.transition(ctx, actor, id, lifecycle.ActionComplete)
}

// transition moves an appointment along the state machine. Confirming makes
// a draft block the calendar, so it re-runs the conflict check under the
// technician lock.
func (s *Service) transition(ctx context.Context, actor lifecycle.Actor, id string, action lifecycle.Action) (model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling."+string(action), trace.WithAttributes(attribute.String("appointment_id", id)))
	defer span.End()

	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if !actor.CanEditField(appt, lifecycle.FieldStatus, s.Now()) {
		if appt.Status.Terminal() && actor.CanEdit(appt) {
			return model.Appointment{}, &model.StateError{Op: string(action), Status: appt.Status}
		}
		return model.Appointment{}, &model.PermissionError{UserID: actor.ID, Action: string(action) + " appointment " + appt.Reference}
	}
	if _, err := lifecycle.Next(appt.Status, action); err != nil {
		return model.Appointment{}, err
	}

	var rel locks.Release
	if action == lifecycle.ActionConfirm {
		if rel, err = s.lockTechnicians(ctx, appt.TechnicianID); err != nil {
			return model.Appointment{}, err
		}
	}

	var before, after model.Appointment
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		cur, err := s.store.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := lifecycle.Next(cur.Status, action)
		if err != nil {
			return err
		}
		if action == lifecycle.ActionConfirm {
			if err := s.detector.Check(ctx, cur.TechnicianID, cur.ScheduledStart, cur.End(), cur.ID); err != nil {
				return err
			}
		}
		before, after = cur, cur
		after.Status = next
		after.UpdatedAt = s.Now()
		if err := s.store.Update(ctx, after); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		return s.audit(ctx, id, actor.ID, lifecycle.Diff(before, after).AuditText())
	})
	if rel != nil {
		s.unlock(ctx, rel)
	}
	if err != nil {
		return model.Appointment{}, err
	}

	s.logger.Info("appointment status changed", "appointment_id", id, "from", before.Status, "to", after.Status)
	after = s.applyChangeEffects(ctx, after, lifecycle.Diff(before, after))
	s.emit(ctx, transitionEvents[action], after)
	return after, nil
}
