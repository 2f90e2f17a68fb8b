package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/locks"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
)

// Patch lists field edits; nil fields are left alone. Status changes go
// through the transition operations.
type Patch struct {
	CustomerID    *string
	TechnicianID  *string
	Start         *time.Time
	DurationHours *float64
	Priority      *model.Priority
	Description   *string
	Location      *string
	SendReminder  *bool

	// Acknowledge confirms editing an appointment whose start has passed.
	Acknowledge bool
}

func (p Patch) apply(a model.Appointment) model.Appointment {
	if p.CustomerID != nil {
		a.CustomerID = strings.TrimSpace(*p.CustomerID)
	}
	if p.TechnicianID != nil {
		a.TechnicianID = strings.TrimSpace(*p.TechnicianID)
	}
	if p.Start != nil {
		a.ScheduledStart = *p.Start
	}
	if p.DurationHours != nil {
		a.DurationHours = *p.DurationHours
	}
	if p.Priority != nil {
		a.Priority = *p.Priority
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.Location != nil {
		a.Location = *p.Location
	}
	if p.SendReminder != nil {
		a.SendReminder = *p.SendReminder
	}
	return a
}

// touched lists the fields the patch sets, tracked or not.
func (p Patch) touched() []lifecycle.Field {
	var out []lifecycle.Field
	if p.CustomerID != nil {
		out = append(out, lifecycle.FieldCustomer)
	}
	if p.TechnicianID != nil {
		out = append(out, lifecycle.FieldTechnician)
	}
	if p.Start != nil {
		out = append(out, lifecycle.FieldScheduledStart)
	}
	if p.DurationHours != nil {
		out = append(out, lifecycle.FieldDuration)
	}
	if p.Priority != nil || p.Description != nil || p.Location != nil || p.SendReminder != nil {
		out = append(out, lifecycle.FieldDetails)
	}
	return out
}

type UpdateResult struct {
	Appointment model.Appointment
	Changes     lifecycle.ChangeSet
	Warnings    []string
}

// Update edits an appointment in place, re-validating the schedule when the
// start, duration or technician changes. Any schedule change must land in
// the future, and other edits of a past appointment need Acknowledge.
func (s *Service) Update(ctx context.Context, actor lifecycle.Actor, id string, p Patch) (UpdateResult, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.Update")
	defer span.End()

	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return UpdateResult{}, err
	}
	if !actor.CanEdit(appt) {
		return UpdateResult{}, &model.PermissionError{UserID: actor.ID, Action: "edit appointment " + appt.Reference}
	}
	now := s.Now()
	for _, f := range p.touched() {
		if !actor.CanEditField(appt, f, now) {
			if appt.Status.Terminal() {
				return UpdateResult{}, &model.StateError{Op: "edit " + string(f) + " of", Status: appt.Status}
			}
			return UpdateResult{}, &model.PermissionError{UserID: actor.ID, Action: "edit " + string(f) + " of appointment " + appt.Reference}
		}
	}

	proposed := p.apply(appt)
	if proposed.CustomerID == "" {
		return UpdateResult{}, model.Invalid("customer_id", "is required")
	}
	if !proposed.Priority.Valid() {
		return UpdateResult{}, model.Invalid("priority", "must be low, normal, high or urgent")
	}
	if err := validateDuration(proposed.DurationHours); err != nil {
		return UpdateResult{}, err
	}
	cs := lifecycle.Diff(appt, proposed)
	schedule := cs.Has(lifecycle.FieldScheduledStart) || cs.Has(lifecycle.FieldDuration) || cs.Has(lifecycle.FieldTechnician)

	var (
		warnings []string
		rel      locks.Release
	)
	if schedule && !proposed.ScheduledStart.After(now) {
		return UpdateResult{}, model.PastStart(proposed.ScheduledStart, now)
	}
	if len(p.touched()) > 0 && !appt.ScheduledStart.After(now) && !p.Acknowledge {
		return UpdateResult{}, &model.WarningError{Warnings: []string{
			"appointment " + appt.Reference + " is in the past; resubmit with acknowledge to edit it",
		}}
	}
	if cs.Has(lifecycle.FieldTechnician) {
		if err := s.requireTechnician(ctx, proposed.TechnicianID); err != nil {
			return UpdateResult{}, err
		}
	}
	if schedule {
		if warnings, err = s.checkPolicy(ctx, proposed.TechnicianID, proposed.ScheduledStart, proposed.DurationHours, id); err != nil {
			return UpdateResult{}, err
		}
		if rel, err = s.lockTechnicians(ctx, appt.TechnicianID, proposed.TechnicianID); err != nil {
			return UpdateResult{}, err
		}
	}

	var after model.Appointment
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		cur, err := s.store.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status != appt.Status && cur.Status.Terminal() {
			return &model.StateError{Op: "edit", Status: cur.Status}
		}
		after = p.apply(cur)
		after.ScheduledStart = after.ScheduledStart.In(s.cfg.Location)
		after.UpdatedAt = now
		if schedule {
			if err := s.detector.Check(ctx, after.TechnicianID, after.ScheduledStart, after.End(), cur.ID); err != nil {
				return err
			}
		}
		if err := s.store.Update(ctx, after); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		cs = lifecycle.Diff(cur, after)
		return s.audit(ctx, id, actor.ID, cs.AuditText())
	})
	if rel != nil {
		s.unlock(ctx, rel)
	}
	if err != nil {
		return UpdateResult{}, err
	}

	after = s.applyChangeEffects(ctx, after, cs)
	if len(cs) > 0 {
		s.emit(ctx, "updated", after)
	}
	return UpdateResult{Appointment: after, Changes: cs, Warnings: warnings}, nil
}

// EditWarnings lists the non-blocking concerns about applying p: editing
// history, touching work in progress, and calendar collisions.
func (s *Service) EditWarnings(ctx context.Context, actor lifecycle.Actor, id string, p Patch) ([]string, error) {
	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanView(appt) {
		return nil, &model.PermissionError{UserID: actor.ID, Action: "view appointment " + appt.Reference}
	}
	var warnings []string
	if !appt.ScheduledStart.After(s.Now()) {
		warnings = append(warnings, "This appointment is in the past. Editing may affect historical records.")
	}
	if appt.Status == model.StatusInProgress {
		warnings = append(warnings, "This appointment is currently in progress. Changes may affect ongoing work.")
	}
	if p.Start != nil || p.TechnicianID != nil || p.DurationHours != nil {
		proposed := p.apply(appt)
		conflicts, err := s.detector.Find(ctx, proposed.TechnicianID, proposed.ScheduledStart, proposed.End(), appt.ID)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			refs := make([]string, 0, len(conflicts))
			for _, c := range conflicts {
				refs = append(refs, c.Reference)
			}
			warnings = append(warnings, "Scheduling conflict detected with appointments: "+strings.Join(refs, ", "))
		}
	}
	return warnings, nil
}
