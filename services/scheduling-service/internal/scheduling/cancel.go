package scheduling

import (
	"context"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/notify"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type CancelRequest struct {
	Reason    model.CancelReason
	Detail    string
	Overrides lifecycle.Overrides
	// Acknowledge confirms cancelling work that is already in progress.
	Acknowledge bool
	// Replace asks for a prefilled draft to book a replacement.
	Replace bool
}

type CancelResult struct {
	Appointment model.Appointment
	Options     model.CancelOptions
	Replacement *CreateRequest
}

func (s *Service) Cancel(ctx context.Context, actor lifecycle.Actor, id string, req CancelRequest) (CancelResult, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.Cancel", trace.WithAttributes(
		attribute.String("appointment_id", id),
		attribute.String("reason", string(req.Reason)),
	))
	defer span.End()

	appt, err := s.loadEditable(ctx, actor, id, lifecycle.FieldStatus, "cancel")
	if err != nil {
		return CancelResult{}, err
	}
	if !req.Reason.Valid() {
		return CancelResult{}, model.Invalid("reason", "must be one of the cancellation reasons")
	}
	if appt.Status == model.StatusInProgress && !req.Acknowledge {
		return CancelResult{}, &model.WarningError{Warnings: []string{
			"appointment " + appt.Reference + " is in progress; resubmit with acknowledge to cancel it",
		}}
	}
	opts := req.Overrides.Apply(lifecycle.CancelDefaults(req.Reason))
	detail := strings.TrimSpace(req.Detail)

	var after model.Appointment
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		cur, err := s.store.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := lifecycle.Next(cur.Status, lifecycle.ActionCancel)
		if err != nil {
			return err
		}
		if cur.Status == model.StatusInProgress && !req.Acknowledge {
			return &model.WarningError{Warnings: []string{"appointment " + cur.Reference + " is in progress"}}
		}
		now := s.Now()
		after = cur
		after.Status = next
		after.CancelReason = req.Reason
		after.CancelDetail = detail
		after.CancelledAt = &now
		after.UpdatedAt = now
		if err := s.store.Update(ctx, after); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		return s.audit(ctx, id, actor.ID, lifecycle.CancelAuditText(req.Reason, detail, opts))
	})
	if err != nil {
		return CancelResult{}, err
	}

	s.logger.Info("appointment cancelled", "appointment_id", id, "reason", req.Reason, "refund_required", opts.RefundRequired)
	after = s.syncTicket(ctx, after)
	vars := map[string]string{"reason": req.Reason.Label(), "detail": detail}
	if opts.NotifyCustomer {
		s.sendTemplate(ctx, notify.TemplateCancellation, after, vars)
	}
	if opts.NotifyTechnician {
		s.notifyUser(ctx, after.TechnicianID, after,
			fmt.Sprintf("Appointment %s has been cancelled. Reason: %s", after.Reference, req.Reason.Label()))
	}
	if opts.RefundRequired {
		note := fmt.Sprintf("Refund required for cancelled appointment %s (%s)", after.Reference, req.Reason.Label())
		if err := s.notifier.RequestFollowUp(ctx, s.cfg.FollowUpRole, after, note); err != nil {
			s.logger.Warn("refund follow-up failed", "appointment_id", id, "err", err)
		}
	}
	s.emit(ctx, "cancelled", after)

	res := CancelResult{Appointment: after, Options: opts}
	if req.Replace {
		res.Replacement = ReplacementTemplate(after)
	}
	return res, nil
}

// ReplacementTemplate prefills a draft for rebooking a cancelled appointment.
func ReplacementTemplate(cancelled model.Appointment) *CreateRequest {
	d := cancelled.DurationHours
	return &CreateRequest{
		CustomerID:    cancelled.CustomerID,
		TechnicianID:  cancelled.TechnicianID,
		DurationHours: &d,
		Priority:      cancelled.Priority,
		Location:      cancelled.Location,
		Description:   "Replacement for cancelled appointment " + cancelled.Reference,
	}
}
