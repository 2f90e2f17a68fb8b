package scheduling

import (
	"context"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/notify"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/tickets"
)

// Side effects run after the scheduling decision has committed. Their
// failures are logged and never undo the decision.

func (s *Service) ensureTicket(ctx context.Context, appt model.Appointment) model.Appointment {
	if appt.TicketID != "" {
		return appt
	}
	id, err := s.tickets.CreateTicket(ctx, tickets.NewTicket{
		Title:        "Support Appointment: " + appt.Reference,
		CustomerID:   appt.CustomerID,
		TechnicianID: appt.TechnicianID,
		Description:  appt.Description,
	})
	if err != nil {
		s.logger.Warn("ticket creation failed", "appointment_id", appt.ID, "err", err)
		return appt
	}
	if id == "" {
		return appt
	}
	if err := s.store.SetTicket(ctx, appt.ID, id); err != nil {
		s.logger.Warn("link ticket failed", "appointment_id", appt.ID, "ticket_id", id, "err", err)
		return appt
	}
	appt.TicketID = id
	s.logger.Info("created helpdesk ticket", "appointment_id", appt.ID, "ticket_id", id)
	return appt
}

func (s *Service) syncTicket(ctx context.Context, appt model.Appointment) model.Appointment {
	appt = s.ensureTicket(ctx, appt)
	if appt.TicketID == "" {
		return appt
	}
	keyword := lifecycle.TicketStage(appt.Status)
	found, err := s.tickets.SetTicketStage(ctx, appt.TicketID, keyword)
	switch {
	case err != nil:
		s.logger.Warn("ticket stage sync failed", "appointment_id", appt.ID, "ticket_id", appt.TicketID, "err", err)
	case !found:
		s.logger.Info("no ticket stage matches", "appointment_id", appt.ID, "stage", keyword)
	}
	return appt
}

// sendConfirmation claims the confirmation flag and queues the email in
// one transaction, so the email goes out at most once.
func (s *Service) sendConfirmation(ctx context.Context, appt model.Appointment) {
	if !appt.SendConfirmation || appt.ConfirmationSent {
		return
	}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		claimed, err := s.store.MarkConfirmationSent(ctx, appt.ID)
		if err != nil || !claimed {
			return err
		}
		return s.notifier.SendTemplate(ctx, notify.TemplateConfirmation, appt, nil)
	})
	if err != nil {
		s.logger.Warn("confirmation email failed", "appointment_id", appt.ID, "err", err)
	}
}

func (s *Service) sendTemplate(ctx context.Context, tpl notify.Template, appt model.Appointment, vars map[string]string) {
	if err := s.notifier.SendTemplate(ctx, tpl, appt, vars); err != nil {
		s.logger.Warn("email request failed", "appointment_id", appt.ID, "template", tpl, "err", err)
	}
}

func (s *Service) notifyUser(ctx context.Context, userID string, appt model.Appointment, text string) {
	if userID == "" {
		return
	}
	if err := s.notifier.NotifyUser(ctx, userID, appt, text); err != nil {
		s.logger.Warn("user notification failed", "appointment_id", appt.ID, "user_id", userID, "err", err)
	}
}

func (s *Service) emit(ctx context.Context, kind string, appt model.Appointment) {
	if err := s.notifier.Lifecycle(ctx, kind, appt); err != nil {
		s.logger.Warn("lifecycle event failed", "appointment_id", appt.ID, "event", kind, "err", err)
	}
}

// applyChangeEffects runs the per-field effects of an edit.
func (s *Service) applyChangeEffects(ctx context.Context, after model.Appointment, cs lifecycle.ChangeSet) model.Appointment {
	effects := cs.Effects()
	if effects.Has(lifecycle.EffectTicketSync) {
		after = s.syncTicket(ctx, after)
	}
	if effects.Has(lifecycle.EffectNotifyTechnician) {
		s.notifyUser(ctx, after.TechnicianID, after, "You have been assigned to appointment "+after.Reference)
		if after.SendConfirmation && after.Status.Blocking() {
			s.sendTemplate(ctx, notify.TemplateUpdate, after, nil)
		}
	}
	return after
}
