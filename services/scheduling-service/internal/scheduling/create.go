package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type CreateRequest struct {
	CustomerID    string
	TechnicianID  string
	Start         time.Time
	DurationHours *float64
	Priority      model.Priority
	Description   string
	Location      string
	TicketID      string
	CreatedVia    model.CreatedVia
	// Nil toggles fall back to the settings email defaults.
	SendConfirmation *bool
	SendReminder     *bool
}

type CreateResult struct {
	Appointment model.Appointment
	Warnings    []string
}

// Create validates and books a new draft appointment, then links a ticket
// and queues the confirmation email.
func (s *Service) Create(ctx context.Context, actor lifecycle.Actor, req CreateRequest) (CreateResult, error) {
	ctx, span := s.tracer.Start(ctx, "scheduling.Create", trace.WithAttributes(attribute.String("technician_id", req.TechnicianID)))
	defer span.End()

	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.TechnicianID = strings.TrimSpace(req.TechnicianID)
	if req.CustomerID == "" {
		return CreateResult{}, model.Invalid("customer_id", "is required")
	}
	if req.TechnicianID == "" {
		return CreateResult{}, model.Invalid("technician_id", "is required")
	}
	if !actor.Manager && !(actor.Technician && actor.ID == req.TechnicianID) {
		return CreateResult{}, &model.PermissionError{UserID: actor.ID, Action: "book appointments for " + req.TechnicianID}
	}
	if req.Priority == "" {
		req.Priority = model.PriorityNormal
	}
	if !req.Priority.Valid() {
		return CreateResult{}, model.Invalid("priority", "must be low, normal, high or urgent")
	}
	if req.CreatedVia == "" {
		req.CreatedVia = model.CreatedViaInternal
	}
	if !req.CreatedVia.Valid() {
		return CreateResult{}, model.Invalid("created_via", "must be internal, api or automation")
	}

	cfg, err := s.settings.Resolve(ctx, req.TechnicianID)
	if err != nil {
		return CreateResult{}, err
	}
	duration := cfg.DefaultDurationHours
	if req.DurationHours != nil {
		duration = *req.DurationHours
	}
	if err := validateDuration(duration); err != nil {
		return CreateResult{}, err
	}
	now := s.Now()
	if !req.Start.After(now) {
		return CreateResult{}, model.PastStart(req.Start, now)
	}
	if err := s.requireTechnician(ctx, req.TechnicianID); err != nil {
		return CreateResult{}, err
	}
	warnings, err := s.checkPolicy(ctx, req.TechnicianID, req.Start, duration, "")
	if err != nil {
		return CreateResult{}, err
	}

	appt := model.Appointment{
		ID:               uuid.NewString(),
		CustomerID:       req.CustomerID,
		TechnicianID:     req.TechnicianID,
		TicketID:         strings.TrimSpace(req.TicketID),
		ScheduledStart:   req.Start.In(s.cfg.Location),
		DurationHours:    duration,
		Status:           model.StatusDraft,
		Priority:         req.Priority,
		Description:      req.Description,
		Location:         req.Location,
		CreatedVia:       req.CreatedVia,
		SendConfirmation: boolOr(req.SendConfirmation, cfg.AutoConfirmEmails),
		SendReminder:     boolOr(req.SendReminder, cfg.AutoReminderEmails),
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	rel, err := s.lockTechnicians(ctx, appt.TechnicianID)
	if err != nil {
		return CreateResult{}, err
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.detector.Check(ctx, appt.TechnicianID, appt.ScheduledStart, appt.End(), ""); err != nil {
			return err
		}
		ref, err := s.seq.NextReference(ctx)
		if err != nil {
			return fmt.Errorf("next reference: %w", err)
		}
		appt.Reference = ref
		if err := s.store.Insert(ctx, appt); err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		return s.audit(ctx, appt.ID, actor.ID, "Appointment "+ref+" created")
	})
	s.unlock(ctx, rel)
	if err != nil {
		return CreateResult{}, err
	}

	s.logger.Info("appointment created", "appointment_id", appt.ID, "reference", appt.Reference, "technician_id", appt.TechnicianID)
	appt = s.ensureTicket(ctx, appt)
	s.sendConfirmation(ctx, appt)
	s.emit(ctx, "created", appt)
	return CreateResult{Appointment: appt, Warnings: warnings}, nil
}

func boolOr(p *bool, fallback bool) bool {
	if p == nil {
		return fallback
	}
	return *p
}
