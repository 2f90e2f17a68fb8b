package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/outbox"
)

type Template string

const (
	TemplateConfirmation Template = "appointment_confirmation"
	TemplateReminder     Template = "appointment_reminder"
	TemplateUpdate       Template = "appointment_update"
	TemplateReschedule   Template = "appointment_reschedule"
	TemplateCancellation Template = "appointment_cancellation"
)

const (
	EventEmailRequested   = "support.email.requested.v1"
	EventUserNotification = "support.user.notification.v1"
	EventFollowUp         = "support.followup.requested.v1"
	EventWeeklyStats      = "support.stats.weekly.v1"
)

// AppointmentEvent names a lifecycle event, e.g. support.appointment.confirmed.v1.
func AppointmentEvent(kind string) string {
	return "support.appointment." + kind + ".v1"
}

type Writer interface {
	Insert(ctx context.Context, evt outbox.Event) error
}

// Outbox turns notifications into outbox rows; delivery happens downstream
// once the publisher ships them to Kafka.
type Outbox struct {
	w   Writer
	now func() time.Time
}

func NewOutbox(w Writer, now func() time.Time) *Outbox {
	if now == nil {
		now = time.Now
	}
	return &Outbox{w: w, now: now}
}

type appointmentPayload struct {
	AppointmentID  string    `json:"appointment_id"`
	Reference      string    `json:"reference"`
	CustomerID     string    `json:"customer_id"`
	TechnicianID   string    `json:"technician_id"`
	TicketID       string    `json:"ticket_id,omitempty"`
	Status         string    `json:"status"`
	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`
	Location       string    `json:"location,omitempty"`
}

func payloadOf(a model.Appointment) appointmentPayload {
	return appointmentPayload{
		AppointmentID:  a.ID,
		Reference:      a.Reference,
		CustomerID:     a.CustomerID,
		TechnicianID:   a.TechnicianID,
		TicketID:       a.TicketID,
		Status:         string(a.Status),
		ScheduledStart: a.ScheduledStart,
		ScheduledEnd:   a.End(),
		Location:       a.Location,
	}
}

type envelope struct {
	EventID    string    `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

func (o *Outbox) write(ctx context.Context, aggregateType, aggregateID, eventType string, data any) error {
	payload, err := json.Marshal(envelope{EventID: uuid.NewString(), OccurredAt: o.now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return o.w.Insert(ctx, outbox.Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
	})
}

// SendTemplate requests a templated email to the appointment's customer.
func (o *Outbox) SendTemplate(ctx context.Context, tpl Template, appt model.Appointment, vars map[string]string) error {
	return o.write(ctx, "appointment", appt.ID, EventEmailRequested, struct {
		Template    Template           `json:"template"`
		Appointment appointmentPayload `json:"appointment"`
		Vars        map[string]string  `json:"vars,omitempty"`
	}{tpl, payloadOf(appt), vars})
}

// NotifyUser posts an in-app notification to one user.
func (o *Outbox) NotifyUser(ctx context.Context, userID string, appt model.Appointment, text string) error {
	return o.write(ctx, "appointment", appt.ID, EventUserNotification, struct {
		UserID        string `json:"user_id"`
		AppointmentID string `json:"appointment_id"`
		Text          string `json:"text"`
	}{userID, appt.ID, text})
}

// RequestFollowUp raises a task for everyone holding role.
func (o *Outbox) RequestFollowUp(ctx context.Context, role string, appt model.Appointment, note string) error {
	return o.write(ctx, "appointment", appt.ID, EventFollowUp, struct {
		Role        string             `json:"role"`
		Note        string             `json:"note"`
		Appointment appointmentPayload `json:"appointment"`
	}{role, note, payloadOf(appt)})
}

// Lifecycle records a state change for downstream consumers.
func (o *Outbox) Lifecycle(ctx context.Context, kind string, appt model.Appointment) error {
	return o.write(ctx, "appointment", appt.ID, AppointmentEvent(kind), payloadOf(appt))
}

type WeeklyStats struct {
	From     time.Time      `json:"from"`
	To       time.Time      `json:"to"`
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

func (o *Outbox) PublishWeeklyStats(ctx context.Context, s WeeklyStats) error {
	return o.write(ctx, "stats", s.To.Format("2006-01-02"), EventWeeklyStats, s)
}
