package handlers

import (
	"time"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/lifecycle"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
)

type appointmentItem struct {
	ID               string  `json:"id"`
	Reference        string  `json:"reference"`
	CustomerID       string  `json:"customer_id"`
	TechnicianID     string  `json:"technician_id"`
	TicketID         string  `json:"ticket_id,omitempty"`
	ScheduledStart   string  `json:"scheduled_start"`
	ScheduledEnd     string  `json:"scheduled_end"`
	DurationHours    float64 `json:"duration_hours"`
	Status           string  `json:"status"`
	StatusLabel      string  `json:"status_label"`
	Priority         string  `json:"priority"`
	Description      string  `json:"description,omitempty"`
	Location         string  `json:"location,omitempty"`
	CreatedVia       string  `json:"created_via"`
	SendConfirmation bool    `json:"send_confirmation"`
	SendReminder     bool    `json:"send_reminder"`
	ConfirmationSent bool    `json:"confirmation_sent"`
	ReminderSent     bool    `json:"reminder_sent"`
	Active           bool    `json:"active"`
	CancelReason     string  `json:"cancel_reason,omitempty"`
	CancelDetail     string  `json:"cancel_detail,omitempty"`
	CancelledAt      string  `json:"cancelled_at,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toItem(a model.Appointment) appointmentItem {
	item := appointmentItem{
		ID:               a.ID,
		Reference:        a.Reference,
		CustomerID:       a.CustomerID,
		TechnicianID:     a.TechnicianID,
		TicketID:         a.TicketID,
		ScheduledStart:   formatTime(a.ScheduledStart),
		ScheduledEnd:     formatTime(a.End()),
		DurationHours:    a.DurationHours,
		Status:           string(a.Status),
		StatusLabel:      a.Status.Label(),
		Priority:         string(a.Priority),
		Description:      a.Description,
		Location:         a.Location,
		CreatedVia:       string(a.CreatedVia),
		SendConfirmation: a.SendConfirmation,
		SendReminder:     a.SendReminder,
		ConfirmationSent: a.ConfirmationSent,
		ReminderSent:     a.ReminderSent,
		Active:           a.Active,
		CancelReason:     string(a.CancelReason),
		CancelDetail:     a.CancelDetail,
		CreatedAt:        formatTime(a.CreatedAt),
		UpdatedAt:        formatTime(a.UpdatedAt),
	}
	if a.CancelledAt != nil {
		item.CancelledAt = formatTime(*a.CancelledAt)
	}
	return item
}

func toItems(appts []model.Appointment) []appointmentItem {
	out := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		out = append(out, toItem(a))
	}
	return out
}

type changeItem struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

func toChanges(cs lifecycle.ChangeSet) []changeItem {
	out := make([]changeItem, 0, len(cs))
	for _, c := range cs {
		out = append(out, changeItem{Field: string(c.Field), From: c.From, To: c.To})
	}
	return out
}

type historyItem struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

type cancelOptions struct {
	NotifyCustomer   bool `json:"notify_customer"`
	NotifyTechnician bool `json:"notify_technician"`
	RefundRequired   bool `json:"refund_required"`
}

func toOptions(o model.CancelOptions) cancelOptions {
	return cancelOptions{NotifyCustomer: o.NotifyCustomer, NotifyTechnician: o.NotifyTechnician, RefundRequired: o.RefundRequired}
}

type settingsBody struct {
	ID                   string  `json:"id,omitempty"`
	TechnicianID         string  `json:"technician_id,omitempty"`
	WorkingHoursStart    float64 `json:"working_hours_start"`
	WorkingHoursEnd      float64 `json:"working_hours_end"`
	WorkingDays          string  `json:"working_days"`
	MaxDailyAppointments int     `json:"max_daily_appointments"`
	DefaultDurationHours float64 `json:"default_duration"`
	AdvanceBookingDays   int     `json:"advance_booking_days"`
	BufferHours          float64 `json:"buffer_time"`
	AutoConfirmEmails    bool    `json:"auto_confirm_emails"`
	AutoReminderEmails   bool    `json:"auto_reminder_emails"`
}

func toSettingsBody(s model.Settings) settingsBody {
	return settingsBody{
		ID:                   s.ID,
		TechnicianID:         s.TechnicianID,
		WorkingHoursStart:    s.WorkingHoursStart,
		WorkingHoursEnd:      s.WorkingHoursEnd,
		WorkingDays:          s.WorkingDays,
		MaxDailyAppointments: s.MaxDailyAppointments,
		DefaultDurationHours: s.DefaultDurationHours,
		AdvanceBookingDays:   s.AdvanceBookingDays,
		BufferHours:          s.BufferHours,
		AutoConfirmEmails:    s.AutoConfirmEmails,
		AutoReminderEmails:   s.AutoReminderEmails,
	}
}

func (b settingsBody) model() model.Settings {
	return model.Settings{
		ID:                   b.ID,
		TechnicianID:         b.TechnicianID,
		WorkingHoursStart:    b.WorkingHoursStart,
		WorkingHoursEnd:      b.WorkingHoursEnd,
		WorkingDays:          b.WorkingDays,
		MaxDailyAppointments: b.MaxDailyAppointments,
		DefaultDurationHours: b.DefaultDurationHours,
		AdvanceBookingDays:   b.AdvanceBookingDays,
		BufferHours:          b.BufferHours,
		AutoConfirmEmails:    b.AutoConfirmEmails,
		AutoReminderEmails:   b.AutoReminderEmails,
	}
}
