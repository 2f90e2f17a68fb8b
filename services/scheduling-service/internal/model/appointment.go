package model

import "time"

type Status string

const (
	StatusDraft      Status = "draft"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// BlockingStatuses are the statuses that occupy a technician's calendar.
var BlockingStatuses = []Status{StatusConfirmed, StatusInProgress}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) Blocking() bool {
	return s == StatusConfirmed || s == StatusInProgress
}

func (s Status) Label() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusConfirmed:
		return "Confirmed"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type CreatedVia string

const (
	CreatedViaInternal   CreatedVia = "internal"
	CreatedViaAPI        CreatedVia = "api"
	CreatedViaAutomation CreatedVia = "automation"
)

func (c CreatedVia) Valid() bool {
	switch c {
	case CreatedViaInternal, CreatedViaAPI, CreatedViaAutomation:
		return true
	}
	return false
}

// Appointment is a booked block of a technician's time. The end of the
// block is always derived from ScheduledStart and DurationHours.
type Appointment struct {
	ID             string
	Reference      string
	CustomerID     string
	TechnicianID   string
	TicketID       string
	ScheduledStart time.Time
	DurationHours  float64
	Status         Status
	Priority       Priority
	Description    string
	Location       string
	CreatedVia     CreatedVia

	SendConfirmation bool
	SendReminder     bool
	ConfirmationSent bool
	ReminderSent     bool

	Active bool

	CancelReason CancelReason
	CancelDetail string
	CancelledAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a Appointment) Duration() time.Duration {
	return HoursToDuration(a.DurationHours)
}

func (a Appointment) End() time.Time {
	return a.ScheduledStart.Add(a.Duration())
}

// Overlaps applies the half-open rule: touching endpoints do not overlap.
func (a Appointment) Overlaps(start, end time.Time) bool {
	return Overlaps(a.ScheduledStart, a.End(), start, end)
}

func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

func HoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

// ListFilter selects appointments for calendar views. An empty TechnicianID
// lists every technician.
type ListFilter struct {
	TechnicianID    string
	From            time.Time
	To              time.Time
	Statuses        []Status
	IncludeArchived bool
	Limit           int
}

// HistoryEntry is one line of an appointment's audit trail.
type HistoryEntry struct {
	ID            string
	AppointmentID string
	ActorID       string
	Body          string
	CreatedAt     time.Time
}
