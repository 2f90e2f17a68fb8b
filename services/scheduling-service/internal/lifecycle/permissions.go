package lifecycle

import (
	"time"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
)

// Actor is the user performing an operation, with capabilities already
// resolved by the identity service.
type Actor struct {
	ID         string
	Manager    bool
	Technician bool
}

// CanEdit: managers edit anything, technicians only their own bookings.
func (a Actor) CanEdit(appt model.Appointment) bool {
	if a.Manager {
		return true
	}
	return a.Technician && a.ID != "" && appt.TechnicianID == a.ID
}

// CanEditField applies the per-field gate on top of CanEdit.
func (a Actor) CanEditField(appt model.Appointment, f Field, now time.Time) bool {
	if !a.CanEdit(appt) {
		return false
	}
	switch appt.Status {
	case model.StatusCancelled:
		return false
	case model.StatusCompleted:
		return f == FieldStatus
	}
	if (f == FieldScheduledStart || f == FieldTechnician) && appt.ScheduledStart.Before(now) {
		return a.Manager
	}
	return true
}

// CanView scopes calendar listings.
func (a Actor) CanView(appt model.Appointment) bool {
	return a.CanEdit(appt)
}
