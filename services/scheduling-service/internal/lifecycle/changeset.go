package lifecycle

import (
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
)

type Field string

const (
	FieldStatus         Field = "status"
	FieldTechnician     Field = "technician"
	FieldScheduledStart Field = "scheduled_start"
	FieldDuration       Field = "duration"
	FieldCustomer       Field = "customer"

	// FieldDetails covers priority, description, location and reminder
	// preferences. Its changes are not tracked.
	FieldDetails Field = "details"
)

// TrackedFields lists the fields whose changes produce side effects, in
// the order they appear in audit entries.
var TrackedFields = []Field{FieldStatus, FieldTechnician, FieldScheduledStart, FieldDuration, FieldCustomer}

type Effect uint8

const (
	EffectAudit Effect = 1 << iota
	EffectTicketSync
	EffectNotifyTechnician
)

var fieldEffects = map[Field]Effect{
	FieldStatus:         EffectAudit | EffectTicketSync,
	FieldTechnician:     EffectAudit | EffectNotifyTechnician,
	FieldScheduledStart: EffectAudit | EffectNotifyTechnician,
	FieldDuration:       EffectAudit,
	FieldCustomer:       EffectAudit,
}

func (f Field) Label() string {
	switch f {
	case FieldStatus:
		return "Status"
	case FieldTechnician:
		return "Technician"
	case FieldScheduledStart:
		return "Scheduled Date"
	case FieldDuration:
		return "Duration"
	case FieldCustomer:
		return "Customer"
	case FieldDetails:
		return "Details"
	}
	return string(f)
}

type Change struct {
	Field Field
	From  string
	To    string
}

type ChangeSet []Change

// Diff compares the tracked fields of two versions of an appointment.
func Diff(before, after model.Appointment) ChangeSet {
	var cs ChangeSet
	for _, f := range TrackedFields {
		from, to := fieldValue(before, f), fieldValue(after, f)
		if from != to {
			cs = append(cs, Change{Field: f, From: from, To: to})
		}
	}
	return cs
}

func fieldValue(a model.Appointment, f Field) string {
	switch f {
	case FieldStatus:
		return a.Status.Label()
	case FieldTechnician:
		return a.TechnicianID
	case FieldScheduledStart:
		if a.ScheduledStart.IsZero() {
			return ""
		}
		return a.ScheduledStart.Format("2006-01-02 15:04")
	case FieldDuration:
		return fmt.Sprintf("%gh", a.DurationHours)
	case FieldCustomer:
		return a.CustomerID
	}
	return ""
}

func (cs ChangeSet) Has(f Field) bool {
	for _, c := range cs {
		if c.Field == f {
			return true
		}
	}
	return false
}

// Effects is the union of the side effects of every changed field.
func (cs ChangeSet) Effects() Effect {
	var e Effect
	for _, c := range cs {
		e |= fieldEffects[c.Field]
	}
	return e
}

func (e Effect) Has(x Effect) bool {
	return e&x != 0
}

// AuditText renders the audit entry, or "" when nothing tracked changed.
func (cs ChangeSet) AuditText() string {
	if len(cs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Appointment updated:")
	for _, c := range cs {
		from, to := c.From, c.To
		if from == "" {
			from = "-"
		}
		if to == "" {
			to = "-"
		}
		fmt.Fprintf(&b, "\n• %s: %s → %s", c.Field.Label(), from, to)
	}
	return b.String()
}
