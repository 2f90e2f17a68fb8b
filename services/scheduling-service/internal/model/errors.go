package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("not found")

// ValidationError rejects malformed input before any mutation.
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Rule
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Rule)
}

func Invalid(field, rule string) error {
	return &ValidationError{Field: field, Rule: rule}
}

type ConflictError struct {
	TechnicianID string
	Conflicts    []Appointment
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s (%s - %s, customer %s)",
			c.Reference,
			c.ScheduledStart.Format("2006-01-02 15:04"),
			c.End().Format("15:04"),
			c.CustomerID,
		))
	}
	return fmt.Sprintf("technician %s is already booked: %s", e.TechnicianID, strings.Join(parts, "; "))
}

type StateError struct {
	Op     string
	Status Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s an appointment that is %s", e.Op, e.Status.Label())
}

type PermissionError struct {
	UserID string
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s is not allowed to %s", e.UserID, e.Action)
}

// WarningError asks the caller to confirm before the operation proceeds.
type WarningError struct {
	Warnings []string
}

func (e *WarningError) Error() string {
	return "confirmation required: " + strings.Join(e.Warnings, "; ")
}

func PastStart(start, now time.Time) error {
	return Invalid("scheduled_start", fmt.Sprintf("must be in the future (got %s, now %s)",
		start.Format(time.RFC3339), now.Format(time.RFC3339)))
}
