package model

import "time"

// Settings holds scheduling configuration for one technician, or the global
// fallback when TechnicianID is empty.
type Settings struct {
	ID                   string
	TechnicianID         string
	WorkingHoursStart    float64
	WorkingHoursEnd      float64
	WorkingDays          string
	MaxDailyAppointments int
	DefaultDurationHours float64
	AdvanceBookingDays   int
	BufferHours          float64
	AutoConfirmEmails    bool
	AutoReminderEmails   bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (s Settings) Global() bool {
	return s.TechnicianID == ""
}

func DefaultSettings() Settings {
	return Settings{
		WorkingHoursStart:    8.0,
		WorkingHoursEnd:      17.0,
		WorkingDays:          "1,2,3,4,5",
		MaxDailyAppointments: 8,
		DefaultDurationHours: 1.0,
		AdvanceBookingDays:   30,
		BufferHours:          0.5,
		AutoConfirmEmails:    true,
		AutoReminderEmails:   true,
	}
}

type Capability string

const (
	CapabilityTechnician Capability = "support_technician"
	CapabilityManager    Capability = "support_manager"
)
