package storage

import (
	"context"

	"github.com/md-rashed-zaman/supportsched/libs/db"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
)

// SettingsRepository stores the global record with a NULL technician id.
type SettingsRepository struct {
	pool *db.Pool
}

func NewSettingsRepository(pool *db.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

const settingsColumns = `
	id::text, COALESCE(technician_id, ''), working_hours_start, working_hours_end, working_days,
	max_daily_appointments, default_duration_hours, advance_booking_days, buffer_hours,
	auto_confirm_emails, auto_reminder_emails, created_at, updated_at`

func scanSettings(row scanner) (model.Settings, error) {
	var s model.Settings
	err := row.Scan(&s.ID, &s.TechnicianID, &s.WorkingHoursStart, &s.WorkingHoursEnd, &s.WorkingDays,
		&s.MaxDailyAppointments, &s.DefaultDurationHours, &s.AdvanceBookingDays, &s.BufferHours,
		&s.AutoConfirmEmails, &s.AutoReminderEmails, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *SettingsRepository) GetSettings(ctx context.Context, technicianID string) (model.Settings, error) {
	s, err := scanSettings(r.pool.Conn(ctx).QueryRow(ctx, `
		SELECT `+settingsColumns+`
		FROM scheduling_settings
		WHERE COALESCE(technician_id, '') = $1
	`, technicianID))
	return s, notFound(err)
}

func (r *SettingsRepository) ListSettings(ctx context.Context) ([]model.Settings, error) {
	rows, err := r.pool.Conn(ctx).Query(ctx, `
		SELECT `+settingsColumns+`
		FROM scheduling_settings
		ORDER BY technician_id NULLS FIRST
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Settings
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SettingsRepository) InsertSettings(ctx context.Context, s model.Settings) error {
	_, err := r.pool.Conn(ctx).Exec(ctx, `
		INSERT INTO scheduling_settings
			(id, technician_id, working_hours_start, working_hours_end, working_days,
			 max_daily_appointments, default_duration_hours, advance_booking_days, buffer_hours,
			 auto_confirm_emails, auto_reminder_emails, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, s.ID, s.TechnicianID, s.WorkingHoursStart, s.WorkingHoursEnd, s.WorkingDays,
		s.MaxDailyAppointments, s.DefaultDurationHours, s.AdvanceBookingDays, s.BufferHours,
		s.AutoConfirmEmails, s.AutoReminderEmails, s.CreatedAt, s.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return &model.ValidationError{Field: "technician_id", Rule: "settings already exist for this technician"}
	}
	return err
}

func (r *SettingsRepository) UpdateSettings(ctx context.Context, s model.Settings) error {
	tag, err := r.pool.Conn(ctx).Exec(ctx, `
		UPDATE scheduling_settings
		SET technician_id = NULLIF($2, ''),
			working_hours_start = $3,
			working_hours_end = $4,
			working_days = $5,
			max_daily_appointments = $6,
			default_duration_hours = $7,
			advance_booking_days = $8,
			buffer_hours = $9,
			auto_confirm_emails = $10,
			auto_reminder_emails = $11,
			updated_at = $12
		WHERE id::text = $1
	`, s.ID, s.TechnicianID, s.WorkingHoursStart, s.WorkingHoursEnd, s.WorkingDays,
		s.MaxDailyAppointments, s.DefaultDurationHours, s.AdvanceBookingDays, s.BufferHours,
		s.AutoConfirmEmails, s.AutoReminderEmails, s.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return &model.ValidationError{Field: "technician_id", Rule: "settings already exist for this technician"}
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
