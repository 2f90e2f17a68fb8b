package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/supportsched/libs/db"
	"github.com/md-rashed-zaman/supportsched/services/scheduling-service/internal/model"
)

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

// WithTx lets the repository serve as the transaction runner of the
// scheduling and sweep packages.
func (r *AppointmentRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.pool.WithTx(ctx, fn)
}

const appointmentColumns = `
	id::text, reference, customer_id, technician_id, COALESCE(ticket_id, ''),
	scheduled_start, duration_hours, status, priority, description, location, created_via,
	send_confirmation, send_reminder, confirmation_sent, reminder_sent, active,
	COALESCE(cancel_reason, ''), cancel_detail, cancelled_at, created_at, updated_at`

// endExpr is the derived end of a booking.
const endExpr = `scheduled_start + duration_hours * interval '1 hour'`

type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row scanner) (model.Appointment, error) {
	var (
		a                                    model.Appointment
		status, priority, createdVia, reason string
	)
	err := row.Scan(
		&a.ID, &a.Reference, &a.CustomerID, &a.TechnicianID, &a.TicketID,
		&a.ScheduledStart, &a.DurationHours, &status, &priority, &a.Description, &a.Location, &createdVia,
		&a.SendConfirmation, &a.SendReminder, &a.ConfirmationSent, &a.ReminderSent, &a.Active,
		&reason, &a.CancelDetail, &a.CancelledAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.Status(status)
	a.Priority = model.Priority(priority)
	a.CreatedVia = model.CreatedVia(createdVia)
	a.CancelReason = model.CancelReason(reason)
	return a, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func notFound(err error) error {
	if db.IsNotFound(err) {
		return model.ErrNotFound
	}
	return err
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	a, err := scanAppointment(r.pool.Conn(ctx).QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id::text = $1
	`, id))
	return a, notFound(err)
}

// GetForUpdate row-locks the appointment; call it inside WithTx.
func (r *AppointmentRepository) GetForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	a, err := scanAppointment(r.pool.Conn(ctx).QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id::text = $1
		FOR UPDATE
	`, id))
	return a, notFound(err)
}

func (r *AppointmentRepository) Insert(ctx context.Context, a model.Appointment) error {
	_, err := r.pool.Conn(ctx).Exec(ctx, `
		INSERT INTO appointments
			(id, reference, customer_id, technician_id, ticket_id, scheduled_start, duration_hours,
			 status, priority, description, location, created_via,
			 send_confirmation, send_reminder, confirmation_sent, reminder_sent, active,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, a.ID, a.Reference, a.CustomerID, a.TechnicianID, a.TicketID, a.ScheduledStart, a.DurationHours,
		string(a.Status), string(a.Priority), a.Description, a.Location, string(a.CreatedVia),
		a.SendConfirmation, a.SendReminder, a.ConfirmationSent, a.ReminderSent, a.Active,
		a.CreatedAt, a.UpdatedAt)
	return err
}

// Update writes the mutable columns. The sent flags are owned by
// MarkConfirmationSent and MarkReminderSent and are left alone.
func (r *AppointmentRepository) Update(ctx context.Context, a model.Appointment) error {
	tag, err := r.pool.Conn(ctx).Exec(ctx, `
		UPDATE appointments
		SET customer_id = $2,
			technician_id = $3,
			ticket_id = NULLIF($4, ''),
			scheduled_start = $5,
			duration_hours = $6,
			status = $7,
			priority = $8,
			description = $9,
			location = $10,
			send_confirmation = $11,
			send_reminder = $12,
			active = $13,
			cancel_reason = NULLIF($14, ''),
			cancel_detail = $15,
			cancelled_at = $16,
			updated_at = $17
		WHERE id::text = $1
	`, a.ID, a.CustomerID, a.TechnicianID, a.TicketID, a.ScheduledStart, a.DurationHours,
		string(a.Status), string(a.Priority), a.Description, a.Location,
		a.SendConfirmation, a.SendReminder, a.Active,
		string(a.CancelReason), a.CancelDetail, a.CancelledAt, a.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *AppointmentRepository) SetTicket(ctx context.Context, id, ticketID string) error {
	_, err := r.pool.Conn(ctx).Exec(ctx, `
		UPDATE appointments SET ticket_id = $2, updated_at = now() WHERE id::text = $1
	`, id, ticketID)
	return err
}

// ListBlocking returns active confirmed or in-progress bookings of the
// technician overlapping [start, end).
func (r *AppointmentRepository) ListBlocking(ctx context.Context, technicianID string, start, end time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Conn(ctx).Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE technician_id = $1
			AND active
			AND status IN ('confirmed', 'in_progress')
			AND scheduled_start < $3
			AND `+endExpr+` > $2
		ORDER BY scheduled_start
	`, technicianID, start, end)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *AppointmentRepository) List(ctx context.Context, f model.ListFilter) ([]model.Appointment, error) {
	var from, to *time.Time
	if !f.From.IsZero() {
		from = &f.From
	}
	if !f.To.IsZero() {
		to = &f.To
	}
	statuses := make([]string, 0, len(f.Statuses))
	for _, s := range f.Statuses {
		statuses = append(statuses, string(s))
	}
	rows, err := r.pool.Conn(ctx).Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1 = '' OR technician_id = $1)
			AND ($2::timestamptz IS NULL OR `+endExpr+` > $2)
			AND ($3::timestamptz IS NULL OR scheduled_start < $3)
			AND (cardinality($4::text[]) = 0 OR status = ANY($4))
			AND ($5 OR active)
		ORDER BY scheduled_start
		LIMIT $6
	`, f.TechnicianID, from, to, statuses, f.IncludeArchived, f.Limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// CountOnDay counts the technician's non-cancelled bookings starting in
// [dayStart, dayEnd).
func (r *AppointmentRepository) CountOnDay(ctx context.Context, technicianID string, dayStart, dayEnd time.Time, excludeID string) (int, error) {
	var n int
	err := r.pool.Conn(ctx).QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE technician_id = $1
			AND active
			AND status <> 'cancelled'
			AND scheduled_start >= $2
			AND scheduled_start < $3
			AND id::text <> $4
	`, technicianID, dayStart, dayEnd, excludeID).Scan(&n)
	return n, err
}

func (r *AppointmentRepository) MarkConfirmationSent(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Conn(ctx).Exec(ctx, `
		UPDATE appointments SET confirmation_sent = true
		WHERE id::text = $1 AND NOT confirmation_sent
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *AppointmentRepository) MarkReminderSent(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Conn(ctx).Exec(ctx, `
		UPDATE appointments SET reminder_sent = true
		WHERE id::text = $1 AND NOT reminder_sent
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *AppointmentRepository) DueReminders(ctx context.Context, from, to time.Time, limit int) ([]model.Appointment, error) {
	rows, err := r.pool.Conn(ctx).Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE active
			AND send_reminder
			AND NOT reminder_sent
			AND status IN ('confirmed', 'in_progress')
			AND scheduled_start >= $1
			AND scheduled_start < $2
		ORDER BY scheduled_start
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *AppointmentRepository) ArchiveCancelled(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Conn(ctx).Exec(ctx, `
		UPDATE appointments
		SET active = false, updated_at = now()
		WHERE active AND status = 'cancelled' AND scheduled_start < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *AppointmentRepository) CountByStatus(ctx context.Context, from, to time.Time) (map[model.Status]int, error) {
	rows, err := r.pool.Conn(ctx).Query(ctx, `
		SELECT status, count(*)
		FROM appointments
		WHERE scheduled_start >= $1 AND scheduled_start <= $2
		GROUP BY status
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[model.Status]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[model.Status(status)] = n
	}
	return out, rows.Err()
}

func (r *AppointmentRepository) CountCancellations(ctx context.Context, from, to time.Time) (map[model.CancelReason]int, error) {
	rows, err := r.pool.Conn(ctx).Query(ctx, `
		SELECT COALESCE(cancel_reason, 'other'), count(*)
		FROM appointments
		WHERE status = 'cancelled' AND scheduled_start >= $1 AND scheduled_start < $2
		GROUP BY 1
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[model.CancelReason]int{}
	for rows.Next() {
		var (
			reason string
			n      int
		)
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		out[model.CancelReason(reason)] += n
	}
	return out, rows.Err()
}

func (r *AppointmentRepository) AppendHistory(ctx context.Context, e model.HistoryEntry) error {
	_, err := r.pool.Conn(ctx).Exec(ctx, `
		INSERT INTO appointment_history (id, appointment_id, actor_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.AppointmentID, e.ActorID, e.Body, e.CreatedAt)
	return err
}

func (r *AppointmentRepository) ListHistory(ctx context.Context, appointmentID string) ([]model.HistoryEntry, error) {
	rows, err := r.pool.Conn(ctx).Query(ctx, `
		SELECT id::text, appointment_id::text, actor_id, body, created_at
		FROM appointment_history
		WHERE appointment_id::text = $1
		ORDER BY created_at, id
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.ID, &e.AppointmentID, &e.ActorID, &e.Body, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// NextReference draws the next human readable reference, e.g. APT00042.
func (r *AppointmentRepository) NextReference(ctx context.Context) (string, error) {
	var n int64
	if err := r.pool.Conn(ctx).QueryRow(ctx, `SELECT nextval('appointment_ref_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return FormatReference(n), nil
}

func FormatReference(n int64) string {
	return fmt.Sprintf("APT%05d", n)
}
