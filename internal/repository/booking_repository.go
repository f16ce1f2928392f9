package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	"github.com/noah-isme/tutor-booking-api/internal/timeutil"
)

const bookingColumns = `id, teacher_id, student_id, course_id, entitlement_ref, recurrence, status, duration_minutes, start_utc, end_utc, weekday, start_minute, end_minute, anchor_date, created_at, updated_at`

// bookingRow is the flat column mapping for bookings. The two timing shapes
// share one table with nullable columns; the tagged models.Booking is the
// domain representation.
type bookingRow struct {
	ID              string     `db:"id"`
	TeacherID       string     `db:"teacher_id"`
	StudentID       string     `db:"student_id"`
	CourseID        string     `db:"course_id"`
	EntitlementRef  *string    `db:"entitlement_ref"`
	Recurrence      string     `db:"recurrence"`
	Status          string     `db:"status"`
	DurationMinutes int        `db:"duration_minutes"`
	StartUTC        *time.Time `db:"start_utc"`
	EndUTC          *time.Time `db:"end_utc"`
	Weekday         *string    `db:"weekday"`
	StartMinute     *int       `db:"start_minute"`
	EndMinute       *int       `db:"end_minute"`
	AnchorDate      *time.Time `db:"anchor_date"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

func (row *bookingRow) toModel() *models.Booking {
	b := &models.Booking{
		ID:              row.ID,
		TeacherID:       row.TeacherID,
		StudentID:       row.StudentID,
		CourseID:        row.CourseID,
		EntitlementRef:  row.EntitlementRef,
		Recurrence:      models.Recurrence(row.Recurrence),
		Status:          models.BookingStatus(row.Status),
		DurationMinutes: row.DurationMinutes,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	switch b.Recurrence {
	case models.RecurrenceOnce:
		if row.StartUTC != nil && row.EndUTC != nil {
			b.Once = &models.OnceTiming{StartUTC: row.StartUTC.UTC(), EndUTC: row.EndUTC.UTC()}
		}
	case models.RecurrenceWeekly:
		if row.Weekday != nil && row.StartMinute != nil && row.EndMinute != nil {
			timing := &models.WeeklyTiming{
				Weekday:     timeutil.Weekday(*row.Weekday),
				StartMinute: *row.StartMinute,
				EndMinute:   *row.EndMinute,
			}
			if row.AnchorDate != nil {
				timing.AnchorDate = *row.AnchorDate
			}
			b.Weekly = timing
		}
	}
	return b
}

func fromModel(b *models.Booking) *bookingRow {
	row := &bookingRow{
		ID:              b.ID,
		TeacherID:       b.TeacherID,
		StudentID:       b.StudentID,
		CourseID:        b.CourseID,
		EntitlementRef:  b.EntitlementRef,
		Recurrence:      string(b.Recurrence),
		Status:          string(b.Status),
		DurationMinutes: b.DurationMinutes,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	if b.Once != nil {
		start := b.Once.StartUTC.UTC()
		end := b.Once.EndUTC.UTC()
		row.StartUTC = &start
		row.EndUTC = &end
	}
	if b.Weekly != nil {
		day := string(b.Weekly.Weekday)
		startMinute := b.Weekly.StartMinute
		endMinute := b.Weekly.EndMinute
		anchor := b.Weekly.AnchorDate
		row.Weekday = &day
		row.StartMinute = &startMinute
		row.EndMinute = &endMinute
		row.AnchorDate = &anchor
	}
	return row
}

// BookingTxn is the view of the repository available both directly and
// inside a reservation transaction.
type BookingTxn interface {
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	ListActiveOnceBetween(ctx context.Context, teacherID string, from, to time.Time) ([]models.Booking, error)
	ListActiveWeeklyByDay(ctx context.Context, teacherID string, day timeutil.Weekday) ([]models.Booking, error)
	ListActiveOnceAfter(ctx context.Context, teacherID string, after time.Time) ([]models.Booking, error)
	Create(ctx context.Context, booking *models.Booking) error
	UpdateTiming(ctx context.Context, booking *models.Booking) error
	Delete(ctx context.Context, id string) error
}

// BookingRepository provides persistence for bookings. Reservation flows
// run inside InTeacherLock so the conflict check and the insert are one
// atomic unit per teacher.
type BookingRepository struct {
	db *sqlx.DB
	q  sqlx.ExtContext
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db, q: db}
}

// FindByID loads a booking by id, nil when absent.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)
	var row bookingRow
	if err := sqlx.GetContext(ctx, r.q, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return row.toModel(), nil
}

// ListActiveOnceBetween returns active one-time bookings whose UTC interval
// intersects [from, to).
func (r *BookingRepository) ListActiveOnceBetween(ctx context.Context, teacherID string, from, to time.Time) ([]models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings
WHERE teacher_id = $1 AND recurrence = 'once' AND status IN ('pending', 'published')
  AND start_utc < $3 AND end_utc > $2
ORDER BY start_utc ASC`, bookingColumns)
	return r.selectBookings(ctx, query, teacherID, from, to)
}

// ListActiveWeeklyByDay returns active weekly bookings on the given weekday.
func (r *BookingRepository) ListActiveWeeklyByDay(ctx context.Context, teacherID string, day timeutil.Weekday) ([]models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings
WHERE teacher_id = $1 AND recurrence = 'weekly' AND status IN ('pending', 'published') AND weekday = $2
ORDER BY start_minute ASC`, bookingColumns)
	return r.selectBookings(ctx, query, teacherID, string(day))
}

// ListActiveOnceAfter returns active one-time bookings ending after the
// given instant. Weekly candidates must be checked against each of these.
func (r *BookingRepository) ListActiveOnceAfter(ctx context.Context, teacherID string, after time.Time) ([]models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings
WHERE teacher_id = $1 AND recurrence = 'once' AND status IN ('pending', 'published') AND end_utc > $2
ORDER BY start_utc ASC`, bookingColumns)
	return r.selectBookings(ctx, query, teacherID, after)
}

func (r *BookingRepository) selectBookings(ctx context.Context, query string, args ...interface{}) ([]models.Booking, error) {
	var rows []bookingRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	bookings := make([]models.Booking, 0, len(rows))
	for i := range rows {
		bookings = append(bookings, *rows[i].toModel())
	}
	return bookings, nil
}

// Create stores a new booking record.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	const query = `INSERT INTO bookings (id, teacher_id, student_id, course_id, entitlement_ref, recurrence, status, duration_minutes, start_utc, end_utc, weekday, start_minute, end_minute, anchor_date, created_at, updated_at)
VALUES (:id, :teacher_id, :student_id, :course_id, :entitlement_ref, :recurrence, :status, :duration_minutes, :start_utc, :end_utc, :weekday, :start_minute, :end_minute, :anchor_date, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, fromModel(booking)); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// UpdateTiming replaces a booking's recurrence, duration and timing fields
// in place. The columns of the previous recurrence shape are cleared by
// writing the full set from the tagged model.
func (r *BookingRepository) UpdateTiming(ctx context.Context, booking *models.Booking) error {
	booking.UpdatedAt = time.Now().UTC()
	const query = `UPDATE bookings SET recurrence = :recurrence, status = :status, duration_minutes = :duration_minutes, start_utc = :start_utc, end_utc = :end_utc, weekday = :weekday, start_minute = :start_minute, end_minute = :end_minute, anchor_date = :anchor_date, updated_at = :updated_at
WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, fromModel(booking)); err != nil {
		return fmt.Errorf("update booking timing: %w", err)
	}
	return nil
}

// Delete removes a booking row. Only the reservation rollback path uses it.
func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return nil
}

// InTeacherLock runs fn within a transaction holding the per-teacher
// advisory lock, serializing concurrent reservations for the same teacher.
// The repository passed to fn routes every query through the transaction,
// so a conflict check and the following insert observe and produce a
// consistent store state.
func (r *BookingRepository) InTeacherLock(ctx context.Context, teacherID string, fn func(tx BookingTxn) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reservation tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, teacherID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("acquire teacher lock: %w", err)
	}

	if err := fn(&BookingRepository{db: r.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reservation tx: %w", err)
	}
	return nil
}
