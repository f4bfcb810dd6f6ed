package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/ConsultBookBack/internal/models"
)

const bookingColumns = `
	id, reference_number, consultation_type_id, customer_name, customer_email, customer_phone,
	customer_notes, booking_date::text, to_char(booking_time, 'HH24:MI'), duration_min, status,
	payment_status, payment_amount::float8, payment_intent_id, google_event_id, microsoft_event_id,
	reminder_sent_at, created_at, updated_at`

type CreateBookingInput struct {
	ReferenceNumber    string
	ConsultationTypeID int64
	CustomerName       string
	CustomerEmail      string
	CustomerPhone      *string
	CustomerNotes      *string
	BookingDate        string
	BookingTime        string
	DurationMinutes    int
	Status             string
	PaymentStatus      string
	PaymentAmount      float64
}

type BookingListFilter struct {
	Status             string
	ConsultationTypeID int64
	DateFrom           string
	DateTo             string
	Search             string
	Limit              int
	Offset             int
}

// BookingGuard runs inside the locked transaction with the active bookings
// of the requested day. Returning an error aborts the insert.
type BookingGuard func(existing []models.BookedInterval) error

type BookingRepository struct {
	db DBTX
}

func NewBookingRepository(db DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

func scanBooking(row scanner) (*models.Booking, error) {
	var booking models.Booking
	err := row.Scan(
		&booking.ID,
		&booking.ReferenceNumber,
		&booking.ConsultationTypeID,
		&booking.CustomerName,
		&booking.CustomerEmail,
		&booking.CustomerPhone,
		&booking.CustomerNotes,
		&booking.BookingDate,
		&booking.BookingTime,
		&booking.DurationMinutes,
		&booking.Status,
		&booking.PaymentStatus,
		&booking.PaymentAmount,
		&booking.PaymentIntentID,
		&booking.GoogleEventID,
		&booking.MicrosoftEventID,
		&booking.ReminderSentAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *BookingRepository) Create(ctx context.Context, input CreateBookingInput) (*models.Booking, error) {
	query := `
		INSERT INTO bookings (
			reference_number, consultation_type_id, customer_name, customer_email, customer_phone,
			customer_notes, booking_date, booking_time, duration_min, status, payment_status, payment_amount
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8::time, $9, $10, $11, $12)
		RETURNING` + bookingColumns

	return scanBooking(r.db.QueryRow(
		ctx,
		query,
		input.ReferenceNumber,
		input.ConsultationTypeID,
		input.CustomerName,
		input.CustomerEmail,
		input.CustomerPhone,
		input.CustomerNotes,
		input.BookingDate,
		input.BookingTime,
		input.DurationMinutes,
		input.Status,
		input.PaymentStatus,
		input.PaymentAmount,
	))
}

// CreateWithLock serialises bookings for the same day behind a transaction
// scoped advisory lock, lets guard re-validate the day's bookings and only
// then inserts.
func (r *BookingRepository) CreateWithLock(
	ctx context.Context,
	input CreateBookingInput,
	guard BookingGuard,
) (*models.Booking, error) {
	lockKey, err := dayLockKey(input.BookingDate)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockKey); err != nil {
		return nil, err
	}

	txRepo := NewBookingRepository(tx)
	if guard != nil {
		existing, err := txRepo.ListActiveIntervals(ctx, input.BookingDate, 0)
		if err != nil {
			return nil, err
		}
		if err := guard(existing); err != nil {
			return nil, err
		}
	}

	booking, err := txRepo.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return booking, nil
}

func dayLockKey(date string) (int64, error) {
	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return 0, fmt.Errorf("parse booking date: %w", err)
	}
	return int64(day.Year()*10000 + int(day.Month())*100 + day.Day()), nil
}

const bookedIntervalColumns = `
		SELECT b.id, to_char(b.booking_date, 'YYYY-MM-DD'), to_char(b.booking_time, 'HH24:MI'), b.duration_min,
		       COALESCE(ct.buffer_before, 0), COALESCE(ct.buffer_after, 0)
		FROM bookings b
		LEFT JOIN consultation_types ct ON ct.id = b.consultation_type_id
`

// ListActiveIntervals returns every non-cancelled booking on the date with
// the buffers of its consultation type. excludeID skips one booking.
func (r *BookingRepository) ListActiveIntervals(
	ctx context.Context,
	date string,
	excludeID int64,
) ([]models.BookedInterval, error) {
	query := bookedIntervalColumns + `
		WHERE b.booking_date = $1::date
		  AND b.status <> 'cancelled'
		  AND b.id <> $2
		ORDER BY b.booking_time ASC
	`
	return r.listIntervals(ctx, query, date, excludeID)
}

// ListActiveIntervalsBetween is ListActiveIntervals for the days from..to
// inclusive.
func (r *BookingRepository) ListActiveIntervalsBetween(ctx context.Context, from, to string) ([]models.BookedInterval, error) {
	query := bookedIntervalColumns + `
		WHERE b.booking_date BETWEEN $1::date AND $2::date
		  AND b.status <> 'cancelled'
		ORDER BY b.booking_date ASC, b.booking_time ASC
	`
	return r.listIntervals(ctx, query, from, to)
}

func (r *BookingRepository) listIntervals(ctx context.Context, query string, args ...any) ([]models.BookedInterval, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	intervals := make([]models.BookedInterval, 0)
	for rows.Next() {
		var interval models.BookedInterval
		if err := rows.Scan(
			&interval.BookingID,
			&interval.BookingDate,
			&interval.BookingTime,
			&interval.DurationMinutes,
			&interval.BufferBefore,
			&interval.BufferAfter,
		); err != nil {
			return nil, err
		}
		intervals = append(intervals, interval)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return intervals, nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(r.db.QueryRow(ctx, query, id))
}

func (r *BookingRepository) GetByReference(ctx context.Context, reference string) (*models.Booking, error) {
	query := `SELECT` + bookingColumns + ` FROM bookings WHERE reference_number = $1`
	return scanBooking(r.db.QueryRow(ctx, query, reference))
}

func (r *BookingRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*models.Booking, error) {
	query := `SELECT` + bookingColumns + ` FROM bookings WHERE payment_intent_id = $1`
	return scanBooking(r.db.QueryRow(ctx, query, intentID))
}

func (r *BookingRepository) List(ctx context.Context, filter BookingListFilter) ([]models.Booking, int, error) {
	args := []any{}
	whereParts := []string{"1 = 1"}

	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ConsultationTypeID > 0 {
		args = append(args, filter.ConsultationTypeID)
		whereParts = append(whereParts, fmt.Sprintf("consultation_type_id = $%d", len(args)))
	}
	if from := strings.TrimSpace(filter.DateFrom); from != "" {
		args = append(args, from)
		whereParts = append(whereParts, fmt.Sprintf("booking_date >= $%d::date", len(args)))
	}
	if to := strings.TrimSpace(filter.DateTo); to != "" {
		args = append(args, to)
		whereParts = append(whereParts, fmt.Sprintf("booking_date <= $%d::date", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		whereParts = append(whereParts, fmt.Sprintf(
			"(reference_number ILIKE $%[1]d OR customer_name ILIKE $%[1]d OR customer_email ILIKE $%[1]d)",
			len(args),
		))
	}
	where := strings.Join(whereParts, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM bookings WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM bookings
		WHERE %s
		ORDER BY booking_date DESC, booking_time DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, bookingColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	bookings := make([]models.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, *booking)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func (r *BookingRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	id int64,
	currentStatus string,
	nextStatus string,
) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING` + bookingColumns
	return scanBooking(r.db.QueryRow(ctx, query, id, currentStatus, nextStatus))
}

func (r *BookingRepository) UpdatePaymentStatusIfCurrent(
	ctx context.Context,
	id int64,
	currentStatus string,
	nextStatus string,
) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET payment_status = $3, updated_at = NOW()
		WHERE id = $1 AND payment_status = $2
		RETURNING` + bookingColumns
	return scanBooking(r.db.QueryRow(ctx, query, id, currentStatus, nextStatus))
}

func (r *BookingRepository) SetPaymentIntent(ctx context.Context, id int64, intentID string) (*models.Booking, error) {
	query := `
		UPDATE bookings
		SET payment_intent_id = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING` + bookingColumns
	return scanBooking(r.db.QueryRow(ctx, query, id, intentID))
}

func (r *BookingRepository) SetCalendarEventID(ctx context.Context, id int64, provider string, eventID *string) error {
	column := ""
	switch provider {
	case "google":
		column = "google_event_id"
	case "microsoft":
		column = "microsoft_event_id"
	default:
		return fmt.Errorf("unknown calendar provider %q", provider)
	}

	_, err := r.db.Exec(ctx, fmt.Sprintf("UPDATE bookings SET %s = $2, updated_at = NOW() WHERE id = $1", column), id, eventID)
	return err
}

func (r *BookingRepository) ListDueReminders(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	query := `
		SELECT` + bookingColumns + `
		FROM bookings
		WHERE status = 'confirmed'
		  AND reminder_sent_at IS NULL
		  AND (booking_date + booking_time) >= $1::timestamp
		  AND (booking_date + booking_time) < $2::timestamp
		ORDER BY booking_date ASC, booking_time ASC
	`

	rows, err := r.db.Query(ctx, query, from.Format("2006-01-02 15:04:05"), to.Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]models.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *booking)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *BookingRepository) MarkReminderSent(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, "UPDATE bookings SET reminder_sent_at = NOW() WHERE id = $1", id)
	return err
}

func (r *BookingRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM bookings WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
