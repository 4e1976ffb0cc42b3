package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mentorhub/mentorhub-api/internal/models"
)

// BookingRepository provides persistence for the unified booking ledger.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = "id, mentor_id, participant_id, call_type, source, start_at, duration_minutes, status, attendance, commitment_id, week_number, created_at, updated_at"

// LockTimeline serializes concurrent writers touching the same timeline by
// taking a transaction-scoped advisory lock keyed on the owner id.
func (r *BookingRepository) LockTimeline(ctx context.Context, tx *sqlx.Tx, ownerID string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ownerID); err != nil {
		return fmt.Errorf("lock timeline %s: %w", ownerID, err)
	}
	return nil
}

// FindMentorOverlap returns the first active booking for the mentor whose
// half-open interval intersects [start, end), or nil when the slot is free.
func (r *BookingRepository) FindMentorOverlap(ctx context.Context, exec sqlx.ExtContext, mentorID string, start, end time.Time) (*models.BookingConflict, error) {
	const query = `SELECT b.id AS booking_id, b.mentor_id, COALESCE(u.full_name, '') AS mentor_name, b.participant_id, b.start_at, b.duration_minutes
		FROM bookings b
		LEFT JOIN users u ON u.id = b.mentor_id
		WHERE b.mentor_id = $1
		  AND b.status IN ('PENDING', 'CONFIRMED')
		  AND b.start_at < $3
		  AND b.start_at + make_interval(mins => b.duration_minutes) > $2
		ORDER BY b.start_at ASC
		LIMIT 1`
	var conflict models.BookingConflict
	if err := sqlx.GetContext(ctx, exec, &conflict, query, mentorID, start, end); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find mentor overlap: %w", err)
	}
	conflict.Dimension = "MENTOR"
	return &conflict, nil
}

// FindParticipantOverlap returns the first active booking for the
// participant, against any mentor, intersecting [start, end).
func (r *BookingRepository) FindParticipantOverlap(ctx context.Context, exec sqlx.ExtContext, participantID string, start, end time.Time) (*models.BookingConflict, error) {
	const query = `SELECT b.id AS booking_id, b.mentor_id, COALESCE(u.full_name, '') AS mentor_name, b.participant_id, b.start_at, b.duration_minutes
		FROM bookings b
		LEFT JOIN users u ON u.id = b.mentor_id
		WHERE b.participant_id = $1
		  AND b.status IN ('PENDING', 'CONFIRMED')
		  AND b.start_at < $3
		  AND b.start_at + make_interval(mins => b.duration_minutes) > $2
		ORDER BY b.start_at ASC
		LIMIT 1`
	var conflict models.BookingConflict
	if err := sqlx.GetContext(ctx, exec, &conflict, query, participantID, start, end); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find participant overlap: %w", err)
	}
	conflict.Dimension = "PARTICIPANT"
	return &conflict, nil
}

// ListActiveInRange returns active bookings for a mentor whose interval
// intersects [from, to).
func (r *BookingRepository) ListActiveInRange(ctx context.Context, mentorID string, from, to time.Time) ([]models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE mentor_id = $1 AND status IN ('PENDING', 'CONFIRMED') AND start_at < $3 AND start_at + make_interval(mins => duration_minutes) > $2 ORDER BY start_at ASC`, bookingColumns)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, mentorID, from, to); err != nil {
		return nil, fmt.Errorf("list active bookings in range: %w", err)
	}
	return bookings, nil
}

// ListConfirmedFutureInWindow returns active future bookings that fall
// inside a weekly availability window, used to guard window deletion.
func (r *BookingRepository) ListConfirmedFutureInWindow(ctx context.Context, window models.AvailabilityWindow, after time.Time) ([]models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings
		WHERE mentor_id = $1
		  AND call_type = $2
		  AND status IN ('PENDING', 'CONFIRMED')
		  AND start_at > $3
		  AND EXTRACT(DOW FROM start_at)::int = $4
		  AND EXTRACT(HOUR FROM start_at)::int * 60 + EXTRACT(MINUTE FROM start_at)::int >= $5
		  AND EXTRACT(HOUR FROM start_at)::int * 60 + EXTRACT(MINUTE FROM start_at)::int + duration_minutes <= $6
		ORDER BY start_at ASC`, bookingColumns)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, window.MentorID, window.CallType, after, window.DayOfWeek, window.StartMinute, window.EndMinute); err != nil {
		return nil, fmt.Errorf("list bookings in window: %w", err)
	}
	return bookings, nil
}

// FindByID loads a booking by id.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query := fmt.Sprintf("SELECT %s FROM bookings WHERE id = $1", bookingColumns)
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindByIDForUpdate loads a booking inside a transaction with a row lock.
func (r *BookingRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Booking, error) {
	query := fmt.Sprintf("SELECT %s FROM bookings WHERE id = $1 FOR UPDATE", bookingColumns)
	var booking models.Booking
	if err := tx.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// Create stores a new booking using the provided executor.
func (r *BookingRepository) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	if exec == nil {
		exec = r.db
	}
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	const query = `INSERT INTO bookings (id, mentor_id, participant_id, call_type, source, start_at, duration_minutes, status, attendance, commitment_id, week_number, created_at, updated_at) VALUES (:id, :mentor_id, :participant_id, :call_type, :source, :start_at, :duration_minutes, :status, :attendance, :commitment_id, :week_number, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// BulkCreateWithTx inserts bookings using an existing transaction.
func (r *BookingRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, bookings []models.Booking) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	for i := range bookings {
		payload := bookings[i]
		if err := r.Create(ctx, tx, &payload); err != nil {
			return err
		}
		bookings[i] = payload
	}
	return nil
}

// SetAttendance records the attendance decision and resulting status.
func (r *BookingRepository) SetAttendance(ctx context.Context, exec sqlx.ExtContext, id string, mark models.AttendanceMark, status models.BookingStatus) error {
	if exec == nil {
		exec = r.db
	}
	const query = `UPDATE bookings SET attendance = $2, status = $3, updated_at = $4 WHERE id = $1`
	if _, err := exec.ExecContext(ctx, query, id, mark, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set booking attendance: %w", err)
	}
	return nil
}

// CancelPendingByCommitment cancels every still-pending future session under
// a commitment and returns how many rows changed.
func (r *BookingRepository) CancelPendingByCommitment(ctx context.Context, exec sqlx.ExtContext, commitmentID string, after time.Time) (int, error) {
	if exec == nil {
		exec = r.db
	}
	const query = `UPDATE bookings SET status = 'CANCELLED', updated_at = $3 WHERE commitment_id = $1 AND status = 'PENDING' AND start_at > $2`
	result, err := exec.ExecContext(ctx, query, commitmentID, after, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cancel pending sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel pending sessions rows: %w", err)
	}
	return int(affected), nil
}

// ExpirePendingBefore transitions stale PENDING requests created before the
// cutoff to EXPIRED. Only one-off requests are subject to the TTL.
func (r *BookingRepository) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `UPDATE bookings SET status = 'EXPIRED', updated_at = $2 WHERE source = 'REQUEST' AND status = 'PENDING' AND created_at < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire pending bookings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire pending bookings rows: %w", err)
	}
	return int(affected), nil
}

// ListByCommitment returns every session generated under a commitment.
func (r *BookingRepository) ListByCommitment(ctx context.Context, commitmentID string) ([]models.Booking, error) {
	query := fmt.Sprintf("SELECT %s FROM bookings WHERE commitment_id = $1 ORDER BY start_at ASC", bookingColumns)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, commitmentID); err != nil {
		return nil, fmt.Errorf("list bookings by commitment: %w", err)
	}
	return bookings, nil
}

// List returns bookings with optional filtering and pagination.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	base := "FROM bookings WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.MentorID != "" {
		conditions = append(conditions, fmt.Sprintf("mentor_id = $%d", len(args)+1))
		args = append(args, filter.MentorID)
	}
	if filter.ParticipantID != "" {
		conditions = append(conditions, fmt.Sprintf("participant_id = $%d", len(args)+1))
		args = append(args, filter.ParticipantID)
	}
	if filter.CallType != "" {
		conditions = append(conditions, fmt.Sprintf("call_type = $%d", len(args)+1))
		args = append(args, filter.CallType)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("start_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("start_at < $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"start_at":   true,
		"status":     true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "start_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", bookingColumns, base, sortBy, order, size, offset)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	return bookings, total, nil
}
