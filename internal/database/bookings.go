package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fishcharter/internal/domain"
	"fishcharter/internal/models"

	"github.com/google/uuid"
)

const bookingColumns = `id, customer_name, email, phone, service_type, booking_date, booking_time,
	number_of_people, notes, addons, base_price, addon_costs, total_amount, booking_fee_paid,
	remaining_balance, payment_id, payment_status, booking_status, reservation_expires_at,
	created_at, updated_at`

var _ domain.SlotStore = (*DB)(nil)

func (db *DB) Insert(ctx context.Context, booking *models.Booking) error {
	return insertBooking(ctx, db.DB, booking)
}

// InsertIfSlotFree runs the availability check and the insert in one
// immediate transaction so two holds for the same slot cannot both land.
func (db *DB) InsertIfSlotFree(ctx context.Context, booking *models.Booking, now time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var count int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings
		WHERE booking_date = ? AND booking_time = ?
		AND (booking_status = ? OR (booking_status = ? AND reservation_expires_at >= ?))`,
		booking.Date, booking.Time, models.StatusConfirmed, models.StatusReserved, now.UTC(),
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check slot: %w", err)
	}
	if count > 0 {
		return domain.ErrSlotTaken
	}

	if err := insertBooking(ctx, tx, booking); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSlotTaken
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertBooking(ctx context.Context, ex execer, b *models.Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}

	addons, err := json.Marshal(b.Addons)
	if err != nil {
		return fmt.Errorf("failed to encode addons: %w", err)
	}

	_, err = ex.ExecContext(ctx, `INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.CustomerName, b.Email, b.Phone, b.ServiceType, b.Date, b.Time,
		b.NumberOfPeople, b.Notes, string(addons),
		int64(b.BasePrice), int64(b.AddonCosts), int64(b.TotalAmount),
		int64(b.BookingFeePaid), int64(b.RemainingBalance),
		b.PaymentID, b.PaymentStatus, b.BookingStatus, utcPtr(b.ReservationExpiresAt),
		b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSlotTaken
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (db *DB) GetByIDAndStatus(ctx context.Context, id, status string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	args := []interface{}{id}
	if status != "" {
		query += ` AND booking_status = ?`
		args = append(args, status)
	}

	b, err := scanBooking(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func (db *DB) Find(ctx context.Context, filter domain.SlotFilter) ([]*models.Booking, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Date != "" {
		where = append(where, "booking_date = ?")
		args = append(args, filter.Date)
	}
	if filter.Time != "" {
		where = append(where, "booking_time = ?")
		args = append(args, filter.Time)
	}
	if len(filter.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.Statuses)), ",")
		where = append(where, "booking_status IN ("+placeholders+")")
		for _, s := range filter.Statuses {
			args = append(args, s)
		}
	}
	if filter.ExpiresAtOrAfter != nil {
		where = append(where, "(booking_status = ? OR reservation_expires_at >= ?)")
		args = append(args, models.StatusConfirmed, filter.ExpiresAtOrAfter.UTC())
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC"

	return db.queryBookings(ctx, query, args...)
}

func (db *DB) Update(ctx context.Context, id string, upd domain.BookingUpdate) error {
	var (
		sets []string
		args []interface{}
	)
	if upd.PaymentID != nil {
		sets = append(sets, "payment_id = ?")
		args = append(args, *upd.PaymentID)
	}
	if upd.PaymentStatus != nil {
		sets = append(sets, "payment_status = ?")
		args = append(args, *upd.PaymentStatus)
	}
	if upd.BookingStatus != nil {
		sets = append(sets, "booking_status = ?")
		args = append(args, *upd.BookingStatus)
	}
	if upd.BookingFeePaid != nil {
		sets = append(sets, "booking_fee_paid = ?")
		args = append(args, int64(*upd.BookingFeePaid))
	}
	if upd.RemainingBalance != nil {
		sets = append(sets, "remaining_balance = ?")
		args = append(args, int64(*upd.RemainingBalance))
	}
	if upd.ClearExpiry {
		sets = append(sets, "reservation_expires_at = NULL")
	}
	updatedAt := upd.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, updatedAt.UTC())

	query := `UPDATE bookings SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, id)
	if upd.OnlyIfStatus != "" {
		query += ` AND booking_status = ?`
		args = append(args, upd.OnlyIfStatus)
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSlotTaken
		}
		return fmt.Errorf("failed to update booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (db *DB) Delete(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteExpired removes reserved rows whose hold ended before the given instant.
func (db *DB) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM bookings WHERE booking_status = ? AND reservation_expires_at < ?`,
		models.StatusReserved, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired reservations: %w", err)
	}
	return res.RowsAffected()
}

func (db *DB) List(ctx context.Context, filter domain.ListFilter) ([]*models.Booking, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.From != "" {
		where = append(where, "booking_date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		where = append(where, "booking_date <= ?")
		args = append(args, filter.To)
	}
	if filter.Status != "" {
		where = append(where, "booking_status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY booking_date, booking_time, created_at"

	return db.queryBookings(ctx, query, args...)
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b         models.Booking
		addons    string
		expiresAt sql.NullTime
	)
	var base, addonCosts, total, feePaid, remaining int64
	err := row.Scan(
		&b.ID, &b.CustomerName, &b.Email, &b.Phone, &b.ServiceType, &b.Date, &b.Time,
		&b.NumberOfPeople, &b.Notes, &addons, &base, &addonCosts, &total, &feePaid,
		&remaining, &b.PaymentID, &b.PaymentStatus, &b.BookingStatus, &expiresAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if addons != "" {
		if err := json.Unmarshal([]byte(addons), &b.Addons); err != nil {
			return nil, fmt.Errorf("failed to decode addons: %w", err)
		}
	}
	b.BasePrice = models.Money(base)
	b.AddonCosts = models.Money(addonCosts)
	b.TotalAmount = models.Money(total)
	b.BookingFeePaid = models.Money(feePaid)
	b.RemainingBalance = models.Money(remaining)
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		b.ReservationExpiresAt = &t
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
