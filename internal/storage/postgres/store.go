package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fishcharter/internal/domain"
	"fishcharter/internal/models"
	"fishcharter/migrations"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const bookingColumns = `id, customer_name, email, phone, service_type, booking_date, booking_time,
	number_of_people, notes, addons, base_price, addon_costs, total_amount, booking_fee_paid,
	remaining_balance, payment_id, payment_status, booking_status, reservation_expires_at,
	created_at, updated_at`

// Store keeps bookings in Postgres.
type Store struct {
	pool   *pgxpool.Pool
	logger *zerolog.Logger
}

var _ domain.SlotStore = (*Store)(nil)

// Open connects, verifies the connection and applies pending migrations.
func Open(ctx context.Context, dsn string, maxConns int32, logger *zerolog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := migrations.Apply(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	store := NewStore(pool, logger)
	store.logger.Info().Int32("max_conns", cfg.MaxConns).Msg("postgres store initialized")
	return store, nil
}

func NewStore(pool *pgxpool.Pool, logger *zerolog.Logger) *Store {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Store{pool: pool, logger: logger}
}

func (s *Store) Insert(ctx context.Context, booking *models.Booking) error {
	return s.insert(ctx, booking)
}

// InsertIfSlotFree serializes writers of one slot on a transaction-scoped
// advisory lock, then checks and inserts inside a SERIALIZABLE transaction.
func (s *Store) InsertIfSlotFree(ctx context.Context, booking *models.Booking, now time.Time) error {
	err := withTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(txCtx context.Context) error {
		if _, err := s.exec(txCtx, `SELECT pg_advisory_xact_lock(hashtext($1))`, booking.Date+"|"+booking.Time); err != nil {
			return fmt.Errorf("lock slot: %w", err)
		}

		const query = `
SELECT COUNT(*) FROM bookings
WHERE booking_date = $1 AND booking_time = $2
  AND (booking_status = 'confirmed' OR (booking_status = 'reserved' AND reservation_expires_at >= $3))`
		var count int
		if err := s.queryRow(txCtx, query, booking.Date, booking.Time, now).Scan(&count); err != nil {
			return fmt.Errorf("check slot: %w", err)
		}
		if count > 0 {
			return domain.ErrSlotTaken
		}
		return s.insert(txCtx, booking)
	})
	if err != nil && (isUniqueViolation(err) || isSerializationFailure(err)) {
		return domain.ErrSlotTaken
	}
	return err
}

func (s *Store) insert(ctx context.Context, b *models.Booking) error {
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
		return fmt.Errorf("encode addons: %w", err)
	}

	stmt := `INSERT INTO bookings (` + bookingColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`
	_, err = s.exec(ctx, stmt,
		b.ID, b.CustomerName, b.Email, b.Phone, b.ServiceType, b.Date, b.Time,
		b.NumberOfPeople, b.Notes, addons,
		int64(b.BasePrice), int64(b.AddonCosts), int64(b.TotalAmount),
		int64(b.BookingFeePaid), int64(b.RemainingBalance),
		b.PaymentID, b.PaymentStatus, b.BookingStatus, b.ReservationExpiresAt,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSlotTaken
		}
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

func (s *Store) GetByIDAndStatus(ctx context.Context, id, status string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	args := []any{id}
	if status != "" {
		query += ` AND booking_status = $2`
		args = append(args, status)
	}

	b, err := scanBooking(s.queryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (s *Store) Find(ctx context.Context, filter domain.SlotFilter) ([]*models.Booking, error) {
	var q queryBuilder
	if filter.Date != "" {
		q.where("booking_date = %s", filter.Date)
	}
	if filter.Time != "" {
		q.where("booking_time = %s", filter.Time)
	}
	if len(filter.Statuses) > 0 {
		q.where("booking_status = ANY(%s)", filter.Statuses)
	}
	if filter.ExpiresAtOrAfter != nil {
		q.where("(booking_status = 'confirmed' OR reservation_expires_at >= %s)", *filter.ExpiresAtOrAfter)
	}
	return s.queryBookings(ctx, `SELECT `+bookingColumns+` FROM bookings`+q.clause()+` ORDER BY created_at ASC`, q.args...)
}

func (s *Store) Update(ctx context.Context, id string, upd domain.BookingUpdate) error {
	var (
		sets []string
		args []any
	)
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.PaymentID != nil {
		set("payment_id", *upd.PaymentID)
	}
	if upd.PaymentStatus != nil {
		set("payment_status", *upd.PaymentStatus)
	}
	if upd.BookingStatus != nil {
		set("booking_status", *upd.BookingStatus)
	}
	if upd.BookingFeePaid != nil {
		set("booking_fee_paid", int64(*upd.BookingFeePaid))
	}
	if upd.RemainingBalance != nil {
		set("remaining_balance", int64(*upd.RemainingBalance))
	}
	if upd.ClearExpiry {
		sets = append(sets, "reservation_expires_at = NULL")
	}
	updatedAt := upd.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	set("updated_at", updatedAt)

	args = append(args, id)
	stmt := fmt.Sprintf(`UPDATE bookings SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	if upd.OnlyIfStatus != "" {
		args = append(args, upd.OnlyIfStatus)
		stmt += fmt.Sprintf(` AND booking_status = $%d`, len(args))
	}

	tag, err := s.exec(ctx, stmt, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSlotTaken
		}
		return fmt.Errorf("update booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.exec(ctx,
		`DELETE FROM bookings WHERE booking_status = 'reserved' AND reservation_expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired reservations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) List(ctx context.Context, filter domain.ListFilter) ([]*models.Booking, error) {
	var q queryBuilder
	if filter.From != "" {
		q.where("booking_date >= %s", filter.From)
	}
	if filter.To != "" {
		q.where("booking_date <= %s", filter.To)
	}
	if filter.Status != "" {
		q.where("booking_status = %s", filter.Status)
	}
	return s.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings`+q.clause()+` ORDER BY booking_date, booking_time, created_at`,
		q.args...)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) queryBookings(ctx context.Context, sql string, args ...any) ([]*models.Booking, error) {
	rows, err := s.query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var out []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBooking(row pgx.Row) (*models.Booking, error) {
	var (
		b      models.Booking
		addons []byte
	)
	var base, addonCosts, total, feePaid, remaining int64
	err := row.Scan(
		&b.ID, &b.CustomerName, &b.Email, &b.Phone, &b.ServiceType, &b.Date, &b.Time,
		&b.NumberOfPeople, &b.Notes, &addons, &base, &addonCosts, &total, &feePaid,
		&remaining, &b.PaymentID, &b.PaymentStatus, &b.BookingStatus, &b.ReservationExpiresAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(addons) > 0 {
		if err := json.Unmarshal(addons, &b.Addons); err != nil {
			return nil, fmt.Errorf("decode addons: %w", err)
		}
	}
	b.BasePrice = models.Money(base)
	b.AddonCosts = models.Money(addonCosts)
	b.TotalAmount = models.Money(total)
	b.BookingFeePaid = models.Money(feePaid)
	b.RemainingBalance = models.Money(remaining)
	if b.ReservationExpiresAt != nil {
		t := b.ReservationExpiresAt.UTC()
		b.ReservationExpiresAt = &t
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

type queryBuilder struct {
	conds []string
	args  []any
}

// where appends a condition; %s is replaced by the next positional parameter.
func (q *queryBuilder) where(cond string, arg any) {
	q.args = append(q.args, arg)
	q.conds = append(q.conds, fmt.Sprintf(cond, fmt.Sprintf("$%d", len(q.args))))
}

func (q *queryBuilder) clause() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.conds, " AND ")
}

func (s *Store) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return s.pool.Exec(ctx, sql, args...)
}

func (s *Store) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return s.pool.QueryRow(ctx, sql, args...)
}

func (s *Store) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return s.pool.Query(ctx, sql, args...)
}
