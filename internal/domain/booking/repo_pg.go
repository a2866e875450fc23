package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebook/carebook/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const bookingCols = `id, client_id, provider_id, slot_id, status, payment_status, booked_at,
	confirmation_timestamp, cancelled_at, cancelled_by, cancellation_reason,
	rejection_reason, invoice_ref, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.ClientID, &b.ProviderID, &b.SlotID, &b.Status, &b.PaymentStatus,
		&b.BookedAt, &b.ConfirmationTimestamp, &b.CancelledAt, &b.CancelledBy,
		&b.CancellationReason, &b.RejectionReason, &b.InvoiceRef, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Resource: "booking"}
	}
	return &b, err
}

func (r *repoPG) Create(ctx context.Context, b *Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO booking (id, client_id, provider_id, slot_id, status, payment_status,
			booked_at, invoice_ref)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		b.ID, b.ClientID, b.ProviderID, b.SlotID, b.Status, b.PaymentStatus,
		b.BookedAt, b.InvoiceRef)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := scanBooking(r.conn(ctx).QueryRow(ctx, `SELECT `+bookingCols+` FROM booking WHERE id = $1`, id))
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, &NotFoundError{Resource: "booking", ID: id.String()}
		}
		return nil, err
	}
	return b, nil
}

func (r *repoPG) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from []Status, to Status, set StatusChange) (bool, error) {
	froms := make([]string, len(from))
	for i, s := range from {
		froms[i] = string(s)
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE booking SET
			status = $3,
			confirmation_timestamp = COALESCE($4, confirmation_timestamp),
			cancelled_at = COALESCE($5, cancelled_at),
			cancelled_by = COALESCE($6, cancelled_by),
			cancellation_reason = COALESCE($7, cancellation_reason),
			rejection_reason = COALESCE($8, rejection_reason),
			updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)`,
		id, froms, to,
		set.ConfirmationTimestamp, set.CancelledAt, set.CancelledBy,
		set.CancellationReason, set.RejectionReason)
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Booking, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ClientID != uuid.Nil {
		where += ` AND client_id = ` + arg(f.ClientID)
	}
	if f.ProviderID != uuid.Nil {
		where += ` AND provider_id = ` + arg(f.ProviderID)
	}
	if f.Status != "" {
		where += ` AND status = ` + arg(f.Status)
	}
	if !f.From.IsZero() {
		where += ` AND booked_at >= ` + arg(f.From)
	}
	if !f.To.IsZero() {
		where += ` AND booked_at < ` + arg(f.To)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM booking`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + bookingCols + ` FROM booking` + where +
		` ORDER BY booked_at DESC LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *repoPG) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*Booking, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+bookingCols+` FROM booking
		WHERE status = $1 AND confirmation_timestamp IS NULL AND booked_at <= $2
		ORDER BY booked_at ASC
		LIMIT $3`,
		StatusPending, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("find expired pending: %w", err)
	}
	defer rows.Close()

	var items []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *repoPG) SetPaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE booking SET payment_status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Resource: "booking", ID: id.String()}
	}
	return nil
}
