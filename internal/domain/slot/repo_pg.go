package slot

import (
	"context"
	"encoding/json"
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

// =========== Slot Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const slotCols = `id, provider_event_id, provider_id, date, start_time, end_time,
	status, booking_id, consultation_modes, price_cents, created_at, updated_at`

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot
	err := row.Scan(&s.ID, &s.ProviderEventID, &s.ProviderID, &s.Date, &s.StartTime, &s.EndTime,
		&s.Status, &s.BookingID, &s.ConsultationModes, &s.PriceCents, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &s, err
}

func (r *repoPG) CreateBatch(ctx context.Context, slots []*TimeSlot) (int, error) {
	inserted := 0
	for _, s := range slots {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		tag, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO time_slot (id, provider_event_id, provider_id, date, start_time, end_time,
				status, consultation_modes, price_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (provider_event_id, date, start_time) DO NOTHING`,
			s.ID, s.ProviderEventID, s.ProviderID, s.Date, s.StartTime, s.EndTime,
			s.Status, s.ConsultationModes, s.PriceCents)
		if err != nil {
			return inserted, fmt.Errorf("insert slot: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	return scanSlot(r.conn(ctx).QueryRow(ctx, `SELECT `+slotCols+` FROM time_slot WHERE id = $1`, id))
}

func (r *repoPG) ListByProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time, status Status, limit, offset int) ([]*TimeSlot, int, error) {
	query := `SELECT ` + slotCols + ` FROM time_slot WHERE provider_id = $1 AND start_time >= $2 AND start_time < $3`
	countQuery := `SELECT COUNT(*) FROM time_slot WHERE provider_id = $1 AND start_time >= $2 AND start_time < $3`
	args := []interface{}{providerID, from, to}

	if status != "" {
		query += ` AND status = $4`
		countQuery += ` AND status = $4`
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY start_time ASC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// Reserve is the optimistic half of the double-booking guard: the status
// predicate makes losing a race visible as zero affected rows.
func (r *repoPG) Reserve(ctx context.Context, slotID, bookingID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE time_slot SET status = $3, booking_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = $4`,
		slotID, bookingID, StatusBooked, StatusAvailable)
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, slotID); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func (r *repoPG) Release(ctx context.Context, slotID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE time_slot SET status = $2, booking_id = NULL, updated_at = NOW()
		WHERE id = $1 AND status = $3`,
		slotID, StatusAvailable, StatusBooked)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

func (r *repoPG) Block(ctx context.Context, slotID uuid.UUID) error {
	return r.setStatus(ctx, slotID, StatusAvailable, StatusBlocked)
}

func (r *repoPG) Unblock(ctx context.Context, slotID uuid.UUID) error {
	return r.setStatus(ctx, slotID, StatusBlocked, StatusAvailable)
}

func (r *repoPG) setStatus(ctx context.Context, slotID uuid.UUID, from, to Status) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE time_slot SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		slotID, from, to)
	if err != nil {
		return fmt.Errorf("update slot status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, slotID); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// =========== Config Repository ===========

type configRepoPG struct{ pool *pgxpool.Pool }

func NewConfigRepoPG(pool *pgxpool.Pool) ConfigRepository { return &configRepoPG{pool: pool} }

func (r *configRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const configCols = `id, provider_id, title, daily_configs, timezone, location_types,
	price_cents, max_booking_days, cancellation_threshold_min, created_at, updated_at`

func scanConfig(row pgx.Row) (*EventConfiguration, error) {
	var c EventConfiguration
	var daily []byte
	err := row.Scan(&c.ID, &c.ProviderID, &c.Title, &daily, &c.Timezone, &c.LocationTypes,
		&c.PriceCents, &c.MaxBookingDays, &c.CancellationThresholdMin, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(daily) > 0 {
		if err := json.Unmarshal(daily, &c.DailyConfigs); err != nil {
			return nil, fmt.Errorf("decode daily_configs: %w", err)
		}
	}
	return &c, nil
}

func (r *configRepoPG) Create(ctx context.Context, cfg *EventConfiguration) error {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	daily, err := json.Marshal(cfg.DailyConfigs)
	if err != nil {
		return fmt.Errorf("encode daily_configs: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO event_configuration (id, provider_id, title, daily_configs, timezone,
			location_types, price_cents, max_booking_days, cancellation_threshold_min)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		cfg.ID, cfg.ProviderID, cfg.Title, daily, cfg.Timezone,
		cfg.LocationTypes, cfg.PriceCents, cfg.MaxBookingDays, cfg.CancellationThresholdMin)
	return err
}

func (r *configRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*EventConfiguration, error) {
	return scanConfig(r.conn(ctx).QueryRow(ctx, `SELECT `+configCols+` FROM event_configuration WHERE id = $1`, id))
}

func (r *configRepoPG) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*EventConfiguration, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+configCols+` FROM event_configuration WHERE provider_id = $1 ORDER BY created_at DESC`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*EventConfiguration
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *configRepoPG) Update(ctx context.Context, cfg *EventConfiguration) error {
	daily, err := json.Marshal(cfg.DailyConfigs)
	if err != nil {
		return fmt.Errorf("encode daily_configs: %w", err)
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE event_configuration SET title=$2, daily_configs=$3, timezone=$4, location_types=$5,
			price_cents=$6, max_booking_days=$7, cancellation_threshold_min=$8, updated_at=NOW()
		WHERE id = $1`,
		cfg.ID, cfg.Title, daily, cfg.Timezone, cfg.LocationTypes,
		cfg.PriceCents, cfg.MaxBookingDays, cfg.CancellationThresholdMin)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *configRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	var refs int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM time_slot WHERE provider_event_id = $1`, id).Scan(&refs); err != nil {
		return err
	}
	if refs > 0 {
		return ErrConflict
	}
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM event_configuration WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
