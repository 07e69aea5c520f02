package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samasante/amina/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) GetRule(ctx context.Context, doctorID int64) (*WeeklyRule, error) {
	rule := WeeklyRule{DoctorID: doctorID}
	var raw []byte
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT a.rule, a.consultation_minutes, a.buffer_minutes, a.updated_at, NOT d.active
		FROM availability a JOIN doctor d ON d.id = a.doctor_id
		WHERE a.doctor_id = $1`, doctorID,
	).Scan(&raw, &rule.ConsultationMinutes, &rule.BufferMinutes, &rule.UpdatedAt, &rule.DoctorInactive)
	if db.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("availability get: %w", err)
	}
	if err := json.Unmarshal(raw, &rule.Days); err != nil {
		return nil, fmt.Errorf("availability decode rule of doctor %d: %w", doctorID, err)
	}
	return &rule, nil
}

func (r *repoPG) SaveRule(ctx context.Context, rule *WeeklyRule) error {
	raw, err := json.Marshal(rule.Days)
	if err != nil {
		return fmt.Errorf("availability encode rule: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO availability (doctor_id, rule, consultation_minutes, buffer_minutes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (doctor_id) DO UPDATE SET
			rule = EXCLUDED.rule,
			consultation_minutes = EXCLUDED.consultation_minutes,
			buffer_minutes = EXCLUDED.buffer_minutes,
			updated_at = NOW()
		RETURNING updated_at`,
		rule.DoctorID, raw, rule.ConsultationMinutes, rule.BufferMinutes,
	).Scan(&rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("availability save: %w", db.MapError(err))
	}
	return nil
}

func (r *repoPG) ListBookings(ctx context.Context, doctorID int64, from, to time.Time) ([]Booking, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT start_time, status FROM appointment
		WHERE doctor_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time`, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("availability list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.Start, &b.Status); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
