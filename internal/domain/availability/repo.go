package availability

import (
	"context"
	"time"
)

type Repository interface {
	// GetRule returns nil, nil when the doctor has no rule on record.
	GetRule(ctx context.Context, doctorID int64) (*WeeklyRule, error)
	SaveRule(ctx context.Context, rule *WeeklyRule) error
	// ListBookings returns the doctor's appointments starting in [from, to).
	ListBookings(ctx context.Context, doctorID int64, from, to time.Time) ([]Booking, error)
}
