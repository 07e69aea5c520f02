package scheduling

import (
	"context"
	"time"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	// List orders by start time; limit <= 0 returns every match.
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error)
}

// SlotChecker tells whether a slot is still free. The availability service
// implements it.
type SlotChecker interface {
	IsSlotFree(ctx context.Context, doctorID int64, start time.Time, durationMinutes int) (bool, error)
}

// TxRunner runs fn in a serializable transaction carried by ctx.
type TxRunner interface {
	WithSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error
}
