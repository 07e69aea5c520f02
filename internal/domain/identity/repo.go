package identity

import (
	"context"
	"time"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	Search(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error)
	// Anonymize replaces both names with placeholder and clears the contact
	// data, leaving the row and its clinical records in place.
	Anonymize(ctx context.Context, id int64, placeholder string, at time.Time) error
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id int64) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	SetActive(ctx context.Context, id int64, active bool) error
	List(ctx context.Context, specialty string, activeOnly bool, limit, offset int) ([]*Doctor, int, error)
}
