package documents

import (
	"context"
)

// List methods return every row when limit <= 0.

type MedicalFileRepository interface {
	// GetByPatient returns nil, nil when the patient has no medical file.
	GetByPatient(ctx context.Context, patientID int64) (*MedicalFile, error)
	Upsert(ctx context.Context, f *MedicalFile) error
}

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id int64) (*Prescription, error)
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Prescription, int, error)
}

type LabOrderRepository interface {
	Create(ctx context.Context, o *LabOrder) error
	GetByID(ctx context.Context, id int64) (*LabOrder, error)
	UpdateStatus(ctx context.Context, id int64, status string, resultSummary *string) error
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*LabOrder, int, error)
}

type ConsultationNoteRepository interface {
	Create(ctx context.Context, n *ConsultationNote) error
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*ConsultationNote, int, error)
}

type CertificateRepository interface {
	Create(ctx context.Context, c *Certificate) error
	GetByID(ctx context.Context, id int64) (*Certificate, error)
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Certificate, int, error)
}

type ReferralLetterRepository interface {
	Create(ctx context.Context, r *ReferralLetter) error
	GetByID(ctx context.Context, id int64) (*ReferralLetter, error)
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*ReferralLetter, int, error)
}
