package documents

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samasante/amina/internal/platform/db"
)

// Column lists follow the struct `db` tags so rows scan with
// pgx.RowToAddrOfStructByName.
const (
	medicalFileCols  = `id, patient_id, blood_type, allergies, chronic_conditions, notes, created_at, updated_at`
	prescriptionCols = `id, patient_id, doctor_id, appointment_id, medications, instructions, created_at`
	labOrderCols     = `id, patient_id, doctor_id, tests, status, notes, result_summary, created_at, updated_at`
	noteCols         = `id, patient_id, doctor_id, appointment_id, content, created_at`
	certificateCols  = `id, patient_id, doctor_id, type, content, issued_at`
	referralCols     = `id, patient_id, doctor_id, target_specialty, reason, content, created_at`
)

func getByID[T any](ctx context.Context, q db.Querier, entity, table, cols string, id int64) (*T, error) {
	rows, err := q.Query(ctx, `SELECT `+cols+` FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("%s get: %w", entity, err)
	}
	v, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		return nil, db.NotFoundOr(err, entity, id)
	}
	return v, nil
}

// listByPatient pages through table for one patient, newest first. table
// and cols are package constants, never caller input.
func listByPatient[T any](ctx context.Context, q db.Querier, entity, table, cols, orderBy string, patientID int64, limit, offset int) ([]*T, int, error) {
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM `+table+` WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s count: %w", entity, err)
	}

	// LIMIT NULL means no limit.
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := q.Query(ctx,
		`SELECT `+cols+` FROM `+table+` WHERE patient_id = $1 ORDER BY `+orderBy+` DESC, id DESC LIMIT $2 OFFSET $3`,
		patientID, lim, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s list: %w", entity, err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		return nil, 0, fmt.Errorf("%s list: %w", entity, err)
	}
	return items, total, nil
}

// -- Medical File --

type medicalFileRepoPG struct{ pool *pgxpool.Pool }

func NewMedicalFileRepo(pool *pgxpool.Pool) MedicalFileRepository {
	return &medicalFileRepoPG{pool: pool}
}

func (r *medicalFileRepoPG) GetByPatient(ctx context.Context, patientID int64) (*MedicalFile, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+medicalFileCols+` FROM medical_file WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, fmt.Errorf("medical file get: %w", err)
	}
	f, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[MedicalFile])
	if db.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("medical file get: %w", err)
	}
	return f, nil
}

func (r *medicalFileRepoPG) Upsert(ctx context.Context, f *MedicalFile) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medical_file (patient_id, blood_type, allergies, chronic_conditions, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (patient_id) DO UPDATE SET
			blood_type = EXCLUDED.blood_type,
			allergies = EXCLUDED.allergies,
			chronic_conditions = EXCLUDED.chronic_conditions,
			notes = EXCLUDED.notes,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		f.PatientID, f.BloodType, f.Allergies, f.ChronicConditions, f.Notes,
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("medical file upsert: %w", db.MapError(err))
	}
	return nil
}

// -- Prescription --

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepo(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO prescription (patient_id, doctor_id, appointment_id, medications, instructions)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		p.PatientID, p.DoctorID, p.AppointmentID, p.Medications, p.Instructions,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("prescription create: %w", db.MapError(err))
	}
	return nil
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id int64) (*Prescription, error) {
	return getByID[Prescription](ctx, db.Conn(ctx, r.pool), "prescription", "prescription", prescriptionCols, id)
}

func (r *prescriptionRepoPG) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Prescription, int, error) {
	return listByPatient[Prescription](ctx, db.Conn(ctx, r.pool), "prescription", "prescription", prescriptionCols, "created_at", patientID, limit, offset)
}

// -- Lab Order --

type labOrderRepoPG struct{ pool *pgxpool.Pool }

func NewLabOrderRepo(pool *pgxpool.Pool) LabOrderRepository {
	return &labOrderRepoPG{pool: pool}
}

func (r *labOrderRepoPG) Create(ctx context.Context, o *LabOrder) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO lab_order (patient_id, doctor_id, tests, status, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		o.PatientID, o.DoctorID, o.Tests, o.Status, o.Notes,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("lab order create: %w", db.MapError(err))
	}
	return nil
}

func (r *labOrderRepoPG) GetByID(ctx context.Context, id int64) (*LabOrder, error) {
	return getByID[LabOrder](ctx, db.Conn(ctx, r.pool), "lab order", "lab_order", labOrderCols, id)
}

func (r *labOrderRepoPG) UpdateStatus(ctx context.Context, id int64, status string, resultSummary *string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE lab_order SET status = $2, result_summary = COALESCE($3, result_summary), updated_at = NOW()
		WHERE id = $1`, id, status, resultSummary)
	if err != nil {
		return fmt.Errorf("lab order update status: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return db.NotFoundOr(pgx.ErrNoRows, "lab order", id)
	}
	return nil
}

func (r *labOrderRepoPG) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*LabOrder, int, error) {
	return listByPatient[LabOrder](ctx, db.Conn(ctx, r.pool), "lab order", "lab_order", labOrderCols, "created_at", patientID, limit, offset)
}

// -- Consultation Note --

type noteRepoPG struct{ pool *pgxpool.Pool }

func NewConsultationNoteRepo(pool *pgxpool.Pool) ConsultationNoteRepository {
	return &noteRepoPG{pool: pool}
}

func (r *noteRepoPG) Create(ctx context.Context, n *ConsultationNote) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO consultation_note (patient_id, doctor_id, appointment_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		n.PatientID, n.DoctorID, n.AppointmentID, n.Content,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("consultation note create: %w", db.MapError(err))
	}
	return nil
}

func (r *noteRepoPG) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*ConsultationNote, int, error) {
	return listByPatient[ConsultationNote](ctx, db.Conn(ctx, r.pool), "consultation note", "consultation_note", noteCols, "created_at", patientID, limit, offset)
}

// -- Certificate --

type certificateRepoPG struct{ pool *pgxpool.Pool }

func NewCertificateRepo(pool *pgxpool.Pool) CertificateRepository {
	return &certificateRepoPG{pool: pool}
}

func (r *certificateRepoPG) Create(ctx context.Context, c *Certificate) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO certificate (patient_id, doctor_id, type, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, issued_at`,
		c.PatientID, c.DoctorID, c.Type, c.Content,
	).Scan(&c.ID, &c.IssuedAt)
	if err != nil {
		return fmt.Errorf("certificate create: %w", db.MapError(err))
	}
	return nil
}

func (r *certificateRepoPG) GetByID(ctx context.Context, id int64) (*Certificate, error) {
	return getByID[Certificate](ctx, db.Conn(ctx, r.pool), "certificate", "certificate", certificateCols, id)
}

func (r *certificateRepoPG) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Certificate, int, error) {
	return listByPatient[Certificate](ctx, db.Conn(ctx, r.pool), "certificate", "certificate", certificateCols, "issued_at", patientID, limit, offset)
}

// -- Referral Letter --

type referralRepoPG struct{ pool *pgxpool.Pool }

func NewReferralLetterRepo(pool *pgxpool.Pool) ReferralLetterRepository {
	return &referralRepoPG{pool: pool}
}

func (r *referralRepoPG) Create(ctx context.Context, l *ReferralLetter) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO referral_letter (patient_id, doctor_id, target_specialty, reason, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		l.PatientID, l.DoctorID, l.TargetSpecialty, l.Reason, l.Content,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("referral letter create: %w", db.MapError(err))
	}
	return nil
}

func (r *referralRepoPG) GetByID(ctx context.Context, id int64) (*ReferralLetter, error) {
	return getByID[ReferralLetter](ctx, db.Conn(ctx, r.pool), "referral letter", "referral_letter", referralCols, id)
}

func (r *referralRepoPG) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*ReferralLetter, int, error) {
	return listByPatient[ReferralLetter](ctx, db.Conn(ctx, r.pool), "referral letter", "referral_letter", referralCols, "created_at", patientID, limit, offset)
}
