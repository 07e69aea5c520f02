package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samasante/amina/internal/platform/db"
)

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, first_name, last_name, email, phone, birth_date, gender, address,
	anonymized_at, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (first_name, last_name, email, phone, birth_date, gender, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		p.FirstName, p.LastName, p.Email, p.Phone, p.BirthDate, p.Gender, p.Address,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("patient create: %w", db.MapError(err))
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFoundOr(err, "patient", id)
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET
			first_name = $2, last_name = $3, email = $4, phone = $5,
			birth_date = $6, gender = $7, address = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.BirthDate, p.Gender, p.Address,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return db.NotFoundOr(err, "patient", p.ID)
	}
	return nil
}

// Delete removes the patient row. Appointments, documents and signatures go
// with it through ON DELETE CASCADE.
func (r *patientRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("patient delete: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return db.NotFoundOr(pgx.ErrNoRows, "patient", id)
	}
	return nil
}

func (r *patientRepoPG) Anonymize(ctx context.Context, id int64, placeholder string, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET
			first_name = $2, last_name = $2, email = NULL, phone = NULL,
			anonymized_at = $3, updated_at = NOW()
		WHERE id = $1`,
		id, placeholder, at,
	)
	if err != nil {
		return fmt.Errorf("patient anonymize: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return db.NotFoundOr(pgx.ErrNoRows, "patient", id)
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return r.Search(ctx, "", limit, offset)
}

// Search matches name case-insensitively against first and last names. An
// empty name lists every patient.
func (r *patientRepoPG) Search(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error) {
	where := ""
	args := []any{}
	if name != "" {
		where = ` WHERE first_name ILIKE $1 OR last_name ILIKE $1`
		args = append(args, "%"+name+"%")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("patient count: %w", err)
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT `+patientCols+` FROM patient`+where+` ORDER BY last_name, first_name, id LIMIT $%d OFFSET $%d`, n+1, n+2),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("patient list: %w", err)
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.BirthDate, &p.Gender, &p.Address,
		&p.AnonymizedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// -- Doctor Repository --

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewDoctorRepo(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const doctorCols = `id, first_name, last_name, specialty, email, phone, active, created_at, updated_at`

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor (first_name, last_name, specialty, email, phone, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		d.FirstName, d.LastName, d.Specialty, d.Email, d.Phone, d.Active,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("doctor create: %w", db.MapError(err))
	}
	return nil
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id int64) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
	if err != nil {
		return nil, db.NotFoundOr(err, "doctor", id)
	}
	return d, nil
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctor SET
			first_name = $2, last_name = $3, specialty = $4, email = $5, phone = $6,
			active = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.FirstName, d.LastName, d.Specialty, d.Email, d.Phone, d.Active,
	).Scan(&d.UpdatedAt)
	if err != nil {
		return db.NotFoundOr(err, "doctor", d.ID)
	}
	return nil
}

func (r *doctorRepoPG) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE doctor SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("doctor set active: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return db.NotFoundOr(pgx.ErrNoRows, "doctor", id)
	}
	return nil
}

func (r *doctorRepoPG) List(ctx context.Context, specialty string, activeOnly bool, limit, offset int) ([]*Doctor, int, error) {
	const filter = ` WHERE ($1 = '' OR specialty = $1) AND (NOT $2 OR active)`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor`+filter, specialty, activeOnly).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("doctor count: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+doctorCols+` FROM doctor`+filter+` ORDER BY last_name, first_name, id LIMIT $3 OFFSET $4`,
		specialty, activeOnly, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("doctor list: %w", err)
	}
	defer rows.Close()

	var doctors []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		doctors = append(doctors, d)
	}
	return doctors, total, rows.Err()
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.Specialty, &d.Email, &d.Phone, &d.Active,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
