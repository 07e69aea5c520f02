package identity

import (
	"context"
	"net/mail"
	"strings"

	"github.com/samasante/amina/internal/platform/apperr"
)

type Service struct {
	patients PatientRepository
	doctors  DoctorRepository
}

func NewService(patients PatientRepository, doctors DoctorRepository) *Service {
	return &Service{patients: patients, doctors: doctors}
}

// -- Patient --

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := validatePatient(p); err != nil {
		return err
	}
	p.AnonymizedAt = nil
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// UpdatePatient rewrites the demographic fields. Anonymized patients are
// frozen so their identity cannot be restored.
func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if err := validatePatient(p); err != nil {
		return err
	}
	existing, err := s.patients.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if existing.IsAnonymized() {
		return apperr.Conflict("patient %d is anonymized", p.ID)
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) ListPatients(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return s.patients.List(ctx, limit, offset)
	}
	return s.patients.Search(ctx, name, limit, offset)
}

func validatePatient(p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" || p.LastName == "" {
		return apperr.Invalid("first_name and last_name are required")
	}
	if err := validateContact(p.Email, p.Phone); err != nil {
		return err
	}
	if p.Gender != nil && !validGenders[*p.Gender] {
		return apperr.Invalid("gender %q is not one of male, female, other, unknown", *p.Gender)
	}
	return nil
}

// -- Doctor --

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if err := validateDoctor(d); err != nil {
		return err
	}
	d.Active = true
	return s.doctors.Create(ctx, d)
}

func (s *Service) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor) error {
	if err := validateDoctor(d); err != nil {
		return err
	}
	return s.doctors.Update(ctx, d)
}

// DeactivateDoctor hides the doctor from booking while keeping the rows
// their appointments and documents point to.
func (s *Service) DeactivateDoctor(ctx context.Context, id int64) error {
	return s.doctors.SetActive(ctx, id, false)
}

func (s *Service) ListDoctors(ctx context.Context, specialty string, activeOnly bool, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, strings.TrimSpace(specialty), activeOnly, limit, offset)
}

func validateDoctor(d *Doctor) error {
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Specialty = strings.TrimSpace(d.Specialty)
	if d.FirstName == "" || d.LastName == "" {
		return apperr.Invalid("first_name and last_name are required")
	}
	if d.Specialty == "" {
		return apperr.Invalid("specialty is required")
	}
	return validateContact(d.Email, d.Phone)
}

func validateContact(email, phone *string) error {
	if email != nil && *email != "" {
		if _, err := mail.ParseAddress(*email); err != nil {
			return apperr.Invalid("email %q is not a valid address", *email)
		}
	}
	if phone != nil && len(*phone) > 32 {
		return apperr.Invalid("phone is too long")
	}
	return nil
}
