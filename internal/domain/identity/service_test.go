package identity

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/samasante/amina/internal/platform/apperr"
)

// -- Mock Patient Repository --

type mockPatientRepo struct {
	patients map[int64]*Patient
	nextID   int64
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[int64]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id int64) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient", id)
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return apperr.NotFound("patient", p.ID)
	}
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.patients[id]; !ok {
		return apperr.NotFound("patient", id)
	}
	delete(m.patients, id)
	return nil
}

func (m *mockPatientRepo) Anonymize(_ context.Context, id int64, placeholder string, at time.Time) error {
	p, ok := m.patients[id]
	if !ok {
		return apperr.NotFound("patient", id)
	}
	p.FirstName, p.LastName = placeholder, placeholder
	p.Email, p.Phone = nil, nil
	p.AnonymizedAt = &at
	return nil
}

func (m *mockPatientRepo) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return m.Search(ctx, "", limit, offset)
}

func (m *mockPatientRepo) Search(_ context.Context, name string, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	needle := strings.ToLower(name)
	for _, p := range m.patients {
		if needle == "" || strings.Contains(strings.ToLower(p.FirstName+" "+p.LastName), needle) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	total := len(result)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return result[offset:end], total, nil
}

// -- Mock Doctor Repository --

type mockDoctorRepo struct {
	doctors map[int64]*Doctor
	nextID  int64
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{doctors: make(map[int64]*Doctor)}
}

func (m *mockDoctorRepo) Create(_ context.Context, d *Doctor) error {
	m.nextID++
	d.ID = m.nextID
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id int64) (*Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, apperr.NotFound("doctor", id)
	}
	cp := *d
	return &cp, nil
}

func (m *mockDoctorRepo) Update(_ context.Context, d *Doctor) error {
	if _, ok := m.doctors[d.ID]; !ok {
		return apperr.NotFound("doctor", d.ID)
	}
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *mockDoctorRepo) SetActive(_ context.Context, id int64, active bool) error {
	d, ok := m.doctors[id]
	if !ok {
		return apperr.NotFound("doctor", id)
	}
	d.Active = active
	return nil
}

func (m *mockDoctorRepo) List(_ context.Context, specialty string, activeOnly bool, limit, offset int) ([]*Doctor, int, error) {
	var result []*Doctor
	for _, d := range m.doctors {
		if specialty != "" && d.Specialty != specialty {
			continue
		}
		if activeOnly && !d.Active {
			continue
		}
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, len(result), nil
}

func newTestService() *Service {
	return NewService(newMockPatientRepo(), newMockDoctorRepo())
}

func strPtr(s string) *string { return &s }

// -- Patient Tests --

func TestCreatePatient(t *testing.T) {
	svc := newTestService()
	p := &Patient{FirstName: " Amina ", LastName: "Diallo", Email: strPtr("amina@example.com")}
	if err := svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID == 0 {
		t.Error("expected ID to be assigned")
	}
	if p.FirstName != "Amina" {
		t.Errorf("expected trimmed first name, got %q", p.FirstName)
	}
}

func TestCreatePatient_Validation(t *testing.T) {
	tests := []struct {
		name string
		p    *Patient
	}{
		{"missing first name", &Patient{LastName: "Diallo"}},
		{"missing last name", &Patient{FirstName: "Amina"}},
		{"bad email", &Patient{FirstName: "Amina", LastName: "Diallo", Email: strPtr("not-an-email")}},
		{"bad gender", &Patient{FirstName: "Amina", LastName: "Diallo", Gender: strPtr("robot")}},
		{"long phone", &Patient{FirstName: "Amina", LastName: "Diallo", Phone: strPtr(strings.Repeat("1", 40))}},
	}
	svc := newTestService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.CreatePatient(context.Background(), tt.p)
			if !errors.Is(err, apperr.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestGetPatient_NotFound(t *testing.T) {
	svc := newTestService()
	_, err := svc.GetPatient(context.Background(), 404)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdatePatient(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	p := &Patient{FirstName: "Amina", LastName: "Diallo"}
	svc.CreatePatient(ctx, p)

	p.LastName = "Ndiaye"
	if err := svc.UpdatePatient(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.GetPatient(ctx, p.ID)
	if got.LastName != "Ndiaye" {
		t.Errorf("expected Ndiaye, got %s", got.LastName)
	}
}

func TestUpdatePatient_AnonymizedIsFrozen(t *testing.T) {
	repo := newMockPatientRepo()
	svc := NewService(repo, newMockDoctorRepo())
	ctx := context.Background()
	p := &Patient{FirstName: "Amina", LastName: "Diallo"}
	svc.CreatePatient(ctx, p)
	repo.Anonymize(ctx, p.ID, "ANONYME_abc", time.Now())

	err := svc.UpdatePatient(ctx, &Patient{ID: p.ID, FirstName: "Amina", LastName: "Diallo"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestListPatients_ByName(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	svc.CreatePatient(ctx, &Patient{FirstName: "Amina", LastName: "Diallo"})
	svc.CreatePatient(ctx, &Patient{FirstName: "Moussa", LastName: "Sow"})

	all, total, err := svc.ListPatients(ctx, "", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Errorf("expected 2 patients, got %d/%d", len(all), total)
	}

	found, total, _ := svc.ListPatients(ctx, "  sow ", 20, 0)
	if total != 1 || found[0].LastName != "Sow" {
		t.Errorf("expected only Sow, got %d results", total)
	}
}

// -- Doctor Tests --

func TestCreateDoctor(t *testing.T) {
	svc := newTestService()
	d := &Doctor{FirstName: "Fatou", LastName: "Ba", Specialty: "cardiology"}
	if err := svc.CreateDoctor(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Active {
		t.Error("expected new doctor to be active")
	}
	if d.FullName() != "Dr Fatou Ba" {
		t.Errorf("unexpected full name %q", d.FullName())
	}
}

func TestCreateDoctor_RequiresSpecialty(t *testing.T) {
	svc := newTestService()
	err := svc.CreateDoctor(context.Background(), &Doctor{FirstName: "Fatou", LastName: "Ba"})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDeactivateDoctor(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	d := &Doctor{FirstName: "Fatou", LastName: "Ba", Specialty: "cardiology"}
	svc.CreateDoctor(ctx, d)

	if err := svc.DeactivateDoctor(ctx, d.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	active, _, _ := svc.ListDoctors(ctx, "", true, 20, 0)
	if len(active) != 0 {
		t.Errorf("expected no active doctors, got %d", len(active))
	}
	all, _, _ := svc.ListDoctors(ctx, "", false, 20, 0)
	if len(all) != 1 {
		t.Errorf("expected deactivated doctor to stay listed, got %d", len(all))
	}
}

func TestDeactivateDoctor_NotFound(t *testing.T) {
	svc := newTestService()
	if err := svc.DeactivateDoctor(context.Background(), 9); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
