package gdpr

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samasante/amina/internal/domain/documents"
	"github.com/samasante/amina/internal/domain/identity"
	"github.com/samasante/amina/internal/domain/scheduling"
	"github.com/samasante/amina/internal/platform/apperr"
	"github.com/samasante/amina/internal/platform/compliance"
	"github.com/samasante/amina/internal/platform/metrics"
)

// -- Mocks --

// store is one in-memory clinic. ops records the order of writes.
type store struct {
	patients map[int64]*identity.Patient
	doctors  map[int64]*identity.Doctor
	appts    []*scheduling.Appointment
	rx       []*documents.Prescription
	labs     []*documents.LabOrder
	notes    []*documents.ConsultationNote
	files    map[int64]*documents.MedicalFile
	ops      []string
	priors   []string
	auditErr error
}

func newStore() *store {
	return &store{
		patients: map[int64]*identity.Patient{},
		doctors:  map[int64]*identity.Doctor{},
		files:    map[int64]*documents.MedicalFile{},
	}
}

type patientStore struct{ s *store }

func (p patientStore) GetByID(_ context.Context, id int64) (*identity.Patient, error) {
	pt, ok := p.s.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient", id)
	}
	cp := *pt
	return &cp, nil
}

func (p patientStore) Anonymize(_ context.Context, id int64, placeholder string, at time.Time) error {
	pt, ok := p.s.patients[id]
	if !ok {
		return apperr.NotFound("patient", id)
	}
	pt.FirstName, pt.LastName = placeholder, placeholder
	pt.Email, pt.Phone = nil, nil
	pt.AnonymizedAt = &at
	p.s.ops = append(p.s.ops, "anonymize")
	return nil
}

func (p patientStore) Delete(_ context.Context, id int64) error {
	if _, ok := p.s.patients[id]; !ok {
		return apperr.NotFound("patient", id)
	}
	delete(p.s.patients, id)
	p.s.ops = append(p.s.ops, "delete")
	return nil
}

type doctorLookup struct{ s *store }

func (d doctorLookup) GetByID(_ context.Context, id int64) (*identity.Doctor, error) {
	doc, ok := d.s.doctors[id]
	if !ok {
		return nil, apperr.NotFound("doctor", id)
	}
	return doc, nil
}

type appointmentSource struct{ s *store }

func (a appointmentSource) List(_ context.Context, f scheduling.ListFilter, _, _ int) ([]*scheduling.Appointment, int, error) {
	var out []*scheduling.Appointment
	for _, ap := range a.s.appts {
		if ap.PatientID == f.PatientID {
			out = append(out, ap)
		}
	}
	return out, len(out), nil
}

type documentSource struct{ s *store }

func (d documentSource) FindMedicalFile(_ context.Context, patientID int64) (*documents.MedicalFile, error) {
	return d.s.files[patientID], nil
}

func (d documentSource) ListPrescriptions(_ context.Context, patientID int64, _, _ int) ([]*documents.Prescription, int, error) {
	var out []*documents.Prescription
	for _, p := range d.s.rx {
		if p.PatientID == patientID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (d documentSource) ListLabOrders(_ context.Context, patientID int64, _, _ int) ([]*documents.LabOrder, int, error) {
	var out []*documents.LabOrder
	for _, o := range d.s.labs {
		if o.PatientID == patientID {
			out = append(out, o)
		}
	}
	return out, len(out), nil
}

func (d documentSource) ListConsultationNotes(_ context.Context, patientID int64, _, _ int) ([]*documents.ConsultationNote, int, error) {
	var out []*documents.ConsultationNote
	for _, n := range d.s.notes {
		if n.PatientID == patientID {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (d documentSource) ListCertificates(context.Context, int64, int, int) ([]*documents.Certificate, int, error) {
	return nil, 0, nil
}

func (d documentSource) ListReferralLetters(context.Context, int64, int, int) ([]*documents.ReferralLetter, int, error) {
	return nil, 0, nil
}

type auditRecorder struct{ s *store }

func (a auditRecorder) LogAccess(_ context.Context, userID, entityType string, entityID int64) error {
	if a.s.auditErr != nil {
		return a.s.auditErr
	}
	a.s.ops = append(a.s.ops, "audit:access:"+userID)
	return nil
}

func (a auditRecorder) LogDelete(_ context.Context, userID, entityType string, entityID int64, prior any) error {
	if a.s.auditErr != nil {
		return a.s.auditErr
	}
	e, err := compliance.NewEntry(context.Background(), userID, compliance.ActionDelete, entityType, entityID, prior)
	if err != nil {
		return err
	}
	a.s.priors = append(a.s.priors, string(e.PriorState))
	a.s.ops = append(a.s.ops, "audit:delete:"+userID)
	return nil
}

// rollbackTx restores the patients when fn fails, like a real transaction.
type rollbackTx struct{ s *store }

func (t rollbackTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	saved := make(map[int64]identity.Patient, len(t.s.patients))
	for id, p := range t.s.patients {
		saved[id] = *p
	}
	if err := fn(ctx); err != nil {
		t.s.patients = make(map[int64]*identity.Patient, len(saved))
		for id, p := range saved {
			p := p
			t.s.patients[id] = &p
		}
		return err
	}
	return nil
}

var fixedNow = time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)

func newTestService(s *store, m *metrics.Metrics) *Service {
	svc := NewService(
		Sources{
			Patients:     patientStore{s},
			Doctors:      doctorLookup{s},
			Appointments: appointmentSource{s},
			Documents:    documentSource{s},
		},
		compliance.NewRetentionService(compliance.DefaultRetentionPolicies(), zerolog.Nop()),
		auditRecorder{s}, rollbackTx{s}, m, zerolog.Nop(),
	)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func strPtr(s string) *string { return &s }

func seedPatient(s *store, id int64, lastVisits ...time.Time) {
	s.patients[id] = &identity.Patient{
		ID: id, FirstName: "Amina", LastName: "Benali",
		Email: strPtr("amina@example.com"), Phone: strPtr("+212600000000"),
	}
	s.doctors[7] = &identity.Doctor{ID: 7, FirstName: "Karim", LastName: "Alaoui", Specialty: "cardiology"}
	for _, at := range lastVisits {
		s.appts = append(s.appts, &scheduling.Appointment{
			ID: int64(len(s.appts) + 1), DoctorID: 7, PatientID: id,
			StartTime: at, EndTime: at.Add(30 * time.Minute), Status: scheduling.StatusDone,
		})
	}
}

// -- RequestErasure --

func TestRequestErasure_OldPatientIsErased(t *testing.T) {
	s := newStore()
	seedPatient(s, 1, fixedNow.AddDate(-21, 0, 0), fixedNow.AddDate(-25, 0, 0))
	svc := newTestService(s, nil)

	out, err := svc.RequestErasure(context.Background(), 1, "user-1")
	require.NoError(t, err)

	assert.Equal(t, OutcomeErased, out.Outcome)
	assert.Empty(t, out.RetainedData)
	assert.NotContains(t, s.patients, int64(1))
	assert.Equal(t, []string{"audit:delete:user-1", "delete"}, s.ops, "audit entry must precede the deletion")
}

func TestRequestErasure_NoAppointmentsIsErased(t *testing.T) {
	s := newStore()
	seedPatient(s, 1)
	svc := newTestService(s, nil)

	out, err := svc.RequestErasure(context.Background(), 1, "user-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeErased, out.Outcome)
	assert.NotContains(t, s.patients, int64(1))
}

func TestRequestErasure_RecentPatientIsAnonymized(t *testing.T) {
	s := newStore()
	seedPatient(s, 1, fixedNow.AddDate(-8, 0, 0), fixedNow.AddDate(-5, 0, 0))
	svc := newTestService(s, nil)

	out, err := svc.RequestErasure(context.Background(), 1, "user-1")
	require.NoError(t, err)

	assert.Equal(t, OutcomeAnonymized, out.Outcome)
	require.Len(t, out.RetainedData, 2)
	assert.Contains(t, out.RetainedData[0], "20 ans")
	assert.Contains(t, out.RetainedData[1], "10 ans")

	p := s.patients[1]
	require.NotNil(t, p, "anonymized patient keeps its row")
	placeholder := regexp.MustCompile(`^ANONYME_[0-9a-f]{12}$`)
	assert.Regexp(t, placeholder, p.FirstName)
	assert.Regexp(t, placeholder, p.LastName)
	assert.NotEqual(t, "Amina", p.FirstName)
	assert.Nil(t, p.Email)
	assert.Nil(t, p.Phone)
	assert.NotNil(t, p.AnonymizedAt)
	assert.Len(t, s.appts, 2, "clinical history stays attached")
	assert.Equal(t, []string{"anonymize", "audit:delete:user-1"}, s.ops)
}

func TestRequestErasure_AuditHoldsNoIdentity(t *testing.T) {
	tests := []struct {
		name    string
		visits  []time.Time
		outcome string
	}{
		{"anonymized", []time.Time{fixedNow.AddDate(-5, 0, 0)}, OutcomeAnonymized},
		{"erased", []time.Time{fixedNow.AddDate(-21, 0, 0)}, OutcomeErased},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore()
			seedPatient(s, 1, tt.visits...)
			s.files[1] = &documents.MedicalFile{
				ID: 3, PatientID: 1,
				Allergies: strPtr("Pénicilline"), ChronicConditions: strPtr("Asthme"),
			}
			svc := newTestService(s, nil)

			out, err := svc.RequestErasure(context.Background(), 1, "user-1")
			require.NoError(t, err)
			require.Equal(t, tt.outcome, out.Outcome)

			require.Len(t, s.priors, 1)
			prior := s.priors[0]
			for _, secret := range []string{"Amina", "Benali", "amina@example.com", "+212600000000", "Pénicilline", "Asthme"} {
				assert.NotContains(t, prior, secret)
			}
			assert.Contains(t, prior, `"patient_id":1`)
			assert.Contains(t, prior, `"had_medical_file":true`)
			assert.Contains(t, prior, `"outcome":"`+tt.outcome+`"`)
		})
	}
}

func TestRequestErasure_OnlyClinicalRetention(t *testing.T) {
	s := newStore()
	seedPatient(s, 1, fixedNow.AddDate(-15, 0, 0))
	svc := newTestService(s, nil)

	out, err := svc.RequestErasure(context.Background(), 1, "user-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnonymized, out.Outcome)
	require.Len(t, out.RetainedData, 1)
	assert.Contains(t, out.RetainedData[0], "Dossier médical")
}

func TestRequestErasure_NotFound(t *testing.T) {
	s := newStore()
	svc := newTestService(s, nil)

	_, err := svc.RequestErasure(context.Background(), 42, "user-1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Empty(t, s.ops)
}

func TestRequestErasure_AuditFailureRollsBack(t *testing.T) {
	s := newStore()
	seedPatient(s, 1, fixedNow.AddDate(-5, 0, 0))
	s.auditErr = errors.New("audit_log unavailable")
	m := metrics.New()
	svc := newTestService(s, m)

	_, err := svc.RequestErasure(context.Background(), 1, "user-1")
	require.Error(t, err)

	p := s.patients[1]
	require.NotNil(t, p)
	assert.Equal(t, "Amina", p.FirstName)
	assert.NotNil(t, p.Email)

	expected := `
# HELP amina_gdpr_requests_total GDPR requests by kind and outcome.
# TYPE amina_gdpr_requests_total counter
amina_gdpr_requests_total{kind="erasure",outcome="error"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "amina_gdpr_requests_total"))
}

func TestAnonymizedName_Unlinkable(t *testing.T) {
	a, b := anonymizedName(1), anonymizedName(1)
	assert.True(t, strings.HasPrefix(a, placeholderPrefix))
	assert.Len(t, a, len(placeholderPrefix)+12)
	assert.NotEqual(t, a, b, "the salt makes every placeholder unique")
}

// -- ExportPatientData --

func seedExport(s *store) {
	seedPatient(s, 1, time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC))
	apptID := s.appts[0].ID
	s.appts[0].Motive = strPtr("Palpitations")
	s.notes = append(s.notes, &documents.ConsultationNote{ID: 1, PatientID: 1, DoctorID: 7, AppointmentID: &apptID, Content: "ECG normal"})
	s.rx = append(s.rx, &documents.Prescription{
		ID: 1, PatientID: 1, DoctorID: 7,
		Medications:  []documents.Medication{{Name: "Bisoprolol", Dosage: "2.5mg"}},
		Instructions: strPtr("Le matin"),
		CreatedAt:    time.Date(2026, time.March, 3, 9, 30, 0, 0, time.UTC),
	})
	s.files[1] = &documents.MedicalFile{ID: 1, PatientID: 1, BloodType: strPtr("O+")}
}

func TestExportPatientData(t *testing.T) {
	s := newStore()
	seedExport(s)
	svc := newTestService(s, nil)

	b, err := svc.ExportPatientData(context.Background(), 1, "user-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"audit:access:user-1"}, s.ops)
	assert.Equal(t, "Amina", b.Patient.FirstName)
	require.NotNil(t, b.MedicalFile)
	assert.Equal(t, "O+", *b.MedicalFile.BloodType)

	require.Len(t, b.Appointments, 1)
	a := b.Appointments[0]
	assert.Equal(t, "Dr Karim Alaoui", a.DoctorName)
	assert.Equal(t, "cardiology", a.DoctorSpecialty)
	assert.Equal(t, "ECG normal", a.ConsultationNote)
	assert.Equal(t, "Palpitations", a.Motive)

	require.Len(t, b.Prescriptions, 1)
	assert.Equal(t, "Bisoprolol, 2.5mg", b.Prescriptions[0].Medications)
	assert.Equal(t, "Le matin", b.Prescriptions[0].Instructions)
}

func TestExportPatientData_AuditFailureReturnsNothing(t *testing.T) {
	s := newStore()
	seedExport(s)
	s.auditErr = errors.New("audit_log unavailable")
	svc := newTestService(s, nil)

	b, err := svc.ExportPatientData(context.Background(), 1, "user-1")
	assert.Error(t, err)
	assert.Nil(t, b)
}

func TestExportPatientData_NotFound(t *testing.T) {
	svc := newTestService(newStore(), nil)
	_, err := svc.ExportPatientData(context.Background(), 9, "user-1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
