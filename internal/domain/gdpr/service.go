package gdpr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/samasante/amina/internal/domain/documents"
	"github.com/samasante/amina/internal/domain/identity"
	"github.com/samasante/amina/internal/domain/scheduling"
	"github.com/samasante/amina/internal/platform/compliance"
	"github.com/samasante/amina/internal/platform/metrics"
)

// PatientStore is the part of the patient repository erasure needs.
type PatientStore interface {
	GetByID(ctx context.Context, id int64) (*identity.Patient, error)
	Anonymize(ctx context.Context, id int64, placeholder string, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

type DoctorLookup interface {
	GetByID(ctx context.Context, id int64) (*identity.Doctor, error)
}

type AppointmentSource interface {
	List(ctx context.Context, f scheduling.ListFilter, limit, offset int) ([]*scheduling.Appointment, int, error)
}

// DocumentSource lists a patient's clinical documents. *documents.Service
// implements it.
type DocumentSource interface {
	FindMedicalFile(ctx context.Context, patientID int64) (*documents.MedicalFile, error)
	ListPrescriptions(ctx context.Context, patientID int64, limit, offset int) ([]*documents.Prescription, int, error)
	ListLabOrders(ctx context.Context, patientID int64, limit, offset int) ([]*documents.LabOrder, int, error)
	ListConsultationNotes(ctx context.Context, patientID int64, limit, offset int) ([]*documents.ConsultationNote, int, error)
	ListCertificates(ctx context.Context, patientID int64, limit, offset int) ([]*documents.Certificate, int, error)
	ListReferralLetters(ctx context.Context, patientID int64, limit, offset int) ([]*documents.ReferralLetter, int, error)
}

// AuditRecorder is implemented by *compliance.AuditLogger.
type AuditRecorder interface {
	LogAccess(ctx context.Context, userID, entityType string, entityID int64) error
	LogDelete(ctx context.Context, userID, entityType string, entityID int64, priorState any) error
}

type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Sources groups the read and write collaborators of the service.
type Sources struct {
	Patients     PatientStore
	Doctors      DoctorLookup
	Appointments AppointmentSource
	Documents    DocumentSource
}

type Service struct {
	src       Sources
	retention *compliance.RetentionService
	audit     AuditRecorder
	tx        TxRunner
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(src Sources, retention *compliance.RetentionService, audit AuditRecorder, tx TxRunner, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		src:       src,
		retention: retention,
		audit:     audit,
		tx:        tx,
		metrics:   m,
		logger:    logger.With().Str("component", "gdpr-service").Logger(),
		now:       time.Now,
	}
}

// erasureSnapshot is the prior state recorded in the audit trail. It holds
// no identity field and no medical content: the audit log outlives both
// anonymization and erasure.
type erasureSnapshot struct {
	PatientID        int64      `json:"patient_id"`
	Outcome          string     `json:"outcome"`
	HadMedicalFile   bool       `json:"had_medical_file"`
	Appointments     int        `json:"appointments"`
	Prescriptions    int        `json:"prescriptions"`
	LastConsultation *time.Time `json:"last_consultation,omitempty"`
	RetainedPolicies []string   `json:"retained_policies,omitempty"`
}

// RequestErasure erases the patient when no retention obligation is running
// and anonymizes them otherwise. The whole sequence, audit entry included,
// commits or rolls back as one transaction.
func (s *Service) RequestErasure(ctx context.Context, patientID int64, requestingUserID string) (*ErasureOutcome, error) {
	var out *ErasureOutcome
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.erase(ctx, patientID, requestingUserID)
		return err
	})
	if err != nil {
		s.metrics.GDPR("erasure", "error")
		return nil, err
	}
	s.metrics.GDPR("erasure", strings.ToLower(out.Outcome))
	return out, nil
}

func (s *Service) erase(ctx context.Context, patientID int64, userID string) (*ErasureOutcome, error) {
	if _, err := s.src.Patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	appts, _, err := s.src.Appointments.List(ctx, scheduling.ListFilter{PatientID: patientID}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("load appointments of patient %d: %w", patientID, err)
	}
	rx, _, err := s.src.Documents.ListPrescriptions(ctx, patientID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("load prescriptions of patient %d: %w", patientID, err)
	}
	file, err := s.src.Documents.FindMedicalFile(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load medical file of patient %d: %w", patientID, err)
	}

	last := lastConsultation(appts)
	prior := erasureSnapshot{
		PatientID:        patientID,
		Outcome:          OutcomeErased,
		HadMedicalFile:   file != nil,
		Appointments:     len(appts),
		Prescriptions:    len(rx),
		LastConsultation: last,
	}

	var retained []string
	for _, o := range s.retention.Obligations(last, s.now()) {
		retained = append(retained, o.Reason)
		prior.RetainedPolicies = append(prior.RetainedPolicies, o.Category)
	}

	log := s.logger.With().Int64("patient_id", patientID).Str("requested_by", userID).Logger()

	if len(retained) > 0 {
		prior.Outcome = OutcomeAnonymized
		if err := s.src.Patients.Anonymize(ctx, patientID, anonymizedName(patientID), s.now()); err != nil {
			return nil, fmt.Errorf("anonymize patient %d: %w", patientID, err)
		}
		if err := s.audit.LogDelete(ctx, userID, "patient", patientID, prior); err != nil {
			return nil, err
		}
		log.Info().Int("retained", len(retained)).Msg("patient anonymized")
		return &ErasureOutcome{
			Outcome:      OutcomeAnonymized,
			Message:      "Vos données personnelles ont été anonymisées. Certaines données sont conservées au titre des obligations légales.",
			RetainedData: retained,
		}, nil
	}

	// The entry is written first: it references the row about to disappear.
	if err := s.audit.LogDelete(ctx, userID, "patient", patientID, prior); err != nil {
		return nil, err
	}
	if err := s.src.Patients.Delete(ctx, patientID); err != nil {
		return nil, fmt.Errorf("delete patient %d: %w", patientID, err)
	}
	log.Info().Msg("patient erased")
	return &ErasureOutcome{
		Outcome: OutcomeErased,
		Message: "Toutes vos données ont été supprimées.",
	}, nil
}

// lastConsultation is the most recent appointment start, whatever its status.
func lastConsultation(appts []*scheduling.Appointment) *time.Time {
	var last *time.Time
	for _, a := range appts {
		if last == nil || a.StartTime.After(*last) {
			t := a.StartTime
			last = &t
		}
	}
	return last
}

// anonymizedName derives an irreversible placeholder: the salt is random and
// never stored.
func anonymizedName(patientID int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", patientID, uuid.NewString())))
	return placeholderPrefix + hex.EncodeToString(sum[:])[:12]
}

// ExportPatientData records the access, then assembles everything stored
// about the patient.
func (s *Service) ExportPatientData(ctx context.Context, patientID int64, requestingUserID string) (*PatientExportBundle, error) {
	patient, err := s.src.Patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if err := s.audit.LogAccess(ctx, requestingUserID, "patient", patientID); err != nil {
		return nil, err
	}

	b := &PatientExportBundle{
		ExportedAt: s.now(),
		Patient: PersonalData{
			ID:           patient.ID,
			FirstName:    patient.FirstName,
			LastName:     patient.LastName,
			Email:        patient.Email,
			Phone:        patient.Phone,
			BirthDate:    patient.BirthDate,
			Gender:       patient.Gender,
			Address:      patient.Address,
			AnonymizedAt: patient.AnonymizedAt,
			CreatedAt:    patient.CreatedAt,
		},
	}
	docs := s.src.Documents
	if b.MedicalFile, err = docs.FindMedicalFile(ctx, patientID); err != nil {
		return nil, err
	}
	if b.LabOrders, _, err = docs.ListLabOrders(ctx, patientID, 0, 0); err != nil {
		return nil, err
	}
	if b.ConsultationNotes, _, err = docs.ListConsultationNotes(ctx, patientID, 0, 0); err != nil {
		return nil, err
	}
	if b.Certificates, _, err = docs.ListCertificates(ctx, patientID, 0, 0); err != nil {
		return nil, err
	}
	if b.ReferralLetters, _, err = docs.ListReferralLetters(ctx, patientID, 0, 0); err != nil {
		return nil, err
	}

	doctors := newDoctorCache(s.src.Doctors)

	appts, _, err := s.src.Appointments.List(ctx, scheduling.ListFilter{PatientID: patientID}, 0, 0)
	if err != nil {
		return nil, err
	}
	notes := make(map[int64]string)
	for _, n := range b.ConsultationNotes {
		if n.AppointmentID != nil {
			notes[*n.AppointmentID] = n.Content
		}
	}
	b.Appointments = make([]ExportedAppointment, 0, len(appts))
	for _, a := range appts {
		d, err := doctors.get(ctx, a.DoctorID)
		if err != nil {
			return nil, err
		}
		ea := ExportedAppointment{
			ID:               a.ID,
			StartTime:        a.StartTime,
			EndTime:          a.EndTime,
			Status:           a.Status,
			DoctorName:       d.FullName(),
			DoctorSpecialty:  d.Specialty,
			ConsultationNote: notes[a.ID],
		}
		if a.Motive != nil {
			ea.Motive = *a.Motive
		}
		b.Appointments = append(b.Appointments, ea)
	}

	rx, _, err := docs.ListPrescriptions(ctx, patientID, 0, 0)
	if err != nil {
		return nil, err
	}
	b.Prescriptions = make([]ExportedPrescription, 0, len(rx))
	for _, p := range rx {
		d, err := doctors.get(ctx, p.DoctorID)
		if err != nil {
			return nil, err
		}
		ep := ExportedPrescription{
			ID:          p.ID,
			CreatedAt:   p.CreatedAt,
			DoctorName:  d.FullName(),
			Medications: p.MedicationSummary(),
		}
		if p.Instructions != nil {
			ep.Instructions = *p.Instructions
		}
		b.Prescriptions = append(b.Prescriptions, ep)
	}

	s.metrics.GDPR("export", "ok")
	s.logger.Info().Int64("patient_id", patientID).Str("requested_by", requestingUserID).Msg("patient data exported")
	return b, nil
}

type doctorCache struct {
	lookup DoctorLookup
	seen   map[int64]*identity.Doctor
}

func newDoctorCache(lookup DoctorLookup) *doctorCache {
	return &doctorCache{lookup: lookup, seen: make(map[int64]*identity.Doctor)}
}

func (c *doctorCache) get(ctx context.Context, id int64) (*identity.Doctor, error) {
	if d, ok := c.seen[id]; ok {
		return d, nil
	}
	d, err := c.lookup.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load doctor %d: %w", id, err)
	}
	c.seen[id] = d
	return d, nil
}
