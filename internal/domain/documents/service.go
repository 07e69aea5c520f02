package documents

import (
	"context"
	"strings"

	"github.com/samasante/amina/internal/platform/apperr"
)

const maxTextLength = 20000

type Service struct {
	files         MedicalFileRepository
	prescriptions PrescriptionRepository
	labOrders     LabOrderRepository
	notes         ConsultationNoteRepository
	certificates  CertificateRepository
	referrals     ReferralLetterRepository
}

func NewService(files MedicalFileRepository, rx PrescriptionRepository, labs LabOrderRepository,
	notes ConsultationNoteRepository, certs CertificateRepository, refs ReferralLetterRepository) *Service {
	return &Service{
		files:         files,
		prescriptions: rx,
		labOrders:     labs,
		notes:         notes,
		certificates:  certs,
		referrals:     refs,
	}
}

func requireAuthor(patientID, doctorID int64) error {
	if patientID <= 0 {
		return apperr.Invalid("patient_id is required")
	}
	if doctorID <= 0 {
		return apperr.Invalid("doctor_id is required")
	}
	return nil
}

func requireText(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", apperr.Invalid("%s is required", field)
	}
	if len(v) > maxTextLength {
		return "", apperr.Invalid("%s must be at most %d characters", field, maxTextLength)
	}
	return v, nil
}

// -- Medical File --

// GetMedicalFile returns the patient's medical file, or NotFound when none
// was written yet.
func (s *Service) GetMedicalFile(ctx context.Context, patientID int64) (*MedicalFile, error) {
	f, err := s.files.GetByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, apperr.NotFound("medical file of patient", patientID)
	}
	return f, nil
}

// FindMedicalFile is GetMedicalFile without the NotFound: a missing file is nil.
func (s *Service) FindMedicalFile(ctx context.Context, patientID int64) (*MedicalFile, error) {
	return s.files.GetByPatient(ctx, patientID)
}

func (s *Service) SaveMedicalFile(ctx context.Context, f *MedicalFile) error {
	if f.PatientID <= 0 {
		return apperr.Invalid("patient_id is required")
	}
	return s.files.Upsert(ctx, f)
}

// -- Prescription --

func (s *Service) CreatePrescription(ctx context.Context, p *Prescription) error {
	if err := requireAuthor(p.PatientID, p.DoctorID); err != nil {
		return err
	}
	if len(p.Medications) == 0 {
		return apperr.Invalid("at least one medication is required")
	}
	for i := range p.Medications {
		m := &p.Medications[i]
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			return apperr.Invalid("medication %d has no name", i)
		}
	}
	return s.prescriptions.Create(ctx, p)
}

func (s *Service) GetPrescription(ctx context.Context, id int64) (*Prescription, error) {
	return s.prescriptions.GetByID(ctx, id)
}

func (s *Service) ListPrescriptions(ctx context.Context, patientID int64, limit, offset int) ([]*Prescription, int, error) {
	return s.prescriptions.ListByPatient(ctx, patientID, limit, offset)
}

// -- Lab Order --

func (s *Service) CreateLabOrder(ctx context.Context, o *LabOrder) error {
	if err := requireAuthor(o.PatientID, o.DoctorID); err != nil {
		return err
	}
	tests := o.Tests[:0]
	for _, t := range o.Tests {
		if t = strings.TrimSpace(t); t != "" {
			tests = append(tests, t)
		}
	}
	if len(tests) == 0 {
		return apperr.Invalid("at least one test is required")
	}
	o.Tests = tests
	o.Status = LabPending
	o.ResultSummary = nil
	return s.labOrders.Create(ctx, o)
}

func (s *Service) GetLabOrder(ctx context.Context, id int64) (*LabOrder, error) {
	return s.labOrders.GetByID(ctx, id)
}

// UpdateLabOrderStatus advances pending -> in_progress -> completed, with
// cancelled reachable from both open states. resultSummary is only kept
// on completion.
func (s *Service) UpdateLabOrderStatus(ctx context.Context, id int64, status string, resultSummary *string) (*LabOrder, error) {
	o, err := s.labOrders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canMoveLabOrder(o.Status, status) {
		return nil, apperr.Conflict("lab order %d cannot go from %s to %s", id, o.Status, status)
	}
	if status != LabCompleted {
		resultSummary = nil
	}
	if err := s.labOrders.UpdateStatus(ctx, id, status, resultSummary); err != nil {
		return nil, err
	}
	o.Status = status
	if resultSummary != nil {
		o.ResultSummary = resultSummary
	}
	return o, nil
}

func (s *Service) ListLabOrders(ctx context.Context, patientID int64, limit, offset int) ([]*LabOrder, int, error) {
	return s.labOrders.ListByPatient(ctx, patientID, limit, offset)
}

// -- Consultation Note --

func (s *Service) CreateConsultationNote(ctx context.Context, n *ConsultationNote) error {
	if err := requireAuthor(n.PatientID, n.DoctorID); err != nil {
		return err
	}
	content, err := requireText("content", n.Content)
	if err != nil {
		return err
	}
	n.Content = content
	return s.notes.Create(ctx, n)
}

func (s *Service) ListConsultationNotes(ctx context.Context, patientID int64, limit, offset int) ([]*ConsultationNote, int, error) {
	return s.notes.ListByPatient(ctx, patientID, limit, offset)
}

// -- Certificate --

func (s *Service) CreateCertificate(ctx context.Context, c *Certificate) error {
	if err := requireAuthor(c.PatientID, c.DoctorID); err != nil {
		return err
	}
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	if !certificateTypePattern.MatchString(c.Type) {
		return apperr.Invalid("certificate type %q must be lower case letters and underscores", c.Type)
	}
	content, err := requireText("content", c.Content)
	if err != nil {
		return err
	}
	c.Content = content
	return s.certificates.Create(ctx, c)
}

func (s *Service) GetCertificate(ctx context.Context, id int64) (*Certificate, error) {
	return s.certificates.GetByID(ctx, id)
}

func (s *Service) ListCertificates(ctx context.Context, patientID int64, limit, offset int) ([]*Certificate, int, error) {
	return s.certificates.ListByPatient(ctx, patientID, limit, offset)
}

// -- Referral Letter --

func (s *Service) CreateReferralLetter(ctx context.Context, r *ReferralLetter) error {
	if err := requireAuthor(r.PatientID, r.DoctorID); err != nil {
		return err
	}
	var err error
	if r.TargetSpecialty, err = requireText("target_specialty", r.TargetSpecialty); err != nil {
		return err
	}
	if r.Reason, err = requireText("reason", r.Reason); err != nil {
		return err
	}
	r.Content = strings.TrimSpace(r.Content)
	return s.referrals.Create(ctx, r)
}

func (s *Service) GetReferralLetter(ctx context.Context, id int64) (*ReferralLetter, error) {
	return s.referrals.GetByID(ctx, id)
}

func (s *Service) ListReferralLetters(ctx context.Context, patientID int64, limit, offset int) ([]*ReferralLetter, int, error) {
	return s.referrals.ListByPatient(ctx, patientID, limit, offset)
}

// -- Signing --

// Document is a signable document reduced to what signing needs.
type Document struct {
	Type      string
	ID        int64
	PatientID int64
	DoctorID  int64
	Content   string
}

// LoadDocument fetches a prescription, certificate or referral letter and
// renders its canonical signing content.
func (s *Service) LoadDocument(ctx context.Context, docType string, id int64) (*Document, error) {
	var (
		content string
		doc     = &Document{Type: docType, ID: id}
		err     error
	)
	switch docType {
	case TypePrescription:
		p, gerr := s.prescriptions.GetByID(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		doc.PatientID, doc.DoctorID = p.PatientID, p.DoctorID
		content, err = p.SigningContent()
	case TypeCertificate:
		c, gerr := s.certificates.GetByID(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		doc.PatientID, doc.DoctorID = c.PatientID, c.DoctorID
		content, err = c.SigningContent()
	case TypeReferralLetter:
		r, gerr := s.referrals.GetByID(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		doc.PatientID, doc.DoctorID = r.PatientID, r.DoctorID
		content, err = r.SigningContent()
	default:
		return nil, apperr.Invalid("document type %q cannot be signed", docType)
	}
	if err != nil {
		return nil, err
	}
	doc.Content = content
	return doc, nil
}
