package documents

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Signable document types.
const (
	TypePrescription   = "prescription"
	TypeCertificate    = "certificate"
	TypeReferralLetter = "referral_letter"
)

// Lab order statuses.
const (
	LabPending    = "pending"
	LabInProgress = "in_progress"
	LabCompleted  = "completed"
	LabCancelled  = "cancelled"
)

var labTransitions = map[string][]string{
	LabPending:    {LabInProgress, LabCancelled},
	LabInProgress: {LabCompleted, LabCancelled},
}

func canMoveLabOrder(from, to string) bool {
	for _, s := range labTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var certificateTypePattern = regexp.MustCompile(`^[a-z][a-z_]{1,39}$`)

// MedicalFile is the single summary sheet kept per patient.
type MedicalFile struct {
	ID                int64     `db:"id" json:"id"`
	PatientID         int64     `db:"patient_id" json:"patient_id"`
	BloodType         *string   `db:"blood_type" json:"blood_type,omitempty"`
	Allergies         *string   `db:"allergies" json:"allergies,omitempty"`
	ChronicConditions *string   `db:"chronic_conditions" json:"chronic_conditions,omitempty"`
	Notes             *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// String renders the medication on one line, e.g.
// "Amoxicilline 500mg, 3x/jour, 7 jours".
func (m Medication) String() string {
	parts := []string{m.Name}
	for _, p := range []string{m.Dosage, m.Frequency, m.Duration} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type Prescription struct {
	ID            int64        `db:"id" json:"id"`
	PatientID     int64        `db:"patient_id" json:"patient_id"`
	DoctorID      int64        `db:"doctor_id" json:"doctor_id"`
	AppointmentID *int64       `db:"appointment_id" json:"appointment_id,omitempty"`
	Medications   []Medication `db:"medications" json:"medications"`
	Instructions  *string      `db:"instructions" json:"instructions,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

// MedicationSummary joins the medication lines with "; ".
func (p *Prescription) MedicationSummary() string {
	lines := make([]string, len(p.Medications))
	for i, m := range p.Medications {
		lines[i] = m.String()
	}
	return strings.Join(lines, "; ")
}

type LabOrder struct {
	ID            int64     `db:"id" json:"id"`
	PatientID     int64     `db:"patient_id" json:"patient_id"`
	DoctorID      int64     `db:"doctor_id" json:"doctor_id"`
	Tests         []string  `db:"tests" json:"tests"`
	Status        string    `db:"status" json:"status"`
	Notes         *string   `db:"notes" json:"notes,omitempty"`
	ResultSummary *string   `db:"result_summary" json:"result_summary,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

type ConsultationNote struct {
	ID            int64     `db:"id" json:"id"`
	PatientID     int64     `db:"patient_id" json:"patient_id"`
	DoctorID      int64     `db:"doctor_id" json:"doctor_id"`
	AppointmentID *int64    `db:"appointment_id" json:"appointment_id,omitempty"`
	Content       string    `db:"content" json:"content"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type Certificate struct {
	ID        int64     `db:"id" json:"id"`
	PatientID int64     `db:"patient_id" json:"patient_id"`
	DoctorID  int64     `db:"doctor_id" json:"doctor_id"`
	Type      string    `db:"type" json:"type"`
	Content   string    `db:"content" json:"content"`
	IssuedAt  time.Time `db:"issued_at" json:"issued_at"`
}

type ReferralLetter struct {
	ID              int64     `db:"id" json:"id"`
	PatientID       int64     `db:"patient_id" json:"patient_id"`
	DoctorID        int64     `db:"doctor_id" json:"doctor_id"`
	TargetSpecialty string    `db:"target_specialty" json:"target_specialty"`
	Reason          string    `db:"reason" json:"reason"`
	Content         string    `db:"content" json:"content"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// signingContent is the canonical text a signature covers. It includes
// every clinically meaningful field and no timestamps set by the database.
func signingContent(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (p *Prescription) SigningContent() (string, error) {
	return signingContent(struct {
		ID           int64        `json:"id"`
		PatientID    int64        `json:"patient_id"`
		DoctorID     int64        `json:"doctor_id"`
		Medications  []Medication `json:"medications"`
		Instructions *string      `json:"instructions"`
	}{p.ID, p.PatientID, p.DoctorID, p.Medications, p.Instructions})
}

func (c *Certificate) SigningContent() (string, error) {
	return signingContent(struct {
		ID        int64  `json:"id"`
		PatientID int64  `json:"patient_id"`
		DoctorID  int64  `json:"doctor_id"`
		Type      string `json:"type"`
		Content   string `json:"content"`
	}{c.ID, c.PatientID, c.DoctorID, c.Type, c.Content})
}

func (r *ReferralLetter) SigningContent() (string, error) {
	return signingContent(struct {
		ID              int64  `json:"id"`
		PatientID       int64  `json:"patient_id"`
		DoctorID        int64  `json:"doctor_id"`
		TargetSpecialty string `json:"target_specialty"`
		Reason          string `json:"reason"`
		Content         string `json:"content"`
	}{r.ID, r.PatientID, r.DoctorID, r.TargetSpecialty, r.Reason, r.Content})
}
