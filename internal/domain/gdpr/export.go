package gdpr

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/samasante/amina/internal/platform/apperr"
)

const csvDateLayout = "2006-01-02"

var csvHeader = []string{"Type", "Date", "Description", "Détails"}

// GenerateCSVExport flattens the appointments, prescriptions and lab orders
// of b into one row each, in that order.
func GenerateCSVExport(b *PatientExportBundle) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{csvHeader}
	for _, a := range b.Appointments {
		details := a.Status
		if a.Motive != "" {
			details += " - " + a.Motive
		}
		rows = append(rows, []string{
			"Rendez-vous",
			a.StartTime.Format(csvDateLayout),
			fmt.Sprintf("%s (%s)", a.DoctorName, a.DoctorSpecialty),
			details,
		})
	}
	for _, p := range b.Prescriptions {
		rows = append(rows, []string{
			"Ordonnance",
			p.CreatedAt.Format(csvDateLayout),
			p.Medications,
			p.Instructions,
		})
	}
	for _, o := range b.LabOrders {
		rows = append(rows, []string{
			"Analyse",
			o.CreatedAt.Format(csvDateLayout),
			strings.Join(o.Tests, ", "),
			o.Status,
		})
	}

	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("write csv export: %w", err)
	}
	return buf.String(), nil
}

// GeneratePDFExport is not available yet.
func GeneratePDFExport(_ *PatientExportBundle) ([]byte, error) {
	return nil, fmt.Errorf("pdf export: %w", apperr.ErrNotImplemented)
}
