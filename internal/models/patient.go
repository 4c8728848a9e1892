package models

import "time"

// Field paths of the legacy three-field profile.
const (
	LegacyPatientName      = "patient_name"
	LegacyDateOfBirth      = "date_of_birth"
	LegacyPrimaryDiagnosis = "primary_diagnosis"
)

// PatientRecord is the minimal projection persisted per legacy request.
type PatientRecord struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	DateOfBirth      string    `json:"date_of_birth"`
	PrimaryDiagnosis string    `json:"primary_diagnosis"`
	CreatedAt        time.Time `json:"created_at"`
}
