package models

import "time"

// MedicationSchedule is a standing medication plan for a patient, distinct
// from the per-note medication entries inside a structured history record.
type MedicationSchedule struct {
	MedicationID string    `json:"medication_id" bson:"medication_id"`
	PatientID    string    `json:"patient_id" bson:"patient_id"`
	Name         string    `json:"name" bson:"name"`
	Dosage       string    `json:"dosage" bson:"dosage"`
	Frequency    string    `json:"frequency" bson:"frequency"`
	Times        []string  `json:"times,omitempty" bson:"times,omitempty"`
	StartDate    string    `json:"start_date,omitempty" bson:"start_date,omitempty"`
	EndDate      string    `json:"end_date,omitempty" bson:"end_date,omitempty"`
	Instructions string    `json:"instructions,omitempty" bson:"instructions,omitempty"`
	Active       bool      `json:"active" bson:"active"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}
