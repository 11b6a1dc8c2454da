package models

import "time"

type Appointment struct {
	AppointmentID   string    `json:"appointment_id" bson:"appointment_id"`
	PatientID       string    `json:"patient_id" bson:"patient_id"`
	Provider        string    `json:"provider" bson:"provider"`
	ScheduledAt     time.Time `json:"scheduled_at" bson:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes" bson:"duration_minutes"`
	Reason          string    `json:"reason,omitempty" bson:"reason,omitempty"`
	Status          string    `json:"status" bson:"status"`
	Notes           string    `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at"`
}
