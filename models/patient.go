package models

import "time"

// Patient is a patient profile document. PatientID is the 8-character
// alphanumeric public identifier.
type Patient struct {
	PatientID   string    `json:"patient_id" bson:"patient_id"`
	Name        string    `json:"name" bson:"name"`
	Email       string    `json:"email,omitempty" bson:"email,omitempty"`
	Phone       string    `json:"phone,omitempty" bson:"phone,omitempty"`
	DateOfBirth string    `json:"date_of_birth,omitempty" bson:"date_of_birth,omitempty"`
	Gender      string    `json:"gender,omitempty" bson:"gender,omitempty"`
	BloodGroup  string    `json:"blood_group,omitempty" bson:"blood_group,omitempty"`
	PhotoURL    string    `json:"photo_url,omitempty" bson:"photo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}
