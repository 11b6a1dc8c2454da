// Package history holds the structured patient-history model and the pure
// reconciliation algorithm that merges a fresh AI extraction with the most
// recent previously recorded history for a patient.
package history

// Medication is a single medication entry as extracted from a note.
type Medication struct {
	Name      string `json:"name" bson:"name"`
	Dosage    string `json:"dosage" bson:"dosage"`
	Frequency string `json:"frequency,omitempty" bson:"frequency,omitempty"`
}

// Conditions splits condition names into those believed still active and
// those believed resolved or historical.
type Conditions struct {
	Current []string `json:"current" bson:"current"`
	Past    []string `json:"past" bson:"past"`
}

// StructuredHistory is the structured record produced per consultation note.
type StructuredHistory struct {
	Medications []Medication `json:"medications" bson:"medications"`
	Conditions  Conditions   `json:"conditions" bson:"conditions"`
	Allergies   []string     `json:"allergies" bson:"allergies"`
	Summary     string       `json:"summary" bson:"summary"`
}

// RawExtraction is the model's best-effort parse of a note. Any subset of
// fields may be absent, and the content may be internally inconsistent; it is
// treated as untrusted input throughout.
type RawExtraction struct {
	Medications []Medication `json:"medications"`
	Conditions  Conditions   `json:"conditions"`
	Allergies   []string     `json:"allergies"`
	Summary     string       `json:"summary"`
}
