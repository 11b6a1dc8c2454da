package history

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_FirstNotePassesExtractionThrough(t *testing.T) {
	extracted := RawExtraction{
		Medications: []Medication{{Name: "Metformin", Dosage: "500mg", Frequency: "twice daily"}},
		Conditions: Conditions{
			Current: []string{"Diabetes"},
			Past:    []string{"Flu"},
		},
		Allergies: []string{"Penicillin"},
		Summary:   "Type 2 diabetes, on metformin.",
	}

	got := Reconcile("Patient has type 2 diabetes.", extracted, nil)

	assert.Equal(t, extracted.Medications, got.Medications)
	assert.Equal(t, []string{"Diabetes"}, got.Conditions.Current)
	assert.Equal(t, []string{"Flu"}, got.Conditions.Past)
	assert.Equal(t, []string{"Penicillin"}, got.Allergies)
	assert.Equal(t, "Type 2 diabetes, on metformin.", got.Summary)
}

func TestReconcile_FirstNoteNormalizesMissingFields(t *testing.T) {
	got := Reconcile("Routine check, nothing remarkable.", RawExtraction{}, nil)

	assert.NotNil(t, got.Medications)
	assert.Empty(t, got.Medications)
	assert.NotNil(t, got.Conditions.Current)
	assert.NotNil(t, got.Conditions.Past)
	assert.NotNil(t, got.Allergies)
	assert.Equal(t, "Routine check, nothing remarkable.", got.Summary)
}

func TestReconcile_SummaryFallsBackToTruncatedText(t *testing.T) {
	long := strings.Repeat("a", 250)
	got := Reconcile(long, RawExtraction{}, nil)
	assert.Len(t, got.Summary, 200)

	short := "Brief visit."
	got = Reconcile(short, RawExtraction{}, nil)
	assert.Equal(t, short, got.Summary)
}

func TestReconcile_SilentlyOngoingConditionCarriesForward(t *testing.T) {
	prior := &StructuredHistory{
		Conditions: Conditions{Current: []string{"Hypertension"}},
	}

	got := Reconcile("Patient presents with a sprained ankle.", RawExtraction{}, prior)

	assert.Contains(t, got.Conditions.Current, "Hypertension")
	assert.NotContains(t, got.Conditions.Past, "Hypertension")
}

func TestReconcile_ResolutionKeywordMovesConditionToPast(t *testing.T) {
	prior := &StructuredHistory{
		Conditions: Conditions{Current: []string{"Asthma"}},
	}

	got := Reconcile("Patient's asthma has resolved completely", RawExtraction{}, prior)

	assert.Contains(t, got.Conditions.Past, "Asthma")
	assert.NotContains(t, got.Conditions.Current, "Asthma")
}

func TestReconcile_EachResolutionKeywordIsDetected(t *testing.T) {
	texts := []string{
		"Patient is no longer suffering from migraine.",
		"The migraine has resolved.",
		"Migraine cured after treatment.",
		"Fully recovered from migraine.",
		"The migraine has healed.",
	}
	for _, text := range texts {
		prior := &StructuredHistory{Conditions: Conditions{Current: []string{"Migraine"}}}
		got := Reconcile(text, RawExtraction{}, prior)
		assert.Contains(t, got.Conditions.Past, "Migraine", "text: %s", text)
		assert.NotContains(t, got.Conditions.Current, "Migraine", "text: %s", text)
	}
}

func TestReconcile_MentionedButUnresolvedConditionIsDropped(t *testing.T) {
	prior := &StructuredHistory{
		Conditions: Conditions{Current: []string{"Eczema"}},
	}

	// Mentioned in the text, no resolution language, and the extractor did
	// not pick it up: the condition leaves both lists this round.
	got := Reconcile("Discussed eczema triggers with patient.", RawExtraction{}, prior)

	assert.NotContains(t, got.Conditions.Current, "Eczema")
	assert.NotContains(t, got.Conditions.Past, "Eczema")
}

func TestReconcile_CurrentAndPastStayDisjoint(t *testing.T) {
	prior := &StructuredHistory{
		Conditions: Conditions{
			Current: []string{"Diabetes"},
			Past:    []string{"Flu"},
		},
	}
	// Inconsistent extractor output: the same condition in both lists.
	extracted := RawExtraction{
		Conditions: Conditions{
			Current: []string{"diabetes", "Anemia"},
			Past:    []string{"Diabetes"},
		},
	}

	got := Reconcile("Follow-up visit.", extracted, prior)

	lower := make(map[string]bool)
	for _, c := range got.Conditions.Current {
		lower[strings.ToLower(c)] = true
	}
	for _, p := range got.Conditions.Past {
		assert.False(t, lower[strings.ToLower(p)], "%q present in both current and past", p)
	}
	// Past wins the conflict.
	assert.Contains(t, got.Conditions.Past, "Diabetes")
	assert.Contains(t, got.Conditions.Current, "Anemia")
}

func TestReconcile_PriorPastIsNeverDropped(t *testing.T) {
	prior := &StructuredHistory{
		Conditions: Conditions{Past: []string{"Pneumonia", "Flu"}},
	}

	got := Reconcile("Routine visit.", RawExtraction{}, prior)

	assert.Contains(t, got.Conditions.Past, "Pneumonia")
	assert.Contains(t, got.Conditions.Past, "Flu")
}

func TestReconcile_ExtractorPastEntriesComeFirst(t *testing.T) {
	prior := &StructuredHistory{
		Conditions: Conditions{Past: []string{"Flu", "Bronchitis"}},
	}
	extracted := RawExtraction{
		Conditions: Conditions{Past: []string{"Bronchitis", "Tonsillitis"}},
	}

	got := Reconcile("Routine visit.", extracted, prior)

	assert.Equal(t, []string{"Bronchitis", "Tonsillitis", "Flu"}, got.Conditions.Past)
}

func TestReconcile_AllergiesOnlyGrow(t *testing.T) {
	prior := &StructuredHistory{
		Allergies: []string{"Penicillin", "Latex"},
	}
	extracted := RawExtraction{
		Allergies: []string{"Sulfa", "penicillin"},
	}

	got := Reconcile("New sulfa allergy noted.", extracted, prior)

	// Extractor order first, prior-only entries appended, case-insensitive
	// dedup keeping the first spelling seen.
	assert.Equal(t, []string{"Sulfa", "penicillin", "Latex"}, got.Allergies)
}

func TestReconcile_MedicationsComeFromExtractionOnly(t *testing.T) {
	prior := &StructuredHistory{
		Medications: []Medication{{Name: "Metformin", Dosage: "500mg"}},
	}
	extracted := RawExtraction{
		Medications: []Medication{{Name: "Lisinopril", Dosage: "10mg", Frequency: "daily"}},
	}

	got := Reconcile("Switched to lisinopril.", extracted, prior)

	require.Len(t, got.Medications, 1)
	assert.Equal(t, "Lisinopril", got.Medications[0].Name)
}

func TestReconcile_CaseInsensitiveConditionMatching(t *testing.T) {
	prior := &StructuredHistory{
		Conditions: Conditions{Current: []string{"HYPERTENSION"}},
	}
	extracted := RawExtraction{
		Conditions: Conditions{Current: []string{"hypertension"}},
	}

	got := Reconcile("Blood pressure stable.", extracted, prior)

	assert.Equal(t, []string{"hypertension"}, got.Conditions.Current)
}

func TestReconcile_EndToEndScenario(t *testing.T) {
	prior := &StructuredHistory{
		Medications: []Medication{{Name: "Metformin", Dosage: "500mg"}},
		Conditions: Conditions{
			Current: []string{"Diabetes", "Hypertension"},
			Past:    []string{"Flu"},
		},
		Allergies: []string{"Penicillin"},
	}
	extracted := RawExtraction{
		Medications: []Medication{{Name: "Lisinopril", Dosage: "10mg", Frequency: "daily"}},
		Conditions: Conditions{
			Current: []string{"Diabetes"},
			Past:    []string{"Hypertension"},
		},
		Allergies: []string{},
		Summary:   "Hypertension resolved; diabetes ongoing; started Lisinopril.",
	}
	newText := "Patient reports hypertension is now resolved. Continue monitoring diabetes. Started on Lisinopril 10mg daily."

	got := Reconcile(newText, extracted, prior)

	assert.Equal(t, []string{"Diabetes"}, got.Conditions.Current)
	assert.Equal(t, []string{"Hypertension", "Flu"}, got.Conditions.Past)
	require.Len(t, got.Medications, 1)
	assert.Equal(t, Medication{Name: "Lisinopril", Dosage: "10mg", Frequency: "daily"}, got.Medications[0])
	assert.Equal(t, []string{"Penicillin"}, got.Allergies)
	assert.Equal(t, "Hypertension resolved; diabetes ongoing; started Lisinopril.", got.Summary)
}

func TestDegraded_DefaultsWithoutPriorMerge(t *testing.T) {
	got := Degraded("Patient seen for cough. " + strings.Repeat("x", 300))

	assert.Empty(t, got.Medications)
	assert.Empty(t, got.Conditions.Current)
	assert.Empty(t, got.Conditions.Past)
	assert.Empty(t, got.Allergies)
	assert.Len(t, got.Summary, 200)
	assert.NotNil(t, got.Medications)
	assert.NotNil(t, got.Allergies)
}
