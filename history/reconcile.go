package history

import "strings"

// summaryLimit is the number of characters of raw note text used as a
// fallback summary when the extraction did not provide one.
const summaryLimit = 200

// resolutionKeywords are the phrases that, together with a mention of the
// condition name, mark a previously active condition as resolved.
var resolutionKeywords = []string{
	"no longer",
	"resolved",
	"cured",
	"recovered from",
	"healed",
}

// Reconcile merges a fresh extraction with the most recent previously
// persisted history for the patient. It is a pure function: no I/O, total
// over its documented input shapes, and safe against inconsistent extractor
// output. All name matching is case-insensitive.
//
// Guarantees on the output:
//   - conditions.current and conditions.past are disjoint; past wins on
//     conflict
//   - every condition in prior.conditions.past stays in past unless the
//     extractor itself moved it to current
//   - allergies never shrink relative to prior
func Reconcile(newText string, extracted RawExtraction, prior *StructuredHistory) StructuredHistory {
	out := StructuredHistory{
		Medications: orEmptyMedications(extracted.Medications),
		Summary:     extracted.Summary,
	}
	if out.Summary == "" {
		out.Summary = truncateSummary(newText)
	}

	// First note for this patient: the extraction is authoritative as-is.
	if prior == nil {
		out.Conditions.Current = orEmpty(extracted.Conditions.Current)
		out.Conditions.Past = orEmpty(extracted.Conditions.Past)
		out.Allergies = orEmpty(extracted.Allergies)
		return out
	}

	lowerText := strings.ToLower(newText)
	resolvedLanguage := containsResolutionKeyword(lowerText)

	current := newNameSet(extracted.Conditions.Current...)
	allPast := newNameSet(extracted.Conditions.Past...)
	allPast.AddAll(prior.Conditions.Past)

	for _, cond := range prior.Conditions.Current {
		if current.Contains(cond) || allPast.Contains(cond) {
			// The extractor already accounted for it.
			continue
		}
		mentioned := strings.Contains(lowerText, strings.ToLower(cond))
		switch {
		case resolvedLanguage && mentioned:
			allPast.Add(cond)
		case !mentioned:
			// Silently ongoing: absence of mention must not lose the
			// condition.
			current.Add(cond)
		default:
			// Mentioned but neither flagged resolved nor re-extracted: the
			// condition is dropped from both lists this round.
			// TODO: decide with product whether these should carry forward
			// instead of being dropped.
		}
	}

	// A name that landed in both sets resolves in favor of past.
	for _, name := range allPast.Values() {
		current.Remove(name)
	}

	out.Conditions.Current = current.Values()
	out.Conditions.Past = allPast.Values()

	allergies := newNameSet(extracted.Allergies...)
	allergies.AddAll(prior.Allergies)
	out.Allergies = allergies.Values()

	return out
}

// Degraded is the record persisted when the extraction failed outright: no
// structure beyond a truncated summary, and no merge with prior history.
func Degraded(newText string) StructuredHistory {
	return StructuredHistory{
		Medications: []Medication{},
		Conditions: Conditions{
			Current: []string{},
			Past:    []string{},
		},
		Allergies: []string{},
		Summary:   truncateSummary(newText),
	}
}

func containsResolutionKeyword(lowerText string) bool {
	for _, kw := range resolutionKeywords {
		if strings.Contains(lowerText, kw) {
			return true
		}
	}
	return false
}

func truncateSummary(text string) string {
	runes := []rune(text)
	if len(runes) <= summaryLimit {
		return text
	}
	return string(runes[:summaryLimit])
}

func orEmpty(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}

func orEmptyMedications(meds []Medication) []Medication {
	if meds == nil {
		return []Medication{}
	}
	return meds
}
