package extractor

import (
	"fmt"
	"strings"

	"github.com/carelog/backend/history"
)

const systemPrompt = `You are a clinical data extraction assistant. Read the consultation note and respond with ONLY a JSON object in this exact shape:
{
  "medications": [{"name": "...", "dosage": "...", "frequency": "..."}],
  "conditions": {"current": ["..."], "past": ["..."]},
  "allergies": ["..."],
  "summary": "..."
}
Rules:
- "current" holds conditions still active as of this note, "past" holds resolved or historical ones.
- If the note says a previously known condition is resolved, move it to "past".
- Keep the summary under two sentences.
- Do not invent information that is not in the note or the known history.
- No prose, no markdown, JSON only.`

// buildUserPrompt embeds the prior structured history (if any) so the model
// can classify previously known conditions correctly.
func buildUserPrompt(noteText, priorContext string) string {
	var b strings.Builder
	if priorContext != "" {
		b.WriteString("Known patient history:\n")
		b.WriteString(priorContext)
		b.WriteString("\n\n")
	}
	b.WriteString("Consultation note:\n")
	b.WriteString(noteText)
	return b.String()
}

// PriorContext renders the latest prior record as prompt text. Returns the
// empty string when there is no prior history.
func PriorContext(prior *history.StructuredHistory) string {
	if prior == nil {
		return ""
	}

	var lines []string
	if len(prior.Conditions.Current) > 0 {
		lines = append(lines, "Current conditions: "+strings.Join(prior.Conditions.Current, ", "))
	}
	if len(prior.Conditions.Past) > 0 {
		lines = append(lines, "Past conditions: "+strings.Join(prior.Conditions.Past, ", "))
	}
	if len(prior.Allergies) > 0 {
		lines = append(lines, "Allergies: "+strings.Join(prior.Allergies, ", "))
	}
	if len(prior.Medications) > 0 {
		var meds []string
		for _, m := range prior.Medications {
			entry := m.Name
			if m.Dosage != "" {
				entry += " " + m.Dosage
			}
			if m.Frequency != "" {
				entry += fmt.Sprintf(" (%s)", m.Frequency)
			}
			meds = append(meds, entry)
		}
		lines = append(lines, "Medications: "+strings.Join(meds, "; "))
	}
	if prior.Summary != "" {
		lines = append(lines, "Last summary: "+prior.Summary)
	}
	return strings.Join(lines, "\n")
}

// TranscriptContext renders chat messages as prompt text for extraction from
// a conversation instead of a single note.
func TranscriptContext(entries []TranscriptEntry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Sender)
		b.WriteString(": ")
		b.WriteString(e.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// TranscriptEntry is one chat message in sender order.
type TranscriptEntry struct {
	Sender  string
	Content string
}
