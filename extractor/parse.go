package extractor

import (
	"encoding/json"
	"strings"

	"github.com/carelog/backend/history"
	"github.com/pkg/errors"
)

// parseExtraction pulls the first JSON object out of a model completion.
// Models wrap their output in prose or markdown fences often enough that
// decoding the raw text directly is not an option.
func parseExtraction(content string) (history.RawExtraction, error) {
	cleaned := stripCodeFences(content)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end < start {
		return history.RawExtraction{}, errors.New("completion contains no JSON object")
	}

	var extracted history.RawExtraction
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &extracted); err != nil {
		return history.RawExtraction{}, errors.Wrap(err, "failed to parse extraction JSON")
	}
	return extracted, nil
}

func stripCodeFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}
