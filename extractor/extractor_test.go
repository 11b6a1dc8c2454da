package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/carelog/backend/config"
	"github.com/carelog/backend/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(t *testing.T, baseURL string, models []string) *Client {
	t.Helper()
	client, err := NewClient(&config.Config{
		OpenRouterAPIKey:  "test-key",
		OpenRouterBaseURL: baseURL,
		OpenRouterModels:  models,
		OpenRouterTimeout: 5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func completionBody(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestExtract_ReturnsParsedExtraction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, completionBody(`{"medications":[{"name":"Lisinopril","dosage":"10mg","frequency":"daily"}],"conditions":{"current":["Hypertension"],"past":[]},"allergies":[],"summary":"Started Lisinopril."}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, []string{"model-a"})
	got, err := client.Extract(context.Background(), "Started on Lisinopril 10mg daily.", "")
	require.NoError(t, err)
	require.Len(t, got.Medications, 1)
	assert.Equal(t, "Lisinopril", got.Medications[0].Name)
	assert.Equal(t, []string{"Hypertension"}, got.Conditions.Current)
	assert.Equal(t, "Started Lisinopril.", got.Summary)
}

func TestExtract_FallsBackToNextModel(t *testing.T) {
	var models []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		models = append(models, req.Model)
		if req.Model == "model-a" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, completionBody(`{"summary":"ok"}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, []string{"model-a", "model-b"})
	got, err := client.Extract(context.Background(), "note", "")
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Summary)
	assert.Equal(t, []string{"model-a", "model-b"}, models)
}

func TestExtract_FailsAfterAllModelsExhausted(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := testClient(t, server.URL, []string{"model-a", "model-b", "model-c"})
	_, err := client.Extract(context.Background(), "note", "")
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestExtract_MalformedJSONAdvancesFallback(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			fmt.Fprint(w, completionBody("I could not produce structured data, sorry."))
			return
		}
		fmt.Fprint(w, completionBody(`{"summary":"second try"}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL, []string{"model-a", "model-b"})
	got, err := client.Extract(context.Background(), "note", "")
	require.NoError(t, err)
	assert.Equal(t, "second try", got.Summary)
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(&config.Config{}, zap.NewNop())
	assert.Error(t, err)
}

func TestParseExtraction_JSONEmbeddedInProse(t *testing.T) {
	got, err := parseExtraction("Here is the structured data you asked for:\n{\"summary\":\"embedded\"}\nLet me know if you need anything else.")
	require.NoError(t, err)
	assert.Equal(t, "embedded", got.Summary)
}

func TestParseExtraction_StripsMarkdownFences(t *testing.T) {
	got, err := parseExtraction("```json\n{\"conditions\":{\"current\":[\"Asthma\"],\"past\":[]}}\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"Asthma"}, got.Conditions.Current)
}

func TestParseExtraction_NoJSONObjectFails(t *testing.T) {
	_, err := parseExtraction("no structured data here")
	assert.Error(t, err)
}

func TestParseExtraction_InvalidJSONFails(t *testing.T) {
	_, err := parseExtraction(`{"conditions": {`)
	assert.Error(t, err)
}

func TestPriorContext_RendersKnownHistory(t *testing.T) {
	prior := &history.StructuredHistory{
		Medications: []history.Medication{{Name: "Metformin", Dosage: "500mg", Frequency: "twice daily"}},
		Conditions: history.Conditions{
			Current: []string{"Diabetes"},
			Past:    []string{"Flu"},
		},
		Allergies: []string{"Penicillin"},
		Summary:   "Stable.",
	}

	ctx := PriorContext(prior)
	assert.Contains(t, ctx, "Current conditions: Diabetes")
	assert.Contains(t, ctx, "Past conditions: Flu")
	assert.Contains(t, ctx, "Allergies: Penicillin")
	assert.Contains(t, ctx, "Metformin 500mg (twice daily)")
	assert.Contains(t, ctx, "Last summary: Stable.")
}

func TestPriorContext_NilPriorIsEmpty(t *testing.T) {
	assert.Equal(t, "", PriorContext(nil))
}

func TestTranscriptContext(t *testing.T) {
	got := TranscriptContext([]TranscriptEntry{
		{Sender: "patient", Content: "My asthma is acting up again."},
		{Sender: "provider", Content: "Keep using the inhaler twice daily."},
	})
	assert.Equal(t, "patient: My asthma is acting up again.\nprovider: Keep using the inhaler twice daily.", got)
}
