// Package extractor calls an LLM through OpenRouter to turn free-text
// clinical notes into structured history data. The output is best-effort and
// treated as untrusted by callers.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/carelog/backend/config"
	"github.com/carelog/backend/history"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// defaultModels is the fallback sequence used when no models are configured.
// Models are tried in order, one at a time.
var defaultModels = []string{
	"deepseek/deepseek-chat-v3-0324:free",
	"meta-llama/llama-3.3-70b-instruct:free",
	"google/gemini-2.0-flash-exp:free",
}

const defaultTimeout = 30 * time.Second

// Client is an OpenRouter chat-completion client with sequential model
// fallback.
type Client struct {
	apiKey     string
	baseURL    string
	models     []string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg *config.Config, logger *zap.Logger) (*Client, error) {
	if cfg.OpenRouterAPIKey == "" {
		return nil, errors.New("openrouter api key is required")
	}

	models := cfg.OpenRouterModels
	if len(models) == 0 {
		models = defaultModels
	}

	timeout := cfg.OpenRouterTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:  cfg.OpenRouterAPIKey,
		baseURL: cfg.OpenRouterBaseURL,
		models:  models,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract asks each configured model in turn to parse the note text into a
// structured extraction and returns the first usable result. It fails only
// after the whole fallback list is exhausted.
func (c *Client) Extract(ctx context.Context, noteText, priorContext string) (history.RawExtraction, error) {
	prompt := buildUserPrompt(noteText, priorContext)

	var lastErr error
	for _, model := range c.models {
		extracted, err := c.tryModel(ctx, model, prompt)
		if err != nil {
			c.logger.Warn("extraction attempt failed",
				zap.String("model", model),
				zap.Error(err))
			lastErr = err
			continue
		}
		c.logger.Debug("extraction succeeded", zap.String("model", model))
		return extracted, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no extraction models configured")
	}
	return history.RawExtraction{}, errors.Wrap(lastErr, "all extraction models failed")
}

func (c *Client) tryModel(ctx context.Context, model, prompt string) (history.RawExtraction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.2,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return history.RawExtraction{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return history.RawExtraction{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return history.RawExtraction{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return history.RawExtraction{}, fmt.Errorf("openrouter request failed with status %d", resp.StatusCode)
	}

	var envelope chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return history.RawExtraction{}, errors.Wrap(err, "failed to decode completion response")
	}

	if len(envelope.Choices) == 0 || envelope.Choices[0].Message.Content == "" {
		return history.RawExtraction{}, errors.New("completion response has no content")
	}

	return parseExtraction(envelope.Choices[0].Message.Content)
}
