package ai

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// OllamaClient summarizes with a locally hosted model, for development
// without an OpenAI key.
type OllamaClient struct {
	BaseURL     string
	Model       string
	Temperature float64
	MaxChars    int

	http *resty.Client
}

func NewOllamaClient(baseURL, model string, temperature float64, maxChars int) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2:latest"
	}
	return &OllamaClient{
		BaseURL:     baseURL,
		Model:       model,
		Temperature: temperature,
		MaxChars:    maxChars,
		http:        resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")).SetTimeout(2 * time.Minute),
	}
}

type generateRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type ollamaErrorBody struct {
	Error string `json:"error"`
}

func (c *OllamaClient) Summarize(ctx context.Context, text string) (string, error) {
	var result generateResponse
	var apiErr ollamaErrorBody

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(generateRequest{
			Model:   c.Model,
			System:  SummaryPrompt,
			Prompt:  text,
			Stream:  false,
			Options: map[string]any{"temperature": c.Temperature},
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/api/generate")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &Error{Kind: KindTransient, Err: err}
	}
	if resp.IsError() {
		return "", statusError(resp.StatusCode(), "", apiErr.Error)
	}
	if strings.TrimSpace(result.Response) == "" {
		return "", &Error{Kind: KindInvalid, StatusCode: resp.StatusCode(), Message: "empty response"}
	}

	return truncateRunes(strings.TrimSpace(result.Response), c.MaxChars), nil
}
