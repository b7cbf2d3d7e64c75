package ai

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type OpenAIOptions struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxChars    int
	Timeout     time.Duration
}

// OpenAIClient summarizes through the chat completions API.
type OpenAIClient struct {
	http        *resty.Client
	model       string
	temperature float64
	maxChars    int
}

func NewOpenAIClient(opts OpenAIOptions) *OpenAIClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetAuthToken(opts.APIKey).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json")

	return &OpenAIClient{
		http:        client,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxChars:    opts.MaxChars,
	}
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
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type openAIErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (c *OpenAIClient) Summarize(ctx context.Context, text string) (string, error) {
	var result chatResponse
	var apiErr openAIErrorBody

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "system", Content: SummaryPrompt},
				{Role: "user", Content: text},
			},
			Temperature: c.temperature,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &Error{Kind: KindTransient, Err: err}
	}
	if resp.IsError() {
		return "", statusError(resp.StatusCode(), apiErr.Error.Code, apiErr.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", &Error{Kind: KindInvalid, StatusCode: resp.StatusCode(), Message: "response has no choices"}
	}

	return truncateRunes(strings.TrimSpace(result.Choices[0].Message.Content), c.maxChars), nil
}
