package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestOpenAISummarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.InDelta(t, 0.7, req.Temperature, 0.0001)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, SummaryPrompt, req.Messages[0].Content)
			assert.Equal(t, "법안 본문", req.Messages[1].Content)
		}

		writeJSON(w, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"  요약입니다. "}}]}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIOptions{BaseURL: srv.URL, APIKey: "sk-test", Temperature: 0.7})
	summary, err := client.Summarize(context.Background(), "법안 본문")
	require.NoError(t, err)
	assert.Equal(t, "요약입니다.", summary)
}

func TestOpenAISummarizeTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"choices":[{"message":{"content":"`+strings.Repeat("가", 20)+`"}}]}`)
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIOptions{BaseURL: srv.URL, MaxChars: 10})
	summary, err := client.Summarize(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("가", 9)+"…", summary)
}

func TestOpenAIErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","code":"rate_limit_exceeded"}}`, KindRateLimit},
		{"quota", http.StatusTooManyRequests, `{"error":{"message":"no credit","code":"insufficient_quota"}}`, KindQuota},
		{"auth", http.StatusUnauthorized, `{"error":{"message":"bad key","code":"invalid_api_key"}}`, KindAuth},
		{"server", http.StatusBadGateway, `{"error":{"message":"upstream"}}`, KindTransient},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"too long","code":"context_length_exceeded"}}`, KindInvalid},
		{"no choices", http.StatusOK, `{"choices":[]}`, KindInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}))
			defer srv.Close()

			_, err := NewOpenAIClient(OpenAIOptions{BaseURL: srv.URL}).Summarize(context.Background(), "text")
			require.Error(t, err)

			var aiErr *Error
			require.True(t, errors.As(err, &aiErr))
			assert.Equal(t, tt.kind, aiErr.Kind)
			assert.Equal(t, tt.kind == KindRateLimit, IsRateLimit(err))
		})
	}
}

func TestOpenAINetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewOpenAIClient(OpenAIOptions{BaseURL: url}).Summarize(context.Background(), "text")
	var aiErr *Error
	require.True(t, errors.As(err, &aiErr))
	assert.Equal(t, KindTransient, aiErr.Kind)
	assert.False(t, IsRateLimit(err))
}

func TestOllamaSummarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, SummaryPrompt, req.System)
		assert.False(t, req.Stream)
		writeJSON(w, http.StatusOK, `{"response":"로컬 요약","done":true}`)
	}))
	defer srv.Close()

	summary, err := NewOllamaClient(srv.URL, "qwen2.5:14b", 0.7, 300).Summarize(context.Background(), "본문")
	require.NoError(t, err)
	assert.Equal(t, "로컬 요약", summary)
}

func TestOllamaRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, `{"error":"server busy"}`)
	}))
	defer srv.Close()

	_, err := NewOllamaClient(srv.URL, "", 0, 0).Summarize(context.Background(), "본문")
	assert.True(t, IsRateLimit(err))
}
