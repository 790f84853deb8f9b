package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anthropicMessage(text string) map[string]any {
	return map[string]any{
		"id":            "msg_test",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-sonnet-4-20250514",
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"content":       []map[string]any{{"type": "text", "text": text}},
		"usage":         map[string]any{"input_tokens": 100, "output_tokens": 10},
	}
}

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) *Anthropic {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	a, err := NewAnthropic("claude-sonnet-4-20250514", option.WithBaseURL(server.URL))
	require.NoError(t, err)
	return a
}

func TestAnthropic_Invoke(t *testing.T) {
	var body map[string]any
	a := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "/v1/messages", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(anthropicMessage("[]"))
	})

	resp, err := a.Invoke(context.Background(), Request{System: "sys", Prompt: "review this", MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "[]", resp.Text)
	assert.Equal(t, 110, resp.TokensUsed)

	assert.Equal(t, "claude-sonnet-4-20250514", body["model"])
	assert.EqualValues(t, 10, body["max_tokens"])
	assert.NotNil(t, body["system"])
}

func TestAnthropic_AuthError(t *testing.T) {
	a := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	})

	_, err := a.Invoke(context.Background(), Request{Prompt: "test"})
	require.Error(t, err)
	assert.True(t, IsAuthError(err), "expected auth error, got %v", err)
}

func TestAnthropic_RetriesRateLimit(t *testing.T) {
	orig := backoffBase
	backoffBase = time.Millisecond
	t.Cleanup(func() { backoffBase = orig })

	attempts := 0
	a := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Content-Type", "application/json")
		if attempts <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(anthropicMessage("ok"))
	})

	resp, err := a.Invoke(context.Background(), Request{Prompt: "test"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 3, attempts)
}

func TestAnthropic_ServerErrorNotRetried(t *testing.T) {
	attempts := 0
	a := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	})

	_, err := a.Invoke(context.Background(), Request{Prompt: "test"})
	require.Error(t, err)
	assert.False(t, IsAuthError(err))
	assert.Equal(t, 1, attempts)
}
