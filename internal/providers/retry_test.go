package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), 3, func() error {
		calls++
		return &authError{message: "nope"}
	})
	assert.True(t, IsAuthError(err))
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_ExhaustsRateLimit(t *testing.T) {
	orig := backoffBase
	backoffBase = time.Millisecond
	t.Cleanup(func() { backoffBase = orig })

	calls := 0
	err := retryWithBackoff(context.Background(), 2, func() error {
		calls++
		return &rateLimitError{}
	})
	assert.True(t, IsRateLimit(err))
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retryWithBackoff(ctx, 3, func() error { return &rateLimitError{} })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifyStatus(t *testing.T) {
	assert.True(t, IsRateLimit(classifyStatus(429, "x")))
	assert.True(t, IsAuthError(classifyStatus(401, "x")))
	assert.True(t, IsAuthError(classifyStatus(403, "x")))
	assert.Nil(t, classifyStatus(500, "x"))
}

func TestClassifyMessage(t *testing.T) {
	assert.True(t, IsRateLimit(classifyMessage("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED")))
	assert.True(t, IsAuthError(classifyMessage("googleapi: Error 400: API key not valid. Please pass a valid API key.")))
	assert.Nil(t, classifyMessage("connection reset"))
}

func TestIsAuthError_Wrapped(t *testing.T) {
	err := errors.Join(errors.New("outer"), &authError{message: "inner"})
	assert.True(t, IsAuthError(err))
}

func TestGeminiResponse(t *testing.T) {
	out := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("[]"), genai.Text("\n")}},
		}},
		UsageMetadata: &genai.UsageMetadata{TotalTokenCount: 42},
	}
	resp := geminiResponse(out)
	assert.Equal(t, "[]\n", resp.Text)
	assert.Equal(t, 42, resp.TokensUsed)

	assert.Equal(t, Response{}, geminiResponse(nil))
}

func TestNewGemini_MissingKey(t *testing.T) {
	clearKeys(t)
	_, err := NewGemini("gemini-2.5-flash")
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Reason, "GEMINI_API_KEY")
}
