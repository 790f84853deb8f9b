package providers

import (
	"context"
	"errors"
	"strings"
	"time"
)

type rateLimitError struct {
	message string
}

func (e *rateLimitError) Error() string {
	if e.message == "" {
		return "rate limited"
	}
	return "rate limited: " + e.message
}

type authError struct {
	message string
}

func (e *authError) Error() string {
	return "authentication error: " + e.message
}

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	var ae *authError
	return errors.As(err, &ae)
}

// IsRateLimit checks if an error is a rate-limit error that survived retries.
func IsRateLimit(err error) bool {
	var re *rateLimitError
	return errors.As(err, &re)
}

// backoffBase is the first retry delay; it doubles per attempt.
var backoffBase = time.Second

func retryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		// Only rate limits are worth another attempt.
		var re *rateLimitError
		if !errors.As(lastErr, &re) {
			return lastErr
		}

		if attempt < maxRetries {
			backoff := backoffBase << uint(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}

// classifyStatus maps an HTTP status from a vendor SDK error onto the retry
// taxonomy. It returns nil when the status is neither auth nor rate related.
func classifyStatus(status int, message string) error {
	switch {
	case status == 429:
		return &rateLimitError{message: message}
	case status == 401 || status == 403:
		return &authError{message: message}
	}
	return nil
}

// classifyMessage is used for transports that do not expose a status code.
func classifyMessage(message string) error {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "429"), strings.Contains(m, "resource_exhausted"), strings.Contains(m, "quota"):
		return &rateLimitError{message: message}
	case strings.Contains(m, "api key not valid"), strings.Contains(m, "permission_denied"),
		strings.Contains(m, "unauthenticated"), strings.Contains(m, "401"), strings.Contains(m, "403"):
		return &authError{message: message}
	}
	return nil
}
