package services

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/patchpilot/patchpilot/pkg/logger"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

const (
	maxReviewAttempts = 3
	retryBaseDelay    = 500 * time.Millisecond
)

// BackendError wraps an AI backend failure with the HTTP status that caused
// it, so the retry loop decides from the tag alone. StatusCode 0 means the
// failure was not distinguishable as a client error (network, timeout) and is
// treated as transient.
type BackendError struct {
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	return e.Err.Error()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient: rate limiting, server
// errors, or anything without a distinguishable client status.
func (e *BackendError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// classifyBackendError extracts the HTTP status from the provider SDK error
// types. Unknown error shapes get status 0 (transient).
func classifyBackendError(err error) *BackendError {
	var openaiErr *openai.APIError
	if errors.As(err, &openaiErr) {
		return &BackendError{StatusCode: openaiErr.HTTPStatusCode, Err: err}
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return &BackendError{StatusCode: anthropicErr.StatusCode, Err: err}
	}

	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return &BackendError{StatusCode: genaiErr.Code, Err: err}
	}

	var ollamaErr api.StatusError
	if errors.As(err, &ollamaErr) {
		return &BackendError{StatusCode: ollamaErr.StatusCode, Err: err}
	}

	return &BackendError{StatusCode: 0, Err: err}
}

// callWithBackoff runs fn up to maxReviewAttempts times with exponential
// backoff, retrying only transient failures. Non-retryable failures
// propagate immediately; exhaustion propagates the last failure.
func callWithBackoff(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	var lastErr error
	delay := retryBaseDelay

	for attempt := 1; attempt <= maxReviewAttempts; attempt++ {
		content, err := fn(ctx)
		if err == nil {
			return content, nil
		}

		backendErr := classifyBackendError(err)
		if !backendErr.Retryable() {
			return "", backendErr
		}
		lastErr = backendErr

		if attempt < maxReviewAttempts {
			logger.Warnf("[AI] Attempt %d/%d failed (status=%d), retrying in %v: %v",
				attempt, maxReviewAttempts, backendErr.StatusCode, delay, err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return "", lastErr
}
