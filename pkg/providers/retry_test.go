package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"server error", &StatusError{Provider: "ollama", StatusCode: http.StatusInternalServerError}, true},
		{"bad gateway wrapped", fmt.Errorf("page 3: %w", &StatusError{StatusCode: http.StatusBadGateway}), true},
		{"rate limited", &StatusError{StatusCode: http.StatusTooManyRequests}, true},
		{"not found", &StatusError{StatusCode: http.StatusNotFound}, false},
		{"bad request", &StatusError{StatusCode: http.StatusBadRequest}, false},
		{"connection refused", &url.Error{Op: "Post", URL: "http://localhost:11434", Err: errors.New("connection refused")}, true},
		{"timeout", &url.Error{Op: "Post", URL: "http://localhost:11434", Err: context.DeadlineExceeded}, false},
		{"canceled", context.Canceled, false},
		{"decode failure", errors.New("failed to parse JSON response"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsRetryable(tt.err); result != tt.expected {
				t.Errorf("IsRetryable() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestDo(t *testing.T) {
	tests := []struct {
		name          string
		attempts      uint
		failures      int
		status        int
		expectedCalls int
		expectError   bool
	}{
		{"first try", 3, 0, 0, 1, false},
		{"recovers after transient errors", 3, 2, http.StatusServiceUnavailable, 3, false},
		{"gives up after attempts", 2, 5, http.StatusInternalServerError, 2, true},
		{"permanent error is not retried", 3, 5, http.StatusUnauthorized, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			config := Config{Provider: "test", Attempts: tt.attempts, RetryDelay: time.Millisecond}
			err := Do(context.Background(), config, func() error {
				calls++
				if calls <= tt.failures {
					return &StatusError{Provider: "test", StatusCode: tt.status}
				}
				return nil
			})

			if calls != tt.expectedCalls {
				t.Errorf("calls = %d, want %d", calls, tt.expectedCalls)
			}
			if tt.expectError {
				var se *StatusError
				if !errors.As(err, &se) || se.StatusCode != tt.status {
					t.Errorf("Do() error = %v, want StatusError %d", err, tt.status)
				}
			} else if err != nil {
				t.Errorf("Do() unexpected error = %v", err)
			}
		})
	}
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{Provider: "ollama", StatusCode: 404, Body: `{"error":"model not found"}`}
	if err.Error() != `ollama API error: 404 - {"error":"model not found"}` {
		t.Errorf("Error() = %q", err.Error())
	}
}
