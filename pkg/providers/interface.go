package providers

import (
	"context"
	"strings"
	"time"
)

// Config represents the configuration for a provider
type Config struct {
	Provider    string
	Model       string
	Prompt      string
	Temperature float64
	Timeout     time.Duration
	// BaseURL overrides the provider's environment/default endpoint
	BaseURL string
	// Attempts is the total number of tries for transient failures, 0 means DefaultAttempts
	Attempts   uint
	RetryDelay time.Duration
}

// UsageInfo represents token usage information from a provider
type UsageInfo struct {
	InputTokens  int
	OutputTokens int
}

// Provider interface that all OCR backends must implement
type Provider interface {
	// ExtractText sends one image to the backend and returns the model output
	// together with usage information (tokens used)
	ExtractText(ctx context.Context, config Config, imagePath, imageBase64 string) (string, UsageInfo, error)
	// Name returns the provider's name
	Name() string
	// ValidateConfig validates the provider-specific configuration
	ValidateConfig(config Config) error
}

// StreamFunc receives the accumulated output every time a chunk arrives
type StreamFunc func(accumulated string)

// StreamingProvider is an optional interface for backends that can deliver
// output incrementally. onChunk always receives the full text so far, so
// callers can re-parse the growing prefix.
type StreamingProvider interface {
	Provider
	StreamText(ctx context.Context, config Config, imagePath, imageBase64 string, onChunk StreamFunc) (string, UsageInfo, error)
}

// CleanResponseProvider is an optional interface that providers can implement
// to provide custom response cleaning logic
type CleanResponseProvider interface {
	CleanResponse(response string) string
}

// CleanResponse trims the output and unwraps a code fence that encloses the
// whole response. Grounding tags are left alone.
func CleanResponse(response string) string {
	response = strings.TrimSpace(response)

	if len(response) >= 6 && strings.HasPrefix(response, "```") && strings.HasSuffix(response, "```") {
		inner := response[3 : len(response)-3]
		// drop a language tag such as ```markdown
		if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.ContainsAny(inner[:nl], " \t") {
			inner = inner[nl+1:]
		}
		response = strings.TrimSpace(inner)
	}

	return response
}

// ProcessResponse cleans a response using the provider's custom cleaner if available,
// otherwise uses the general CleanResponse function
func ProcessResponse(provider Provider, response string) string {
	if cleaner, ok := provider.(CleanResponseProvider); ok {
		return cleaner.CleanResponse(response)
	}
	return CleanResponse(response)
}

// TruncateBody truncates a response body to a maximum length for error messages.
// Default maxLen is 500 if not specified.
func TruncateBody(body []byte, maxLen ...int) string {
	limit := 500
	if len(maxLen) > 0 && maxLen[0] > 0 {
		limit = maxLen[0]
	}
	s := string(body)
	if len(s) > limit {
		return s[:limit] + "... (truncated)"
	}
	return s
}
