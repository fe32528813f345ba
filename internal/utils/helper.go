package utils

import (
	"log/slog"
	"os"
	"regexp"
)

var sensitivePatterns = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	// key=VALUE, api_key=VALUE, apiKey=VALUE, api-key=VALUE, token=VALUE in query strings
	{regexp.MustCompile(`([?&])(api[_\-]?[kK]ey|key|token)=([^&\s"]+)`), `${1}${2}=***MASKED***`},
	{regexp.MustCompile(`Bearer\s+([A-Za-z0-9_\-\.]+)`), `Bearer ***MASKED***`},
	// base64 image payloads are not secret but make errors unreadable
	{regexp.MustCompile(`data:image/[a-z0-9.+-]+;base64,[A-Za-z0-9+/=]{16,}`), `data:image;base64,***ELIDED***`},
}

// MaskSensitiveData masks API keys, bearer tokens and inline image data in s
// so that request URLs and bodies can be logged safely.
func MaskSensitiveData(s string) string {
	if s == "" {
		return s
	}
	for _, p := range sensitivePatterns {
		s = p.pattern.ReplaceAllString(s, p.replacement)
	}
	return s
}

// MaskSensitiveError wraps err so its message is masked when printed
func MaskSensitiveError(err error) error {
	if err == nil {
		return nil
	}
	return &maskedError{err: err}
}

type maskedError struct {
	err error
}

func (e *maskedError) Error() string {
	return MaskSensitiveData(e.err.Error())
}

func (e *maskedError) Unwrap() error {
	return e.err
}

func ExitOnError(msg string, err error) {
	slog.Error(msg, "err", MaskSensitiveError(err))
	os.Exit(1)
}
