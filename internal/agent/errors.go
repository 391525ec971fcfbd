package agent

import (
	"errors"
	"strings"
)

// UpstreamError reports that the agent or its network path failed.
// Presentation layers show a generic message and keep the cause for logs.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return e.Op + ": agent call failed: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// RateLimited reports whether the provider rejected the call for quota reasons
func (e *UpstreamError) RateLimited() bool {
	return isRateLimitError(e.Err)
}

// IsUpstream reports whether err came from an agent call
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// isRateLimitError checks if an error is due to rate limiting
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "resourceexhausted") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota")
}
