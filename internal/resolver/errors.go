package resolver

import (
	"fmt"
	"net/http"
	"time"
)

// RateLimitError is returned as soon as any mirror answers 429.
type RateLimitError struct {
	Target     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by %s, retry after %s", e.Target, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited by %s", e.Target)
}

// ManifestUnresolvableError means a playback manifest yielded no usable URL.
type ManifestUnresolvableError struct {
	TrackID string
	Reason  string
}

func (e *ManifestUnresolvableError) Error() string {
	if e.TrackID != "" {
		return fmt.Sprintf("manifest for track %s unresolvable: %s", e.TrackID, e.Reason)
	}
	return "manifest unresolvable: " + e.Reason
}

// UpstreamError is a non-2xx answer that survived router failover.
type UpstreamError struct {
	StatusCode int
	Target     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s answered HTTP %d: %s", e.Target, e.StatusCode, http.StatusText(e.StatusCode))
}

// NotFoundError means the payload held nothing of the requested kind.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}
