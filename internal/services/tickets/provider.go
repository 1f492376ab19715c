package tickets

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// upstreamError marks a tracker API failure: either a non-2xx response
// (status set) or a transport error that never produced one (err set).
type upstreamError struct {
	status int
	err    error
}

func (e *upstreamError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("upstream request failed: %v", e.err)
	}
	return fmt.Sprintf("upstream returned status %d", e.status)
}

func (e *upstreamError) Unwrap() error {
	return e.err
}

// isNotFound reports whether an error is an upstream 404.
func isNotFound(err error) bool {
	var ue *upstreamError
	return errors.As(err, &ue) && ue.status == http.StatusNotFound
}

// isTransientUpstream reports whether a read is worth one retry: transport
// errors and 5xx responses qualify, 4xx responses do not.
func isTransientUpstream(err error) bool {
	var ue *upstreamError
	if !errors.As(err, &ue) {
		return false
	}
	return ue.err != nil || ue.status >= http.StatusInternalServerError
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
