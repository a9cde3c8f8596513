package upstream

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrQuotaExceeded marks an upstream response rejected for quota or rate
// limiting. It is never retried; the pipeline reacts by falling back to the
// last good cached dataset.
var ErrQuotaExceeded = errors.New("upstream quota exceeded")

// RequestError wraps a failed upstream call with enough context to decide
// whether retrying at the call site makes sense.
type RequestError struct {
	Op     string
	Table  string
	Status int
	Err    error
}

func (e *RequestError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upstream %s %s: status %d", e.Op, e.Table, e.Status)
	}
	return fmt.Sprintf("upstream %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is worth a bounded retry: timeouts,
// connection resets, and 5xx responses. Quota rejections and other 4xx
// responses are not transient.
func (e *RequestError) Transient() bool {
	if e.Status >= http.StatusInternalServerError {
		return true
	}
	if e.Status > 0 {
		return false
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) && netErr.Timeout() {
		return true
	}
	// Connection-level failures with no HTTP status (reset, refused, EOF).
	return e.Err != nil
}

// IsQuota reports whether err signals quota exhaustion.
func IsQuota(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
