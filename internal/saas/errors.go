package saas

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is the cause attached to a ServiceError when the decision
// circuit breaker rejects a call without attempting it.
var ErrCircuitOpen = errors.New("saas: circuit open")

// ServiceError reports a failed exchange with the Humifortis API: a non-2xx
// (and non-404) response, a transport failure, or an unparseable decision
// body. It is never a decision; callers apply their own fallback policy.
type ServiceError struct {
	Op     string // "decision" or "event"
	Status int    // HTTP status code, 0 when the request never completed
	Body   string // truncated response body for unexpected statuses
	Err    error  // underlying transport or decode cause, may be nil
}

func (e *ServiceError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("saas: %s request failed: status %d: %s", e.Op, e.Status, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("saas: %s request failed: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("saas: %s request failed", e.Op)
	}
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsServiceError reports whether err is (or wraps) a ServiceError.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}
