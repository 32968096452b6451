// internal/upstream/errors.go
package upstream

import (
	"errors"
	"fmt"
)

// ErrDegraded marks results that are structurally valid but may be incomplete because an
// upstream service failed or timed out.
var ErrDegraded = errors.New("upstream degraded")

// DegradedError records which upstream call failed. It matches both ErrDegraded and its cause
// under errors.Is.
type DegradedError struct {
	Service string
	Op      string
	Status  int
	Err     error
}

func (e *DegradedError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: upstream returned status %d", e.Service, e.Op, e.Status)
	}
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *DegradedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDegraded}
	}
	return []error{ErrDegraded, e.Err}
}

// ClientError is an upstream 4xx that does not simply mean "no data".
type ClientError struct {
	Service string
	Status  int
	Message string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Status, e.Message)
}

// IsDegraded reports whether err describes a degraded upstream.
func IsDegraded(err error) bool {
	return errors.Is(err, ErrDegraded)
}
