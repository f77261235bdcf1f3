package models

import (
	"errors"
	"fmt"
)

// ErrNotFound signals a missing record (product, test) in the data layer.
// Insufficient history is never an error: forecasting and pricing return nil
// results for "cannot compute yet".
var ErrNotFound = errors.New("not found")

// ValidationError reports a malformed A/B test definition. It is the only
// analytic error surfaced to callers; everything else degrades to safe defaults.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid test definition: %s %s", e.Field, e.Reason)
}
