package triage

import (
	"errors"
	"fmt"
)

// ErrInvalidRules is returned when a rule table fails validation.
var ErrInvalidRules = errors.New("invalid rule table")

// ValidationError reports an out-of-range or malformed patient attribute.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
