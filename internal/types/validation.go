package types

import (
	"github.com/go-playground/validator/v10"
)

// validate is the process-wide validator instance. validator.Validate caches
// struct metadata internally and is safe for concurrent use.
var validate = validator.New()

// ValidateMessage validates a queue message struct against its `validate`
// tags. Every consumer calls this at the boundary before processing; a
// message that fails validation is malformed and must not be retried.
func ValidateMessage(msg any) error {
	if err := validate.Struct(msg); err != nil {
		return NewAppError(ErrCodeValidationInvalidMessage, "message failed schema validation", err)
	}
	return nil
}

// IsValidZip reports whether s is a syntactically valid 5-digit US ZIP code.
func IsValidZip(s string) bool {
	if len(s) != 5 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
