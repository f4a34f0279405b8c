package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound           = errors.New("account not found")
	ErrConflict           = errors.New("email already registered and verified")
	ErrUnverified         = errors.New("email not verified")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrExpired            = errors.New("verification code has expired")
	ErrAlreadyDone        = errors.New("email already verified")
	ErrValidation         = errors.New("validation failed")
	ErrDependency         = errors.New("dependency unavailable")
)

// ValidationError lists offending fields; errors.Is(err, ErrValidation) holds.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func dependency(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDependency, op, err)
}

// requireFields returns a ValidationError naming every blank field.
func requireFields(fields map[string]string) error {
	missing := map[string]string{}
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing[name] = "is required"
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{Fields: missing}
}
