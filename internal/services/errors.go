package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrSlotUnavailable        = errors.New("slot unavailable")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInactiveType           = errors.New("consultation type is not bookable")
	ErrPaymentUnavailable     = errors.New("payments are not configured")
	ErrPaymentNotRequired     = errors.New("booking does not require payment")
	ErrCalendarUnavailable    = errors.New("calendar sync is not configured")
	ErrInvalidSignature       = errors.New("invalid webhook signature")
	ErrInvalidCredentials     = errors.New("invalid credentials")
)

// ValidationError carries per-field messages. It matches ErrInvalidInput
// with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+e.Fields[key])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

type fieldErrors map[string]string

func (f fieldErrors) add(field, message string) {
	if _, exists := f[field]; !exists {
		f[field] = message
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}
