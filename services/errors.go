package services

import (
	"errors"
	"strings"

	"github.com/princinho/escolaportal/repository"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrForbidden               = errors.New("forbidden")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrReservationConflict     = errors.New("reservation conflicts with existing bookings")
	ErrDateUnavailable         = errors.New("date is not open for reservations")
	ErrRejectionReasonRequired = errors.New("rejection reason is required")
	ErrEquipmentNotReservable  = errors.New("equipment is not available for reservation")
	ErrStale                   = errors.New("request was modified concurrently, reload and retry")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrAccountDisabled         = errors.New("account disabled")
	ErrEmailTaken              = errors.New("email already registered")
	ErrBlobStoreDisabled       = errors.New("file uploads are not configured")
)

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

// errOrNil returns e only when it carries field errors.
func (e *ValidationError) errOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ConflictError carries the bookings a candidate reservation collides with.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	return ErrReservationConflict.Error()
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrReservationConflict
}

// fromRepo translates repository sentinels into service errors.
func fromRepo(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrStaleWrite):
		return ErrStale
	}
	return err
}
