package errors

import (
	"errors"
	"fmt"

	apperrors "roomdesk/pkg/errors"
)

type Kind string

const (
	KindValidation             Kind = "ValidationError"
	KindAlreadyResolved        Kind = "AlreadyResolvedError"
	KindConcurrentModification Kind = "ConcurrentModificationError"
)

var (
	ErrValidation             = errors.New("conflict input is invalid")
	ErrAlreadyResolved        = errors.New("conflict was already resolved")
	ErrConcurrentModification = errors.New("conflict was modified concurrently")

	ErrNotFound = errors.New("conflict not found")
)

// ResolutionError is the structured failure returned by grouping and
// resolution. It matches the sentinel of its kind under errors.Is.
type ResolutionError struct {
	Kind    Kind   `json:"kind"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ResolutionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ResolutionError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrAlreadyResolved:
		return e.Kind == KindAlreadyResolved
	case ErrConcurrentModification:
		return e.Kind == KindConcurrentModification
	}
	return false
}

func Validation(field, format string, args ...any) *ResolutionError {
	return &ResolutionError{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func AlreadyResolved(conflictID string) *ResolutionError {
	return &ResolutionError{
		Kind:    KindAlreadyResolved,
		Message: fmt.Sprintf("conflict %s was already handled, refresh to see its outcome", conflictID),
	}
}

func ConcurrentModification(format string, args ...any) *ResolutionError {
	return &ResolutionError{Kind: KindConcurrentModification, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the resolution kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var rErr *ResolutionError
	if errors.As(err, &rErr) {
		return rErr.Kind, true
	}
	return "", false
}

// ToAppError maps a conflict failure onto the HTTP error model. The
// resolution kind is kept so clients can branch on it.
func ToAppError(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}

	var rErr *ResolutionError
	if errors.As(err, &rErr) {
		switch rErr.Kind {
		case KindValidation:
			details := map[string]any{}
			if rErr.Field != "" {
				details["field"] = rErr.Field
			}
			return apperrors.Validation(rErr.Message, details).WithKind(string(rErr.Kind))
		case KindAlreadyResolved:
			return apperrors.AlreadyResolved(rErr.Message, err).WithKind(string(rErr.Kind))
		case KindConcurrentModification:
			return apperrors.ConcurrentModification(rErr.Message, err).WithKind(string(rErr.Kind))
		}
	}

	if errors.Is(err, ErrNotFound) {
		return apperrors.NotFound("Conflict")
	}
	return apperrors.AsAppError(err)
}
