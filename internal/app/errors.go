package app

import (
	"errors"
	"fmt"
	"net/http"

	"showcase/api/internal/access"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// guardError turns an access decision into the response the caller sees. A foreign
// presentation is invisible on reads and forbidden on writes.
func guardError(err error, write bool) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, access.ErrUnauthenticated):
		return domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	case errors.Is(err, access.ErrNotOwner) && write:
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	case errors.Is(err, access.ErrNotOwner):
		return domainError(http.StatusNotFound, "NOT_FOUND", "Presentation not found", nil)
	default:
		return err
	}
}
