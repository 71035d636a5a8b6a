package errors

import (
	"errors"

	"github.com/dropDatabas3/notesauth/internal/auth"
	"github.com/dropDatabas3/notesauth/internal/domain/repository"
)

// FromError maps domain errors to their HTTP form. Unknown errors become a
// 500 that keeps err as the cause.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, auth.ErrMissingEmail):
		return ErrMissingEmail.WithCause(err)
	case errors.Is(err, auth.ErrAuthMethodConflict):
		return ErrMethodConflict.WithCause(err)
	case errors.Is(err, auth.ErrAccountLinked):
		return ErrAccountLinked.WithCause(err)
	case errors.Is(err, auth.ErrDuplicateIdentity):
		return ErrConflict.WithCause(err)
	case errors.Is(err, auth.ErrProviderProtocol):
		return ErrBadGateway.WithCause(err)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return ErrInvalidCredentials.WithCause(err)
	case errors.Is(err, auth.ErrUnknownProvider):
		return ErrNotFound.WithCause(err).WithDetail("unknown provider")
	case errors.Is(err, repository.ErrConflict):
		return ErrConflict.WithCause(err)
	case errors.Is(err, repository.ErrInvalidInput):
		return ErrBadRequest.WithCause(err)
	case errors.Is(err, auth.ErrRoleNotFound):
		return ErrInternalServerError.WithCause(err)
	}
	return ErrInternalServerError.WithCause(err)
}
