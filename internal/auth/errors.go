package auth

import (
	"errors"
	"fmt"
)

// Rejection reasons for a login attempt. All are terminal for the attempt and
// none leaves partially created records behind.
var (
	// ErrMissingEmail: the provider supplied no usable verified email.
	ErrMissingEmail = errors.New("auth: provider did not supply a verified email")

	// ErrAuthMethodConflict: the email belongs to an account created through a
	// different authentication method.
	ErrAuthMethodConflict = errors.New("auth: email is registered with a different authentication method")

	// ErrAccountLinked: the email belongs to an account of the same method that
	// is linked to a different external account.
	ErrAccountLinked = errors.New("auth: email is linked to another provider account")

	// ErrRoleNotFound: the configured default role is missing from reference data.
	ErrRoleNotFound = errors.New("auth: default role not found")

	// ErrProviderProtocol: the provider was unreachable, timed out or answered
	// with something we could not understand.
	ErrProviderProtocol = errors.New("auth: provider protocol error")

	// ErrDuplicateIdentity: creation kept hitting uniqueness violations after the
	// re-resolve retry.
	ErrDuplicateIdentity = errors.New("auth: duplicate identity")

	// ErrInvalidCredentials: unknown email or wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrUnknownProvider: no adapter is registered for the requested method.
	ErrUnknownProvider = errors.New("auth: unknown provider")
)

// ProviderError wraps a provider failure keeping the cause for diagnostics.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("auth: %s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrProviderProtocol) hold for every ProviderError.
func (e *ProviderError) Is(target error) bool { return target == ErrProviderProtocol }

// NewProviderError builds a *ProviderError.
func NewProviderError(provider, op string, err error) error {
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// Reason maps an error to a short, stable label used for metrics and logs.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMissingEmail):
		return "missing_email"
	case errors.Is(err, ErrAuthMethodConflict):
		return "auth_method_conflict"
	case errors.Is(err, ErrAccountLinked):
		return "account_linked"
	case errors.Is(err, ErrRoleNotFound):
		return "role_not_found"
	case errors.Is(err, ErrProviderProtocol):
		return "provider_protocol"
	case errors.Is(err, ErrDuplicateIdentity):
		return "duplicate_identity"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUnknownProvider):
		return "unknown_provider"
	default:
		return "internal"
	}
}
