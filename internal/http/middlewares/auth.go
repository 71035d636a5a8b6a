package middlewares

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/notesauth/internal/auth/principal"
	"github.com/dropDatabas3/notesauth/internal/config"
	"github.com/dropDatabas3/notesauth/internal/http/errors"
)

// PasswordAuthenticator verifies email/password credentials.
type PasswordAuthenticator interface {
	PasswordLogin(ctx context.Context, email, password string) (*principal.Principal, error)
}

const basicChallenge = `Basic realm="notesauth", charset="UTF-8"`

// WithBasicAuth authenticates every non-public route with HTTP Basic
// credentials and stores the principal in the request context. Public routes
// pass through untouched.
func WithBasicAuth(sec config.Security, authn PasswordAuthenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sec.IsPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			email, password, ok := r.BasicAuth()
			if !ok || email == "" {
				w.Header().Set("WWW-Authenticate", basicChallenge)
				errors.WriteError(w, r, errors.ErrUnauthorized)
				return
			}
			p, err := authn.PasswordLogin(r.Context(), email, password)
			if err != nil {
				w.Header().Set("WWW-Authenticate", basicChallenge)
				appErr := errors.FromError(err)
				if appErr.HTTPStatus == http.StatusConflict {
					// Provider accounts have no password; do not reveal which provider.
					appErr = errors.ErrInvalidCredentials.WithCause(err)
				}
				errors.WriteError(w, r, appErr)
				return
			}
			next.ServeHTTP(w, r.WithContext(principal.ToContext(r.Context(), p)))
		})
	}
}

// RequireAuthority rejects requests whose principal lacks perm.
func RequireAuthority(perm string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principal.FromContext(r.Context())
			if !ok {
				errors.WriteError(w, r, errors.ErrUnauthorized)
				return
			}
			if !p.HasAuthority(perm) {
				errors.WriteError(w, r, errors.ErrForbidden.WithDetail("missing authority "+perm))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
