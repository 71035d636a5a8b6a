// Package account serves the authenticated-user endpoints.
package account

import (
	"net/http"

	"github.com/dropDatabas3/notesauth/internal/auth/principal"
	"github.com/dropDatabas3/notesauth/internal/domain/repository"
	"github.com/dropDatabas3/notesauth/internal/http/errors"
)

type messageResponse struct {
	Message string `json:"message"`
}

// Me returns the current principal.
func Me(w http.ResponseWriter, r *http.Request) {
	p, ok := principal.FromContext(r.Context())
	if !ok {
		errors.WriteError(w, r, errors.ErrUnauthorized)
		return
	}
	errors.WriteJSON(w, http.StatusOK, p)
}

// Welcome is public.
func Welcome(w http.ResponseWriter, _ *http.Request) {
	errors.WriteJSON(w, http.StatusOK, messageResponse{Message: "Welcome to notesauth"})
}

// SecuredWelcome requires authority.create (enforced by the router).
func SecuredWelcome(w http.ResponseWriter, _ *http.Request) {
	errors.WriteJSON(w, http.StatusOK, messageResponse{Message: "Welcome to notesauth, secured"})
}

// CreateNoteWelcome requires note.create and reports how the caller signed in.
func CreateNoteWelcome(w http.ResponseWriter, r *http.Request) {
	p, ok := principal.FromContext(r.Context())
	if !ok {
		errors.WriteError(w, r, errors.ErrUnauthorized)
		return
	}
	msg := "OAuth2 user - welcome to creating notes securely"
	if p.Method() == repository.MethodEmail {
		msg = "Password based user - welcome to creating notes securely"
	}
	errors.WriteJSON(w, http.StatusOK, messageResponse{Message: msg})
}
