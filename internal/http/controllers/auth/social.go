// Package auth holds the social login controllers: the redirect to the
// provider and the callback that completes the login.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/notesauth/internal/auth/principal"
	"github.com/dropDatabas3/notesauth/internal/auth/providers"
	"github.com/dropDatabas3/notesauth/internal/domain/repository"
	"github.com/dropDatabas3/notesauth/internal/http/errors"
	"github.com/dropDatabas3/notesauth/internal/observability/logger"
)

// LoginService is the part of login.Service the controller needs.
type LoginService interface {
	Providers() *providers.Registry
	Callback(ctx context.Context, method repository.AuthMethod, code, nonce string) (*principal.Principal, error)
}

// StateCookie configures the anti-CSRF state cookie.
type StateCookie struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// SocialController serves /v1/auth/{provider}/start and /callback.
type SocialController struct {
	svc    LoginService
	cookie StateCookie
}

// NewSocialController creates the controller.
func NewSocialController(svc LoginService, cookie StateCookie) *SocialController {
	if cookie.Name == "" {
		cookie.Name = "__oauth_state"
	}
	if cookie.TTL <= 0 {
		cookie.TTL = 5 * time.Minute
	}
	return &SocialController{svc: svc, cookie: cookie}
}

func (c *SocialController) method(r *http.Request) (repository.AuthMethod, providers.Provider, error) {
	m, ok := repository.ParseAuthMethod(chi.URLParam(r, "provider"))
	if !ok {
		return "", nil, errors.ErrNotFound.WithDetail("unknown provider")
	}
	p, err := c.svc.Providers().Get(m)
	if err != nil {
		return "", nil, err
	}
	return m, p, nil
}

func (c *SocialController) cookiePath(m repository.AuthMethod) string {
	return "/v1/auth/" + m.Slug()
}

// Start redirects the browser to the provider's authorization endpoint.
func (c *SocialController) Start(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("SocialController.Start"))

	m, p, err := c.method(r)
	if err != nil {
		errors.WriteError(w, r, err)
		return
	}
	state, err := newState()
	if err != nil {
		errors.WriteError(w, r, err)
		return
	}
	target, err := p.AuthURL(r.Context(), state)
	if err != nil {
		log.Warn("could not build authorization url", logger.Provider(m.Slug()), logger.Err(err))
		errors.WriteError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     c.cookie.Name,
		Value:    state,
		Path:     c.cookiePath(m),
		MaxAge:   int(c.cookie.TTL.Seconds()),
		HttpOnly: true,
		Secure:   c.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target, http.StatusFound)
}

// Callback validates state, completes the login and returns the principal.
func (c *SocialController) Callback(w http.ResponseWriter, r *http.Request) {
	m, _, err := c.method(r)
	if err != nil {
		errors.WriteError(w, r, err)
		return
	}
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		errors.WriteError(w, r, errors.ErrBadRequest.WithDetail("provider returned "+e))
		return
	}

	ck, err := r.Cookie(c.cookie.Name)
	state := q.Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(ck.Value), []byte(state)) != 1 {
		errors.WriteError(w, r, errors.ErrInvalidState)
		return
	}
	// One-shot: the state is consumed whatever the outcome.
	http.SetCookie(w, &http.Cookie{
		Name: c.cookie.Name, Value: "", Path: c.cookiePath(m), MaxAge: -1,
		HttpOnly: true, Secure: c.cookie.Secure, SameSite: http.SameSiteLaxMode,
	})

	code := q.Get("code")
	if code == "" {
		errors.WriteError(w, r, errors.ErrBadRequest.WithDetail("missing code"))
		return
	}

	p, err := c.svc.Callback(r.Context(), m, code, state)
	if err != nil {
		errors.WriteError(w, r, err)
		return
	}
	errors.WriteJSON(w, http.StatusOK, p)
}

func newState() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}
