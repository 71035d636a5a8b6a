// Package router mounts the HTTP API on a chi router.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/notesauth/internal/auth/authz"
	"github.com/dropDatabas3/notesauth/internal/config"
	"github.com/dropDatabas3/notesauth/internal/http/controllers/account"
	"github.com/dropDatabas3/notesauth/internal/http/controllers/auth"
	"github.com/dropDatabas3/notesauth/internal/http/controllers/health"
	"github.com/dropDatabas3/notesauth/internal/http/errors"
	mw "github.com/dropDatabas3/notesauth/internal/http/middlewares"
	"github.com/dropDatabas3/notesauth/internal/rate"
)

// Deps are the collaborators of the router.
type Deps struct {
	Security config.Security
	Social   *auth.SocialController
	Health   *health.Controller
	Password mw.PasswordAuthenticator
	// Limiter guards the credential-bearing routes. Nil disables it.
	Limiter rate.Limiter
	// ClientIP keys logs and rate limits. Nil trusts no proxy.
	ClientIP *mw.ClientIP
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// New builds the full handler tree.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithSecurityHeaders(),
		mw.WithLogging(d.ClientIP),
		mw.WithMetrics(),
	)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		errors.WriteError(w, req, errors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		errors.WriteError(w, req, errors.ErrBadRequest.WithDetail("method not allowed"))
	})

	// ─── Public ───
	r.Get("/healthz", d.Health.Healthz)
	r.Handle("/metrics", metricsHandler(d.Gatherer))
	r.Get("/api/v1/oauth2/welcome", account.Welcome)
	r.Route("/v1/auth/{provider}", func(r chi.Router) {
		r.Get("/start", d.Social.Start)
		r.With(mw.WithRateLimit(d.Limiter, d.ClientIP)).Get("/callback", d.Social.Callback)
	})

	// ─── Basic auth ───
	r.Group(func(r chi.Router) {
		r.Use(mw.WithRateLimit(d.Limiter, d.ClientIP), mw.WithBasicAuth(d.Security, d.Password))
		r.Get("/v1/me", account.Me)
		r.With(mw.RequireAuthority(authz.AuthorityCreate)).
			Get("/api/v1/oauth2/welcome/secured", account.SecuredWelcome)
		r.With(mw.RequireAuthority(authz.NoteCreate)).
			Get("/api/v1/oauth2/welcome/create-note", account.CreateNoteWelcome)
	})
	return r
}

func metricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
