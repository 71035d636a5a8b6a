// Package login drives one login attempt from credential to principal.
//
// Every attempt moves UNAUTHENTICATED → RESOLVING → AUTHENTICATED or
// REJECTED(reason). The only suspension points are the provider calls.
package login

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/notesauth/internal/auth"
	"github.com/dropDatabas3/notesauth/internal/auth/linking"
	"github.com/dropDatabas3/notesauth/internal/auth/principal"
	"github.com/dropDatabas3/notesauth/internal/auth/providers"
	"github.com/dropDatabas3/notesauth/internal/domain/repository"
	"github.com/dropDatabas3/notesauth/internal/metrics"
	"github.com/dropDatabas3/notesauth/internal/observability/logger"
)

// State is the position of an attempt in the login state machine.
type State string

const (
	StateUnauthenticated State = "UNAUTHENTICATED"
	StateResolving       State = "RESOLVING"
	StateAuthenticated   State = "AUTHENTICATED"
	StateRejected        State = "REJECTED"
)

// Service is safe for concurrent use.
type Service struct {
	registry      *providers.Registry
	resolver      *linking.Resolver
	store         repository.Store
	defaultRoleID int64
	compare       func(hash, password []byte) error
}

// NewService wires the login flow.
func NewService(registry *providers.Registry, resolver *linking.Resolver, store repository.Store, defaultRoleID int64) *Service {
	if defaultRoleID <= 0 {
		defaultRoleID = linking.DefaultRoleID
	}
	return &Service{
		registry:      registry,
		resolver:      resolver,
		store:         store,
		defaultRoleID: defaultRoleID,
		compare:       bcrypt.CompareHashAndPassword,
	}
}

// Providers exposes the registry for the HTTP layer.
func (s *Service) Providers() *providers.Registry { return s.registry }

type attempt struct {
	method string
	start  time.Time
	state  State
	log    *zap.Logger
}

func (s *Service) begin(ctx context.Context, method string) *attempt {
	a := &attempt{
		method: method,
		start:  time.Now(),
		state:  StateUnauthenticated,
		log:    logger.From(ctx).With(logger.Layer("service"), logger.Component("login"), logger.Provider(method)),
	}
	return a
}

func (a *attempt) to(st State) {
	a.log.Debug("login state", logger.String("from", string(a.state)), logger.String("to", string(st)))
	a.state = st
}

// finish records the terminal state of the attempt and passes err through.
func (a *attempt) finish(p *principal.Principal, err error) (*principal.Principal, error) {
	outcome := "authenticated"
	if err != nil {
		a.to(StateRejected)
		outcome = auth.Reason(err)
		lvl := a.log.Info
		if outcome == "internal" || outcome == "provider_protocol" {
			lvl = a.log.Warn
		}
		lvl("login rejected", logger.Outcome(outcome), logger.Err(err), logger.Duration(time.Since(a.start)))
	} else {
		a.to(StateAuthenticated)
		a.log.Info("login succeeded", logger.UserID(p.UserID()), logger.Duration(time.Since(a.start)))
	}
	metrics.ObserveLogin(a.method, outcome, time.Since(a.start))
	return p, err
}

// Callback completes a provider redirect: it exchanges code and then behaves
// like Login. nonce is checked against the ID token when the provider is OIDC.
func (s *Service) Callback(ctx context.Context, method repository.AuthMethod, code, nonce string) (*principal.Principal, error) {
	a := s.begin(ctx, method.Slug())
	p, err := s.registry.Get(method)
	if err != nil {
		return a.finish(nil, err)
	}
	if strings.TrimSpace(code) == "" {
		return a.finish(nil, auth.NewProviderError(method.Slug(), "exchange", errors.New("empty authorization code")))
	}
	cred, err := p.Exchange(ctx, code)
	if err != nil {
		return a.finish(nil, err)
	}
	cred.Nonce = nonce
	return a.finish(s.login(ctx, a, p, cred))
}

// Login authenticates an already exchanged provider credential.
func (s *Service) Login(ctx context.Context, method repository.AuthMethod, cred *providers.Credential) (*principal.Principal, error) {
	a := s.begin(ctx, method.Slug())
	p, err := s.registry.Get(method)
	if err != nil {
		return a.finish(nil, err)
	}
	return a.finish(s.login(ctx, a, p, cred))
}

func (s *Service) login(ctx context.Context, a *attempt, p providers.Provider, cred *providers.Credential) (*principal.Principal, error) {
	a.to(StateResolving)

	id, err := p.FetchProfile(ctx, cred)
	if err != nil {
		return nil, err
	}
	res, err := s.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return principal.Build(res.Authorities, id.Attributes, p.NameAttributeKey(), principal.WithUser(res.User))
}

// PasswordLogin authenticates an EMAIL account. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) PasswordLogin(ctx context.Context, email, password string) (*principal.Principal, error) {
	a := s.begin(ctx, repository.MethodEmail.Slug())
	a.to(StateResolving)

	u, err := s.store.FindUserByEmail(ctx, email)
	switch {
	case repository.IsNotFound(err):
		u = nil
	case err != nil:
		return a.finish(nil, fmt.Errorf("login: find user: %w", err))
	}

	// Every outcome pays one bcrypt compare, so timing does not tell unknown,
	// provider-owned and password accounts apart.
	hash := dummyHash
	usable := u != nil && u.AuthMethod == repository.MethodEmail && u.PasswordHash != ""
	if usable {
		hash = []byte(u.PasswordHash)
	}
	matched := s.compare(hash, []byte(password)) == nil

	switch {
	case u == nil:
		return a.finish(nil, auth.ErrInvalidCredentials)
	case u.AuthMethod != repository.MethodEmail:
		return a.finish(nil, auth.ErrAuthMethodConflict)
	case !usable || !matched:
		return a.finish(nil, auth.ErrInvalidCredentials)
	}

	set, err := linking.Authorities(ctx, s.store, u.RoleIDs)
	if err != nil {
		return a.finish(nil, err)
	}
	return a.finish(principal.FromUser(u, set), nil)
}

// RegisterPassword creates an EMAIL account with the default role.
func (s *Service) RegisterPassword(ctx context.Context, email, password string) (*repository.User, error) {
	email = repository.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email", repository.ErrInvalidInput)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must have at least %d characters", repository.ErrInvalidInput, MinPasswordLength)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	var created *repository.User
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		role, err := tx.FindRoleByID(ctx, s.defaultRoleID)
		if repository.IsNotFound(err) {
			return auth.ErrRoleNotFound
		}
		if err != nil {
			return err
		}
		created, err = tx.CreateUser(ctx, &repository.User{
			Email:        email,
			PasswordHash: hash,
			AuthMethod:   repository.MethodEmail,
			RoleIDs:      []int64{role.ID},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.From(ctx).Info("password account created",
		logger.Component("login"), logger.UserID(created.ID), logger.EmailMasked(email))
	return created, nil
}
