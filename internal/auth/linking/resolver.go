// Package linking resolves a provider identity to exactly one internal user.
//
// Resolution order is fixed: an existing provider link wins over everything
// else, then the email is checked against existing accounts, and only then is
// a new account created. The authentication method recorded on creation is
// never changed, so an email can only ever log in through the channel that
// first claimed it.
package linking

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dropDatabas3/notesauth/internal/auth"
	"github.com/dropDatabas3/notesauth/internal/auth/authz"
	"github.com/dropDatabas3/notesauth/internal/domain/repository"
	"github.com/dropDatabas3/notesauth/internal/metrics"
	"github.com/dropDatabas3/notesauth/internal/observability/logger"
)

// DefaultRoleID is the "USER" role granted to every new account.
const DefaultRoleID int64 = 2002

// Resolution is the outcome of a successful Resolve.
type Resolution struct {
	User        *repository.User
	Link        *repository.ProviderLink
	Authorities authz.Set
	// Created is true when this call created the user.
	Created bool
}

// Resolver holds no per-login state and is safe for concurrent use.
type Resolver struct {
	store         repository.Store
	defaultRoleID int64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDefaultRoleID overrides the role granted at creation.
func WithDefaultRoleID(id int64) Option {
	return func(r *Resolver) {
		if id > 0 {
			r.defaultRoleID = id
		}
	}
}

// New creates a Resolver over store.
func New(store repository.Store, opts ...Option) *Resolver {
	r := &Resolver{store: store, defaultRoleID: DefaultRoleID}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve finds or creates the user behind id.
//
// A uniqueness violation while creating means a concurrent login for the same
// person won the race; the lookup is repeated once so both attempts converge
// on the winner's records. A second violation is reported as
// auth.ErrDuplicateIdentity.
func (r *Resolver) Resolve(ctx context.Context, id *auth.Identity) (*Resolution, error) {
	if err := validate(id); err != nil {
		return nil, err
	}
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("linking"),
		logger.Provider(id.Provider.Slug()),
		logger.ExternalID(id.ExternalID),
	)

	res, err := r.resolve(ctx, log, id)
	if !repository.IsConflict(err) {
		return res, err
	}

	metrics.IdentityRaceRetries.Inc()
	log.Info("concurrent account creation detected, resolving again", logger.Err(err))

	res, err = r.resolve(ctx, log, id)
	if repository.IsConflict(err) {
		log.Warn("account creation conflicted twice", logger.Err(err))
		return nil, fmt.Errorf("%w: %w", auth.ErrDuplicateIdentity, err)
	}
	return res, err
}

func validate(id *auth.Identity) error {
	switch {
	case id == nil:
		return errors.New("linking: nil identity")
	case !id.Provider.Valid() || id.Provider == repository.MethodEmail:
		return fmt.Errorf("linking: %q is not an external provider", id.Provider)
	case id.ExternalID == "":
		return fmt.Errorf("linking: %s identity without external id", id.Provider)
	}
	return nil
}

func (r *Resolver) resolve(ctx context.Context, log *zap.Logger, id *auth.Identity) (*Resolution, error) {
	// 1. Known external account.
	link, err := r.store.FindLinkByExternalID(ctx, id.Provider, id.ExternalID)
	switch {
	case err == nil:
		return r.returning(ctx, log, link)
	case !repository.IsNotFound(err):
		return nil, fmt.Errorf("linking: find link: %w", err)
	}

	// 2. Email is required to create or match anything.
	email := repository.NormalizeEmail(id.Email)
	if email == "" {
		log.Info("rejected: provider supplied no verified email")
		return nil, auth.ErrMissingEmail
	}

	// 3. Email already owned.
	existing, err := r.store.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.AuthMethod != id.Provider {
			log.Info("rejected: email registered through another method",
				logger.UserID(existing.ID), logger.String("registered_method", string(existing.AuthMethod)))
			return nil, auth.ErrAuthMethodConflict
		}
		// A concurrent first login may have committed since step 1.
		link, err := r.store.FindLinkByExternalID(ctx, id.Provider, id.ExternalID)
		switch {
		case err == nil:
			return r.returning(ctx, log, link)
		case !repository.IsNotFound(err):
			return nil, fmt.Errorf("linking: recheck link: %w", err)
		}
		log.Info("rejected: email linked to another external account", logger.UserID(existing.ID))
		return nil, auth.ErrAccountLinked
	case !repository.IsNotFound(err):
		return nil, fmt.Errorf("linking: find user by email: %w", err)
	}

	// 4. First login.
	return r.create(ctx, log, id, email)
}

func (r *Resolver) returning(ctx context.Context, log *zap.Logger, link *repository.ProviderLink) (*Resolution, error) {
	u, err := r.store.FindUserByID(ctx, link.UserID)
	if err != nil {
		return nil, fmt.Errorf("linking: load user %s of link %s: %w", link.UserID, link.ID, err)
	}
	set, err := Authorities(ctx, r.store, u.RoleIDs)
	if err != nil {
		return nil, err
	}
	log.Debug("resolved existing account", logger.UserID(u.ID))
	return &Resolution{User: u, Link: link, Authorities: set}, nil
}

func (r *Resolver) create(ctx context.Context, log *zap.Logger, id *auth.Identity, email string) (*Resolution, error) {
	var res Resolution
	err := r.store.InTx(ctx, func(ctx context.Context, tx repository.Store) error {
		role, err := tx.FindRoleByID(ctx, r.defaultRoleID)
		if repository.IsNotFound(err) {
			return auth.ErrRoleNotFound
		}
		if err != nil {
			return fmt.Errorf("linking: load default role: %w", err)
		}

		u, err := tx.CreateUser(ctx, &repository.User{
			Email:      email,
			AuthMethod: id.Provider,
			RoleIDs:    []int64{role.ID},
		})
		if err != nil {
			return fmt.Errorf("linking: create user: %w", err)
		}

		link, err := tx.CreateLink(ctx, &repository.ProviderLink{
			UserID:     u.ID,
			Provider:   id.Provider,
			ExternalID: id.ExternalID,
			Display:    id.LinkDisplay(),
		})
		if err != nil {
			return fmt.Errorf("linking: create link: %w", err)
		}

		res = Resolution{User: u, Link: link, Authorities: authz.Derive(*role), Created: true}
		return nil
	})
	if errors.Is(err, auth.ErrRoleNotFound) {
		metrics.DefaultRoleMissing.Inc()
		log.Error("default role missing from reference data",
			logger.Alert(), logger.Int("role_id", int(r.defaultRoleID)))
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	log.Info("account created", logger.UserID(res.User.ID), logger.EmailMasked(email))
	return &res, nil
}

// Authorities loads roleIDs from store and flattens them. A role id without
// a matching role is an error: users only reference existing roles.
func Authorities(ctx context.Context, store repository.Store, roleIDs []int64) (authz.Set, error) {
	roles := make([]repository.Role, 0, len(roleIDs))
	for _, rid := range roleIDs {
		role, err := store.FindRoleByID(ctx, rid)
		if err != nil {
			return authz.Set{}, fmt.Errorf("linking: load role %d: %w", rid, err)
		}
		roles = append(roles, *role)
	}
	return authz.Derive(roles...), nil
}
