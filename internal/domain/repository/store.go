package repository

import "context"

// Store is the persistence contract consumed by the identity core.
type Store interface {
	// FindLinkByExternalID returns ErrNotFound when no link exists.
	FindLinkByExternalID(ctx context.Context, provider AuthMethod, externalID string) (*ProviderLink, error)

	FindUserByID(ctx context.Context, id string) (*User, error)

	// FindUserByEmail matches on the normalized email.
	FindUserByEmail(ctx context.Context, email string) (*User, error)

	// CreateUser assigns ID and CreatedAt. Returns ErrConflict on a duplicate email.
	CreateUser(ctx context.Context, u *User) (*User, error)

	// CreateLink returns ErrConflict on a duplicate (provider, external id).
	CreateLink(ctx context.Context, l *ProviderLink) (*ProviderLink, error)

	// FindRoleByID returns the role with its authorities loaded.
	FindRoleByID(ctx context.Context, id int64) (*Role, error)

	// InTx runs fn as one unit of work: every write made through tx is committed
	// together or not at all.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
