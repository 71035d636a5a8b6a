// Package memory is an in-process repository.Store for development and tests.
// It enforces the same uniqueness rules as the PostgreSQL schema and gives
// InTx all-or-nothing semantics by working on a copy of the state.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/notesauth/internal/domain/repository"
)

type linkKey struct {
	provider   repository.AuthMethod
	externalID string
}

type state struct {
	users   map[string]*repository.User
	byEmail map[string]string // normalized email -> user id
	links   map[linkKey]*repository.ProviderLink
	roles   map[int64]repository.Role
}

func newState() *state {
	return &state{
		users:   map[string]*repository.User{},
		byEmail: map[string]string{},
		links:   map[linkKey]*repository.ProviderLink{},
		roles:   map[int64]repository.Role{},
	}
}

// clone copies the mutable maps. Records are never mutated in place, so
// sharing the pointed-to values is safe.
func (s *state) clone() *state {
	c := &state{
		users:   make(map[string]*repository.User, len(s.users)),
		byEmail: make(map[string]string, len(s.byEmail)),
		links:   make(map[linkKey]*repository.ProviderLink, len(s.links)),
		roles:   s.roles,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.byEmail {
		c.byEmail[k] = v
	}
	for k, v := range s.links {
		c.links[k] = v
	}
	return c
}

// Store is safe for concurrent use. Transactions are serialized.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store holding the given reference roles.
func New(roles ...repository.Role) *Store {
	st := newState()
	for _, r := range roles {
		r.Authorities = slices.Clone(r.Authorities)
		st.roles[r.ID] = r
	}
	return &Store{st: st, now: time.Now}
}

// Counts reports the number of users and links.
func (s *Store) Counts() (users, links int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.users), len(s.st.links)
}

func (s *Store) view() *tx {
	return &tx{st: s.st, now: s.now}
}

func (s *Store) FindLinkByExternalID(ctx context.Context, provider repository.AuthMethod, externalID string) (*repository.ProviderLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().FindLinkByExternalID(ctx, provider, externalID)
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*repository.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().FindUserByID(ctx, id)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*repository.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().FindUserByEmail(ctx, email)
}

func (s *Store) CreateUser(ctx context.Context, u *repository.User) (*repository.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().CreateUser(ctx, u)
}

func (s *Store) CreateLink(ctx context.Context, l *repository.ProviderLink) (*repository.ProviderLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().CreateLink(ctx, l)
}

func (s *Store) FindRoleByID(ctx context.Context, id int64) (*repository.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().FindRoleByID(ctx, id)
}

// InTx runs fn against a private copy of the state and publishes the copy
// only when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := &tx{st: s.st.clone(), now: s.now}
	if err := fn(ctx, work); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work.st
	return nil
}

// tx operates on a state without locking. The owner holds the lock.
type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) FindLinkByExternalID(_ context.Context, provider repository.AuthMethod, externalID string) (*repository.ProviderLink, error) {
	l, ok := t.st.links[linkKey{provider, externalID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (t *tx) FindUserByID(_ context.Context, id string) (*repository.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (t *tx) FindUserByEmail(ctx context.Context, email string) (*repository.User, error) {
	id, ok := t.st.byEmail[repository.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t.FindUserByID(ctx, id)
}

func (t *tx) CreateUser(_ context.Context, u *repository.User) (*repository.User, error) {
	if u == nil || !u.AuthMethod.Valid() {
		return nil, repository.ErrInvalidInput
	}
	email := repository.NormalizeEmail(u.Email)
	if email == "" {
		return nil, repository.ErrInvalidInput
	}
	if _, dup := t.st.byEmail[email]; dup {
		return nil, fmt.Errorf("%w: email already registered", repository.ErrConflict)
	}
	for _, rid := range u.RoleIDs {
		if _, ok := t.st.roles[rid]; !ok {
			return nil, fmt.Errorf("%w: role %d does not exist", repository.ErrInvalidInput, rid)
		}
	}

	out := cloneUser(u)
	out.ID = uuid.NewString()
	out.Email = email
	out.CreatedAt = t.now().UTC()
	t.st.users[out.ID] = out
	t.st.byEmail[email] = out.ID
	return cloneUser(out), nil
}

func (t *tx) CreateLink(_ context.Context, l *repository.ProviderLink) (*repository.ProviderLink, error) {
	if l == nil || l.ExternalID == "" || !l.Provider.Valid() {
		return nil, repository.ErrInvalidInput
	}
	if _, ok := t.st.users[l.UserID]; !ok {
		return nil, fmt.Errorf("%w: user %s does not exist", repository.ErrInvalidInput, l.UserID)
	}
	key := linkKey{l.Provider, l.ExternalID}
	if _, dup := t.st.links[key]; dup {
		return nil, fmt.Errorf("%w: %s link %s already exists", repository.ErrConflict, l.Provider, l.ExternalID)
	}
	out := *l
	out.ID = uuid.NewString()
	out.CreatedAt = t.now().UTC()
	t.st.links[key] = &out
	cp := out
	return &cp, nil
}

func (t *tx) FindRoleByID(_ context.Context, id int64) (*repository.Role, error) {
	r, ok := t.st.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r.Authorities = slices.Clone(r.Authorities)
	return &r, nil
}

// Nested transactions join the outer one.
func (t *tx) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return fn(ctx, t)
}

func cloneUser(u *repository.User) *repository.User {
	cp := *u
	cp.RoleIDs = slices.Clone(u.RoleIDs)
	return &cp
}
