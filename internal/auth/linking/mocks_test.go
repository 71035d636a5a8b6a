package linking

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dropDatabas3/notesauth/internal/domain/repository"
)

type mockStore struct {
	mock.Mock
}

var _ repository.Store = (*mockStore)(nil)

func (m *mockStore) FindLinkByExternalID(ctx context.Context, provider repository.AuthMethod, externalID string) (*repository.ProviderLink, error) {
	args := m.Called(ctx, provider, externalID)
	if v := args.Get(0); v != nil {
		return v.(*repository.ProviderLink), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) FindUserByID(ctx context.Context, id string) (*repository.User, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*repository.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) FindUserByEmail(ctx context.Context, email string) (*repository.User, error) {
	args := m.Called(ctx, email)
	if v := args.Get(0); v != nil {
		return v.(*repository.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) CreateUser(ctx context.Context, u *repository.User) (*repository.User, error) {
	args := m.Called(ctx, u)
	if v := args.Get(0); v != nil {
		return v.(*repository.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) CreateLink(ctx context.Context, l *repository.ProviderLink) (*repository.ProviderLink, error) {
	args := m.Called(ctx, l)
	if v := args.Get(0); v != nil {
		return v.(*repository.ProviderLink), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) FindRoleByID(ctx context.Context, id int64) (*repository.Role, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*repository.Role), args.Error(1)
	}
	return nil, args.Error(1)
}

// InTx runs fn against the mock itself so expectations cover writes too.
func (m *mockStore) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx, m)
}
