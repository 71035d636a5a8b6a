package login

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/notesauth/internal/auth"
	"github.com/dropDatabas3/notesauth/internal/auth/linking"
	"github.com/dropDatabas3/notesauth/internal/auth/principal"
	"github.com/dropDatabas3/notesauth/internal/auth/providers"
	"github.com/dropDatabas3/notesauth/internal/domain/repository"
	"github.com/dropDatabas3/notesauth/internal/metrics"
	"github.com/dropDatabas3/notesauth/internal/store/memory"
)

type fakeProvider struct {
	method  repository.AuthMethod
	nameKey string
	id      *auth.Identity
	err     error
}

func (f *fakeProvider) Method() repository.AuthMethod { return f.method }
func (f *fakeProvider) Kind() providers.Kind {
	if f.method == repository.MethodGoogle {
		return providers.KindOIDC
	}
	return providers.KindOAuth2
}
func (f *fakeProvider) NameAttributeKey() string { return f.nameKey }
func (f *fakeProvider) AuthURL(_ context.Context, state string) (string, error) {
	return "https://idp.test/authorize?state=" + state, nil
}
func (f *fakeProvider) Exchange(_ context.Context, code string) (*providers.Credential, error) {
	if code != "good" {
		return nil, auth.NewProviderError(f.method.Slug(), "exchange", errors.New("bad code"))
	}
	return &providers.Credential{AccessToken: "tok"}, nil
}
func (f *fakeProvider) FetchProfile(context.Context, *providers.Credential) (*auth.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.id
	return &cp, nil
}

func newService(t *testing.T, ps ...providers.Provider) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New(memory.ReferenceRoles()...)
	reg, err := providers.NewRegistry(ps...)
	require.NoError(t, err)
	return NewService(reg, linking.New(st), st, 0), st
}

func gh() *fakeProvider {
	return &fakeProvider{
		method:  repository.MethodGitHub,
		nameKey: principal.NameKeyGitHub,
		id: &auth.Identity{
			Provider:   repository.MethodGitHub,
			ExternalID: "123",
			Email:      "b@x.com",
			Login:      "bob",
			Attributes: map[string]any{"id": "123", "login": "bob", "email": nil},
		},
	}
}

func TestCallback_GitHubPrincipal(t *testing.T) {
	svc, _ := newService(t, gh())

	p, err := svc.Callback(context.Background(), repository.MethodGitHub, "good", "")
	require.NoError(t, err)

	assert.Equal(t, "123", p.Name())
	assert.Equal(t, "id", p.NameAttributeKey())
	assert.Equal(t, repository.MethodGitHub, p.Method())
	assert.NotEmpty(t, p.UserID())
	assert.True(t, p.HasAuthority("note.create"))
	assert.Equal(t, "bob", p.Attributes()["login"])
}

func TestCallback_GoogleUsesSub(t *testing.T) {
	g := &fakeProvider{
		method:  repository.MethodGoogle,
		nameKey: principal.NameKeyGoogle,
		id: &auth.Identity{
			Provider: repository.MethodGoogle, ExternalID: "g-1", Email: "a@x.com", DisplayName: "Ann",
			Attributes: map[string]any{"sub": "g-1", "email": "a@x.com", "name": "Ann"},
		},
	}
	svc, _ := newService(t, g)

	p, err := svc.Login(context.Background(), repository.MethodGoogle, &providers.Credential{IDToken: "x"})
	require.NoError(t, err)
	assert.Equal(t, "g-1", p.Name())
}

func TestCallback_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown provider", func(t *testing.T) {
		svc, _ := newService(t, gh())
		_, err := svc.Callback(ctx, repository.MethodGoogle, "good", "")
		require.ErrorIs(t, err, auth.ErrUnknownProvider)
	})

	t.Run("exchange failure", func(t *testing.T) {
		svc, _ := newService(t, gh())
		_, err := svc.Callback(ctx, repository.MethodGitHub, "bad", "")
		require.ErrorIs(t, err, auth.ErrProviderProtocol)
	})

	t.Run("empty code", func(t *testing.T) {
		svc, _ := newService(t, gh())
		_, err := svc.Callback(ctx, repository.MethodGitHub, " ", "")
		require.ErrorIs(t, err, auth.ErrProviderProtocol)
	})

	t.Run("missing email", func(t *testing.T) {
		p := gh()
		p.id.Email = ""
		svc, st := newService(t, p)
		before := testutil.ToFloat64(metrics.LoginAttempts.WithLabelValues("github", "missing_email"))

		_, err := svc.Callback(ctx, repository.MethodGitHub, "good", "")
		require.ErrorIs(t, err, auth.ErrMissingEmail)
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.LoginAttempts.WithLabelValues("github", "missing_email")))
		users, _ := st.Counts()
		assert.Zero(t, users)
	})

	t.Run("name key absent", func(t *testing.T) {
		p := gh()
		p.id.Attributes = map[string]any{"login": "bob"}
		svc, _ := newService(t, p)
		_, err := svc.Callback(ctx, repository.MethodGitHub, "good", "")
		require.Error(t, err)
	})
}

func TestPasswordLogin(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, gh())

	u, err := svc.RegisterPassword(ctx, " Pat@X.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, repository.MethodEmail, u.AuthMethod)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	p, err := svc.PasswordLogin(ctx, "pat@x.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "pat@x.com", p.Name())
	assert.Equal(t, principal.RedactedCredential, p.Credential())
	assert.True(t, p.HasAuthority("note.read"))

	_, err = svc.PasswordLogin(ctx, "pat@x.com", "wrong")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.PasswordLogin(ctx, "nobody@x.com", "correct horse")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.RegisterPassword(ctx, "pat@x.com", "another password")
	require.ErrorIs(t, err, repository.ErrConflict)

	// A provider account cannot log in with a password.
	_, err = svc.Callback(ctx, repository.MethodGitHub, "good", "")
	require.NoError(t, err)
	_, err = svc.PasswordLogin(ctx, "b@x.com", "anything")
	require.ErrorIs(t, err, auth.ErrAuthMethodConflict)

	users, _ := st.Counts()
	assert.Equal(t, 2, users)
}

func TestPasswordLogin_EveryOutcomeComparesOnce(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t, gh())

	var compared [][]byte
	svc.compare = func(hash, pw []byte) error {
		compared = append(compared, hash)
		return bcrypt.CompareHashAndPassword(hash, pw)
	}

	_, err := svc.RegisterPassword(ctx, "pat@x.com", "correct horse")
	require.NoError(t, err)
	_, err = svc.Callback(ctx, repository.MethodGitHub, "good", "")
	require.NoError(t, err)
	_, err = st.CreateUser(ctx, &repository.User{
		Email:      "nohash@x.com",
		AuthMethod: repository.MethodEmail,
		RoleIDs:    []int64{linking.DefaultRoleID},
	})
	require.NoError(t, err)

	cases := []struct {
		email string
		want  error
		dummy bool
	}{
		{"pat@x.com", nil, false},
		{"pat@x.com", auth.ErrInvalidCredentials, false},
		{"nobody@x.com", auth.ErrInvalidCredentials, true},
		{"b@x.com", auth.ErrAuthMethodConflict, true},
		{"nohash@x.com", auth.ErrInvalidCredentials, true},
	}
	for i, tc := range cases {
		compared = nil
		pw := "correct horse"
		if i == 1 {
			pw = "wrong"
		}
		_, err := svc.PasswordLogin(ctx, tc.email, pw)
		if tc.want == nil {
			require.NoError(t, err, tc.email)
		} else {
			require.ErrorIs(t, err, tc.want, tc.email)
		}
		require.Len(t, compared, 1, tc.email)
		assert.Equal(t, tc.dummy, bytes.Equal(compared[0], dummyHash), tc.email)
	}
}

func TestRegisterPassword_Validation(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.RegisterPassword(context.Background(), "not-an-email", "long enough")
	require.ErrorIs(t, err, repository.ErrInvalidInput)
	_, err = svc.RegisterPassword(context.Background(), "a@x.com", "short")
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestCallback_ConcurrentFirstLogins(t *testing.T) {
	svc, st := newService(t, gh())

	var g errgroup.Group
	names := make([]string, 8)
	users := make([]string, 8)
	for i := range names {
		i := i
		g.Go(func() error {
			p, err := svc.Callback(context.Background(), repository.MethodGitHub, "good", "")
			if err != nil {
				return err
			}
			names[i], users[i] = p.Name(), p.UserID()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for i := range names {
		assert.Equal(t, "123", names[i])
		assert.Equal(t, users[0], users[i])
	}
	n, l := st.Counts()
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, l)
}
