package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/notesauth/internal/auth"
	"github.com/dropDatabas3/notesauth/internal/domain/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	method repository.AuthMethod
}

func (s stubProvider) Method() repository.AuthMethod { return s.method }
func (s stubProvider) Kind() Kind                    { return KindOAuth2 }
func (s stubProvider) NameAttributeKey() string      { return "id" }
func (s stubProvider) AuthURL(context.Context, string) (string, error) {
	return "https://example.test/authorize", nil
}
func (s stubProvider) Exchange(context.Context, string) (*Credential, error) {
	return &Credential{AccessToken: "t"}, nil
}
func (s stubProvider) FetchProfile(context.Context, *Credential) (*auth.Identity, error) {
	return &auth.Identity{Provider: s.method, ExternalID: "1"}, nil
}

func TestRegistry_Get(t *testing.T) {
	r, err := NewRegistry(stubProvider{repository.MethodGitHub}, stubProvider{repository.MethodGoogle})
	require.NoError(t, err)

	p, err := r.Get(repository.MethodGitHub)
	require.NoError(t, err)
	assert.Equal(t, repository.MethodGitHub, p.Method())

	assert.Equal(t, []repository.AuthMethod{repository.MethodGitHub, repository.MethodGoogle}, r.Methods())
}

func TestRegistry_Unknown(t *testing.T) {
	r, err := NewRegistry(stubProvider{repository.MethodGitHub})
	require.NoError(t, err)

	_, err = r.Get(repository.MethodGoogle)
	require.ErrorIs(t, err, auth.ErrUnknownProvider)
}

func TestRegistry_RejectsDuplicatesAndEmail(t *testing.T) {
	_, err := NewRegistry(stubProvider{repository.MethodGitHub}, stubProvider{repository.MethodGitHub})
	require.Error(t, err)

	_, err = NewRegistry(stubProvider{repository.MethodEmail})
	require.Error(t, err)
}

func TestCall_TimeoutIsProviderError(t *testing.T) {
	_, err := Call(context.Background(), 10*time.Millisecond, "github", "user", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrProviderProtocol)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var pe *auth.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "user", pe.Op)
}

func TestCall_Success(t *testing.T) {
	v, err := Call(context.Background(), 0, "google", "jwks", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
