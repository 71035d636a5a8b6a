package principal

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/notesauth/internal/auth/authz"
	"github.com/dropDatabas3/notesauth/internal/domain/repository"
)

func TestBuild_ExposesNameFromKey(t *testing.T) {
	attrs := map[string]any{"id": float64(123), "login": "bob"}
	u := &repository.User{ID: "u-1", AuthMethod: repository.MethodGitHub}

	p, err := Build(authz.Of("note.create"), attrs, NameKeyGitHub, WithUser(u))
	require.NoError(t, err)

	assert.Equal(t, "123", p.Name())
	assert.Equal(t, "u-1", p.UserID())
	assert.Equal(t, repository.MethodGitHub, p.Method())
	assert.Equal(t, "id", p.NameAttributeKey())
	assert.True(t, p.HasAuthority("note.create"))
}

func TestBuild_IsImmutable(t *testing.T) {
	attrs := map[string]any{"sub": "g-1"}
	p, err := Build(authz.Of(), attrs, NameKeyGoogle)
	require.NoError(t, err)

	attrs["sub"] = "changed"
	got := p.Attributes()
	got["sub"] = "changed-again"

	assert.Equal(t, "g-1", p.Name())
}

func TestBuild_NestedAttributesAreCopied(t *testing.T) {
	plan := map[string]any{"name": "free"}
	orgs := []any{map[string]any{"login": "acme"}}
	attrs := map[string]any{"id": "1", "plan": plan, "orgs": orgs}
	p, err := Build(authz.Of(), attrs, NameKeyGitHub)
	require.NoError(t, err)

	// Caller mutates what it passed in.
	plan["name"] = "pro"
	orgs[0].(map[string]any)["login"] = "evil"

	v, ok := p.Attribute("plan")
	require.True(t, ok)
	assert.Equal(t, "free", v.(map[string]any)["name"])

	// Readers mutate what they got back.
	v.(map[string]any)["name"] = "pro"
	p.Attributes()["orgs"].([]any)[0].(map[string]any)["login"] = "evil"

	again, _ := p.Attribute("plan")
	assert.Equal(t, "free", again.(map[string]any)["name"])
	assert.Equal(t, "acme", p.Attributes()["orgs"].([]any)[0].(map[string]any)["login"])
}

func TestBuild_MissingNameKey(t *testing.T) {
	_, err := Build(authz.Of(), map[string]any{"id": "1"}, "sub")
	require.Error(t, err)

	_, err = Build(authz.Of(), map[string]any{"id": "1"}, "")
	require.Error(t, err)
}

func TestFromUser_ExposesEmailAndRedactsCredential(t *testing.T) {
	u := &repository.User{
		ID:           "u-9",
		Email:        "ann@x.com",
		PasswordHash: "$2a$10$secret",
		AuthMethod:   repository.MethodEmail,
	}
	p := FromUser(u, authz.Of("note.read"))

	assert.Equal(t, "ann@x.com", p.Name())
	assert.Equal(t, RedactedCredential, p.Credential())

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "secret")
	assert.Contains(t, string(b), `"authorities":["note.read"]`)
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	p := FromUser(&repository.User{ID: "u", Email: "e@x.com"}, authz.Of())
	got, ok := FromContext(ToContext(context.Background(), p))
	require.True(t, ok)
	assert.Same(t, p, got)
}
