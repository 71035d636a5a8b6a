package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/notesauth/internal/auth"
	"github.com/dropDatabas3/notesauth/internal/auth/providers"
	"github.com/dropDatabas3/notesauth/internal/domain/repository"
)

type fakeGitHub struct {
	user       string
	emails     string
	emailCalls atomic.Int32
	delay      time.Duration
}

func (f *fakeGitHub) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad_verification_code"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer","scope":"read:user,user:email"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.delay > 0 {
			time.Sleep(f.delay)
		}
		_, _ = w.Write([]byte(f.user))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		f.emailCalls.Add(1)
		_, _ = w.Write([]byte(f.emails))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(t *testing.T, srv *httptest.Server, timeout time.Duration) *Provider {
	t.Helper()
	p, err := New(Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/v1/auth/github/callback",
		APIBaseURL:   srv.URL,
		AuthURL:      srv.URL + "/login/oauth/authorize",
		TokenURL:     srv.URL + "/login/oauth/access_token",
		Timeout:      timeout,
		HTTPClient:   srv.Client(),
	})
	require.NoError(t, err)
	return p
}

var cred = &providers.Credential{AccessToken: "tok"}

func TestFetchProfile_PublicEmail(t *testing.T) {
	f := &fakeGitHub{user: `{"id":123,"login":"bob","email":"Bob@X.com","avatar_url":"https://a/1.png"}`}
	p := newProvider(t, f.server(t), 0)

	id, err := p.FetchProfile(context.Background(), cred)
	require.NoError(t, err)

	assert.Equal(t, repository.MethodGitHub, id.Provider)
	assert.Equal(t, "123", id.ExternalID)
	assert.Equal(t, "Bob@X.com", id.Email)
	assert.Equal(t, "bob", id.Login)
	assert.Equal(t, "https://a/1.png", id.AvatarURL)
	assert.EqualValues(t, 0, f.emailCalls.Load(), "no secondary fetch when the profile has an email")
	assert.Equal(t, "123", toString(id.Attributes["id"]))
}

func TestFetchProfile_MissingEmailThenFound(t *testing.T) {
	f := &fakeGitHub{
		user:   `{"id":"123","email":null,"login":"bob"}`,
		emails: `[{"email":"other@x.com","primary":false,"verified":true},{"email":"b@x.com","primary":true,"verified":true}]`,
	}
	p := newProvider(t, f.server(t), 0)

	id, err := p.FetchProfile(context.Background(), cred)
	require.NoError(t, err)
	assert.Equal(t, "123", id.ExternalID)
	assert.Equal(t, "b@x.com", id.Email)
	assert.Equal(t, "b@x.com", id.Attributes["email"])
	assert.EqualValues(t, 1, f.emailCalls.Load())
}

func TestFetchProfile_NoQualifyingEmail(t *testing.T) {
	cases := map[string]string{
		"empty list":         `[]`,
		"primary unverified": `[{"email":"b@x.com","primary":true,"verified":false}]`,
		"verified secondary": `[{"email":"b@x.com","primary":false,"verified":true}]`,
	}
	for tn, emails := range cases {
		t.Run(tn, func(t *testing.T) {
			f := &fakeGitHub{user: `{"id":123,"email":null,"login":"bob"}`, emails: emails}
			p := newProvider(t, f.server(t), 0)

			id, err := p.FetchProfile(context.Background(), cred)
			require.NoError(t, err)
			assert.Empty(t, id.Email)
		})
	}
}

func TestFetchProfile_MalformedAndMissingID(t *testing.T) {
	for tn, body := range map[string]string{
		"not json":   `<html>`,
		"missing id": `{"login":"bob","email":"b@x.com"}`,
		"float id":   `{"id":1.5,"email":"b@x.com"}`,
	} {
		t.Run(tn, func(t *testing.T) {
			f := &fakeGitHub{user: body}
			p := newProvider(t, f.server(t), 0)

			_, err := p.FetchProfile(context.Background(), cred)
			require.ErrorIs(t, err, auth.ErrProviderProtocol)
		})
	}
}

func TestFetchProfile_Non2xx(t *testing.T) {
	f := &fakeGitHub{user: `{}`}
	p := newProvider(t, f.server(t), 0)

	_, err := p.FetchProfile(context.Background(), &providers.Credential{AccessToken: "wrong"})
	require.ErrorIs(t, err, auth.ErrProviderProtocol)
}

func TestFetchProfile_Timeout(t *testing.T) {
	f := &fakeGitHub{user: `{"id":1,"email":"a@x.com"}`, delay: 200 * time.Millisecond}
	p := newProvider(t, f.server(t), 20*time.Millisecond)

	_, err := p.FetchProfile(context.Background(), cred)
	require.ErrorIs(t, err, auth.ErrProviderProtocol)
	var pe *auth.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "user", pe.Op)
}

func TestExchange(t *testing.T) {
	f := &fakeGitHub{}
	p := newProvider(t, f.server(t), 0)

	c, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "tok", c.AccessToken)

	_, err = p.Exchange(context.Background(), "bad-code")
	require.ErrorIs(t, err, auth.ErrProviderProtocol)
}

func TestAuthURL(t *testing.T) {
	f := &fakeGitHub{}
	srv := f.server(t)
	p := newProvider(t, srv, 0)

	raw, err := p.AuthURL(context.Background(), "st4te")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "st4te", u.Query().Get("state"))
	assert.Equal(t, "cid", u.Query().Get("client_id"))
	assert.Equal(t, "true", u.Query().Get("allow_signup"))
	assert.Equal(t, "id", p.NameAttributeKey())
	assert.Equal(t, providers.KindOAuth2, p.Kind())
}

func TestNew_RequiresSecrets(t *testing.T) {
	_, err := New(Config{ClientID: "x"})
	require.Error(t, err)
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case interface{ String() string }:
		return s.String()
	}
	return ""
}
