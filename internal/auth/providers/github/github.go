// Package github implements the GitHub provider. GitHub speaks plain OAuth 2.0
// without ID tokens, so the profile comes from the REST API and the email may
// need a second call to /user/emails.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	githubendpoint "golang.org/x/oauth2/github"

	"github.com/dropDatabas3/notesauth/internal/auth"
	"github.com/dropDatabas3/notesauth/internal/auth/principal"
	"github.com/dropDatabas3/notesauth/internal/auth/providers"
	"github.com/dropDatabas3/notesauth/internal/domain/repository"
)

const (
	name           = "github"
	defaultAPIBase = "https://api.github.com"
	maxBody        = 1 << 20
)

// Config configures the adapter. AuthURL, TokenURL and APIBaseURL default to
// github.com and only need to be set for GitHub Enterprise or tests.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	APIBaseURL string
	AuthURL    string
	TokenURL   string

	Timeout    time.Duration
	HTTPClient *http.Client
}

// Provider is the GitHub adapter.
type Provider struct {
	conf    *oauth2.Config
	apiBase string
	http    *http.Client
	timeout time.Duration
}

var _ providers.Provider = (*Provider)(nil)

// New creates the adapter.
func New(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("github: client id and secret are required")
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"read:user", "user:email"}
	}
	endpoint := githubendpoint.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	apiBase := strings.TrimRight(cfg.APIBaseURL, "/")
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Provider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		apiBase: apiBase,
		http:    hc,
		timeout: cfg.Timeout,
	}, nil
}

func (p *Provider) Method() repository.AuthMethod { return repository.MethodGitHub }
func (p *Provider) Kind() providers.Kind          { return providers.KindOAuth2 }
func (p *Provider) NameAttributeKey() string      { return principal.NameKeyGitHub }

// AuthURL builds the GitHub authorization URL.
func (p *Provider) AuthURL(_ context.Context, state string) (string, error) {
	return p.conf.AuthCodeURL(state, oauth2.SetAuthURLParam("allow_signup", "true")), nil
}

// Exchange trades the authorization code for an access token.
func (p *Provider) Exchange(ctx context.Context, code string) (*providers.Credential, error) {
	return providers.Call(ctx, p.timeout, name, "exchange", func(ctx context.Context) (*providers.Credential, error) {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.http)
		tok, err := p.conf.Exchange(ctx, code)
		if err != nil {
			return nil, err
		}
		if tok.AccessToken == "" {
			return nil, errors.New("no access_token in response")
		}
		return &providers.Credential{AccessToken: tok.AccessToken}, nil
	})
}

// userInfo is the subset of GET /user the adapter reads. ID stays raw because
// it is a number on github.com and has been seen as a string behind proxies.
type userInfo struct {
	ID        json.RawMessage `json:"id"`
	Login     string          `json:"login"`
	Name      string          `json:"name"`
	Email     *string         `json:"email"`
	AvatarURL string          `json:"avatar_url"`
}

// EmailInfo is one entry of GET /user/emails.
type EmailInfo struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// FetchProfile reads /user and, when the profile has no public email, falls
// back to FetchVerifiedEmail. A user without a qualifying email is returned
// with an empty Email; rejecting it is the resolver's call.
func (p *Provider) FetchProfile(ctx context.Context, cred *providers.Credential) (*auth.Identity, error) {
	if cred == nil || cred.AccessToken == "" {
		return nil, auth.NewProviderError(name, "user", errors.New("missing access token"))
	}

	body, err := providers.Call(ctx, p.timeout, name, "user", func(ctx context.Context) ([]byte, error) {
		return p.get(ctx, "/user", cred.AccessToken)
	})
	if err != nil {
		return nil, err
	}

	var info userInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, auth.NewProviderError(name, "user", fmt.Errorf("decode user: %w", err))
	}
	externalID, err := decodeID(info.ID)
	if err != nil {
		return nil, auth.NewProviderError(name, "user", err)
	}

	attrs := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&attrs); err != nil {
		return nil, auth.NewProviderError(name, "user", fmt.Errorf("decode user attributes: %w", err))
	}

	var email string
	if info.Email != nil {
		email = strings.TrimSpace(*info.Email)
	}
	if email == "" {
		email, err = p.FetchVerifiedEmail(ctx, cred)
		if err != nil {
			return nil, err
		}
		if email != "" {
			attrs["email"] = email
		}
	}

	return &auth.Identity{
		Provider:    repository.MethodGitHub,
		ExternalID:  externalID,
		Email:       email,
		DisplayName: info.Name,
		Login:       info.Login,
		AvatarURL:   info.AvatarURL,
		Attributes:  attrs,
	}, nil
}

// FetchVerifiedEmail lists the user's emails and returns the one that is both
// primary and verified, or "" when there is none. Unverified or secondary
// addresses are never used.
func (p *Provider) FetchVerifiedEmail(ctx context.Context, cred *providers.Credential) (string, error) {
	body, err := providers.Call(ctx, p.timeout, name, "emails", func(ctx context.Context) ([]byte, error) {
		return p.get(ctx, "/user/emails", cred.AccessToken)
	})
	if err != nil {
		return "", err
	}
	var emails []EmailInfo
	if err := json.Unmarshal(body, &emails); err != nil {
		return "", auth.NewProviderError(name, "emails", fmt.Errorf("decode emails: %w", err))
	}
	for _, e := range emails {
		if e.Primary && e.Verified && strings.TrimSpace(e.Email) != "" {
			return strings.TrimSpace(e.Email), nil
		}
	}
	return "", nil
}

func (p *Provider) get(ctx context.Context, path, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github api %s: status %d", path, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", errors.New("user id missing")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		if s = strings.TrimSpace(s); s == "" {
			return "", errors.New("user id empty")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("user id: %w", err)
	}
	if _, err := n.Int64(); err != nil {
		return "", fmt.Errorf("user id %q is not an integer", n)
	}
	return n.String(), nil
}
