// Package google implements the Google OpenID Connect provider. The identity
// comes from the verified ID token; no userinfo call is made.
package google

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/dropDatabas3/notesauth/internal/auth"
	"github.com/dropDatabas3/notesauth/internal/auth/principal"
	"github.com/dropDatabas3/notesauth/internal/auth/providers"
	"github.com/dropDatabas3/notesauth/internal/domain/repository"
)

const (
	name                = "google"
	DefaultDiscoveryURL = "https://accounts.google.com/.well-known/openid-configuration"

	discoveryTTL = 24 * time.Hour
	jwksTTL      = time.Hour
	clockLeeway  = 30 * time.Second
)

// Google documents both forms of its issuer.
var googleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// Config configures the adapter.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	DiscoveryURL string

	Timeout    time.Duration
	HTTPClient *http.Client
}

// Provider is the Google OIDC adapter. Discovery and JWKS documents are
// cached in-process; everything else is per call.
type Provider struct {
	cfg     Config
	http    *http.Client
	timeout time.Duration

	mu     sync.RWMutex
	disc   *discoveryDoc
	discAt time.Time

	keys     *jwks
	keysAt   time.Time
	keysETag string
}

var _ providers.Provider = (*Provider)(nil)

// New creates the adapter. Discovery happens lazily on first use.
func New(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("google: client id and secret are required")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}
	if cfg.DiscoveryURL == "" {
		cfg.DiscoveryURL = DefaultDiscoveryURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Provider{cfg: cfg, http: hc, timeout: cfg.Timeout}, nil
}

func (p *Provider) Method() repository.AuthMethod { return repository.MethodGoogle }
func (p *Provider) Kind() providers.Kind          { return providers.KindOIDC }
func (p *Provider) NameAttributeKey() string      { return principal.NameKeyGoogle }

func (p *Provider) oauthConfig(d *discoveryDoc) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		RedirectURL:  p.cfg.RedirectURL,
		Scopes:       p.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   d.AuthEndpoint,
			TokenURL:  d.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthURL builds the authorization URL. The state doubles as the OIDC nonce.
func (p *Provider) AuthURL(ctx context.Context, state string) (string, error) {
	d, err := p.discovery(ctx)
	if err != nil {
		return "", err
	}
	return p.oauthConfig(d).AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", state),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	), nil
}

// Exchange trades the code for tokens. The ID token is mandatory.
func (p *Provider) Exchange(ctx context.Context, code string) (*providers.Credential, error) {
	d, err := p.discovery(ctx)
	if err != nil {
		return nil, err
	}
	return providers.Call(ctx, p.timeout, name, "exchange", func(ctx context.Context) (*providers.Credential, error) {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.http)
		tok, err := p.oauthConfig(d).Exchange(ctx, code)
		if err != nil {
			return nil, err
		}
		idToken, _ := tok.Extra("id_token").(string)
		if idToken == "" {
			return nil, errors.New("token response has no id_token")
		}
		return &providers.Credential{AccessToken: tok.AccessToken, IDToken: idToken}, nil
	})
}

// FetchProfile verifies the ID token and maps its claims. An email whose
// email_verified claim is false is dropped.
func (p *Provider) FetchProfile(ctx context.Context, cred *providers.Credential) (*auth.Identity, error) {
	if cred == nil || cred.IDToken == "" {
		return nil, auth.NewProviderError(name, "id_token", errors.New("missing id_token"))
	}
	claims, err := p.VerifyIDToken(ctx, cred.IDToken, cred.Nonce)
	if err != nil {
		return nil, err
	}

	sub := strClaim(claims, "sub")
	if sub == "" {
		return nil, auth.NewProviderError(name, "id_token", errors.New("sub claim missing"))
	}
	email := strings.TrimSpace(strClaim(claims, "email"))
	if v, ok := claims["email_verified"].(bool); ok && !v {
		email = ""
	}

	return &auth.Identity{
		Provider:    repository.MethodGoogle,
		ExternalID:  sub,
		Email:       email,
		DisplayName: strClaim(claims, "name"),
		AvatarURL:   strClaim(claims, "picture"),
		Attributes:  maps.Clone(map[string]any(claims)),
	}, nil
}

// VerifyIDToken checks signature, issuer, audience, expiry and, when
// expectedNonce is set, the nonce.
func (p *Provider) VerifyIDToken(ctx context.Context, idToken, expectedNonce string) (jwtv5.MapClaims, error) {
	d, err := p.discovery(ctx)
	if err != nil {
		return nil, err
	}

	claims := jwtv5.MapClaims{}
	_, err = jwtv5.ParseWithClaims(idToken, claims, func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return p.rsaKeyForKid(ctx, d, kid)
	},
		jwtv5.WithValidMethods([]string{"RS256"}),
		jwtv5.WithAudience(p.cfg.ClientID),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithLeeway(clockLeeway),
	)
	if err != nil {
		var pe *auth.ProviderError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, auth.NewProviderError(name, "id_token", err)
	}

	iss := strClaim(claims, "iss")
	if !p.issuerAllowed(d, iss) {
		return nil, auth.NewProviderError(name, "id_token", fmt.Errorf("unexpected issuer %q", iss))
	}
	if expectedNonce != "" && strClaim(claims, "nonce") != expectedNonce {
		return nil, auth.NewProviderError(name, "id_token", errors.New("nonce mismatch"))
	}
	return claims, nil
}

func (p *Provider) issuerAllowed(d *discoveryDoc, iss string) bool {
	if iss == "" {
		return false
	}
	if iss == d.Issuer {
		return true
	}
	for _, g := range googleIssuers {
		if iss == g {
			return true
		}
	}
	return false
}

func strClaim(m jwtv5.MapClaims, k string) string {
	s, _ := m[k].(string)
	return s
}
