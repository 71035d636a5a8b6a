// Package providers defines the contract every external identity provider
// adapter implements and the immutable registry the login flow dispatches on.
//
// Adapters only translate: they exchange codes, call the provider and return a
// normalized auth.Identity. They never touch the store.
package providers

import (
	"context"

	"github.com/dropDatabas3/notesauth/internal/auth"
	"github.com/dropDatabas3/notesauth/internal/domain/repository"
)

// Kind is the protocol family of a provider.
type Kind string

const (
	KindOIDC   Kind = "oidc"
	KindOAuth2 Kind = "oauth2"
)

// Credential is what a provider handed back after the code exchange.
type Credential struct {
	AccessToken string
	// IDToken is only set by OIDC providers.
	IDToken string
	// Nonce, when set, must match the nonce claim of the ID token.
	Nonce string
}

// Provider is one external identity provider.
type Provider interface {
	// Method is the authentication method accounts created through this
	// provider are stamped with.
	Method() repository.AuthMethod
	Kind() Kind
	// NameAttributeKey is the profile attribute used as the principal name.
	NameAttributeKey() string

	// AuthURL builds the authorization redirect for the given state.
	AuthURL(ctx context.Context, state string) (string, error)
	// Exchange trades an authorization code for a credential.
	Exchange(ctx context.Context, code string) (*Credential, error)
	// FetchProfile returns the normalized identity behind cred.
	FetchProfile(ctx context.Context, cred *Credential) (*auth.Identity, error)
}
