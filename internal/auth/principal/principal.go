// Package principal assembles the authenticated-identity value handed to the
// HTTP/session layer after a successful login.
package principal

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dropDatabas3/notesauth/internal/auth/authz"
	"github.com/dropDatabas3/notesauth/internal/domain/repository"
)

// RedactedCredential is what Credential returns. The stored hash never leaves
// the store layer through a principal.
const RedactedCredential = "[PROTECTED]"

// Name attribute keys used by the built-in providers.
const (
	NameKeyGitHub   = "id"
	NameKeyGoogle   = "sub"
	NameKeyPassword = "email"
)

// Principal is immutable once built.
type Principal struct {
	userID      string
	method      repository.AuthMethod
	attributes  map[string]any
	authorities authz.Set
	nameKey     string
}

// Option customizes Build.
type Option func(*Principal)

// WithUser binds the principal to the resolved internal user.
func WithUser(u *repository.User) Option {
	return func(p *Principal) {
		if u != nil {
			p.userID = u.ID
			p.method = u.AuthMethod
		}
	}
}

// Build packages an external-provider login. nameKey must be present in
// attributes; it is the attribute downstream code reads the display name from.
func Build(authorities authz.Set, attributes map[string]any, nameKey string, opts ...Option) (*Principal, error) {
	if nameKey == "" {
		return nil, fmt.Errorf("principal: name attribute key is required")
	}
	v, ok := attributes[nameKey]
	if !ok || v == nil {
		return nil, fmt.Errorf("principal: missing attribute %q", nameKey)
	}
	p := &Principal{
		attributes:  cloneAttributes(attributes),
		authorities: authorities,
		nameKey:     nameKey,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// FromUser wraps a password-authenticated user. Its login name is the email.
func FromUser(u *repository.User, authorities authz.Set) *Principal {
	return &Principal{
		userID: u.ID,
		method: u.AuthMethod,
		attributes: map[string]any{
			"id":    u.ID,
			"email": u.Email,
		},
		authorities: authorities,
		nameKey:     NameKeyPassword,
	}
}

// UserID is the internal user id (empty if Build was called without WithUser).
func (p *Principal) UserID() string { return p.userID }

// Method is the user's authentication method.
func (p *Principal) Method() repository.AuthMethod { return p.method }

// NameAttributeKey is the attribute used as display name.
func (p *Principal) NameAttributeKey() string { return p.nameKey }

// Name is the value of the name attribute, formatted as a string.
func (p *Principal) Name() string {
	switch v := p.attributes[p.nameKey].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Credential never exposes the password hash.
func (p *Principal) Credential() string { return RedactedCredential }

// Attributes returns a deep copy of the attribute map.
func (p *Principal) Attributes() map[string]any { return cloneAttributes(p.attributes) }

// Attribute returns a deep copy of a single attribute.
func (p *Principal) Attribute(key string) (any, bool) {
	v, ok := p.attributes[key]
	return cloneValue(v), ok
}

// cloneAttributes copies nested JSON-shaped values (objects and arrays) so
// neither the caller nor readers share memory with the principal.
func cloneAttributes(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneAttributes(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}

// Authorities returns the granted permissions.
func (p *Principal) Authorities() authz.Set { return p.authorities }

// HasAuthority reports whether perm was granted.
func (p *Principal) HasAuthority(perm string) bool { return p.authorities.Has(perm) }

type principalJSON struct {
	Name        string         `json:"name"`
	UserID      string         `json:"user_id"`
	Method      string         `json:"authentication_method"`
	NameKey     string         `json:"name_attribute_key"`
	Authorities []string       `json:"authorities"`
	Attributes  map[string]any `json:"attributes"`
}

func (p *Principal) MarshalJSON() ([]byte, error) {
	return json.Marshal(principalJSON{
		Name:        p.Name(),
		UserID:      p.userID,
		Method:      string(p.method),
		NameKey:     p.nameKey,
		Authorities: p.authorities.Slice(),
		Attributes:  p.attributes,
	})
}
