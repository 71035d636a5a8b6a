package auth

import "github.com/dropDatabas3/notesauth/internal/domain/repository"

// Identity is the normalized profile a provider adapter returns.
// It carries facts only; every decision is made by the linking resolver.
type Identity struct {
	Provider    repository.AuthMethod
	ExternalID  string // provider-scoped stable id (GitHub id, OIDC sub)
	Email       string // empty when the provider could not supply a verified one
	DisplayName string
	Login       string // GitHub login; empty for OIDC providers
	AvatarURL   string

	// Attributes is the raw provider profile, handed to the principal unchanged.
	Attributes map[string]any
}

// LinkDisplay picks the denormalized fields stored with the provider link.
func (i *Identity) LinkDisplay() repository.LinkDisplay {
	name := i.DisplayName
	if i.Provider == repository.MethodGitHub {
		name = i.Login
	}
	return repository.LinkDisplay{Name: name, ImageURL: i.AvatarURL}
}
