package repository

import "time"

// ProviderLink binds one external identity (provider + external id) to one user.
// It is created once, at the first successful login through that provider.
type ProviderLink struct {
	ID         string
	UserID     string
	Provider   AuthMethod
	ExternalID string
	Display    LinkDisplay
	CreatedAt  time.Time
}

// LinkDisplay holds the denormalized profile fields kept with a link.
// GitHub links store login and avatar_url; Google links store the display
// name and picture url.
type LinkDisplay struct {
	Name     string
	ImageURL string
}
