package repository

import (
	"strings"
	"time"
)

// AuthMethod is the channel through which an account was first established.
// It is written once at creation and never updated.
type AuthMethod string

const (
	MethodEmail  AuthMethod = "EMAIL"
	MethodGitHub AuthMethod = "GITHUB"
	MethodGoogle AuthMethod = "GOOGLE"
)

// Valid reports whether m is one of the known methods.
func (m AuthMethod) Valid() bool {
	switch m {
	case MethodEmail, MethodGitHub, MethodGoogle:
		return true
	}
	return false
}

// ParseAuthMethod accepts both the stored form ("GITHUB") and route form ("github").
func ParseAuthMethod(s string) (AuthMethod, bool) {
	m := AuthMethod(strings.ToUpper(strings.TrimSpace(s)))
	return m, m.Valid()
}

// Slug is the lower-case form used in routes, metrics and logs.
func (m AuthMethod) Slug() string {
	return strings.ToLower(string(m))
}

// User is the single internal account a person resolves to.
type User struct {
	ID           string
	Email        string
	PasswordHash string // empty for externally authenticated users
	AuthMethod   AuthMethod
	RoleIDs      []int64
	CreatedAt    time.Time
}

// NormalizeEmail is the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
