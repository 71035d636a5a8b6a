package login

import "golang.org/x/crypto/bcrypt"

// MinPasswordLength is enforced on registration only.
const MinPasswordLength = 8

// dummyHash is compared against when the email is unknown.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("notesauth-timing-equalizer"), bcrypt.DefaultCost)

// HashPassword returns the bcrypt hash stored for EMAIL accounts.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
