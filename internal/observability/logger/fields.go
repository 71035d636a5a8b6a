package logger

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// HTTP
// =================================================================================

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func Bytes(v int) zap.Field        { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

// Duration records elapsed time.
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// =================================================================================
// IDENTITY
// =================================================================================

// UserID is the internal user id.
func UserID(v string) zap.Field { return zap.String("user_id", v) }

// Provider is the authentication method / provider name.
func Provider(v string) zap.Field { return zap.String("provider", v) }

// ExternalID is the provider-scoped subject. Safe to log, it is not a credential.
func ExternalID(v string) zap.Field { return zap.String("external_id", v) }

// EmailMasked logs only the first two characters and the domain.
func EmailMasked(v string) zap.Field { return zap.String("email_masked", MaskEmail(v)) }

// Outcome is the final state of a login attempt.
func Outcome(v string) zap.Field { return zap.String("outcome", v) }

// Alert marks entries operators must be paged for.
func Alert() zap.Field { return zap.Bool("alert", true) }

// =================================================================================
// SYSTEM
// =================================================================================

func Component(v string) zap.Field { return zap.String("component", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Err(err error) zap.Field      { return zap.Error(err) }

func String(key, v string) zap.Field    { return zap.String(key, v) }
func Int(key string, v int) zap.Field   { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }

// MaskEmail shows the first two characters plus @domain.
func MaskEmail(email string) string {
	if len(email) < 3 {
		return "***"
	}
	at := strings.IndexByte(email, '@')
	if at < 2 {
		return email[:2] + "***"
	}
	return email[:2] + "***" + email[at:]
}
