package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, int64(2002), c.Auth.DefaultRoleID)
	assert.Equal(t, 5*time.Second, c.Auth.ProviderTimeout)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.True(t, c.Security().IsPublic("/api/v1/oauth2/welcome"))
	assert.False(t, c.Security().IsPublic("/v1/me"))
}

func TestLoad_EnabledProviderRequiresSecrets(t *testing.T) {
	p := writeYAML(t, `
providers:
  github:
    enabled: true
    client_id: abc
`)
	_, err := Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "providers.github.client_secret")
	assert.Contains(t, err.Error(), "providers.github.redirect_url")
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	p := writeYAML(t, `
storage:
  driver: postgres
  dsn: postgres://yaml
providers:
  google:
    enabled: true
    client_id: from-yaml
    client_secret: s
    redirect_url: http://localhost/cb
`)
	t.Setenv("GOOGLE_CLIENT_ID", "from-env")
	t.Setenv("AUTH_PROVIDER_TIMEOUT", "3s")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.Providers.Google.ClientID)
	assert.Equal(t, 3*time.Second, c.Auth.ProviderTimeout)
	assert.Equal(t, "postgres://yaml", c.Storage.DSN)
}

func TestLoad_PostgresWithoutDSN(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "mongo")
	_, err := Load("")
	require.ErrorContains(t, err, "not supported")
}

func TestLoad_ProdForcesSecureCookie(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	c, err := Load("")
	require.NoError(t, err)
	assert.True(t, c.Auth.StateCookie.Secure)
}

func TestLoad_RateLimit(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.False(t, c.RateLimit.Enabled)
	assert.Equal(t, "memory", c.RateLimit.Driver)
	assert.Equal(t, 30, c.RateLimit.Max)
	assert.Equal(t, time.Minute, c.RateLimit.Window)

	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_DRIVER", "redis")
	_, err = Load("")
	require.ErrorContains(t, err, "rate_limit.redis.addr")

	t.Setenv("REDIS_ADDR", "localhost:6379")
	c, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", c.RateLimit.Redis.Addr)
}

func TestLoad_TrustedProxies(t *testing.T) {
	p := writeYAML(t, `
server:
  trusted_proxies: ["10.0.0.0/8"]
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8"}, c.Server.TrustedProxies)

	t.Setenv("SERVER_TRUSTED_PROXIES", "127.0.0.1, 172.16.0.0/12")
	c, err = Load(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1", "172.16.0.0/12"}, c.Server.TrustedProxies)
}
