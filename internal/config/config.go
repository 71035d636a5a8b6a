package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is loaded once at process start and treated as read-only afterwards.
type Config struct {
	App struct {
		// dev | staging | prod
		Env     string `yaml:"app_env"`
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr         string   `yaml:"addr"`
		PublicRoutes []string `yaml:"public_routes"`
		// TrustedProxies (CIDRs or addresses) may set X-Forwarded-For.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // memory | postgres
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns int  `yaml:"max_conns"`
			MinConns int  `yaml:"min_conns"`
			Migrate  bool `yaml:"migrate"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Auth struct {
		// DefaultRoleID identifies the "USER" role every new account receives.
		DefaultRoleID   int64         `yaml:"default_role_id"`
		ProviderTimeout time.Duration `yaml:"provider_timeout"`
		StateCookie     struct {
			Name   string        `yaml:"name"`
			TTL    time.Duration `yaml:"ttl"`
			Secure bool          `yaml:"secure"`
		} `yaml:"state_cookie"`
	} `yaml:"auth"`

	// RateLimit guards Basic-auth routes and the social callback per client IP.
	RateLimit struct {
		Enabled bool          `yaml:"enabled"`
		Driver  string        `yaml:"driver"` // memory | redis
		Max     int           `yaml:"max"`
		Window  time.Duration `yaml:"window"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"rate_limit"`

	// ───────── Social Login Providers ─────────
	Providers struct {
		GitHub struct {
			Enabled      bool     `yaml:"enabled"`
			ClientID     string   `yaml:"client_id"`
			ClientSecret string   `yaml:"client_secret"`
			RedirectURL  string   `yaml:"redirect_url"`
			Scopes       []string `yaml:"scopes"`
			APIBaseURL   string   `yaml:"api_base_url"` // default https://api.github.com
		} `yaml:"github"`
		Google struct {
			Enabled      bool     `yaml:"enabled"`
			ClientID     string   `yaml:"client_id"`
			ClientSecret string   `yaml:"client_secret"`
			RedirectURL  string   `yaml:"redirect_url"`
			Scopes       []string `yaml:"scopes"`
			DiscoveryURL string   `yaml:"discovery_url"`
		} `yaml:"google"`
	} `yaml:"providers"`
}

// Security is the static route policy derived from Config.
type Security struct {
	public map[string]struct{}
}

// IsPublic reports whether path is reachable without a principal.
func (s Security) IsPublic(path string) bool {
	_, ok := s.public[path]
	return ok
}

// Security returns the immutable route policy.
func (c *Config) Security() Security {
	m := make(map[string]struct{}, len(c.Server.PublicRoutes))
	for _, p := range c.Server.PublicRoutes {
		m[p] = struct{}{}
	}
	return Security{public: m}
}

// Load reads the YAML file at path (optional: an empty path means env only),
// applies defaults and env overrides and validates the result.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.Name == "" {
		c.App.Name = "notesauth"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if len(c.Server.PublicRoutes) == 0 {
		c.Server.PublicRoutes = []string{"/api/v1/oauth2/welcome", "/healthz", "/metrics"}
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Auth.DefaultRoleID == 0 {
		c.Auth.DefaultRoleID = 2002
	}
	if c.Auth.ProviderTimeout == 0 {
		c.Auth.ProviderTimeout = 5 * time.Second
	}
	if c.Auth.StateCookie.Name == "" {
		c.Auth.StateCookie.Name = "__oauth_state"
	}
	if c.Auth.StateCookie.TTL == 0 {
		c.Auth.StateCookie.TTL = 5 * time.Minute
	}
	if c.RateLimit.Driver == "" {
		c.RateLimit.Driver = "memory"
	}
	if c.RateLimit.Max == 0 {
		c.RateLimit.Max = 30
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}
	if len(c.Providers.GitHub.Scopes) == 0 {
		c.Providers.GitHub.Scopes = []string{"read:user", "user:email"}
	}
	if c.Providers.GitHub.APIBaseURL == "" {
		c.Providers.GitHub.APIBaseURL = "https://api.github.com"
	}
	if len(c.Providers.Google.Scopes) == 0 {
		c.Providers.Google.Scopes = []string{"openid", "email", "profile"}
	}
	if c.Providers.Google.DiscoveryURL == "" {
		c.Providers.Google.DiscoveryURL = "https://accounts.google.com/.well-known/openid-configuration"
	}
	// Prod never runs with insecure cookies.
	if strings.EqualFold(c.App.Env, "prod") {
		c.Auth.StateCookie.Secure = true
	}
}

// Validate checks required values. Provider secrets are never defaulted.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}

	if c.Auth.DefaultRoleID <= 0 {
		errs = append(errs, errors.New("auth.default_role_id must be positive"))
	}
	if c.Auth.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("auth.provider_timeout must be positive"))
	}

	if rl := c.RateLimit; rl.Enabled {
		switch rl.Driver {
		case "memory":
		case "redis":
			if strings.TrimSpace(rl.Redis.Addr) == "" {
				errs = append(errs, errors.New("rate_limit.redis.addr is required for the redis driver"))
			}
		default:
			errs = append(errs, fmt.Errorf("rate_limit.driver %q is not supported", rl.Driver))
		}
		if rl.Max <= 0 || rl.Window <= 0 {
			errs = append(errs, errors.New("rate_limit.max and rate_limit.window must be positive"))
		}
	}

	gh := c.Providers.GitHub
	if gh.Enabled {
		errs = append(errs, requireFields("providers.github", map[string]string{
			"client_id":     gh.ClientID,
			"client_secret": gh.ClientSecret,
			"redirect_url":  gh.RedirectURL,
		})...)
	}
	g := c.Providers.Google
	if g.Enabled {
		errs = append(errs, requireFields("providers.google", map[string]string{
			"client_id":     g.ClientID,
			"client_secret": g.ClientSecret,
			"redirect_url":  g.RedirectURL,
		})...)
	}

	return errors.Join(errs...)
}

func requireFields(section string, fields map[string]string) []error {
	var errs []error
	for _, name := range []string{"client_id", "client_secret", "redirect_url"} {
		if strings.TrimSpace(fields[name]) == "" {
			errs = append(errs, fmt.Errorf("%s.%s is required when the provider is enabled", section, name))
		}
	}
	return errs
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt64(key string) (int64, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

// applyEnvOverrides lets env vars win over the YAML file.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_PUBLIC_ROUTES"); ok {
		c.Server.PublicRoutes = v
	}
	if v, ok := getEnvCSV("SERVER_TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = v
	}

	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvBool("STORAGE_MIGRATE"); ok {
		c.Storage.Postgres.Migrate = v
	}

	if v, ok := getEnvInt64("AUTH_DEFAULT_ROLE_ID"); ok {
		c.Auth.DefaultRoleID = v
	}
	if v, ok := getEnvDur("AUTH_PROVIDER_TIMEOUT"); ok {
		c.Auth.ProviderTimeout = v
	}

	if v, ok := getEnvBool("RATE_LIMIT_ENABLED"); ok {
		c.RateLimit.Enabled = v
	}
	if v, ok := getEnvStr("RATE_LIMIT_DRIVER"); ok {
		c.RateLimit.Driver = v
	}
	if v, ok := getEnvInt64("RATE_LIMIT_MAX"); ok {
		c.RateLimit.Max = int(v)
	}
	if v, ok := getEnvDur("RATE_LIMIT_WINDOW"); ok {
		c.RateLimit.Window = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.RateLimit.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.RateLimit.Redis.Password = v
	}

	if v, ok := getEnvBool("GITHUB_ENABLED"); ok {
		c.Providers.GitHub.Enabled = v
	}
	if v, ok := getEnvStr("GITHUB_CLIENT_ID"); ok {
		c.Providers.GitHub.ClientID = v
	}
	if v, ok := getEnvStr("GITHUB_CLIENT_SECRET"); ok {
		c.Providers.GitHub.ClientSecret = v
	}
	if v, ok := getEnvStr("GITHUB_REDIRECT_URL"); ok {
		c.Providers.GitHub.RedirectURL = v
	}

	if v, ok := getEnvBool("GOOGLE_ENABLED"); ok {
		c.Providers.Google.Enabled = v
	}
	if v, ok := getEnvStr("GOOGLE_CLIENT_ID"); ok {
		c.Providers.Google.ClientID = v
	}
	if v, ok := getEnvStr("GOOGLE_CLIENT_SECRET"); ok {
		c.Providers.Google.ClientSecret = v
	}
	if v, ok := getEnvStr("GOOGLE_REDIRECT_URL"); ok {
		c.Providers.Google.RedirectURL = v
	}
}
