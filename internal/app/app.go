// Package app wires configuration into a runnable container.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/notesauth/internal/auth/linking"
	"github.com/dropDatabas3/notesauth/internal/auth/login"
	"github.com/dropDatabas3/notesauth/internal/auth/providers"
	"github.com/dropDatabas3/notesauth/internal/auth/providers/github"
	"github.com/dropDatabas3/notesauth/internal/auth/providers/google"
	"github.com/dropDatabas3/notesauth/internal/config"
	"github.com/dropDatabas3/notesauth/internal/domain/repository"
	"github.com/dropDatabas3/notesauth/internal/http/controllers/auth"
	"github.com/dropDatabas3/notesauth/internal/http/controllers/health"
	mw "github.com/dropDatabas3/notesauth/internal/http/middlewares"
	"github.com/dropDatabas3/notesauth/internal/http/router"
	"github.com/dropDatabas3/notesauth/internal/metrics"
	"github.com/dropDatabas3/notesauth/internal/observability/logger"
	"github.com/dropDatabas3/notesauth/internal/rate"
	"github.com/dropDatabas3/notesauth/internal/store/memory"
	"github.com/dropDatabas3/notesauth/internal/store/pg"
	"github.com/dropDatabas3/notesauth/migrations/postgres"
)

// Container holds the wired application.
type Container struct {
	Config  *config.Config
	Store   repository.Store
	Login   *login.Service
	Handler http.Handler

	closers []func()
}

// Options tweak Build, mostly for tests.
type Options struct {
	// Registry receives the collectors; nil means the default registry.
	Registry *prometheus.Registry
	// Providers replaces the providers built from config.
	Providers []providers.Provider
}

// Build opens the store, builds the providers and mounts the router.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Container, error) {
	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if opts.Registry != nil {
		reg, gatherer = opts.Registry, opts.Registry
	}
	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("app: register metrics: %w", err)
	}

	c := &Container{Config: cfg}
	store, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.Store = store
	c.closers = append(c.closers, closeStore)

	ps := opts.Providers
	if ps == nil {
		if ps, err = BuildProviders(cfg); err != nil {
			c.Close()
			return nil, err
		}
	}
	registry, err := providers.NewRegistry(ps...)
	if err != nil {
		c.Close()
		return nil, err
	}

	var limiter rate.Limiter
	if rl := cfg.RateLimit; rl.Enabled {
		limiter, err = rate.New(ctx, rate.Config{
			Driver:        rl.Driver,
			Max:           rl.Max,
			Window:        rl.Window,
			Prefix:        rl.Redis.Prefix,
			RedisAddr:     rl.Redis.Addr,
			RedisPassword: rl.Redis.Password,
			RedisDB:       rl.Redis.DB,
		})
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, func() { _ = limiter.Close() })
	}

	ips, err := mw.NewClientIP(cfg.Server.TrustedProxies)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("app: server.trusted_proxies: %w", err)
	}

	resolver := linking.New(store, linking.WithDefaultRoleID(cfg.Auth.DefaultRoleID))
	c.Login = login.NewService(registry, resolver, store, cfg.Auth.DefaultRoleID)

	c.Handler = router.New(router.Deps{
		Security: cfg.Security(),
		Social: auth.NewSocialController(c.Login, auth.StateCookie{
			Name:   cfg.Auth.StateCookie.Name,
			TTL:    cfg.Auth.StateCookie.TTL,
			Secure: cfg.Auth.StateCookie.Secure,
		}),
		Health:   health.NewController(store, cfg.App.Version),
		Password: c.Login,
		Limiter:  limiter,
		ClientIP: ips,
		Gatherer: gatherer,
	})

	logger.L().Info("application wired",
		logger.String("storage", cfg.Storage.Driver),
		logger.Any("providers", registry.Methods()))
	return c, nil
}

// Close releases the store.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// OpenStore returns the configured store and its close func. The postgres
// driver applies pending migrations when storage.postgres.migrate is set.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	switch cfg.Storage.Driver {
	case "memory":
		return memory.New(memory.ReferenceRoles()...), func() {}, nil
	case "postgres":
		s, err := pg.Open(ctx, cfg.Storage.DSN, pg.Options{
			MaxConns: cfg.Storage.Postgres.MaxConns,
			MinConns: cfg.Storage.Postgres.MinConns,
		})
		if err != nil {
			return nil, nil, err
		}
		if cfg.Storage.Postgres.Migrate {
			if _, err := Migrate(ctx, s); err != nil {
				s.Close()
				return nil, nil, err
			}
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("app: unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// Migrate applies the embedded PostgreSQL schema.
func Migrate(ctx context.Context, s *pg.Store) (*pg.MigrationResult, error) {
	res, err := pg.NewMigrator(postgres.PostgresFS, postgres.PostgresDir).Run(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("app: migrate: %w", err)
	}
	logger.L().Info("migrations done",
		logger.Any("applied", res.Applied), logger.Int("skipped", len(res.Skipped)), logger.Duration(res.Duration))
	return res, nil
}

// BuildProviders creates the enabled providers.
func BuildProviders(cfg *config.Config) ([]providers.Provider, error) {
	var ps []providers.Provider
	if gh := cfg.Providers.GitHub; gh.Enabled {
		p, err := github.New(github.Config{
			ClientID:     gh.ClientID,
			ClientSecret: gh.ClientSecret,
			RedirectURL:  gh.RedirectURL,
			Scopes:       gh.Scopes,
			APIBaseURL:   gh.APIBaseURL,
			Timeout:      cfg.Auth.ProviderTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("app: github provider: %w", err)
		}
		ps = append(ps, p)
	}
	if g := cfg.Providers.Google; g.Enabled {
		p, err := google.New(google.Config{
			ClientID:     g.ClientID,
			ClientSecret: g.ClientSecret,
			RedirectURL:  g.RedirectURL,
			Scopes:       g.Scopes,
			DiscoveryURL: g.DiscoveryURL,
			Timeout:      cfg.Auth.ProviderTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("app: google provider: %w", err)
		}
		ps = append(ps, p)
	}
	return ps, nil
}
