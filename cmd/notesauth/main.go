package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/notesauth/internal/app"
	"github.com/dropDatabas3/notesauth/internal/config"
	"github.com/dropDatabas3/notesauth/internal/http/server"
	"github.com/dropDatabas3/notesauth/internal/observability/logger"
	"github.com/dropDatabas3/notesauth/internal/store/pg"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOpts struct {
	configPath string
	envFile    string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	o := &rootOpts{configPath: os.Getenv("NOTESAUTH_CONFIG")}

	root := &cobra.Command{
		Use:           "notesauth",
		Short:         "Identity linking and login service for password, GitHub and Google accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A missing .env is normal outside local development.
			if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load %s: %w", o.envFile, err)
			}
			cfg, err := config.Load(o.configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cfg.App.Version == "" {
				cfg.App.Version = version
			}
			o.cfg = cfg
			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       cfg.Log.Level,
				ServiceName: cfg.App.Name,
				Version:     cfg.App.Version,
			})
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) { _ = logger.Sync() },
	}
	root.PersistentFlags().StringVar(&o.configPath, "config", o.configPath, "Path to YAML config (env NOTESAUTH_CONFIG)")
	root.PersistentFlags().StringVar(&o.envFile, "env-file", ".env", "Optional dotenv file loaded before the config")

	root.AddCommand(newServeCmd(o), newMigrateCmd(o), newUserCmd(o), newConfigCmd(o))
	return root
}

func newServeCmd(o *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := app.Build(ctx, o.cfg, app.Options{})
			if err != nil {
				return err
			}
			defer c.Close()
			return server.Run(ctx, o.cfg.Server.Addr, c.Handler, server.Options{})
		},
	}
}

func newMigrateCmd(o *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("migrate needs storage.driver=postgres, got %q", o.cfg.Storage.Driver)
			}
			s, err := pg.Open(cmd.Context(), o.cfg.Storage.DSN, pg.Options{})
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := app.Migrate(cmd.Context(), s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied=%v skipped=%d\n", res.Applied, len(res.Skipped))
			return nil
		},
	}
}

func newUserCmd(o *rootOpts) *cobra.Command {
	userCmd := &cobra.Command{Use: "user", Short: "Manage password accounts"}

	var email, password string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a password account with the default role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("NOTESAUTH_USER_PASSWORD")
			}
			ctx := cmd.Context()
			c, err := app.Build(ctx, o.cfg, app.Options{})
			if err != nil {
				return err
			}
			defer c.Close()

			u, err := c.Login.RegisterPassword(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", u.ID, u.Email)
			return nil
		},
	}
	add.Flags().StringVar(&email, "email", "", "Account email")
	add.Flags().StringVar(&password, "password", "", "Account password (env NOTESAUTH_USER_PASSWORD)")
	_ = add.MarkFlagRequired("email")

	userCmd.AddCommand(add)
	return userCmd
}

func newConfigCmd(o *rootOpts) *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print a summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ps, err := app.BuildProviders(o.cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "env=%s storage=%s addr=%s default_role=%d\n",
				o.cfg.App.Env, o.cfg.Storage.Driver, o.cfg.Server.Addr, o.cfg.Auth.DefaultRoleID)
			for _, p := range ps {
				fmt.Fprintf(out, "provider %s (%s)\n", p.Method().Slug(), p.Kind())
			}
			return nil
		},
	})
	return cfgCmd
}
