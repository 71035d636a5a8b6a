// Package logger provides the process-wide Zap logger with context scoping.
//
// # Design
//
//   - Singleton: one instance, initialized once with Init().
//   - Context scoping: each login attempt carries a logger enriched with its own
//     fields (provider, method, request id) without building a new core.
//   - Environments: "dev" prints colored console lines, "prod" prints JSON.
//
// # Usage
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Component("auth.linking"))
//	log.Info("user linked", logger.UserID(id), logger.Provider("github"))
package logger
