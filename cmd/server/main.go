package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/sessionbox/config"
	"github.com/isdmx/sessionbox/logger"
	"github.com/isdmx/sessionbox/mcpserver"
	"github.com/isdmx/sessionbox/sandbox"
	"github.com/isdmx/sessionbox/session"
)

// newStore creates the session store from configuration
func newStore(cfg *config.Config, log *zap.Logger) (*session.Store, error) {
	return session.New(log, cfg.Sessions.BaseDir)
}

// newEngine builds the execution engine from configuration. The engine is
// an explicit value constructed once here and injected into its consumers.
func newEngine(cfg *config.Config, log *zap.Logger, store *session.Store) *sandbox.Engine {
	runner := sandbox.NewProcessRunner(log,
		sandbox.WithPythonBin(cfg.Engine.PythonBin),
		sandbox.WithExtraEnv(cfg.Engine.Env),
	)

	var opts []sandbox.EngineOption
	if cfg.Safety.Enabled {
		opts = append(opts, sandbox.WithSafetyChecker(sandbox.NewPatternChecker(cfg.Safety.BlockedPatterns)))
	}

	return sandbox.NewEngine(log, store, runner, opts...)
}

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			config.New,
			logger.NewFromConfig,
			newStore,
			newEngine,
			mcpserver.New,
		),

		// Start the appropriate transport based on config
		fx.Invoke(
			func(cfg *config.Config, server *mcpserver.MCPServer) {
				switch cfg.Server.Transport {
				case "stdio":
					go func() {
						if err := server.ServeStdio(); err != nil {
							panic(err)
						}
					}()
				case "http":
					go func() {
						if err := server.ServeHTTP(); err != nil {
							panic(err)
						}
					}()
				default:
					panic("unsupported transport: " + cfg.Server.Transport)
				}
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}
