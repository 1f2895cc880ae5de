// Package cli holds the start-up steps shared by the omo commands: env file,
// config, logger, backend and signal handling.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"omomoney/internal/backend"
	"omomoney/internal/cache"
	"omomoney/internal/config"
	applog "omomoney/internal/log"
	"omomoney/internal/search"
	"omomoney/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the application logger from config and makes it the
// slog default.
func SetupLogger(cfg *config.Config, out io.Writer) *applog.Logger {
	lc := applog.DefaultConfig()
	lc.Level = applog.ParseLevel(cfg.LogLevel)
	lc.Format = strings.ToLower(cfg.LogFormat)
	lc.Component = applog.ComponentCLI
	if out != nil {
		lc.Output = out
	}
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// App is everything a command needs after start-up.
type App struct {
	Config  *config.Config
	Logger  *applog.Logger
	Service *services.LedgerService
	Backend *backend.BackendResult
}

// Init loads config, opens the configured backend and builds the ledger
// service.
func Init(ctx context.Context, logOut io.Writer) (*App, error) {
	LoadEnvFile()
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}
	logger := SetupLogger(cfg, logOut)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err.Error(), applog.FieldBackend, cfg.DataBackend)
		return nil, fmt.Errorf("initialize backend: %w", err)
	}

	svc := services.NewLedgerService(res.Store, res.Publisher, cfg.CurrentUserID, logger)
	return &App{Config: cfg, Logger: logger, Service: svc, Backend: res}, nil
}

// Suggester builds a debounced suggester configured from the app config.
// The returned manager sweeps the pass cache and must be stopped.
func (a *App) Suggester(onPublish func(search.Result)) (*search.Suggester, *cache.Manager) {
	opts := search.Options{
		Debounce:  a.Config.SuggestDebounce,
		Logger:    a.Logger,
		OnPublish: onPublish,
	}
	mgr := cache.NewManager(a.Logger)
	if a.Config.SuggestCacheSize > 0 {
		lru := cache.NewLRUCache[[]search.Suggestion](a.Config.SuggestCacheSize, a.Config.SuggestCacheTTL)
		mgr.Register(lru)
		mgr.StartCleanup(a.Config.SuggestCacheTTL)
		opts.Cache = lru
	}
	return a.Service.NewSuggester(opts), mgr
}

// Close releases the backend.
func (a *App) Close() error {
	return a.Backend.Close()
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context, logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received",
				applog.FieldOperation, applog.OpShutdown,
				"signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
