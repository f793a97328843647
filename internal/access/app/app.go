package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sproutcrm/tenantcore/internal/access/cache"
	httpapi "github.com/sproutcrm/tenantcore/internal/access/http"
	"github.com/sproutcrm/tenantcore/internal/access/service"
	"github.com/sproutcrm/tenantcore/internal/access/store"
	"github.com/sproutcrm/tenantcore/internal/access/store/drivers/sqlite"
	"github.com/sproutcrm/tenantcore/pkg/jwtx"
	"github.com/sproutcrm/tenantcore/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the access service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db          store.Store
	cacheClient cache.Client
	credentials *cache.CredentialStore
	permissions *cache.PermissionCache
	signer      *jwtx.Signer

	// Services
	accountService      *service.AccountService
	tokenService        *service.TokenService
	inviteService       *service.InviteService
	membershipService   *service.MembershipService
	authzService        *service.AuthzService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tenantcore",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	signer, err := jwtx.NewSigner([]byte(cfg.JWTSecret), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token signer: %w", err)
	}
	app.signer = signer

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initCache(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("access service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down access service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	// Close cache and database connections
	if err := app.cacheClient.Close(); err != nil {
		app.logger.Error("error closing cache", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("access service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initCache selects the cache backend. The in-process backend keeps
// single-node deployments and development free of a Redis dependency;
// redis is for anything with more than one replica.
func (app *Application) initCache() error {
	switch app.cfg.CacheBackend {
	case "redis":
		client, err := cache.NewRedisClient(app.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to initialize redis cache: %w", err)
		}
		app.cacheClient = client
		app.logger.Info("redis cache backend initialized")
	case "memory":
		app.cacheClient = cache.NewMemoryClient()
		app.logger.Info("in-memory cache backend initialized")
	default:
		return fmt.Errorf("unknown cache backend %q", app.cfg.CacheBackend)
	}

	app.credentials = cache.NewCredentialStore(app.cacheClient)
	app.permissions = cache.NewPermissionCache(app.cacheClient, app.cfg.MembershipTTL)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.accountService = &service.AccountService{Store: app.db}

	app.tokenService = &service.TokenService{
		Signer:      app.signer,
		Store:       app.db,
		Credentials: app.credentials,
		AccessTTL:   app.cfg.AccessTokenTTL,
		RefreshTTL:  app.cfg.RefreshTokenTTL,
	}

	app.inviteService = &service.InviteService{
		Store:       app.db,
		Permissions: app.permissions,
	}

	app.membershipService = &service.MembershipService{
		Store:       app.db,
		Permissions: app.permissions,
	}

	app.authzService = &service.AuthzService{
		Store:       app.db,
		Permissions: app.permissions,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.credentials,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.credentials,
		app.logger,
	)

	// Wire services to router
	router.AccountService = app.accountService
	router.TokenService = app.tokenService
	router.InviteService = app.inviteService
	router.MembershipService = app.membershipService
	router.AuthzService = app.authzService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
