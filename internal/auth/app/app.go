package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/spendlyzer/auth/internal/auth/http"
	"github.com/spendlyzer/auth/internal/auth/notify"
	"github.com/spendlyzer/auth/internal/auth/service"
	"github.com/spendlyzer/auth/internal/auth/store"
	"github.com/spendlyzer/auth/internal/auth/store/drivers/sqlite"
	"github.com/spendlyzer/auth/pkg/cryptox"
	"github.com/spendlyzer/auth/pkg/jwtx"
	"github.com/spendlyzer/auth/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	keyManager *jwtx.KeyManager

	// Services
	tokenIssuer         *service.TokenIssuer
	userService         *service.UserService
	sessionService      *service.SessionService
	deviceService       *service.DeviceService
	challengeService    *service.ChallengeService
	twoFactorService    *service.TwoFactorService
	signinService       *service.SigninService
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
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	// Initialize database first (required for persistent keys)
	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	// Initialize JWT key manager (after database for persistent mode)
	ctx := context.Background()
	keyManager, err := InitAuthKeys(ctx, app.cfg, app.db, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

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
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

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

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
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

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.tokenIssuer = &service.TokenIssuer{
		Keys:              app.keyManager,
		Issuer:            app.cfg.Issuer,
		Audience:          app.cfg.Audience,
		AccessTokenTTL:    app.cfg.AccessTokenTTL,
		ChallengeTokenTTL: app.cfg.ChallengeTokenTTL,
	}

	email := app.initEmailSender()
	sms := &notify.LogSender{Channel: "sms", Logger: app.logger}

	app.userService = &service.UserService{Store: app.db}

	app.sessionService = &service.SessionService{
		Store:  app.db,
		Tokens: app.tokenIssuer,
		Logger: app.logger,
	}

	app.deviceService = &service.DeviceService{
		Store:      app.db,
		Logger:     app.logger,
		DeviceTTL:  app.cfg.DeviceTTL,
		MaxDevices: app.cfg.MaxDevices,
	}

	app.challengeService = &service.ChallengeService{
		Store:          app.db,
		Tokens:         app.tokenIssuer,
		Sessions:       app.sessionService,
		Devices:        app.deviceService,
		Email:          email,
		SMS:            sms,
		Logger:         app.logger,
		ChallengeTTL:   app.cfg.ChallengeTokenTTL,
		CodeTTL:        app.cfg.CodeTTL,
		ResendCooldown: app.cfg.ResendCooldown,
	}

	app.twoFactorService = &service.TwoFactorService{
		Store:        app.db,
		Email:        email,
		SMS:          sms,
		TOTPIssuer:   app.cfg.TOTPIssuer,
		Logger:       app.logger,
		SetupCodeTTL: app.cfg.SetupCodeTTL,
	}

	app.signinService = &service.SigninService{
		Store:      app.db,
		Challenges: app.challengeService,
		Sessions:   app.sessionService,
		Devices:    app.deviceService,
		Logger:     app.logger,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initEmailSender wires the SMTP relay for email codes. Without SMTP_HOST
// the codes are logged instead, which keeps local development usable but
// must never reach production.
func (app *Application) initEmailSender() notify.CodeSender {
	if app.cfg.SMTPHost == "" {
		app.logger.Warn("SMTP_HOST not set, email codes will be logged instead of sent")
		return &notify.LogSender{Channel: "email", Logger: app.logger}
	}

	return notify.NewEmailSender(notify.SMTPConfig{
		Host:     app.cfg.SMTPHost,
		Port:     app.cfg.SMTPPort,
		Username: app.cfg.SMTPUsername,
		Password: app.cfg.SMTPPassword,
		From:     app.cfg.SMTPFrom,
		StartTLS: app.cfg.SMTPStartTLS,
	}, app.logger)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		app.cfg.Issuer,
		BuildVersion,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.SigninService = app.signinService
	router.ChallengeService = app.challengeService
	router.TwoFactorService = app.twoFactorService
	router.SessionService = app.sessionService
	router.DeviceService = app.deviceService
	router.UserService = app.userService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
