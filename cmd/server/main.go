package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/authgate/internal/api"
	"github.com/charlesng35/authgate/internal/app"
	"github.com/charlesng35/authgate/internal/app/maintenance"
	iauth "github.com/charlesng35/authgate/internal/auth"
	"github.com/charlesng35/authgate/internal/database"
	"github.com/charlesng35/authgate/internal/services"
	"github.com/charlesng35/authgate/internal/store"
	"github.com/charlesng35/authgate/pkg/crypto"
	"github.com/charlesng35/authgate/pkg/logger"
	"github.com/charlesng35/authgate/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("authgate-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	users, err := store.NewUserStore(db)
	if err != nil {
		return fmt.Errorf("initialise user store: %w", err)
	}
	sessionStore, err := store.NewSessionStore(db)
	if err != nil {
		return fmt.Errorf("initialise session store: %w", err)
	}

	codec, err := iauth.NewCookieCodec(iauth.CookieCodecConfig{
		Secret: cfg.Auth.Session.Secret,
		Issuer: cfg.App.Name,
	})
	if err != nil {
		return fmt.Errorf("initialise cookie codec: %w", err)
	}

	sessions, err := iauth.NewSessionService(sessionStore, codec, iauth.SessionConfig{
		TTL:        cfg.Auth.Session.TTL,
		CookieName: cfg.Auth.Session.CookieName,
		Secure:     cfg.Production(),
	})
	if err != nil {
		return fmt.Errorf("initialise session service: %w", err)
	}

	mailer, err := mail.New(cfg.SMTPSettings(), cfg.Production())
	if err != nil {
		return fmt.Errorf("initialise mailer: %w", err)
	}

	auditSvc, err := services.NewAuditService(db)
	if err != nil {
		return fmt.Errorf("initialise audit service: %w", err)
	}

	engine, err := iauth.NewEngine(users, sessions, mailer, crypto.NewHasher(cfg.Auth.Password.HashCost), auditSvc, iauth.EngineConfig{
		AppName:                  cfg.App.Name,
		BaseURL:                  cfg.App.BaseURL,
		RequireEmailVerification: cfg.Auth.Verification.Required,
		TokenTTL:                 cfg.Auth.Verification.TokenTTL,
		TokenLength:              cfg.Auth.Verification.TokenLength,
		PasswordMinLength:        cfg.Auth.Password.MinLength,
		PasswordMaxLength:        cfg.Auth.Password.MaxLength,
	})
	if err != nil {
		return fmt.Errorf("initialise auth engine: %w", err)
	}

	cleaner := maintenance.NewCleaner(sessions, users, auditSvc)
	if err := cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer func() {
		stopCtx := cleaner.Stop()
		if err := cleaner.RunOnce(stopCtx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}()

	router, err := api.NewRouter(engine, sessions, cfg)
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("database close failed", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("database close failed", zap.Error(err))
	}
}
