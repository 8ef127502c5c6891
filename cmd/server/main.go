package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/diewo77/go-fees/auth"
	"github.com/diewo77/go-fees/internal/accounting"
	"github.com/diewo77/go-fees/internal/config"
	"github.com/diewo77/go-fees/internal/db"
	"github.com/diewo77/go-fees/internal/handlers"
	"github.com/diewo77/go-fees/internal/notify"
	"github.com/diewo77/go-fees/internal/policy"
	"github.com/diewo77/go-fees/internal/services"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func main() {
	flag.Parse()

	cfg := config.Load()
	log := newLogger(cfg.App.Dev)
	defer func() { _ = log.Sync() }()

	dbConn, err := db.Connect(cfg, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if *migrateOnlyFlag {
		if err := db.Migrate(dbConn, cfg, log); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
		log.Info("migrations completed successfully")
		return
	}
	if *seedOnlyFlag {
		if err := db.Seed(dbConn, time.Now().UTC()); err != nil {
			log.Fatal("seeding failed", zap.Error(err))
		}
		log.Info("seeding completed successfully")
		return
	}
	if err := db.Migrate(dbConn, cfg, log); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	auth.SetSecret(cfg.Server.SessionSecret)
	auth.SetUserVerifier(handlers.UserExists(dbConn))

	deps, err := buildDeps(cfg, log)
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	app := NewApp(policy.NewRouterConfig(dbConn, deps))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      withLogging(log, app),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port), zap.Bool("dev", cfg.App.Dev))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	log.Info("server stopped gracefully")
}

func newLogger(dev bool) *zap.Logger {
	build := zap.NewProduction
	if dev {
		build = zap.NewDevelopment
	}
	log, err := build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// buildDeps turns the fee, accounting and notification settings into service collaborators.
func buildDeps(cfg *config.Config, log *zap.Logger) (policy.Deps, error) {
	gw, err := accounting.Initialize(accounting.ProviderConfig{
		Provider: accounting.Provider(cfg.Accounting.Provider),
		BaseURL:  cfg.Accounting.BaseURL,
		Token:    cfg.Accounting.Token,
		RealmID:  cfg.Accounting.RealmID,
		Timeout:  cfg.Accounting.Timeout,
	})
	if err != nil {
		return policy.Deps{}, errors.Wrap(err, "accounting")
	}
	ch, err := notify.ParseChannel(cfg.Notify.DefaultChannel)
	if err != nil {
		return policy.Deps{}, errors.Wrap(err, "notify")
	}
	return policy.Deps{
		Options: services.Options{
			Logger:          log,
			Places:          int32(cfg.Fees.MinorUnits),
			Currency:        cfg.Fees.Currency,
			NumberRetries:   cfg.Fees.NumberRetries,
			DefaultDueMonth: time.Month(cfg.Fees.DefaultDueMonth),
			DefaultDueDay:   cfg.Fees.DefaultDueDay,
		},
		Gateway: gw,
		Notifier: notify.FromConfig(notify.Config{
			WatiURL:        cfg.Notify.WatiURL,
			WatiAPIKey:     cfg.Notify.WatiAPIKey,
			SendgridAPIKey: cfg.Notify.SendgridAPIKey,
			FromEmail:      cfg.Notify.FromEmail,
			FromName:       cfg.Notify.FromName,
		}, log),
		DefaultChannel: ch,
	}, nil
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withLogging adds request logging middleware.
func withLogging(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
