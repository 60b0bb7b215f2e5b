// Command medconfirmd serves the doctor email confirmation page and the admin
// dashboard API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/MrEthical07/medconfirm"
	"github.com/MrEthical07/medconfirm/identity"
	"github.com/MrEthical07/medconfirm/internal/config"
	"github.com/MrEthical07/medconfirm/internal/database"
	"github.com/MrEthical07/medconfirm/internal/httpapi"
	"github.com/MrEthical07/medconfirm/internal/logging"
	"github.com/MrEthical07/medconfirm/internal/rate"
	"github.com/MrEthical07/medconfirm/internal/repositories"
	"github.com/MrEthical07/medconfirm/internal/services"
	"github.com/MrEthical07/medconfirm/jwt"
	promexport "github.com/MrEthical07/medconfirm/metrics/export/prometheus"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("medconfirmd stopped")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(cfg.Logger())
	logger := logging.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	db, err := database.NewClient(ctx, cfg.Postgres())
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Database.Migrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		logger.Info().Msg("database schema applied")
	}

	idp, err := identity.New(cfg.IdentityClient(), logger)
	if err != nil {
		return err
	}

	doctors := repositories.NewDoctorRepository(db.Pool())
	subscriptions := repositories.NewSubscriptionTypeRepository(db.Pool())

	engine, err := medconfirm.New().
		WithConfig(cfg.Engine()).
		WithRedis(rdb).
		WithIdentityService(idp).
		WithRecordStore(repositories.NewConfirmationRecords(doctors)).
		WithAuditSink(medconfirm.NewLoggerSink(logger)).
		WithLogger(logger.With().Str("component", "confirmation").Logger()).
		Build()
	if err != nil {
		return fmt.Errorf("engine build: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info().
		Bool("production", report.ProductionMode).
		Int("origins", report.OriginCount).
		Int("max_attempts", report.MaxAttempts).
		Dur("attempt_window", report.AttemptWindow).
		Dur("exchange_timeout", report.ExchangeTimeout).
		Bool("audit", report.AuditEnabled).
		Msg("confirmation security posture")
	for _, w := range report.Warnings() {
		logger.Warn().Str("finding", w).Msg("security report")
	}

	verifier, err := jwt.NewVerifier(cfg.AdminTokens())
	if err != nil {
		return fmt.Errorf("admin token verifier: %w", err)
	}

	exporter := promexport.NewExporter(engine)
	exporter.Registry().MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "medconfirm_identity_breaker_open",
		Help: "1 when the identity provider circuit breaker is open.",
	}, func() float64 {
		if idp.BreakerState() == "open" {
			return 1
		}
		return 0
	}))

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := httpapi.NewRouter(httpapi.Deps{
		Engine:    engine,
		Throttle:  rate.New(rdb, cfg.Throttle()),
		Verifier:  verifier,
		Admins:    services.NewAdminService(repositories.NewAdminRepository(db.Pool())),
		Doctors:   services.NewDoctorService(doctors, subscriptions),
		Catalog:   services.NewCatalogService(subscriptions, repositories.NewEventRepository(db.Pool())),
		Dashboard: services.NewDashboardService(repositories.NewStatsRepository(db.Pool())),
		Metrics:   exporter.Handler(),
		Health: func(ctx context.Context) error {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return db.Ping(ctx)
		},
		Logger:         logger,
		AllowedOrigins: cfg.Confirmation.AllowedOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
		SecureCookies:  cfg.Server.Environment == "production",
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("environment", cfg.Server.Environment).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if dropped := engine.AuditDropped(); dropped > 0 {
		event := logger.Warn().Uint64("dropped", dropped)
		for kind, n := range engine.AuditDroppedByEvent() {
			if n > 0 {
				event = event.Uint64("dropped_"+kind, n)
			}
		}
		event.Msg("audit events dropped")
	}
	return nil
}
