// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"imepay-gateway/internal/config"
	"imepay-gateway/internal/domain"
	"imepay-gateway/internal/domain/ports/adapter"
	"imepay-gateway/internal/domain/ports/repository"
	payAdapters "imepay-gateway/internal/infra/adapters/payment"
	"imepay-gateway/internal/infra/api"
	pg "imepay-gateway/internal/infra/db/postgres"
	"imepay-gateway/internal/infra/logging"
	"imepay-gateway/internal/infra/memory"
	"imepay-gateway/internal/infra/metrics"
	red "imepay-gateway/internal/infra/redis"
	"imepay-gateway/internal/infra/sched"
	"imepay-gateway/internal/infra/worker"
	"imepay-gateway/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (in-memory stores, noop gateway fallback)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Payments store ----
	var (
		payments repository.PaymentRepository
		tm       repository.TransactionManager
	)
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pool.Close()
		payments = pg.NewPaymentRepo(pool)
		tm = pg.NewTxManager(pool)
		go reportPoolStats(ctx, pool)
		logger.Info().Msg("payments stored in postgres")
	} else {
		payments = memory.NewPaymentRepo()
		logger.Warn().Msg("database.url not set; payments are kept in memory")
	}

	// ---- Redis: callback lock + checkout rate limit ----
	var (
		locker  repository.Locker
		limiter api.RateLimiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		locker = red.NewLocker(redisClient)
		limiter = red.NewRateLimiter(redisClient)
	} else {
		locker = memory.NewLocker()
		if cfg.Server.CheckoutRateLimit > 0 {
			logger.Warn().Msg("server.checkout_rate_limit needs redis; throttling disabled")
		}
	}

	// ---- Gateway ----
	gateway := newGateway(cfg, logger)

	payUC := usecase.NewPaymentUseCase(payments, tm, gateway, locker, cfg.Redis.LockTTL, logger)

	// ---- Reconciler ----
	workers := worker.NewPool(cfg.Scheduler.Workers, logger)
	workers.Start(ctx)
	defer workers.Stop()
	reconciler := sched.NewPaymentReconciler(payUC, workers, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.StaleAfter, cfg.Scheduler.BatchSize, logger)
	go func() { _ = reconciler.Run(ctx) }()

	// ---- HTTP ----
	srv := api.NewServer(payUC, api.Options{
		CallbackPath: pathOf(cfg.IMEPay.CallbackURL, "/payment/callback"),
		CancelPath:   pathOf(cfg.IMEPay.CancelURL, "/payment/cancel"),
		AdminKey:     cfg.Admin.APIKey,
		Limiter:      limiter,
		RateLimit:    cfg.Server.CheckoutRateLimit,
		RateWindow:   cfg.Server.CheckoutRateWindow,
	}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("gateway", gateway.Name()).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

// newGateway builds the IMEPay client. In dev mode an incomplete imepay
// section falls back to the noop gateway instead of exiting.
func newGateway(cfg *config.Config, logger *zerolog.Logger) adapter.PaymentGateway {
	gw, err := payAdapters.NewImePayGateway(cfg.ClientConfig())
	if err == nil {
		logger.Info().
			Bool("sandbox", gw.Sandbox()).
			Str("merchant_code", cfg.IMEPay.MerchantCode).
			Str("api_user", logging.Redact(cfg.IMEPay.APIUser, cfg.Runtime.Dev)).
			Msg("imepay gateway ready")
		return gw
	}
	var ce *domain.ConfigError
	if cfg.Runtime.Dev && errors.As(err, &ce) {
		logger.Warn().Err(err).Msg("imepay not configured; using noop gateway")
		return payAdapters.NewNoopPaymentGateway(cfg.IMEPay.CallbackURL, cfg.IMEPay.CancelURL)
	}
	logger.Fatal().Err(err).Msg("imepay gateway")
	return nil
}

func pathOf(raw, fallback string) string {
	if u, err := url.Parse(strings.TrimSpace(raw)); err == nil && u.Path != "" {
		return u.Path
	}
	return fallback
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s := pool.Stat()
			metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns())
		}
	}
}
