package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/dnscache"
	"github.com/spf13/cobra"

	"cnb-rate-service/internal/adapter/cache"
	httpRouter "cnb-rate-service/internal/adapter/http"
	"cnb-rate-service/internal/adapter/repository"
	"cnb-rate-service/internal/config"
	"cnb-rate-service/internal/domain/ports"
	"cnb-rate-service/internal/metrics"
	"cnb-rate-service/internal/policy"
	"cnb-rate-service/internal/service"
	"cnb-rate-service/pkg/logger"
)

// minRefreshInterval keeps the background refresh from hammering the CNB
// when the policy is at its shortest.
const minRefreshInterval = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting exchange rate service")

	// Fails here, not on the first request, when the zone cannot be resolved.
	calculator, err := policy.NewCalculator(cfg.Schedule)
	if err != nil {
		log.Error("Invalid cache policy configuration", "error", err)
		return err
	}

	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	rateCache, closeCache, err := newRateCache(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialise rate cache", "error", err)
		return err
	}
	defer closeCache()

	resolver := &dnscache.Resolver{}
	go refreshDNS(ctx, resolver, cfg.CNBAPI.DNSRefresh)

	rateRepo := repository.NewCNBAPI(cfg.CNBAPI.BaseURL, cfg.CNBAPI.Timeout, resolver, log)

	exchangeService := service.NewExchangeService(rateRepo, rateCache, calculator, log,
		service.WithMetrics(appMetrics),
		service.WithHistory(cfg.CNBAPI.HistoryDays, cfg.CNBAPI.HistoricalTTL),
		service.WithFetchTimeout(cfg.CNBAPI.Timeout),
	)
	handler := httpRouter.NewHandler(exchangeService, log, appMetrics)

	router := httpRouter.NewRouter(handler, log, appMetrics, prometheus.DefaultGatherer)
	routes := router.SetupRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      routes,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go refreshRates(ctx, exchangeService, log)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

wait:
	for {
		select {
		case err := <-serverErr:
			log.Error("HTTP server error", "error", err)
			return err
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				// Pick up tz database updates without a restart.
				if err := calculator.Revalidate(); err != nil {
					log.Error("Timezone revalidation failed, keeping previous zone", "error", err)
				} else {
					log.Info("Timezone revalidated", "timezone", calculator.Location().String())
				}
				continue
			}
			break wait
		}
	}
	log.Info("Shutting down server...")

	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		return err
	}

	log.Info("Server exited")
	return nil
}

func newRateCache(ctx context.Context, cfg *config.Config, log *logger.Logger) (ports.RateCache, func(), error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:      cfg.Cache.Redis.Addr,
			Password:  cfg.Cache.Redis.Password,
			DB:        cfg.Cache.Redis.DB,
			KeyPrefix: cfg.Cache.Redis.KeyPrefix,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return rc, func() { _ = rc.Close() }, nil
	default:
		mc, err := cache.NewMemoryCache(cfg.Cache.MaxSize, cfg.Cache.MaxTTL, log)
		if err != nil {
			return nil, nil, err
		}
		return mc, func() {}, nil
	}
}

// refreshRates keeps the latest fixing warm. The wait between refreshes is
// the cache duration of the current policy, so the CNB is polled often
// around publication and rarely otherwise.
func refreshRates(ctx context.Context, svc *service.ExchangeService, log *logger.Logger) {
	for {
		if err := svc.RefreshRates(ctx); err != nil {
			log.Error("Failed to refresh rates", "error", err)
		}

		interval := minRefreshInterval
		if p, err := svc.CurrentPolicy(); err == nil && p.Duration > interval {
			interval = p.Duration
		}

		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			log.Info("Stopping rate refresh goroutine")
			return
		}
	}
}

func refreshDNS(ctx context.Context, resolver *dnscache.Resolver, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			resolver.Refresh(true)
		case <-ctx.Done():
			return
		}
	}
}
