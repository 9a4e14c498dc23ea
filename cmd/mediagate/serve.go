package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"mediagate/internal/config"
	"mediagate/internal/handler"
	"mediagate/internal/metrics"
	"mediagate/internal/middleware"
	"mediagate/internal/repository"
	"mediagate/internal/service"
	"mediagate/internal/video"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

// storeFor opens the rate limit store named by cfg. The returned Pinger is
// nil for the in-process store.
func storeFor(ctx context.Context, cfg config.Config, m *metrics.Registry) (repository.Store, repository.Pinger, func(), error) {
	if cfg.RedisAddr != "" {
		r, err := repository.NewRedisStore(cfg.RedisAddr)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis rate limit store")
		return r, r, func() { r.Close() }, nil
	}

	mem := repository.NewMemoryStore()
	mem.StartJanitor(ctx, cfg.RateLimitJanitorInt, cfg.RateLimitIdleTTL, func(n int) {
		if m != nil {
			m.JanitorEvictions.Add(float64(n))
		}
		log.Debug().Int("evicted", n).Int("clients", mem.Len()).Msg("rate limit janitor sweep")
	})
	log.Info().Msg("using in-memory rate limit store")
	return mem, nil, func() {}, nil
}

func providersFrom(cfg config.Config) []service.Provider {
	out := make([]service.Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		out = append(out, service.Provider{Name: p.Name, URL: p.URL, Priority: p.Priority})
	}
	return service.SortProviders(out)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsRegistry := metrics.NewRegistry()

	store, pinger, closeStore, err := storeFor(ctx, cfg, metricsRegistry)
	if err != nil {
		return err
	}
	defer closeStore()

	limiter := service.NewLimiter(store, service.Policy{
		WindowMs:    cfg.RateLimitWindowMs,
		MaxRequests: cfg.RateLimitMax,
	})
	dispatcher := service.NewDispatcher(cfg.ProviderTimeout,
		service.WithObserver(metrics.NewProviderObserver(metricsRegistry)))
	source := video.NewYouTubeSource(&http.Client{Timeout: 30 * time.Second})
	meta := service.NewMetadataService(source, service.NewInfoCache(cfg.MetadataCacheSize, cfg.MetadataCacheTTL))

	deps := handler.Deps{
		Limiter:        limiter,
		Metadata:       meta,
		Dispatcher:     dispatcher,
		Providers:      providersFrom(cfg),
		Metrics:        metricsRegistry,
		Version:        version,
		TrustForwarded: cfg.TrustForwarded,
		GlobalRPS:      cfg.GlobalRPS,
		GlobalBurst:    cfg.GlobalBurst,
	}
	if pinger != nil {
		deps.Store = pinger
	}
	// admin endpoints only exist when JWT_SECRET is set
	if cfg.JWTSecret != "" {
		deps.AdminAuth = middleware.NewJWTMiddleware([]byte(cfg.JWTSecret), cfg.JWTIssuer, middleware.AdminRole)
		log.Info().Msg("JWT authentication enabled for admin endpoints")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.ListenAddr).
			Int64("window_ms", cfg.RateLimitWindowMs).
			Int64("max_requests", cfg.RateLimitMax).
			Int("providers", len(deps.Providers)).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.GracefulShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info().Msg("server exited")
	return nil
}
