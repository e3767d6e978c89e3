// Command server runs the Skintel web application and JSON API.
//
//	@title			Skintel API
//	@version		1.0
//	@description	Skin photo screening: feature extraction, condition scoring and recommendations.
//	@BasePath		/
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kgarg2468/Skintel/internal/analysis"
	"github.com/kgarg2468/Skintel/internal/cache"
	"github.com/kgarg2468/Skintel/internal/config"
	"github.com/kgarg2468/Skintel/internal/frontend"
	"github.com/kgarg2468/Skintel/internal/imaging"
	"github.com/kgarg2468/Skintel/internal/middleware"
	"github.com/kgarg2468/Skintel/internal/monitoring"
	"github.com/kgarg2468/Skintel/internal/privacy"
	"github.com/kgarg2468/Skintel/internal/ratelimit"
	"github.com/kgarg2468/Skintel/internal/recommend"
)

const (
	runtimeSampleInterval = 30 * time.Second
	heapWarnBytes         = 512 * 1024 * 1024
	catalogCacheTTL       = 10 * time.Minute
	shutdownTimeout       = 30 * time.Second
)

func main() {
	cfg, err := config.Load(getEnvOrDefault("CONFIG_PATH", config.DefaultPath))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := monitoring.NewLogger(cfg.LogLevel)
	slog.SetDefault(appLogger.Logger)
	gin.SetMode(cfg.GinMode)

	appMetrics := monitoring.NewMetrics()

	redisStart := time.Now()
	redisClient, err := ratelimit.NewRedisClient(context.Background(), ratelimit.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if cfg.RedisAddr != "" {
		appLogger.DependencyLogger("redis", "connect", time.Since(redisStart), err)
	}
	defer redisClient.Close()

	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.Config{
		IPLimitPerMin:      cfg.RateLimitPerMin,
		AnalyzeLimitPerMin: cfg.AnalyzePerMin,
	}, appMetrics)
	defer limiter.Close()

	renderer, err := frontend.NewRenderer()
	if err != nil {
		slog.Error("Failed to load page templates", "error", err)
		os.Exit(1)
	}
	static, err := frontend.StaticFS()
	if err != nil {
		slog.Error("Failed to load static assets", "error", err)
		os.Exit(1)
	}

	privacyService := privacy.NewService()
	analyzer := analysis.NewAnalyzer(
		imaging.NewPipeline(cfg.ImagingOptions()),
		analysis.NewScorer(cfg.ScorerConfig()),
		recommend.NewEngine(),
		cfg.MaxUploadBytes,
	)

	catalog := cache.NewCache(catalogCacheTTL)
	defer catalog.Close()

	sampler := monitoring.NewRuntimeSampler(appMetrics, appLogger, runtimeSampleInterval, heapWarnBytes)
	sampler.Start()
	defer sampler.Stop()

	srv := &server{
		cfg:         cfg,
		analyzer:    analyzer,
		pages:       frontend.NewPages(renderer, privacyService.Notice(), cfg.MaxUploadBytes),
		static:      static,
		privacy:     privacyService,
		metrics:     appMetrics,
		logger:      appLogger,
		limiter:     limiter,
		redis:       redisClient,
		compression: middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig()),
		catalog:     catalog,
		started:     time.Now(),
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port, "seed_mode", cfg.ScorerSeedMode, "redis", redisClient.IsEnabled())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
