package main

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/kgarg2468/Skintel/docs"
	"github.com/kgarg2468/Skintel/internal/analysis"
	"github.com/kgarg2468/Skintel/internal/cache"
	"github.com/kgarg2468/Skintel/internal/config"
	apperrors "github.com/kgarg2468/Skintel/internal/errors"
	"github.com/kgarg2468/Skintel/internal/frontend"
	"github.com/kgarg2468/Skintel/internal/middleware"
	"github.com/kgarg2468/Skintel/internal/monitoring"
	"github.com/kgarg2468/Skintel/internal/privacy"
	"github.com/kgarg2468/Skintel/internal/ratelimit"
	"github.com/kgarg2468/Skintel/internal/security"
)

// server holds everything the handlers share
type server struct {
	cfg         config.Config
	analyzer    *analysis.Analyzer
	pages       *frontend.Pages
	static      fs.FS
	privacy     *privacy.PrivacyService
	metrics     *monitoring.Metrics
	logger      *monitoring.Logger
	limiter     *ratelimit.RateLimiter
	redis       *ratelimit.RedisClient
	compression *middleware.CompressionMiddleware
	catalog     *cache.Cache
	started     time.Time
}

func (s *server) routes() *gin.Engine {
	r := gin.New()

	sec := security.NewSecurityMiddleware(security.SecurityConfig{
		AllowedOrigins: s.cfg.AllowedOrigins,
		TrustedProxies: s.cfg.TrustedProxies,
		RequestTimeout: s.cfg.RequestTimeout,
		EnableHSTS:     s.cfg.EnableHSTS,
	})

	if err := sec.TrustProxies(r); err != nil {
		s.logger.Error("Ignoring trusted proxies", "error", err)
	}

	r.Use(middleware.RequestID())
	r.Use(apperrors.RecoveryHandler())
	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(s.logger, s.cfg.MaxUploadBytes))
	r.Use(sec.Headers()...)
	if s.cfg.EnableCompression {
		r.Use(s.compression.Handler())
	}
	r.Use(apperrors.ErrorHandler())

	r.GET("/health", s.handleHealth)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	limited := r.Group("/", s.limiter.IPRateLimitMiddleware())
	analyzeLimit := s.limiter.EndpointRateLimitMiddleware("analyze", s.cfg.AnalyzePerMin)

	limited.GET("/", s.pages.Index)
	limited.GET("/static/*filepath", frontend.StaticHandler(s.static))
	limited.POST("/analyze", analyzeLimit, sec.RequestTimeout, s.handleAnalyzePage)
	limited.GET("/metrics", s.handleMetrics)

	api := limited.Group("/api/v1", sec.CORS())
	api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	api.POST("/analyze", analyzeLimit, sec.ValidateContentType, sec.RequestTimeout, s.handleAnalyzeAPI)
	catalog := s.catalog.Middleware(s.metrics)
	api.GET("/conditions", catalog, s.handleConditions)
	api.GET("/privacy", catalog, s.handlePrivacy)

	return r
}
