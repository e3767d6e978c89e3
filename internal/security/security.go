package security

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	apperrors "github.com/kgarg2468/Skintel/internal/errors"
)

const maxFilenameLength = 255

// SecurityConfig holds security configuration
type SecurityConfig struct {
	AllowedOrigins []string      `json:"allowed_origins"`
	TrustedProxies []string      `json:"trusted_proxies"`
	RequestTimeout time.Duration `json:"request_timeout"`
	EnableHSTS     bool          `json:"enable_hsts"`
	CSPReportURI   string        `json:"csp_report_uri"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		AllowedOrigins: []string{"http://localhost:8080"},
		RequestTimeout: 30 * time.Second,
	}
}

// SecurityMiddleware bundles the request guards for the upload routes
type SecurityMiddleware struct {
	config SecurityConfig
}

func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultSecurityConfig().RequestTimeout
	}
	return &SecurityMiddleware{config: config}
}

// TrustProxies limits which peers may set the client address through
// X-Forwarded-For. With none configured the socket address is always used,
// so per-IP rate limits cannot be dodged with a forged header.
func (sm *SecurityMiddleware) TrustProxies(r *gin.Engine) error {
	if err := r.SetTrustedProxies(sm.config.TrustedProxies); err != nil {
		_ = r.SetTrustedProxies(nil)
		return apperrors.NewConfigurationError("invalid trusted proxies", err)
	}
	return nil
}

// Headers returns the header and CSP middlewares in the order they must run
func (sm *SecurityMiddleware) Headers() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		SecurityHeadersMiddleware(sm.config.EnableHSTS),
		CSPMiddleware(sm.config.CSPReportURI),
	}
}

// CORS allows the configured origins to call the JSON API. "*" allows any
// origin without credentials.
func (sm *SecurityMiddleware) CORS() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Disposition", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}

	for _, origin := range sm.config.AllowedOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = sm.config.AllowedOrigins
	cfg.AllowCredentials = true
	return cors.New(cfg)
}

// RequestTimeout bounds the request context. Handlers that pass the context
// to the analyzer get a timeout error when it expires.
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}

// ValidateContentType accepts multipart forms and raw image bodies only
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	contentType := strings.ToLower(c.ContentType())

	switch contentType {
	case "multipart/form-data", "image/jpeg", "image/png", "application/octet-stream":
		c.Next()
	case "":
		apperrors.Abort(c, apperrors.NewValidationError("No image provided. Please upload a JPEG or PNG image."))
	default:
		apperrors.Abort(c, apperrors.NewUnsupportedMediaError(contentType))
	}
}

// SanitizeFilename reduces a client-supplied name to a printable base name.
// The result is only ever used for display and for the export file name.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" {
		return ""
	}
	if !utf8.ValidString(name) {
		name = strings.ToValidUTF8(name, "")
	}

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '"' || r == '<' || r == '>' {
			return -1
		}
		return r
	}, name)

	if len(name) > maxFilenameLength {
		cut := maxFilenameLength
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return name
}
