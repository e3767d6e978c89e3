package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kgarg2468/Skintel/internal/analysis"
	apperrors "github.com/kgarg2468/Skintel/internal/errors"
	"github.com/kgarg2468/Skintel/internal/imaging"
)

const DefaultPath = "configs/default.yaml"

type Config struct {
	Port           string
	GinMode        string
	LogLevel       slog.Level
	RequestTimeout time.Duration

	MaxUploadBytes int64
	MaxImagePixels int64
	AnalysisSize   int

	ScorerSeed     uint64
	ScorerSeedMode analysis.SeedMode

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitPerMin   int
	AnalyzePerMin     int
	AllowedOrigins    []string
	TrustedProxies    []string // IPs or CIDRs whose X-Forwarded-For is believed
	EnableHSTS        bool
	EnableCompression bool
}

type configFile struct {
	Server struct {
		Port                  string `yaml:"port"`
		GinMode               string `yaml:"gin_mode"`
		LogLevel              string `yaml:"log_level"`
		RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
		EnableCompression     *bool  `yaml:"enable_compression"`
	} `yaml:"server"`
	Analysis struct {
		MaxUploadBytes int64   `yaml:"max_upload_bytes"`
		MaxImagePixels int64   `yaml:"max_image_pixels"`
		AnalysisSize   int     `yaml:"analysis_size"`
		Seed           *uint64 `yaml:"seed"`
		SeedMode       string  `yaml:"seed_mode"`
	} `yaml:"analysis"`
	Security struct {
		AllowedOrigins  []string `yaml:"allowed_origins"`
		TrustedProxies  []string `yaml:"trusted_proxies"`
		EnableHSTS      *bool    `yaml:"enable_hsts"`
		RateLimitPerMin int      `yaml:"rate_limit_per_min"`
		AnalyzePerMin   int      `yaml:"analyze_per_min"`
	} `yaml:"security"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

func Defaults() Config {
	return Config{
		Port:              "8080",
		GinMode:           "release",
		LogLevel:          slog.LevelInfo,
		RequestTimeout:    30 * time.Second,
		MaxUploadBytes:    imaging.DefaultMaxUploadBytes,
		MaxImagePixels:    imaging.DefaultMaxPixels,
		AnalysisSize:      imaging.DefaultAnalysisSize,
		ScorerSeed:        analysis.DefaultSeed,
		ScorerSeedMode:    analysis.SeedModeProcess,
		RateLimitPerMin:   60,
		AnalyzePerMin:     10,
		AllowedOrigins:    []string{"http://localhost:8080"},
		EnableCompression: true,
	}
}

// Load layers defaults, the YAML file at path, a .env file and the process
// environment, later sources winning. A missing file or .env is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.applyFile(raw); err != nil {
				return Config{}, apperrors.NewConfigurationError("parse config file "+path, err)
			}
		case !os.IsNotExist(err):
			return Config{}, apperrors.NewConfigurationError("read config file "+path, err)
		}
	}

	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}

	if f.Server.Port != "" {
		c.Port = f.Server.Port
	}
	if f.Server.GinMode != "" {
		c.GinMode = f.Server.GinMode
	}
	if f.Server.LogLevel != "" {
		if err := c.LogLevel.UnmarshalText([]byte(f.Server.LogLevel)); err != nil {
			return err
		}
	}
	if f.Server.RequestTimeoutSeconds > 0 {
		c.RequestTimeout = time.Duration(f.Server.RequestTimeoutSeconds) * time.Second
	}
	if f.Server.EnableCompression != nil {
		c.EnableCompression = *f.Server.EnableCompression
	}

	if f.Analysis.MaxUploadBytes > 0 {
		c.MaxUploadBytes = f.Analysis.MaxUploadBytes
	}
	if f.Analysis.MaxImagePixels > 0 {
		c.MaxImagePixels = f.Analysis.MaxImagePixels
	}
	if f.Analysis.AnalysisSize > 0 {
		c.AnalysisSize = f.Analysis.AnalysisSize
	}
	if f.Analysis.Seed != nil {
		c.ScorerSeed = *f.Analysis.Seed
	}
	if f.Analysis.SeedMode != "" {
		mode, err := analysis.ParseSeedMode(f.Analysis.SeedMode)
		if err != nil {
			return err
		}
		c.ScorerSeedMode = mode
	}

	if len(f.Security.AllowedOrigins) > 0 {
		c.AllowedOrigins = f.Security.AllowedOrigins
	}
	if len(f.Security.TrustedProxies) > 0 {
		c.TrustedProxies = f.Security.TrustedProxies
	}
	if f.Security.EnableHSTS != nil {
		c.EnableHSTS = *f.Security.EnableHSTS
	}
	if f.Security.RateLimitPerMin > 0 {
		c.RateLimitPerMin = f.Security.RateLimitPerMin
	}
	if f.Security.AnalyzePerMin > 0 {
		c.AnalyzePerMin = f.Security.AnalyzePerMin
	}

	if f.Redis.Addr != "" {
		c.RedisAddr = f.Redis.Addr
	}
	if f.Redis.Password != "" {
		c.RedisPassword = f.Redis.Password
	}
	if f.Redis.DB > 0 {
		c.RedisDB = f.Redis.DB
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnvOrDefault("PORT", c.Port)
	c.GinMode = getEnvOrDefault("GIN_MODE", c.GinMode)
	c.RedisAddr = getEnvOrDefault("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", c.RedisPassword)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return envError("LOG_LEVEL", v, err)
		}
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return envError("MAX_UPLOAD_BYTES", v, err)
		}
		c.MaxUploadBytes = n
	}
	if v := os.Getenv("MAX_IMAGE_PIXELS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return envError("MAX_IMAGE_PIXELS", v, err)
		}
		c.MaxImagePixels = n
	}
	if v := os.Getenv("SCORER_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return envError("SCORER_SEED", v, err)
		}
		c.ScorerSeed = n
	}
	if v := os.Getenv("SCORER_SEED_MODE"); v != "" {
		mode, err := analysis.ParseSeedMode(v)
		if err != nil {
			return envError("SCORER_SEED_MODE", v, err)
		}
		c.ScorerSeedMode = mode
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		c.TrustedProxies = splitList(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"ANALYSIS_SIZE", &c.AnalysisSize},
		{"REDIS_DB", &c.RedisDB},
		{"RATE_LIMIT_PER_MIN", &c.RateLimitPerMin},
		{"ANALYZE_PER_MIN", &c.AnalyzePerMin},
	}
	for _, e := range ints {
		if v := os.Getenv(e.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return envError(e.key, v, err)
			}
			*e.dst = n
		}
	}

	if v := os.Getenv("REQUEST_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("REQUEST_TIMEOUT_SECONDS", v, err)
		}
		c.RequestTimeout = time.Duration(n) * time.Second
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"ENABLE_HSTS", &c.EnableHSTS},
		{"ENABLE_COMPRESSION", &c.EnableCompression},
	}
	for _, e := range bools {
		if v := os.Getenv(e.key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return envError(e.key, v, err)
			}
			*e.dst = b
		}
	}
	return nil
}

// Validate rejects configurations the server cannot run with
func (c Config) Validate() error {
	switch {
	case c.Port == "":
		return apperrors.NewConfigurationError("port must not be empty", nil)
	case c.MaxUploadBytes <= 0:
		return apperrors.NewConfigurationError("max upload bytes must be positive", nil)
	case c.MaxImagePixels <= 0:
		return apperrors.NewConfigurationError("max image pixels must be positive", nil)
	case c.AnalysisSize < 16:
		return apperrors.NewConfigurationError("analysis size must be at least 16 pixels", nil)
	case c.RateLimitPerMin <= 0 || c.AnalyzePerMin <= 0:
		return apperrors.NewConfigurationError("rate limits must be positive", nil)
	case c.RequestTimeout <= 0:
		return apperrors.NewConfigurationError("request timeout must be positive", nil)
	}
	for _, proxy := range c.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return apperrors.NewConfigurationError(fmt.Sprintf("invalid trusted proxy %q", proxy), err)
			}
		}
	}
	return nil
}

// ImagingOptions derives preprocessing options from the configuration
func (c Config) ImagingOptions() imaging.Options {
	opts := imaging.DefaultOptions()
	opts.MaxUploadBytes = c.MaxUploadBytes
	opts.AnalysisSize = c.AnalysisSize
	opts.MaxPixels = c.MaxImagePixels
	return opts
}

func (c Config) ScorerConfig() analysis.ScorerConfig {
	cfg := analysis.DefaultScorerConfig()
	cfg.Seed = c.ScorerSeed
	cfg.Mode = c.ScorerSeedMode
	return cfg
}

func envError(key, value string, err error) error {
	return apperrors.NewConfigurationError(fmt.Sprintf("invalid %s=%q", key, value), err)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
