package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the service.
// It is built once in main and passed to the components that need it.
type Config struct {
	Port        string
	Environment string
	ServiceName string

	DatabaseURL string

	LogLevel string
	LogFile  string

	HealthMessage string

	// Museum scoring
	FirstViewPoints int

	// AR video scoring
	PointsPerVideo   int
	FirstUploadBonus int
	MaxVideoMB       int
	AllowedVideoMIME string
	MediaDir         string

	// Auth
	JWTSecret      []byte
	AccessTokenTTL time.Duration

	// CORS
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	// Redis (optional)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	ScoreCacheTTL time.Duration

	// Rate limiting (requires redis)
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Email delivery
	AWSRegion     string
	SESFromEmail  string
	SESFromName   string
	PublicBaseURL string

	// Video storage
	S3Bucket   string
	CDNBaseURL string

	// Promo notifier
	NotifierWorkers    int
	NotifierMaxRetries int
	NotifierBaseDelay  time.Duration

	// Tracing
	OTLPEndpoint     string
	TracingEnabled   bool
	TraceSampleRatio float64
}

// Load reads the .env file (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8787"),
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		ServiceName: getEnvOrDefault("SERVICE_NAME", "arb-backend"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:  getEnvOrDefault("LOG_FILE", "server.log"),

		HealthMessage: getEnvOrDefault("HEALTH_MESSAGE", "ok"),

		AllowedVideoMIME: getEnvOrDefault("ALLOWED_VIDEO_MIME", "video/mp4"),
		MediaDir:         getEnvOrDefault("MEDIA_DIR", "media/videos"),

		JWTSecret: []byte(os.Getenv("JWT_SECRET")),

		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		AWSRegion:     os.Getenv("AWS_REGION"),
		SESFromEmail:  os.Getenv("SES_FROM_EMAIL"),
		SESFromName:   getEnvOrDefault("SES_FROM_NAME", "ARB Museum"),
		PublicBaseURL: os.Getenv("PUBLIC_BASE_URL"),

		S3Bucket:   os.Getenv("AWS_BUCKET"),
		CDNBaseURL: os.Getenv("CDN_BASE_URL"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	var err error
	ints := []struct {
		key  string
		def  int
		dest *int
	}{
		{"FIRST_VIEW_POINTS", 10, &cfg.FirstViewPoints},
		{"POINTS_PER_VIDEO", 10, &cfg.PointsPerVideo},
		{"FIRST_UPLOAD_BONUS", 50, &cfg.FirstUploadBonus},
		{"MAX_VIDEO_MB", 50, &cfg.MaxVideoMB},
		{"RATE_LIMIT_REQUESTS", 0, &cfg.RateLimitRequests},
		{"NOTIFIER_WORKERS", 2, &cfg.NotifierWorkers},
		{"NOTIFIER_MAX_RETRIES", 5, &cfg.NotifierMaxRetries},
	}
	for _, v := range ints {
		if *v.dest, err = getIntOrDefault(v.key, v.def); err != nil {
			return nil, err
		}
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"ACCESS_TOKEN_TTL", 30 * time.Minute, &cfg.AccessTokenTTL},
		{"SCORE_CACHE_TTL", 10 * time.Minute, &cfg.ScoreCacheTTL},
		{"RATE_LIMIT_WINDOW", time.Minute, &cfg.RateLimitWindow},
		{"NOTIFIER_BASE_DELAY", 2 * time.Second, &cfg.NotifierBaseDelay},
	}
	for _, v := range durations {
		if *v.dest, err = getDurationOrDefault(v.key, v.def); err != nil {
			return nil, err
		}
	}

	if cfg.CORSAllowCredentials, err = getBoolOrDefault("CORS_ALLOW_CREDENTIALS", false); err != nil {
		return nil, err
	}
	if cfg.TracingEnabled, err = getBoolOrDefault("OTEL_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.TraceSampleRatio, err = getFloatOrDefault("OTEL_SAMPLE_RATIO", 1.0); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would make the scoring rules meaningless.
func (c *Config) Validate() error {
	if c.FirstViewPoints <= 0 {
		return fmt.Errorf("FIRST_VIEW_POINTS must be positive, got %d", c.FirstViewPoints)
	}
	if c.PointsPerVideo < 0 {
		return fmt.Errorf("POINTS_PER_VIDEO must not be negative, got %d", c.PointsPerVideo)
	}
	if c.FirstUploadBonus < 0 {
		return fmt.Errorf("FIRST_UPLOAD_BONUS must not be negative, got %d", c.FirstUploadBonus)
	}
	if c.MaxVideoMB <= 0 {
		return fmt.Errorf("MAX_VIDEO_MB must be positive, got %d", c.MaxVideoMB)
	}
	if c.NotifierWorkers <= 0 {
		c.NotifierWorkers = 1
	}
	return nil
}

// IsProduction reports whether the service runs with ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// MaxVideoBytes is the upload limit in bytes.
func (c *Config) MaxVideoBytes() int64 {
	return int64(c.MaxVideoMB) * 1024 * 1024
}

// RedisEnabled reports whether a redis host was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getBoolOrDefault(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getFloatOrDefault(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
