package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	APIRoot       string `env:"API_ROOT" envDefault:"/api"`
	AppEnv        string `env:"APP_ENV" envDefault:"development"`
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	JWTSecret           string `env:"JWT_SECRET"`
	JWTIssuer           string `env:"JWT_ISSUER" envDefault:"growth-hungry"`
	JWTAudience         string `env:"JWT_AUDIENCE" envDefault:"gh-users"`
	JWTTTLMinutes       int    `env:"JWT_TTL_MINUTES" envDefault:"30"`
	JWTClockSkewSeconds int    `env:"JWT_CLOCK_SKEW_SECONDS" envDefault:"60"`

	AIBaseURL      string `env:"AI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`
	AIAPIKey       string `env:"AI_API_KEY"`
	AIDefaultModel string `env:"AI_DEFAULT_MODEL" envDefault:"gemini-2.5-flash"`
	AITimeoutMS    int    `env:"AI_TIMEOUT_MS" envDefault:"15000"`
	AIKeyPlacement string `env:"AI_KEY_PLACEMENT" envDefault:"query"`

	RedisAddr               string   `env:"REDIS_ADDR"`
	RedisPassword           string   `env:"REDIS_PASSWORD"`
	RedisDB                 int      `env:"REDIS_DB" envDefault:"0"`
	ChatRateLimitPerMinute  int      `env:"CHAT_RATE_LIMIT_PER_MINUTE" envDefault:"20"`
	LoginRateLimitPerMinute int      `env:"LOGIN_RATE_LIMIT_PER_MINUTE" envDefault:"10"`
	UserCacheTTLSeconds     int      `env:"USER_CACHE_TTL_SECONDS" envDefault:"300"`
	SectionHistoryLimit     int      `env:"SECTION_HISTORY_LIMIT" envDefault:"50"`
	CORSAllowedOrigins      []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`
}

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required when STORAGE_DRIVER=postgres")
	ErrUnknownStorage     = errors.New("STORAGE_DRIVER must be postgres or memory")
	ErrKeyPlacement       = errors.New("AI_KEY_PLACEMENT must be query or header")
)

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa combinaciones que env no puede expresar con tags.
func (c *Config) Validate() error {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return ErrMissingDatabaseURL
		}
	case StorageDriverMemory:
	default:
		return ErrUnknownStorage
	}

	c.AIKeyPlacement = strings.ToLower(strings.TrimSpace(c.AIKeyPlacement))
	if c.AIKeyPlacement != "query" && c.AIKeyPlacement != "header" {
		return ErrKeyPlacement
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLMinutes) * time.Minute
}

func (c *Config) JWTClockSkew() time.Duration {
	return time.Duration(c.JWTClockSkewSeconds) * time.Second
}

func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AITimeoutMS) * time.Millisecond
}

func (c *Config) UserCacheTTL() time.Duration {
	return time.Duration(c.UserCacheTTLSeconds) * time.Second
}
