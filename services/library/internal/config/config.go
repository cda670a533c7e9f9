package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file, relative to the working directory.
const ConfigPath = "config.yaml"

const (
	defaultSessionTTL     = 24 * time.Hour
	defaultJWTLeeway      = 30 * time.Second
	defaultMaxUploadBytes = 5 << 20
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port           string `yaml:"port"`
	DatabaseURL    string `yaml:"databaseURL"`
	DBMaxOpenConns int    `yaml:"dbMaxOpenConns"`
	LogLevel       string `yaml:"logLevel"`

	JWTSecret   string `yaml:"jwtSecret"`
	JWTIssuer   string `yaml:"jwtIssuer"`
	JWTAudience string `yaml:"jwtAudience"`
	JWTLeeway   string `yaml:"jwtLeeway"`
	SessionTTL  string `yaml:"sessionTTL"`

	RedisAddr         string   `yaml:"redisAddr"`
	RedisPassword     string   `yaml:"redisPassword"`
	TrustedProxyCIDRs []string `yaml:"trustedProxyCidrs"`
	CORSOrigins       []string `yaml:"corsOrigins"`

	LoginRateLimitPerMinute    int `yaml:"loginRateLimitPerMinute"`
	RegisterRateLimitPerMinute int `yaml:"registerRateLimitPerMinute"`
	PasswordRateLimitPerMinute int `yaml:"passwordRateLimitPerMinute"`
	ImportRateLimitPerMinute   int `yaml:"importRateLimitPerMinute"`

	MaxUploadBytes int64  `yaml:"maxUploadBytes"`
	ArchiveDir     string `yaml:"archiveDir"`
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	AMQPURL      string `yaml:"amqpURL"`
	AMQPExchange string `yaml:"amqpExchange"`
	EventStream  string `yaml:"eventStream"`

	OTLPEndpoint string `yaml:"otlpEndpoint"`
	OTLPInsecure bool   `yaml:"otlpInsecure"`
}

// ResolvePath returns $LIBRARY_CONFIG when set, else ConfigPath.
func ResolvePath() string {
	if v := strings.TrimSpace(os.Getenv("LIBRARY_CONFIG")); v != "" {
		return v
	}
	return ConfigPath
}

// Load reads config from path (defaults to config.yaml). A .env file in the
// working directory is loaded first when present; variables already set in
// the environment win.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = ResolvePath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString("PORT", &cfg.Port)
	setString("DATABASE_URL", &cfg.DatabaseURL)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("JWT_SECRET", &cfg.JWTSecret)
	setString("JWT_ISSUER", &cfg.JWTIssuer)
	setString("JWT_AUDIENCE", &cfg.JWTAudience)
	setString("JWT_LEEWAY", &cfg.JWTLeeway)
	setString("SESSION_TTL", &cfg.SessionTTL)
	setString("REDIS_ADDR", &cfg.RedisAddr)
	setString("REDIS_PASSWORD", &cfg.RedisPassword)
	setString("LIBRARY_ARCHIVE_DIR", &cfg.ArchiveDir)
	setString("MINIO_ENDPOINT", &cfg.MinioEndpoint)
	setString("MINIO_ACCESS_KEY", &cfg.MinioAccessKey)
	setString("MINIO_SECRET_KEY", &cfg.MinioSecretKey)
	setString("MINIO_BUCKET", &cfg.MinioBucket)
	setString("AMQP_URL", &cfg.AMQPURL)
	setString("AMQP_EXCHANGE", &cfg.AMQPExchange)
	setString("OTLP_ENDPOINT", &cfg.OTLPEndpoint)
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("LIBRARY_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("LIBRARY_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("LIBRARY_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.LoginRateLimitPerMinute <= 0 {
		cfg.LoginRateLimitPerMinute = 20
	}
	if cfg.RegisterRateLimitPerMinute <= 0 {
		cfg.RegisterRateLimitPerMinute = 10
	}
	if cfg.PasswordRateLimitPerMinute <= 0 {
		cfg.PasswordRateLimitPerMinute = 10
	}
	if cfg.ImportRateLimitPerMinute <= 0 {
		cfg.ImportRateLimitPerMinute = 6
	}
	if cfg.EventStream == "" {
		cfg.EventStream = "library:events"
	}
	if cfg.AMQPExchange == "" {
		cfg.AMQPExchange = "library.events"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or PORT)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("config: jwtSecret of at least 32 bytes is required (set in config.yaml or JWT_SECRET)")
	}
	if _, err := ParseDuration(cfg.SessionTTL, defaultSessionTTL); err != nil {
		return fmt.Errorf("config: invalid sessionTTL: %w", err)
	}
	if _, err := ParseDuration(cfg.JWTLeeway, defaultJWTLeeway); err != nil {
		return fmt.Errorf("config: invalid jwtLeeway: %w", err)
	}
	if cfg.MinioEndpoint != "" && (cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "") {
		return errors.New("config: minioAccessKey, minioSecretKey and minioBucket are required with minioEndpoint")
	}
	return nil
}

// SessionTTLDuration returns the parsed session lifetime (default 24h).
func (c FileConfig) SessionTTLDuration() time.Duration {
	d, _ := ParseDuration(c.SessionTTL, defaultSessionTTL)
	return d
}

// JWTLeewayDuration returns the parsed clock-skew leeway (default 30s).
func (c FileConfig) JWTLeewayDuration() time.Duration {
	d, _ := ParseDuration(c.JWTLeeway, defaultJWTLeeway)
	return d
}

// ParseDuration parses raw with time.ParseDuration, returning fallback for an
// empty value. Non-positive durations are rejected.
func ParseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", raw)
	}
	return d, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
