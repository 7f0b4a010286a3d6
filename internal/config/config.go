package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Config is the process configuration: tunables come from an optional config.yaml (viper),
// deployment flags and secrets from the environment (envconfig).
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Security     SecurityConfig     `mapstructure:"security"`
	Database     DatabaseConfig     `mapstructure:"database"`
	AuthProvider AuthProviderConfig `mapstructure:"auth_provider"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Attachments  AttachmentsConfig  `mapstructure:"attachments"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	Timezone     string             `mapstructure:"timezone"`

	Env Env `mapstructure:"-"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	SecureCookies   bool          `mapstructure:"secure_cookies"`
	SessionMaxAge   time.Duration `mapstructure:"session_max_age"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type AuthProviderConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	Retries    int           `mapstructure:"retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// AllowListCacheTTL bounds how long an allow-list answer is reused.
	AllowListCacheTTL time.Duration `mapstructure:"allow_list_cache_ttl"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	Channel      string        `mapstructure:"channel"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type AttachmentsConfig struct {
	// Backend is "none", "s3" or "drive".
	Backend  string      `mapstructure:"backend"`
	MaxBytes int64       `mapstructure:"max_bytes"`
	S3       S3Config    `mapstructure:"s3"`
	Drive    DriveConfig `mapstructure:"drive"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Prefix          string `mapstructure:"prefix"`
}

type DriveConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
}

type WorkerConfig struct {
	StaleUploadsEnabled  bool          `mapstructure:"stale_uploads_enabled"`
	StaleUploadsInterval time.Duration `mapstructure:"stale_uploads_interval"`
	StaleUploadAfter     time.Duration `mapstructure:"stale_upload_after"`
}

// Env holds the deployment flags read from the environment.
type Env struct {
	DemoMode         bool   `envconfig:"DEMO_MODE"`
	DemoDBPath       string `envconfig:"DEMO_DB_PATH" default:".demo-data.local.json"`
	DemoTokenSecret  string `envconfig:"DEMO_TOKEN_SECRET" default:"demo-mode-token-secret"`
	DemoPasswordHash string `envconfig:"DEMO_PASSWORD_HASH"`

	MasterEmail        string `envconfig:"MASTER_EMAIL" default:"maestro@example.com"`
	OdontoEmail        string `envconfig:"ODONTO_EMAIL"`
	AdminEmail         string `envconfig:"ADMIN_EMAIL"`
	AdminModuleEnabled bool   `envconfig:"ADMIN_MODULE_ENABLED" default:"false"`

	Odonto Backend `envconfig:"ODONTO"`
	Admin  Backend `envconfig:"ADMIN"`

	PublicSiteURL  string `envconfig:"PUBLIC_SITE_URL"`
	SiteURL        string `envconfig:"SITE_URL"`
	URL            string `envconfig:"URL"`
	DeployPrimeURL string `envconfig:"DEPLOY_PRIME_URL"`
	DeployURL      string `envconfig:"DEPLOY_URL"`
	VercelURL      string `envconfig:"VERCEL_URL"`

	RedisURL string `envconfig:"REDIS_URL"`
	Port     int    `envconfig:"PORT"`
}

// Backend is the hosted auth + database pair of one module.
type Backend struct {
	SupabaseURL     string `envconfig:"SUPABASE_URL"`
	SupabaseAnonKey string `envconfig:"SUPABASE_ANON_KEY"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
}

func (b Backend) Configured() bool {
	return b.SupabaseURL != "" && b.SupabaseAnonKey != "" && b.DatabaseURL != ""
}

const localResetCallback = "http://localhost:5173/reset/callback"

// SiteBaseURL is the public base URL, taken from the first of the known hosting variables that is set.
func (e Env) SiteBaseURL() string {
	raw := firstNonEmpty(e.PublicSiteURL, e.SiteURL, e.URL, e.DeployPrimeURL, e.DeployURL)
	if raw == "" && e.VercelURL != "" {
		raw = "https://" + e.VercelURL
	}
	return strings.TrimRight(raw, "/")
}

// ResetRedirectURL is where the password reset email sends the user.
func (e Env) ResetRedirectURL() string {
	if base := e.SiteBaseURL(); base != "" {
		return base + "/reset/callback"
	}
	return localResetCallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.secure_cookies", true)
	v.SetDefault("server.session_max_age", 7*24*time.Hour)
	v.SetDefault("server.max_body_bytes", 32<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 1.0)
	v.SetDefault("rate_limit.burst", 5)

	v.SetDefault("security.allowed_origins", []string{})

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("auth_provider.timeout", 10*time.Second)
	v.SetDefault("auth_provider.retries", 2)
	v.SetDefault("auth_provider.retry_delay", 200*time.Millisecond)
	v.SetDefault("auth_provider.allow_list_cache_ttl", time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.channel", "consultorio:events")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 0)

	v.SetDefault("attachments.backend", "none")
	v.SetDefault("attachments.max_bytes", 25<<20)
	for _, k := range []string{"bucket", "region", "endpoint", "access_key_id", "secret_access_key", "prefix"} {
		v.SetDefault("attachments.s3."+k, "")
	}
	for _, k := range []string{"client_id", "client_secret", "refresh_token"} {
		v.SetDefault("attachments.drive."+k, "")
	}

	v.SetDefault("worker.stale_uploads_enabled", true)
	v.SetDefault("worker.stale_uploads_interval", 5*time.Minute)
	v.SetDefault("worker.stale_upload_after", 30*time.Minute)

	v.SetDefault("timezone", "America/Argentina/Buenos_Aires")
}

// Load reads configFile, or config.yaml from . or ./config when configFile is empty. A missing
// file is fine; every key has a default. Keys can also be overridden with CONSULTORIO_<SECTION>_<KEY>.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("CONSULTORIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if cfg.Env.Port != 0 {
		cfg.Server.Port = cfg.Env.Port
	}
	if cfg.Env.RedisURL != "" {
		cfg.Redis.URL = cfg.Env.RedisURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected mode has what it needs.
func (c *Config) Validate() error {
	switch c.Attachments.Backend {
	case "", "none":
	case "s3":
		if c.Attachments.S3.Bucket == "" {
			return errors.New("attachments.s3.bucket is required for the s3 backend")
		}
	case "drive":
		if c.Attachments.Drive.RefreshToken == "" {
			return errors.New("attachments.drive.refresh_token is required for the drive backend")
		}
	default:
		return fmt.Errorf("unknown attachments backend %q", c.Attachments.Backend)
	}

	if c.Env.DemoMode {
		return nil
	}
	if !c.Env.Odonto.Configured() {
		return errors.New("ODONTO_SUPABASE_URL, ODONTO_SUPABASE_ANON_KEY and ODONTO_DATABASE_URL are required outside demo mode")
	}
	if c.Env.AdminModuleEnabled && !c.Env.Admin.Configured() {
		return errors.New("ADMIN_SUPABASE_URL, ADMIN_SUPABASE_ANON_KEY and ADMIN_DATABASE_URL are required when the administrative module is enabled")
	}
	return nil
}
