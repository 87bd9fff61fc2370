package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	Channel      string        `mapstructure:"channel"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// DispatchConfig tunes the delivery queue.
type DispatchConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	BatchPause      time.Duration `mapstructure:"batch_pause"`
	MaxInFlight     int           `mapstructure:"max_in_flight"`
	ActivityLogSize int           `mapstructure:"activity_log_size"`
}

type SettingsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type WorkerConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	ClaimLimit    int           `mapstructure:"claim_limit"`
	StrandedAfter time.Duration `mapstructure:"stranded_after"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	HealthPort    int           `mapstructure:"health_port"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `mapstructure:"prometheus_enabled"`
	MetricsPath       string `mapstructure:"metrics_path"`
	Namespace         string `mapstructure:"namespace"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Settings   SettingsConfig   `mapstructure:"settings"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Log        LogConfig        `mapstructure:"log"`
	AWS        AWSConfig        `mapstructure:"aws"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "church_admin")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.channel", "communication.events")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("dispatch.batch_size", 100)
	v.SetDefault("dispatch.batch_pause", time.Second)
	v.SetDefault("dispatch.max_in_flight", 1)
	v.SetDefault("dispatch.activity_log_size", 4)

	v.SetDefault("settings.cache_ttl", time.Minute)

	v.SetDefault("worker.poll_interval", 30*time.Second)
	v.SetDefault("worker.claim_limit", 10)
	v.SetDefault("worker.stranded_after", 15*time.Minute)
	v.SetDefault("worker.retry_delay", 5*time.Minute)
	v.SetDefault("worker.health_port", 8081)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"})

	v.SetDefault("monitoring.prometheus_enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.namespace", "church_admin")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("aws.region", "us-east-1")
}

// LoadConfig reads config.yml from the usual locations and overlays the
// environment (DATABASE_HOST, DISPATCH_BATCH_SIZE, ...). A missing file is
// not an error; defaults and the environment are enough to boot.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")           // current directory
	v.AddConfigPath("./config")    // config subdirectory
	v.AddConfigPath("/app")        // container root directory
	v.AddConfigPath("/app/config") // container config directory

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects values the dispatch queue and worker cannot run with.
func (c *Config) Validate() error {
	if c.Dispatch.BatchSize <= 0 {
		return fmt.Errorf("dispatch.batch_size must be greater than 0")
	}
	if c.Dispatch.MaxInFlight <= 0 {
		return fmt.Errorf("dispatch.max_in_flight must be greater than 0")
	}
	if c.Dispatch.BatchPause < 0 {
		return fmt.Errorf("dispatch.batch_pause must not be negative")
	}
	if c.Dispatch.ActivityLogSize <= 0 {
		return fmt.Errorf("dispatch.activity_log_size must be greater than 0")
	}
	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker.poll_interval must be greater than 0")
	}
	if c.Worker.ClaimLimit <= 0 {
		return fmt.Errorf("worker.claim_limit must be greater than 0")
	}
	return nil
}

// WorkerEnv holds per-process worker settings read only from the
// environment (WORKER_ID, WORKER_DISABLE_SUPERVISOR, ...).
type WorkerEnv struct {
	ID                string `envconfig:"ID"`
	DisableScheduler  bool   `envconfig:"DISABLE_SCHEDULER" default:"false"`
	DisableSupervisor bool   `envconfig:"DISABLE_SUPERVISOR" default:"false"`
}

func LoadWorkerEnv() (WorkerEnv, error) {
	var env WorkerEnv
	if err := envconfig.Process("worker", &env); err != nil {
		return env, fmt.Errorf("failed to process worker env: %w", err)
	}
	return env, nil
}
