package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/xef5000/UltimateLogger/logstore/engine"
	"github.com/xef5000/UltimateLogger/logstore/notify"
	"github.com/xef5000/UltimateLogger/logstore/sqlengine"
)

// TickDuration is the length of one batch interval tick.
const TickDuration = 50 * time.Millisecond

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidConfig  = errors.New("invalid config")
)

// Postgres driver choices.
const (
	DriverPGX         = "pgx"
	DriverSQLX        = "sqlx"
	DriverDatabaseSQL = "database-sql"
)

type Config struct {
	Database               DatabaseConfig  `json:"database"`
	Cache                  CacheConfig     `json:"cache"`
	Batch                  BatchConfig     `json:"batch"`
	DisabledLogTypes       []string        `json:"disabled-log-types"`
	Webhooks               []WebhookConfig `json:"webhooks"`
	RetentionPeriodDays    int             `json:"retention-period-days"`
	CleanupIntervalMinutes int             `json:"cleanup-interval-minutes"`
	LogLevel               string          `json:"log-level"`
	LogFormat              string          `json:"log-format"`
	HTTP                   HTTPConfig      `json:"http"`
	Telemetry              TelemetryConfig `json:"telemetry"`
}

type DatabaseConfig struct {
	Type     string         `json:"type"`
	Table    string         `json:"table"`
	SQLite   SQLiteConfig   `json:"sqlite"`
	Postgres PostgresConfig `json:"postgres"`
	Pool     PoolConfig     `json:"pool"`
}

type SQLiteConfig struct {
	File string `json:"file"`
}

type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl-mode"`
	Driver   string `json:"driver"`
}

type PoolConfig struct {
	MaximumPoolSize int `json:"maximum-pool-size"`
}

type CacheConfig struct {
	MaxSize            int `json:"max-size"`
	ExpireAfterMinutes int `json:"expire-after-minutes"`
}

// BatchConfig sizes the persister. The interval is counted in ticks of TickDuration.
type BatchConfig struct {
	Size          int `json:"size"`
	IntervalTicks int `json:"interval-ticks"`
}

// WebhookConfig is one webhook entry. Condition is a bare condition list, e.g. "amount|>|100".
type WebhookConfig struct {
	Type      string `json:"type"`
	URL       string `json:"url"`
	Condition string `json:"condition"`
}

type HTTPConfig struct {
	Listen string `json:"listen"`
}

// TelemetryConfig enables OTLP export when OTLPEndpoint is set.
type TelemetryConfig struct {
	OTLPEndpoint string `json:"otlp-endpoint"`
	ServiceName  string `json:"service-name"`
	ExportLogs   bool   `json:"export-logs"`
}

// Default returns the configuration used for every key the file leaves out.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Type:  "SQLITE",
			Table: "ultimate_logs",
			SQLite: SQLiteConfig{
				File: "logs.db",
			},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "ultimatelogger",
				Username: "postgres",
				Password: "password",
				SSLMode:  "disable",
				Driver:   DriverPGX,
			},
			Pool: PoolConfig{MaximumPoolSize: 10},
		},
		Cache:                  CacheConfig{MaxSize: 100, ExpireAfterMinutes: 5},
		Batch:                  BatchConfig{Size: 100, IntervalTicks: 100},
		DisabledLogTypes:       []string{},
		Webhooks:               []WebhookConfig{},
		RetentionPeriodDays:    30,
		CleanupIntervalMinutes: 60,
		LogLevel:               "info",
		LogFormat:              "console",
		HTTP:                   HTTPConfig{Listen: ":8080"},
		Telemetry:              TelemetryConfig{ServiceName: "ultimatelogger"},
	}
}

// Load reads path over Default() and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, errors.Join(ErrConfigNotFound, err)
		}

		return Config{}, err
	}

	return Parse(data)
}

// Parse decodes YAML over Default() and validates the result. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, errors.Join(ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var problems []error

	if _, err := sqlengine.ParseDialect(c.Database.Type); err != nil {
		problems = append(problems, err)
	}

	if c.Database.Table == "" {
		problems = append(problems, errors.New("database.table must not be empty"))
	}

	switch c.Database.Postgres.Driver {
	case DriverPGX, DriverSQLX, DriverDatabaseSQL:
	default:
		problems = append(problems, fmt.Errorf("database.postgres.driver %q is not one of pgx, sqlx, database-sql",
			c.Database.Postgres.Driver))
	}

	if c.Database.Pool.MaximumPoolSize <= 0 {
		problems = append(problems, errors.New("database.pool.maximum-pool-size must be positive"))
	}

	if c.Cache.MaxSize <= 0 || c.Cache.ExpireAfterMinutes <= 0 {
		problems = append(problems, errors.New("cache.max-size and cache.expire-after-minutes must be positive"))
	}

	if c.Batch.Size <= 0 || c.Batch.IntervalTicks <= 0 {
		problems = append(problems, errors.New("batch.size and batch.interval-ticks must be positive"))
	}

	if c.CleanupIntervalMinutes <= 0 {
		problems = append(problems, errors.New("cleanup-interval-minutes must be positive"))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err)
	}

	if _, err := c.NotifyWebhooks(); err != nil {
		problems = append(problems, err)
	}

	if len(problems) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, problems...)...)
	}

	return nil
}

// BatchInterval converts the configured ticks to a duration.
func (c Config) BatchInterval() time.Duration {
	return time.Duration(c.Batch.IntervalTicks) * TickDuration
}

// Retention is zero when retention-period-days is zero or negative, which disables expiry.
func (c Config) Retention() time.Duration {
	if c.RetentionPeriodDays <= 0 {
		return 0
	}

	return time.Duration(c.RetentionPeriodDays) * 24 * time.Hour
}

func (c Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.ExpireAfterMinutes) * time.Minute
}

// NotifyWebhooks parses every webhook entry.
func (c Config) NotifyWebhooks() ([]notify.WebhookConfig, error) {
	webhooks := make([]notify.WebhookConfig, 0, len(c.Webhooks))

	for i, entry := range c.Webhooks {
		webhook, err := notify.ParseWebhook(entry.Type, entry.URL, entry.Condition)
		if err != nil {
			return nil, fmt.Errorf("webhooks[%d]: %w", i, err)
		}

		webhooks = append(webhooks, webhook)
	}

	return webhooks, nil
}

// EngineOptions translates the configuration into engine options.
func (c Config) EngineOptions() ([]engine.Option, error) {
	webhooks, err := c.NotifyWebhooks()
	if err != nil {
		return nil, err
	}

	return []engine.Option{
		engine.WithBatchSize(c.Batch.Size),
		engine.WithBatchInterval(c.BatchInterval()),
		engine.WithRetention(c.Retention()),
		engine.WithCleanupInterval(c.CleanupInterval()),
		engine.WithCache(c.Cache.MaxSize, c.CacheTTL()),
		engine.WithDisabledTypes(c.DisabledLogTypes...),
		engine.WithWebhooks(webhooks...),
	}, nil
}
