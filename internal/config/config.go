package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Import   ImportConfig   `mapstructure:"import"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
	Path     string `mapstructure:"path"` // directory for SQLite database files
}

type StorageConfig struct {
	LocalPath   string `mapstructure:"local_path"`
	MaxFileSize int64  `mapstructure:"max_file_size"`
}

type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

// ImportConfig controls the CSV import pipeline.
type ImportConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	MaxRows      int           `mapstructure:"max_rows"`
	OutcomeCap   int           `mapstructure:"outcome_cap"`
	DedupPolicy  string        `mapstructure:"dedup_policy"` // "last" or "first"
	JobRetention time.Duration `mapstructure:"job_retention"`
}

// WebhookConfig controls asynchronous webhook delivery.
type WebhookConfig struct {
	Workers          int           `mapstructure:"workers"`
	QueueSize        int           `mapstructure:"queue_size"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	BackoffCap       time.Duration `mapstructure:"backoff_cap"`
	Timeout          time.Duration `mapstructure:"timeout"`
	LogRetentionDays int           `mapstructure:"log_retention_days"`
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path + "/" + d.Name + ".db"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../..")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.pool_size", 10)
	viper.SetDefault("database.path", "./data")
	viper.SetDefault("storage.local_path", "./uploads")
	viper.SetDefault("storage.max_file_size", 10485760)
	viper.SetDefault("auth.jwt_secret", "changeme-secret")
	viper.SetDefault("auth.admin_email", "admin@localhost")
	viper.SetDefault("auth.admin_password", "changeme")
	viper.SetDefault("import.batch_size", 500)
	viper.SetDefault("import.max_rows", 10000)
	viper.SetDefault("import.outcome_cap", 1000)
	viper.SetDefault("import.dedup_policy", "last")
	viper.SetDefault("import.job_retention", "24h")
	viper.SetDefault("webhook.workers", 4)
	viper.SetDefault("webhook.queue_size", 256)
	viper.SetDefault("webhook.max_attempts", 5)
	viper.SetDefault("webhook.backoff_base", "1s")
	viper.SetDefault("webhook.backoff_cap", "30s")
	viper.SetDefault("webhook.timeout", "10s")
	viper.SetDefault("webhook.log_retention_days", 7)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file: defaults plus environment variables
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
