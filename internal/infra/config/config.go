package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig       `mapstructure:"server"`
	Database       DatabaseConfig     `mapstructure:"database"     validate:"required"`
	Audit          AuditConfig        `mapstructure:"audit"        validate:"required"`
	Verification   VerificationConfig `mapstructure:"verification"`
	ServiceVersion string
}

type ServerConfig struct {
	Port int    `mapstructure:"port" validate:"required,gte=1024,lte=65535"`
	Mode string `mapstructure:"mode" validate:"required,oneof=development production"`
}

// DatabaseConfig represents the Postgres connection pool configuration.
type DatabaseConfig struct {
	URL               string        `mapstructure:"url" validate:"required"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// AuditConfig holds the keyed-hash secret configuration. The HMAC key is
// either supplied directly (base64, local/dev) or decrypted from a KMS
// ciphertext at startup (production).
type AuditConfig struct {
	HMACKey string    `mapstructure:"hmac_key"`
	KMS     KMSConfig `mapstructure:"kms"`
}

type KMSConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Region       string `mapstructure:"region"        validate:"required_if=Enabled true"`
	KeyARN       string `mapstructure:"key_arn"       validate:"required_if=Enabled true"`
	EncryptedKey string `mapstructure:"encrypted_key" validate:"required_if=Enabled true"`
}

type VerificationConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	BatchSize   int           `mapstructure:"batch_size"`
	Incremental bool          `mapstructure:"incremental"`
}

func Load(path string) (*Config, error) {
	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("config")
		vip.AddConfigPath("./configs")
		vip.AddConfigPath(".")
	}

	vip.SetConfigType("yaml")
	vip.SetEnvPrefix("AUDITCHAIN")
	vip.AutomaticEnv()
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	vip.SetDefault("server.port", 8084)
	vip.SetDefault("server.mode", "development")
	vip.SetDefault("database.max_conns", 8)
	vip.SetDefault("database.min_conns", 2)
	vip.SetDefault("verification.interval", "1h")
	vip.SetDefault("verification.batch_size", 500)
	vip.SetDefault("verification.incremental", true)

	if err := vip.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if !cfg.Audit.KMS.Enabled && cfg.Audit.HMACKey == "" {
		return nil, fmt.Errorf("config validation failed: audit.hmac_key is required when audit.kms is disabled")
	}

	cfg.ServiceVersion = getenv("AUDITCHAIN_SERVICE_VERSION", "unknown")

	return &cfg, nil
}

// getenv returns an environment variable or a default value.
func getenv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
