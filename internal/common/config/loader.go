// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like HUNTFLOW_TOKEN
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored if not found
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from multiple possible locations (the binary may be started
// from the repo root or from cmd/sync-manager during development).
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.Huntflow.BaseURL == "" {
		if val := os.Getenv("APP_HUNTFLOW_API"); val != "" {
			cfg.Huntflow.BaseURL = val
		}
	}
	if cfg.Huntflow.Token == "" {
		if val := os.Getenv("APP_HUNTFLOW_TOKEN"); val != "" {
			cfg.Huntflow.Token = val
		}
	}

	if cfg.Intranet.BaseURL == "" {
		if val := os.Getenv("IE_INTRANET_AD_API"); val != "" {
			cfg.Intranet.BaseURL = val
		}
	}
	if cfg.Intranet.Token == "" {
		if val := os.Getenv("APP_TOKEN"); val != "" {
			cfg.Intranet.Token = val
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// Bus defaults
	if cfg.Bus.ConsumerGroup == "" {
		cfg.Bus.ConsumerGroup = "huntflow-sync"
	}
	if cfg.Bus.ServiceName == "" {
		cfg.Bus.ServiceName = "huntflow-sync"
	}
	if cfg.Bus.ClientID == "" {
		cfg.Bus.ClientID = cfg.Bus.ServiceName
	}

	// Huntflow defaults
	if cfg.Huntflow.Timeout == 0 {
		cfg.Huntflow.Timeout = 30000
	}
	if cfg.Huntflow.PageConcurrency == 0 {
		cfg.Huntflow.PageConcurrency = 5
	}

	if cfg.Intranet.Timeout == 0 {
		cfg.Intranet.Timeout = 10000
	}

	// Sync defaults
	if cfg.Sync.IntervalMinutes == 0 {
		cfg.Sync.IntervalMinutes = 5
	}
	if cfg.Sync.LockKey == "" {
		cfg.Sync.LockKey = "huntflow-sync:run-lock"
	}
	if cfg.Sync.LockTTLSeconds == 0 {
		cfg.Sync.LockTTLSeconds = 240
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	if len(cfg.Bus.Brokers) == 0 {
		return fmt.Errorf("bus.brokers is required")
	}
	if cfg.Bus.InboundTopic == "" {
		return fmt.Errorf("bus.inbound_topic is required")
	}
	if cfg.Bus.OutboundTopic == "" {
		return fmt.Errorf("bus.outbound_topic is required")
	}

	if cfg.Huntflow.BaseURL == "" {
		return fmt.Errorf("huntflow.base_url is required")
	}
	if cfg.Huntflow.AccountID == 0 {
		return fmt.Errorf("huntflow.account_id is required")
	}
	if cfg.Huntflow.VacancyID == 0 {
		return fmt.Errorf("huntflow.vacancy_id is required")
	}

	if cfg.Intranet.BaseURL == "" {
		return fmt.Errorf("intranet.base_url is required")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
