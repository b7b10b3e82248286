// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Bus      BusConfig      `mapstructure:"bus"`
	Huntflow HuntflowConfig `mapstructure:"huntflow"`
	Intranet IntranetConfig `mapstructure:"intranet"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BusConfig holds the Kafka service-bus settings.
type BusConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	InboundTopic  string   `mapstructure:"inbound_topic"`
	OutboundTopic string   `mapstructure:"outbound_topic"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	ClientID      string   `mapstructure:"client_id"`
	ServiceName   string   `mapstructure:"service_name"`
}

// HuntflowConfig holds settings for the applicant-tracking API.
type HuntflowConfig struct {
	BaseURL         string       `mapstructure:"base_url"`
	Token           string       `mapstructure:"token"`
	AccountID       int64        `mapstructure:"account_id"`
	VacancyID       int64        `mapstructure:"vacancy_id"`
	AccountSource   string       `mapstructure:"account_source"`
	Timeout         int          `mapstructure:"timeout"` // milliseconds
	PageConcurrency int          `mapstructure:"page_concurrency"`
	Statuses        StatusConfig `mapstructure:"statuses"`
}

// StatusConfig holds the four pipeline status ids the service cares about.
type StatusConfig struct {
	Init          int64 `mapstructure:"init"`
	SecurityCheck int64 `mapstructure:"security_check"`
	Rejected      int64 `mapstructure:"rejected"`
	Reserve       int64 `mapstructure:"reserve"`
}

// IntranetConfig holds settings for the directory-lookup API.
type IntranetConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// SyncConfig holds settings for the reconciliation scheduler.
type SyncConfig struct {
	IntervalMinutes int    `mapstructure:"interval_minutes"`
	LockKey         string `mapstructure:"lock_key"`
	LockTTLSeconds  int    `mapstructure:"lock_ttl_seconds"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
