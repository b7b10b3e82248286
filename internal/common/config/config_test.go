package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validTestConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "huntflow_sync",
				User:     "app",
				Password: "secret",
				SSLMode:  "disable",
			},
			Redis: RedisConfig{Address: "localhost:6379"},
		},
		Bus: BusConfig{
			Brokers:       []string{"localhost:9092"},
			InboundTopic:  "referral-events",
			OutboundTopic: "applicant-events",
		},
		Huntflow: HuntflowConfig{
			BaseURL:   "https://api.huntflow.local",
			AccountID: 11,
			VacancyID: 22,
		},
		Intranet: IntranetConfig{BaseURL: "https://intranet.local"},
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := validTestConfig()
	applyDefaults(cfg)

	assert.Equal(t, 25, cfg.Database.Postgres.MaxConnections)
	assert.Equal(t, "huntflow-sync", cfg.Bus.ConsumerGroup)
	assert.Equal(t, "huntflow-sync", cfg.Bus.ClientID)
	assert.Equal(t, 30000, cfg.Huntflow.Timeout)
	assert.Equal(t, 5, cfg.Huntflow.PageConcurrency)
	assert.Equal(t, 5, cfg.Sync.IntervalMinutes)
	assert.Equal(t, "huntflow-sync:run-lock", cfg.Sync.LockKey)
	assert.Equal(t, 240, cfg.Sync.LockTTLSeconds)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := validTestConfig()
	cfg.Bus.ClientID = "sync-replica-1"
	cfg.Sync.IntervalMinutes = 15
	applyDefaults(cfg)

	assert.Equal(t, "sync-replica-1", cfg.Bus.ClientID)
	assert.Equal(t, 15, cfg.Sync.IntervalMinutes)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{name: "missing postgres host", mutate: func(c *Config) { c.Database.Postgres.Host = "" }},
		{name: "missing redis address", mutate: func(c *Config) { c.Database.Redis.Address = "" }},
		{name: "missing brokers", mutate: func(c *Config) { c.Bus.Brokers = nil }},
		{name: "missing inbound topic", mutate: func(c *Config) { c.Bus.InboundTopic = "" }},
		{name: "missing huntflow base url", mutate: func(c *Config) { c.Huntflow.BaseURL = "" }},
		{name: "missing vacancy id", mutate: func(c *Config) { c.Huntflow.VacancyID = 0 }},
		{name: "missing intranet base url", mutate: func(c *Config) { c.Intranet.BaseURL = "" }},
	}

	assert.NoError(t, validateConfig(validTestConfig()))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestGetDSN(t *testing.T) {
	dsn := validTestConfig().Database.Postgres.GetDSN()
	assert.Equal(t, "host=localhost port=5432 user=app password=secret dbname=huntflow_sync sslmode=disable", dsn)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, GetDuration(30000))
	assert.Equal(t, time.Duration(0), GetDuration(0))
}
