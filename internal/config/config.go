// Package config loads rateguard's CLI configuration from defaults, an
// optional YAML file, RATEGUARD_* environment variables and flags.
package config

import (
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Gate     GateConfig     `mapstructure:"gate"`
	Client   ClientConfig   `mapstructure:"client"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Output   OutputConfig   `mapstructure:"output"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Verbose  bool           `mapstructure:"verbose"`
	DryRun   bool           `mapstructure:"dry_run"`
}

// GateConfig configures the shared rate gate.
type GateConfig struct {
	RPM  float64       `mapstructure:"rpm"`
	Unit time.Duration `mapstructure:"unit"`
}

// ClientConfig configures the generator API client.
type ClientConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// BatchConfig configures batch runs.
type BatchConfig struct {
	Input   string `mapstructure:"input"`
	Workers int    `mapstructure:"workers"`
}

// OutputConfig selects where reports go.
type OutputConfig struct {
	Kind string `mapstructure:"kind"`
	Path string `mapstructure:"path"`
	Dir  string `mapstructure:"dir"`
}

// RedisConfig configures the Redis sink.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// ScheduleConfig configures scheduled runs.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Output kinds.
const (
	OutputFile  = "file"
	OutputRedis = "redis"
)
