package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds runtime configuration for the engine.
type Config struct {
	// HTTP listen address
	Addr string
	// Zerolog level name
	LogLevel string

	// Evaluation settings
	Eval EvalConfig
	// Incident escalation settings
	Incident IncidentConfig
	// Kafka notification settings; dispatch falls back to log-only when
	// no brokers are configured.
	Kafka KafkaConfig
}

// EvalConfig controls the evaluation cycle.
type EvalConfig struct {
	// Bounded sample window read per rule
	LookbackTicks int
	// Parallel rule evaluation workers per cycle
	Workers int
	// Interval for the built-in scheduler; zero disables scheduling and
	// cycles run only on demand.
	Interval time.Duration
}

// IncidentConfig controls incident escalation triggers.
type IncidentConfig struct {
	// Concurrent open critical alerts needed for the density trigger
	CriticalThreshold int
	// Alert duration in ticks needed for the sustained trigger
	SustainedTicks int64
}

// KafkaConfig holds notification transport settings.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	PoolSize     int
	WriteTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		Addr:     ":8080",
		LogLevel: "info",
		Eval: EvalConfig{
			LookbackTicks: 200,
			Workers:       4,
			Interval:      0,
		},
		Incident: IncidentConfig{
			CriticalThreshold: 2,
			SustainedTicks:    10,
		},
		Kafka: KafkaConfig{
			Topic:        "fleetwatch.incidents",
			PoolSize:     2,
			WriteTimeout: 5 * time.Second,
			MaxRetries:   3,
			RetryBackoff: 200 * time.Millisecond,
		},
	}
}

// Load reads fleetwatch.yaml from the given directory (if present) and
// merges FLEETWATCH_* environment overrides on top of the defaults.
// A missing config file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("fleetwatch")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.SetEnvPrefix("FLEETWATCH")
	v.AutomaticEnv()

	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("eval.lookback_ticks", cfg.Eval.LookbackTicks)
	v.SetDefault("eval.workers", cfg.Eval.Workers)
	v.SetDefault("eval.interval", cfg.Eval.Interval)
	v.SetDefault("incident.critical_threshold", cfg.Incident.CriticalThreshold)
	v.SetDefault("incident.sustained_ticks", cfg.Incident.SustainedTicks)
	v.SetDefault("kafka.brokers", cfg.Kafka.Brokers)
	v.SetDefault("kafka.topic", cfg.Kafka.Topic)
	v.SetDefault("kafka.pool_size", cfg.Kafka.PoolSize)
	v.SetDefault("kafka.write_timeout", cfg.Kafka.WriteTimeout)
	v.SetDefault("kafka.max_retries", cfg.Kafka.MaxRetries)
	v.SetDefault("kafka.retry_backoff", cfg.Kafka.RetryBackoff)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading fleetwatch.yaml: %w", err)
		}
	}

	cfg.Addr = v.GetString("addr")
	cfg.LogLevel = v.GetString("log_level")
	cfg.Eval.LookbackTicks = v.GetInt("eval.lookback_ticks")
	cfg.Eval.Workers = v.GetInt("eval.workers")
	cfg.Eval.Interval = v.GetDuration("eval.interval")
	cfg.Incident.CriticalThreshold = v.GetInt("incident.critical_threshold")
	cfg.Incident.SustainedTicks = v.GetInt64("incident.sustained_ticks")
	cfg.Kafka.Brokers = v.GetStringSlice("kafka.brokers")
	cfg.Kafka.Topic = v.GetString("kafka.topic")
	cfg.Kafka.PoolSize = v.GetInt("kafka.pool_size")
	cfg.Kafka.WriteTimeout = v.GetDuration("kafka.write_timeout")
	cfg.Kafka.MaxRetries = v.GetInt("kafka.max_retries")
	cfg.Kafka.RetryBackoff = v.GetDuration("kafka.retry_backoff")

	return cfg.normalized(), nil
}

func (c *Config) normalized() *Config {
	if c.Eval.LookbackTicks <= 0 {
		c.Eval.LookbackTicks = 200
	}
	if c.Eval.Workers <= 0 {
		c.Eval.Workers = 4
	}
	if c.Incident.CriticalThreshold <= 0 {
		c.Incident.CriticalThreshold = 2
	}
	if c.Incident.SustainedTicks <= 0 {
		c.Incident.SustainedTicks = 10
	}
	if c.Kafka.PoolSize <= 0 {
		c.Kafka.PoolSize = 2
	}
	return c
}
