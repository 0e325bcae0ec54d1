// Package config loads engine configuration from a YAML file (via
// viper) with environment-variable overrides (via envconfig).
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Config holds the tunables and ambient settings for a taskforge
// process. Engine tunables (PoolSize, IDCapacity, AwaitTimeout) must only be
// applied before engine.Init; the engine itself enforces that, config
// only carries the values.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Version   string          `mapstructure:"version"`
}

// EngineConfig holds the engine's startup tunables.
type EngineConfig struct {
	PoolSize     int           `mapstructure:"pool_size" envconfig:"POOL_SIZE" default:"8"`
	IDCapacity   int           `mapstructure:"id_capacity" envconfig:"ID_CAPACITY" default:"100"`
	AwaitTimeout time.Duration `mapstructure:"await_timeout" envconfig:"AWAIT_TIMEOUT" default:"15s"`
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level      string `mapstructure:"level" envconfig:"LOG_LEVEL" default:"info"`
	Format     string `mapstructure:"format" envconfig:"LOG_FORMAT" default:"json"`
	OutputPath string `mapstructure:"output_path" envconfig:"LOG_OUTPUT_PATH" default:"stdout"`
}

// TelemetryConfig holds observability configuration for internal/diagnostics.
type TelemetryConfig struct {
	MetricsEnabled bool   `mapstructure:"metrics_enabled" envconfig:"METRICS_ENABLED" default:"true"`
	TracingEnabled bool   `mapstructure:"tracing_enabled" envconfig:"TRACING_ENABLED" default:"false"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint" envconfig:"JAEGER_ENDPOINT" default:"http://localhost:14268/api/traces"`
	ServiceName    string `mapstructure:"service_name" envconfig:"TELEMETRY_SERVICE_NAME" default:"taskforge"`
}

// Load reads configuration from ./configs/config.yaml (if present) and
// then overrides it with TASKENGINE_-prefixed environment variables.
func Load() (*Config, error) {
	var cfg Config

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("taskengine", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}

	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	return &cfg, nil
}

// Defaults returns a Config populated from the default struct tags via
// envconfig, overridden by any TASKENGINE_-prefixed environment
// variables. It bypasses viper, so no config file is read.
func Defaults() *Config {
	var cfg Config
	_ = envconfig.Process("taskengine", &cfg)
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &cfg
}
