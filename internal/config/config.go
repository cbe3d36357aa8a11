package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"irisml/source/kafka"
)

const EnvPrefix = "IRISML__"

type HTTPCfg struct {
	Addr string `koanf:"addr" validate:"required"`
}

type GRPCCfg struct {
	Port int `koanf:"port" validate:"gte=0,lte=65535"` // 0 = disabled
}

type MetricsCfg struct {
	Port int `koanf:"port" validate:"gte=0,lte=65535"` // 0 = only on the HTTP router
}

type TrackingCfg struct {
	DBPath     string `koanf:"db_path" validate:"required"`
	Experiment string `koanf:"experiment" validate:"required"`
}

type ModelCfg struct {
	Name string `koanf:"name" validate:"required"`
}

type LogCfg struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn warning error"`
	JSON  bool   `koanf:"json"`
}

// WatchCfg subscribes the server to the run-event topic so newly
// registered models are picked up without /admin/reload.
type WatchCfg struct {
	Enabled bool         `koanf:"enabled"`
	Driver  string       `koanf:"driver" validate:"omitempty,oneof=sarama"`
	Kafka   kafka.Config `koanf:"kafka"`
}

type Config struct {
	HTTP     HTTPCfg     `koanf:"http"`
	GRPC     GRPCCfg     `koanf:"grpc"`
	Metrics  MetricsCfg  `koanf:"metrics"`
	Tracking TrackingCfg `koanf:"tracking"`
	Model    ModelCfg    `koanf:"model"`
	Log      LogCfg      `koanf:"log"`
	Watch    WatchCfg    `koanf:"watch"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// ---------------------------------------------------------------------------
// Loader
// ---------------------------------------------------------------------------

// Load merges YAML (if present) with env-vars
// (prefix `IRISML__`, delimiter `__`), fills defaults and validates.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	// schema version check (only when YAML is present)
	sv := k.String("schema_version")
	if sv != "" && sv != SupportedSchema {
		return Config{}, fmt.Errorf("config schema_version %q not supported (want %s)", sv, SupportedSchema)
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, "__", envValue), nil); err != nil {
		return Config{}, fmt.Errorf("config: env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Env values for these keys are comma-separated lists.
var listKeys = map[string]bool{
	"watch__kafka__brokers": true,
	"watch__kafka__topics":  true,
}

// IRISML__TRACKING__DB_PATH → tracking__db_path
func envValue(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if listKeys[key] {
		return key, strings.Split(value, ",")
	}
	return key, value
}

// ---------------------------------------------------------------------------
// defaults
// ---------------------------------------------------------------------------

func applyDefaults(c *Config) {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8000"
	}
	if c.Tracking.DBPath == "" {
		c.Tracking.DBPath = "irisml.db"
	}
	if c.Tracking.Experiment == "" {
		c.Tracking.Experiment = DefaultExperiment
	}
	if c.Model.Name == "" {
		c.Model.Name = DefaultModelName
	}
	if c.Watch.Driver == "" {
		c.Watch.Driver = "sarama"
	}
	if c.Watch.Enabled {
		kafka.ApplyDefaults(&c.Watch.Kafka)
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}
