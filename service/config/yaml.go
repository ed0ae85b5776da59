package config

import (
	"fmt"
	"os"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// NewYAML reads path on top of Defaults() and applies VSM_* environment
// overrides. An empty path means defaults plus environment.
func NewYAML(path string) (IService, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg), nil
}

func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, xerrors.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, xerrors.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, xerrors.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if cfg.Pipeline.TickPeriodMs <= 0 {
		return fmt.Errorf("pipeline.tick_period_ms must be positive, got %d", cfg.Pipeline.TickPeriodMs)
	}
	if cfg.Pipeline.DefaultIntervalMs < 0 {
		return fmt.Errorf("pipeline.default_interval_ms must not be negative, got %d", cfg.Pipeline.DefaultIntervalMs)
	}
	if cfg.Pipeline.EndpointBaseURL == "" {
		return fmt.Errorf("pipeline.endpoint_base_url is required")
	}
	if cfg.Collector.DefaultIntervalSeconds < 0 {
		return fmt.Errorf("collector.default_interval_s must not be negative")
	}
	switch cfg.Data.Type {
	case "files", "postgres":
	default:
		return fmt.Errorf("data.type must be files or postgres, got %q", cfg.Data.Type)
	}
	if cfg.Data.Type == "postgres" && cfg.Data.PostgresURL == "" {
		return fmt.Errorf("data.postgres_url is required for the postgres store")
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Pipeline.EndpointBaseURL = getEnv("VSM_ENDPOINT_BASE_URL", cfg.Pipeline.EndpointBaseURL)
	cfg.Pipeline.TickPeriodMs = getEnvInt("VSM_TICK_PERIOD_MS", cfg.Pipeline.TickPeriodMs)
	cfg.Pipeline.DefaultIntervalMs = getEnvInt("VSM_DEFAULT_INTERVAL_MS", cfg.Pipeline.DefaultIntervalMs)
	cfg.Pipeline.ControlAddr = getEnv("VSM_CONTROL_ADDR", cfg.Pipeline.ControlAddr)
	cfg.Video.Type = getEnv("VSM_VIDEO_TYPE", cfg.Video.Type)
	cfg.Video.Source = getEnv("VSM_VIDEO_SOURCE", cfg.Video.Source)
	cfg.Inference.Type = getEnv("VSM_INFERENCE_TYPE", cfg.Inference.Type)
	cfg.Inference.ModelsFolder = getEnv("VSM_MODELS_FOLDER", cfg.Inference.ModelsFolder)
	cfg.Display.Type = getEnv("VSM_DISPLAY_TYPE", cfg.Display.Type)
	cfg.Emitter.Broker = getEnv("VSM_MQTT_BROKER", cfg.Emitter.Broker)
	cfg.Collector.ListenAddr = getEnv("VSM_LISTEN_ADDR", cfg.Collector.ListenAddr)
	cfg.Collector.UploadsFolder = getEnv("VSM_UPLOADS_FOLDER", cfg.Collector.UploadsFolder)
	cfg.Data.Type = getEnv("VSM_DATA_TYPE", cfg.Data.Type)
	cfg.Data.PostgresURL = getEnv("VSM_POSTGRES_URL", cfg.Data.PostgresURL)
	cfg.Publisher.BootstrapServers = getEnv("KAFKA_BOOTSTRAP_SERVERS", cfg.Publisher.BootstrapServers)
	cfg.Publisher.Topic = getEnv("KAFKA_TOPIC", cfg.Publisher.Topic)
	cfg.Publisher.SASLUsername = getEnv("KAFKA_SASL_USERNAME", cfg.Publisher.SASLUsername)
	cfg.Publisher.SASLPassword = getEnv("KAFKA_SASL_PASSWORD", cfg.Publisher.SASLPassword)
	cfg.Log.Level = getEnv("VSM_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv("VSM_LOG_FILE", cfg.Log.File)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}
