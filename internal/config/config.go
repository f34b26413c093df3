package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"risk_service/internal/core"
	"risk_service/internal/domain/repository"
	"risk_service/internal/logging"
)

type Config struct {
	Server        ServerConfig         `yaml:"server"`
	Model         ModelConfig          `yaml:"model"`
	Generator     core.GeneratorConfig `yaml:"generator"`
	Trainer       core.TrainerConfig   `yaml:"trainer"`
	Store         StoreConfig          `yaml:"store"`
	Collaborators CollaboratorsConfig  `yaml:"collaborators"`
	Overpass      OverpassConfig       `yaml:"overpass"`
	Log           LogConfig            `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"` // 0 disables limiting
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ModelConfig locates the artifact served by the registry. URL wins over
// Path when both are set.
type ModelConfig struct {
	Path         string        `yaml:"path"`
	URL          string        `yaml:"url"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

func (m ModelConfig) Source() string {
	if m.URL != "" {
		return m.URL
	}
	return m.Path
}

// StoreConfig is optional. An empty driver means no database.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

func (s StoreConfig) Enabled() bool {
	return s.Driver != ""
}

type CollaboratorsConfig struct {
	DetectionURL string        `yaml:"detection_url"`
	SentimentURL string        `yaml:"sentiment_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

type OverpassConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	trainer := core.DefaultTrainerConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			RateLimitRPS:    100,
			RateLimitBurst:  200,
			ShutdownTimeout: 10 * time.Second,
		},
		Model: ModelConfig{
			Path:         trainer.ArtifactPath,
			FetchTimeout: 10 * time.Second,
		},
		Generator: core.DefaultGeneratorConfig(),
		Trainer:   trainer,
		Collaborators: CollaboratorsConfig{
			Timeout: 10 * time.Second,
		},
		Overpass: OverpassConfig{
			URL:     "https://overpass-api.de/api/interpreter",
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
	}
}

// Load layers the YAML file at path (optional) and then the environment over
// the defaults. Unknown YAML keys are an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("RISK_ADDR", c.Server.Addr)
	c.Server.RateLimitRPS = getEnvFloat("RISK_RATE_LIMIT", c.Server.RateLimitRPS)

	if path, ok := os.LookupEnv("RISK_MODEL_PATH"); ok {
		c.Model.Path = path
		c.Trainer.ArtifactPath = path
	}
	c.Model.URL = getEnv("RISK_MODEL_URL", c.Model.URL)
	c.Model.FetchTimeout = getEnvDuration("RISK_MODEL_FETCH_TIMEOUT", c.Model.FetchTimeout)

	c.Store.Driver = getEnv("RISK_STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getEnv("RISK_STORE_DSN", c.Store.DSN)

	c.Collaborators.DetectionURL = getEnv("DETECTION_SERVICE_URL", c.Collaborators.DetectionURL)
	c.Collaborators.SentimentURL = getEnv("SENTIMENT_SERVICE_URL", c.Collaborators.SentimentURL)
	c.Overpass.URL = getEnv("OVERPASS_URL", c.Overpass.URL)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must not be negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	if c.Model.FetchTimeout <= 0 {
		return fmt.Errorf("model.fetch_timeout must be positive")
	}
	if err := c.Generator.Validate(); err != nil {
		return fmt.Errorf("generator: %w", err)
	}
	if err := c.Trainer.Validate(); err != nil {
		return fmt.Errorf("trainer: %w", err)
	}
	switch c.Store.Driver {
	case "":
	case repository.DriverPostgres, repository.DriverSQLite:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %s", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}
	if c.Collaborators.Timeout <= 0 || c.Overpass.Timeout <= 0 {
		return fmt.Errorf("collaborator and overpass timeouts must be positive")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
		logrus.Warnf("Warning: ignoring %s=%q: %v", key, val, err)
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
		logrus.Warnf("Warning: ignoring %s=%q: %v", key, val, err)
	}
	return defaultVal
}
