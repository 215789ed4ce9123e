package config

import (
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "config/config.yaml"
	APIKeyEnv         = "CENSUS_API_KEY"
)

var (
	ErrMissingAPIKey = errors.New("census API key is required (set " + APIKeyEnv + ")")
	ErrInvalidConfig = errors.New("invalid configuration")
)

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type YearsConfig struct {
	Start int `yaml:"start"`
	Lag   int `yaml:"lag"`
}

type OutputConfig struct {
	Dir   string `yaml:"dir"`
	Excel bool   `yaml:"excel"`
	Chart bool   `yaml:"chart"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Addr       string        `yaml:"addr"`
	RunTimeout time.Duration `yaml:"run_timeout"`
}

type PipelineConfig struct {
	API    APIConfig    `yaml:"api"`
	Years  YearsConfig  `yaml:"years"`
	Output OutputConfig `yaml:"output"`
	Store  StoreConfig  `yaml:"store"`
	Server ServerConfig `yaml:"server"`

	// APIKey comes from the environment only.
	APIKey string `yaml:"-"`
}

// Default returns the configuration used when no file overrides it.
func Default() *PipelineConfig {
	return &PipelineConfig{
		API: APIConfig{
			BaseURL: "https://api.census.gov/data",
			Timeout: 60 * time.Second,
		},
		Years: YearsConfig{
			Start: 2010,
			Lag:   2,
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Store: StoreConfig{
			Path: "pipeline.db",
		},
		Server: ServerConfig{
			Addr:       ":8080",
			RunTimeout: 30 * time.Minute,
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults, loads .env if
// present, and requires CENSUS_API_KEY. An empty path tries DefaultConfigPath
// and silently keeps the defaults when it does not exist.
func LoadConfig(path string) (*PipelineConfig, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	configFile, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(configFile, cfg); err != nil {
			return nil, errors.Wrapf(err, "error parsing pipeline config file %s", path)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, errors.Wrapf(err, "error reading pipeline config file %s", path)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "error loading .env file")
	}
	cfg.APIKey = os.Getenv(APIKeyEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings a run cannot work without.
func (c *PipelineConfig) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.API.BaseURL == "" {
		return errors.Wrap(ErrInvalidConfig, "api.base_url is empty")
	}
	if c.API.Timeout <= 0 {
		return errors.Wrap(ErrInvalidConfig, "api.timeout must be positive")
	}
	if c.Years.Lag < 0 {
		return errors.Wrap(ErrInvalidConfig, "years.lag must not be negative")
	}
	return nil
}
