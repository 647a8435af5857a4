// Package config loads the YAML configuration: built-in defaults first,
// then an optional user file overlaid on top.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/multierr"
	yaml "gopkg.in/yaml.v3"

	"github.com/simp-lee/epubview/render"
)

//go:embed default.yaml
var defaultConfig []byte

// AppName names the program in logs and default file names.
const AppName = "epubview"

type (
	// Duration is a time.Duration written as a Go duration string in YAML.
	Duration time.Duration

	CacheConfig struct {
		TTL             Duration `yaml:"ttl"`
		CleanupInterval Duration `yaml:"cleanup_interval"`
	}

	RenderConfig struct {
		BookStyles      bool         `yaml:"book_styles"`
		HighlightScript string       `yaml:"highlight_script"`
		Style           render.Style `yaml:"style"`
	}

	SearchConfig struct {
		ContextLength int `yaml:"context_length"`
	}

	LibraryConfig struct {
		Database       string `yaml:"database"`
		AutoHeal       bool   `yaml:"auto_heal"`
		PrewarmWorkers int    `yaml:"prewarm_workers"`
	}

	Config struct {
		Version int           `yaml:"version"`
		Cache   CacheConfig   `yaml:"cache"`
		Render  RenderConfig  `yaml:"render"`
		Search  SearchConfig  `yaml:"search"`
		Library LibraryConfig `yaml:"library"`
		Logging LoggingConfig `yaml:"logging"`
	}
)

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

func unmarshalConfig(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode configuration data: %w", err)
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	if err := unmarshalConfig(defaultConfig, cfg); err != nil {
		panic(err)
	}
	return cfg
}

// DefaultYAML returns the embedded default configuration document.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultConfig...)
}

// Load returns the defaults overlaid with the file at path. An empty path
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if len(path) == 0 {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := unmarshalConfig(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Version != 1 {
		errs = append(errs, fmt.Errorf("version: unsupported value %d", c.Version))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl: must not be negative"))
	}
	if c.Cache.CleanupInterval < 0 {
		errs = append(errs, errors.New("cache.cleanup_interval: must not be negative"))
	}
	if c.Search.ContextLength <= 0 {
		errs = append(errs, errors.New("search.context_length: must be positive"))
	}
	if c.Library.Database == "" {
		errs = append(errs, errors.New("library.database: required"))
	}
	if c.Library.PrewarmWorkers < 1 {
		errs = append(errs, errors.New("library.prewarm_workers: must be at least 1"))
	}
	if c.Render.Style.FontSize < 0 || c.Render.Style.LineHeight < 0 {
		errs = append(errs, errors.New("render.style: sizes must not be negative"))
	}
	errs = append(errs, c.Logging.validate()...)
	return multierr.Combine(errs...)
}

// Dump returns the configuration as YAML.
func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
