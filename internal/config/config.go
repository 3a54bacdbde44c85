// Package config loads tendril settings from tendril.yaml, TENDRIL_* environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete runtime configuration.
type Config struct {
	LogLevel   string           `mapstructure:"log_level"`
	LogFormat  string           `mapstructure:"log_format"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Loop       LoopConfig       `mapstructure:"loop"`
	Action     ActionConfig     `mapstructure:"action"`
	Variables  VariablesConfig  `mapstructure:"variables"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Runner     RunnerConfig     `mapstructure:"runner"`
	Store      StoreConfig      `mapstructure:"store"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Server     ServerConfig     `mapstructure:"server"`
}

type EvaluationConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Fallback bool          `mapstructure:"fallback"`
	Natural  bool          `mapstructure:"natural"`
}

type LoopConfig struct {
	MaxIterations int           `mapstructure:"max_iterations"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ActionConfig bounds action steps. Tools names a file of allow-listed
// commands exposed as actions; a relative path is resolved against --dir.
type ActionConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Tools   string        `mapstructure:"tools"`
}

type VariablesConfig struct {
	// Snapshots is the size of the snapshot ring; 0 disables snapshots.
	Snapshots int `mapstructure:"snapshots"`
}

type BreakerConfig struct {
	MaxDepth  int `mapstructure:"max_depth"`
	MaxErrors int `mapstructure:"max_errors"`
}

type RunnerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// StoreConfig selects where run reports go: "memory", "file" or "redis".
// Variables whose names match a Mask pattern are saved as "***". A base64
// EncryptionKey of 32 bytes encrypts saved variables and snapshots.
type StoreConfig struct {
	Backend       string      `mapstructure:"backend"`
	Dir           string      `mapstructure:"dir"`
	Mask          []string    `mapstructure:"mask"`
	EncryptionKey string      `mapstructure:"encryption_key"`
	Redis         RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type BrowserConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Name     string `mapstructure:"name"`
	Headless bool   `mapstructure:"headless"`
	URL      string `mapstructure:"url"`
	Width    int    `mapstructure:"width"`
	Height   int    `mapstructure:"height"`
	Install  bool   `mapstructure:"install"`
}

// OpenAIConfig enables deep element location when APIKey is set.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers every key with its default value. Keys must be known
// to viper for TENDRIL_* variables to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("evaluation.timeout", 5*time.Second)
	v.SetDefault("evaluation.fallback", false)
	v.SetDefault("evaluation.natural", false)
	v.SetDefault("loop.max_iterations", 100)
	v.SetDefault("loop.timeout", 5*time.Minute)
	v.SetDefault("action.timeout", 30*time.Second)
	v.SetDefault("action.tools", "tools.yaml")
	v.SetDefault("variables.snapshots", 50)
	v.SetDefault("breaker.max_depth", 10)
	v.SetDefault("breaker.max_errors", 5)
	v.SetDefault("runner.concurrency", 4)
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.dir", ".tendril/reports")
	v.SetDefault("store.mask", []string{"password", "secret", "token"})
	v.SetDefault("store.encryption_key", "")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "tendril")
	v.SetDefault("store.redis.ttl", 7*24*time.Hour)
	v.SetDefault("browser.enabled", false)
	v.SetDefault("browser.name", "chromium")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.url", "")
	v.SetDefault("browser.width", 1280)
	v.SetDefault("browser.height", 800)
	v.SetDefault("browser.install", false)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("server.addr", ":8080")
}

// New returns a viper instance with defaults and TENDRIL_* environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("TENDRIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (or tendril.yaml in the working directory when path is empty)
// into v and decodes the result. A missing default file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tendril")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Loop.MaxIterations <= 0 {
		errs = append(errs, errors.New("loop.max_iterations must be positive"))
	}
	if c.Evaluation.Timeout <= 0 {
		errs = append(errs, errors.New("evaluation.timeout must be positive"))
	}
	if c.Breaker.MaxDepth <= 0 || c.Breaker.MaxErrors <= 0 {
		errs = append(errs, errors.New("breaker limits must be positive"))
	}
	if c.Runner.Concurrency <= 0 {
		errs = append(errs, errors.New("runner.concurrency must be positive"))
	}
	switch c.Store.Backend {
	case "memory", "file", "redis":
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not memory, file or redis", c.Store.Backend))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q is not text or json", c.LogFormat))
	}
	return errors.Join(errs...)
}
