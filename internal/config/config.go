// Package config loads the assistant configuration: defaults, then an
// optional YAML file, then FAMULUS_* environment overrides, in that
// order.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full assistant configuration
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Model    ModelConfig    `yaml:"model"`
	Convo    ConvoConfig    `yaml:"conversation"`
	Storage  StorageConfig  `yaml:"storage"`
	Telegram TelegramConfig `yaml:"telegram"`
	Tools    ToolsConfig    `yaml:"tools"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ModelConfig points at the Ollama backend
type ModelConfig struct {
	OllamaURL   string   `yaml:"ollama_url"`
	Name        string   `yaml:"name"`
	Timeout     Duration `yaml:"timeout"`
	Temperature float64  `yaml:"temperature"`
	Workers     int      `yaml:"workers"`
}

// ConvoConfig tunes the conversation context store
type ConvoConfig struct {
	TTL      Duration `yaml:"ttl"`
	MaxTurns int      `yaml:"max_turns"`
}

// StorageConfig locates the backing stores
type StorageConfig struct {
	TasksPath  string `yaml:"tasks_path"`
	ListsPath  string `yaml:"lists_path"`
	AuditPath  string `yaml:"audit_path"`
	RedisAddr  string `yaml:"redis_addr"`
	DgraphAddr string `yaml:"dgraph_addr"`
}

// TelegramConfig holds the chat transport credentials
type TelegramConfig struct {
	Token string `yaml:"token"`
}

// ToolsConfig tunes tool execution
type ToolsConfig struct {
	MaxRetries int `yaml:"max_retries"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Model: ModelConfig{
			OllamaURL:   "http://localhost:11434",
			Name:        "llama3.2",
			Timeout:     Duration(30 * time.Second),
			Temperature: 0.1,
			Workers:     4,
		},
		Convo: ConvoConfig{
			TTL:      Duration(5 * time.Minute),
			MaxTurns: 3,
		},
		Storage: StorageConfig{
			TasksPath:  "~/.famulus/tasks.db",
			ListsPath:  "~/.famulus/lists",
			AuditPath:  "~/.famulus/audit.db",
			RedisAddr:  "localhost:6379",
			DgraphAddr: "localhost:9080",
		},
		Tools: ToolsConfig{MaxRetries: 3},
	}
}

// Load reads configuration from path on top of the defaults and applies
// environment overrides. A missing file is not an error; the defaults
// plus environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults only.
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides settings from FAMULUS_* environment variables.
// Secrets in particular should come from the environment, not the file.
func (c *Config) applyEnv() {
	setString(&c.Telegram.Token, "FAMULUS_TELEGRAM_TOKEN")
	setString(&c.Model.OllamaURL, "FAMULUS_OLLAMA_URL")
	setString(&c.Model.Name, "FAMULUS_MODEL")
	setString(&c.Storage.RedisAddr, "FAMULUS_REDIS_ADDR")
	setString(&c.Storage.DgraphAddr, "FAMULUS_DGRAPH_ADDR")
	setString(&c.Logging.Level, "FAMULUS_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
