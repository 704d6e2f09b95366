package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
	Tasks   TasksConfig   `mapstructure:"tasks"`
	Prompt  PromptConfig  `mapstructure:"prompt"`
	History HistoryConfig `mapstructure:"history"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	LogFile string `mapstructure:"log_file"`
	Persist bool   `mapstructure:"persist"`
	Level   string `mapstructure:"level"`
}

// ServerConfig holds xPool backend connection configuration
type ServerConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TasksConfig holds background task tracking configuration
type TasksConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	WaitTimeout  time.Duration `mapstructure:"wait_timeout"`
}

// PromptConfig holds sourcing prompt configuration
type PromptConfig struct {
	DefaultMaxResults int `mapstructure:"default_max_results"`
}

// HistoryConfig holds session history persistence configuration
type HistoryConfig struct {
	File    string `mapstructure:"file"`
	Persist bool   `mapstructure:"persist"`
}

var cfg *Config

// Get returns the global config instance
func Get() *Config {
	if cfg == nil {
		panic("config not initialized")
	}
	return cfg
}

// Load loads configuration from file and environment into the global instance
func Load(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome == "" {
			xdgConfigHome = filepath.Join(home, ".config")
		}

		viper.AddConfigPath("./.xpool") // Check project directory first
		viper.AddConfigPath(filepath.Join(xdgConfigHome, "xpool"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("settings")
	}

	viper.SetEnvPrefix("XPOOL")
	viper.AutomaticEnv()

	// Missing config file is fine, defaults and env vars still apply
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	loaded := &Config{}
	if err := viper.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg = loaded
	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.url", "http://localhost:8000")
	viper.SetDefault("server.timeout", 120*time.Second)

	viper.SetDefault("tasks.poll_interval", 3*time.Second)
	viper.SetDefault("tasks.wait_timeout", 10*time.Minute)

	viper.SetDefault("prompt.default_max_results", 20)

	viper.SetDefault("logging.log_file", "./.xpool/system.log")
	viper.SetDefault("logging.persist", true)
	viper.SetDefault("logging.level", "info")

	viper.SetDefault("history.file", "./.xpool/history.json")
	viper.SetDefault("history.persist", true)
}

// BuildSettingsPath returns a path inside the settings directory
func BuildSettingsPath(filename string) string {
	return filepath.Join(".xpool", filename)
}
