// Package config provides centralized configuration management using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Cache backends for the per-field selection cache.
const (
	CacheNATS   = "nats"
	CacheFile   = "file"
	CacheRedis  = "redis"
	CacheMemory = "memory"
)

// Config holds all configuration values for rirakoi.
type Config struct {
	APIBaseURL   string        `mapstructure:"api_base_url" yaml:"api_base_url"`
	CustomerID   string        `mapstructure:"customer_id" yaml:"customer_id"`
	UserID       string        `mapstructure:"user_id" yaml:"user_id"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	DataDir      string        `mapstructure:"data_dir" yaml:"data_dir"`
	CacheBackend string        `mapstructure:"cache_backend" yaml:"cache_backend"`
	RedisAddr    string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	LogLevel     string        `mapstructure:"log_level" yaml:"log_level"`
	LogFile      string        `mapstructure:"log_file" yaml:"log_file"`
	Headless     bool          `mapstructure:"headless" yaml:"headless"`
}

// envKeys lists every key bound to an explicit RIRAKOI_ variable.
var envKeys = []string{
	"api_base_url",
	"customer_id",
	"user_id",
	"timeout",
	"data_dir",
	"cache_backend",
	"redis_addr",
	"log_level",
	"log_file",
	"headless",
}

// Load loads configuration with full precedence:
// CLI flags > ENV vars > project config > XDG global config > defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("rirakoi")

	v.SetDefault("api_base_url", "http://127.0.0.1:8000")
	v.SetDefault("customer_id", "1")
	v.SetDefault("user_id", "1")
	v.SetDefault("timeout", 15*time.Second)
	v.SetDefault("data_dir", ".rirakoi")
	v.SetDefault("cache_backend", CacheNATS)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("headless", false)

	v.SetEnvPrefix("RIRAKOI")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit ENV bindings for better bool/duration parsing
	for _, key := range envKeys {
		if err := v.BindEnv(key, "RIRAKOI_"+strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	globalPath := GlobalPath()
	if fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	projectPath := ProjectPath()
	if fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late, mid-booking.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("api_base_url is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	switch c.CacheBackend {
	case CacheNATS, CacheFile, CacheRedis, CacheMemory:
	default:
		return fmt.Errorf("invalid cache_backend: %s (must be nats, file, redis, or memory)", c.CacheBackend)
	}
	return nil
}

// Exists returns true if any config file exists (global or project).
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns the XDG global config path.
// Returns ~/.config/rirakoi/rirakoi.yml or $XDG_CONFIG_HOME/rirakoi/rirakoi.yml.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rirakoi", "rirakoi.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "rirakoi", "rirakoi.yml")
}

// ProjectPath returns the project-local config path.
func ProjectPath() string {
	return "rirakoi.yml"
}

// WriteGlobal writes the config to the XDG global location.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return write(path, cfg)
}

// WriteProject writes the config to the project-local location.
func WriteProject(cfg *Config) error {
	return write(ProjectPath(), cfg)
}

func write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
