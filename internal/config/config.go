package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Tracker configuration
	Tracker TrackerConfig `yaml:"tracker"`

	// Cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Analysis settings
	Analysis AnalysisConfig `yaml:"analysis"`
}

type TrackerConfig struct {
	Backend   string            `yaml:"backend"` // "youtrack", "github"
	BaseURL   string            `yaml:"base_url"`
	Token     string            `yaml:"token"`
	RateLimit int               `yaml:"rate_limit"` // Requests per second (github backend)
	Timeout   time.Duration     `yaml:"timeout"`    // Per-fetch timeout
	Projects  map[string]string `yaml:"projects"`   // Project code -> "owner/repo" (github backend)
}

type CacheConfig struct {
	Directory string `yaml:"directory"`
	Backend   string `yaml:"backend"` // "bolt", "sqlite"
}

type AnalysisConfig struct {
	Workers int `yaml:"workers"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Tracker: TrackerConfig{
			Backend:   "youtrack",
			RateLimit: 10,
			Timeout:   10 * time.Second,
		},
		Cache: CacheConfig{
			Directory: filepath.Join(homeDir, ".contriblens", "cache"),
			Backend:   "bolt",
		},
		Analysis: AnalysisConfig{
			Workers: 8,
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults
	cfg := Default()
	v.SetDefault("tracker", cfg.Tracker)
	v.SetDefault("cache", cfg.Cache)
	v.SetDefault("analysis", cfg.Analysis)

	// Load from environment variables
	v.SetEnvPrefix("CONTRIBLENS")
	v.AutomaticEnv()

	// Try to find config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath(".contriblens")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".contriblens"))
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	// Unmarshal into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",       // Main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	// Also try loading from home directory
	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".contriblens", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	// Tracker configuration
	if backend := os.Getenv("TRACKER_BACKEND"); backend != "" {
		cfg.Tracker.Backend = backend
	}
	if url := os.Getenv("TRACKER_URL"); url != "" {
		cfg.Tracker.BaseURL = url
	}
	if token := os.Getenv("TRACKER_TOKEN"); token != "" {
		cfg.Tracker.Token = token
	}
	if rateLimit := os.Getenv("TRACKER_RATE_LIMIT"); rateLimit != "" {
		if rate, err := strconv.Atoi(rateLimit); err == nil {
			cfg.Tracker.RateLimit = rate
		}
	}
	if timeout := os.Getenv("TRACKER_TIMEOUT_SECONDS"); timeout != "" {
		if seconds, err := strconv.Atoi(timeout); err == nil {
			cfg.Tracker.Timeout = time.Duration(seconds) * time.Second
		}
	}

	// Cache configuration
	if dir := os.Getenv("CACHE_DIRECTORY"); dir != "" {
		cfg.Cache.Directory = expandPath(dir)
	}
	if backend := os.Getenv("CACHE_BACKEND"); backend != "" {
		cfg.Cache.Backend = backend
	}

	// Analysis configuration
	if workers := os.Getenv("ANALYSIS_WORKERS"); workers != "" {
		if count, err := strconv.Atoi(workers); err == nil {
			cfg.Analysis.Workers = count
		}
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("tracker", c.Tracker)
	v.Set("cache", c.Cache)
	v.Set("analysis", c.Analysis)

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write config file
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
