package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// TrackingURIEnvVar is consulted when no tracking URI is given on the command line or in the config file.
const TrackingURIEnvVar = "MLSYNC_TRACKING_URI"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Tracking TrackingConfig `toml:"tracking"`
	Store    StoreConfig    `toml:"store"`
	Sync     SyncConfig     `toml:"sync"`
}

// TrackingConfig contains source tracking server settings.
type TrackingConfig struct {
	URI            string  `toml:"uri"`
	RateLimit      float64 `toml:"rate_limit"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// StoreConfig contains destination experiment store settings.
type StoreConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// SyncConfig contains sync pipeline settings.
type SyncConfig struct {
	CommitWorkers       int `toml:"commit_workers"`
	FetchWorkers        int `toml:"fetch_workers"`
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ResolveTrackingURI picks the tracking URI from the flag value, the
// environment, then the config file, in that order.
//
// Returns [ErrMissingURI] when none of the three yields a value.
func ResolveTrackingURI(flagValue string, config *Config) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if uri := os.Getenv(TrackingURIEnvVar); uri != "" {
		return uri, nil
	}
	if config != nil && config.Tracking.URI != "" {
		return config.Tracking.URI, nil
	}
	return "", fmt.Errorf("%w: set --tracking-uri, %s or [tracking].uri", ErrMissingURI, TrackingURIEnvVar)
}
