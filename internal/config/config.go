package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/abelbrown/insight/internal/analytics"
	"github.com/abelbrown/insight/internal/segment"
)

// Environment overrides, applied after .env is loaded.
const (
	EnvAPIURL     = "INSIGHT_API_URL"
	EnvAPITimeout = "INSIGHT_API_TIMEOUT"
	EnvDataDir    = "INSIGHT_DATA_DIR"
)

// Config is the persistent application configuration
type Config struct {
	API      APIConfig      `json:"api"`
	Defaults DefaultsConfig `json:"defaults"`
	UI       UIConfig       `json:"ui"`
	LogLevel string         `json:"log_level"`
}

// APIConfig points the client at the analytics service.
type APIConfig struct {
	BaseURL           string  `json:"base_url"`
	TimeoutSeconds    int     `json:"timeout_seconds"`
	RequestsPerSecond float64 `json:"requests_per_second"` // 0 disables pacing
}

// DefaultsConfig seeds the segmentation form at startup.
type DefaultsConfig struct {
	Algorithm  string   `json:"algorithm"`
	NClusters  int      `json:"n_clusters"`
	Eps        float64  `json:"eps"`
	MinSamples int      `json:"min_samples"`
	Features   []string `json:"features"`
}

// UIConfig holds UI preferences
type UIConfig struct {
	ShowAssignments bool   `json:"show_assignments"`
	ExportDir       string `json:"export_dir"` // empty means <datadir>/exports
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           analytics.DefaultBaseURL,
			TimeoutSeconds:    60, // the hosted service cold-starts slowly
			RequestsPerSecond: 2,
		},
		Defaults: DefaultsConfig{
			Algorithm:  string(segment.KMeans),
			NClusters:  segment.DefaultNClusters,
			Eps:        segment.DefaultEps,
			MinSamples: segment.DefaultMinSamples,
		},
		LogLevel: "info",
	}
}

// LoadDotEnv loads .env from the working directory if present.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// DataDir returns INSIGHT_DATA_DIR or ~/.insight.
func DataDir() string {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".insight")
}

// ConfigPath returns the path to the config file
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.json")
}

// Load reads config from dataDir, or returns defaults when the file is
// missing. Env overrides are applied either way.
func Load(dataDir string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath(dataDir))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", ConfigPath(dataDir), err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays INSIGHT_API_URL and INSIGHT_API_TIMEOUT.
func (c *Config) ApplyEnv() error {
	if url := os.Getenv(EnvAPIURL); url != "" {
		c.API.BaseURL = url
	}
	if raw := os.Getenv(EnvAPITimeout); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return fmt.Errorf("%s: want a positive number of seconds, got %q", EnvAPITimeout, raw)
		}
		c.API.TimeoutSeconds = secs
	}
	return nil
}

// Save writes config to dataDir.
func (c *Config) Save(dataDir string) error {
	path := ConfigPath(dataDir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Timeout returns the per-request HTTP timeout.
func (c *Config) Timeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// ExportDir resolves where boxplot PNGs are written.
func (c *Config) ExportDir(dataDir string) string {
	if c.UI.ExportDir != "" {
		return c.UI.ExportDir
	}
	return filepath.Join(dataDir, "exports")
}

// Workflow builds the initial form state. Unknown algorithms and zero
// parameters fall back to the built-in defaults; out-of-range values are
// kept so submit validation reports them.
func (c *Config) Workflow() segment.AlgorithmConfig {
	wf := segment.DefaultConfig()
	if a, err := segment.ParseAlgorithm(c.Defaults.Algorithm); err == nil {
		wf.Algorithm = a
	}
	if c.Defaults.NClusters != 0 {
		wf.KMeans.NClusters = c.Defaults.NClusters
	}
	if c.Defaults.Eps != 0 {
		wf.DBSCAN.Eps = c.Defaults.Eps
	}
	if c.Defaults.MinSamples != 0 {
		wf.DBSCAN.MinSamples = c.Defaults.MinSamples
	}
	wf.Features = segment.NewSelection(c.Defaults.Features...)
	return wf
}
