package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	MediaDir    string `toml:"media_dir"`
	TrainingDir string `toml:"training_dir"`
}

// Engine contains configuration for the remote workflow-execution engine.
type Engine struct {
	BaseURL              string `toml:"base_url"`
	APIKey               string `toml:"api_key"`
	Username             string `toml:"username"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
	UploadTimeoutSeconds int    `toml:"upload_timeout_seconds"`
}

// Refresh contains staleness windows for result reconciliation.
type Refresh struct {
	// StatusWindowMinutes bounds how often targeted status refreshes rerun
	// for the same row.
	StatusWindowMinutes int `toml:"status_window_minutes"`
	// TableWindowMinutes bounds full-sweep reruns and defines the
	// mark-and-sweep obsolescence threshold.
	TableWindowMinutes int `toml:"table_window_minutes"`
}

// Media contains settings for building asset URLs handed to review tools.
type Media struct {
	BaseURL string `toml:"base_url"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration for loom.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Engine  Engine  `toml:"engine"`
	Refresh Refresh `toml:"refresh"`
	Media   Media   `toml:"media"`
	Logging Logging `toml:"logging"`
}

// Default returns the repository default configuration.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     "~/.local/share/loom",
			LogDir:      "~/.local/share/loom/logs",
			MediaDir:    "~/media",
			TrainingDir: "~/media/training",
		},
		Engine: Engine{
			BaseURL:              "http://localhost:8300",
			TimeoutSeconds:       60,
			UploadTimeoutSeconds: 600,
		},
		Refresh: Refresh{
			StatusWindowMinutes: 10,
			TableWindowMinutes:  300,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() string {
	return "~/.config/loom/config.toml"
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist. An empty path means the default location.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath()
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expand config path: %w", err)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", expanded, err)
		}
		// missing file: defaults plus environment
	} else if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", expanded, err)
	}

	cfg.applyEnvironment()
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvironment() {
	if key := strings.TrimSpace(os.Getenv("LOOM_ENGINE_API_KEY")); key != "" {
		c.Engine.APIKey = key
	}
	if url := strings.TrimSpace(os.Getenv("LOOM_ENGINE_URL")); url != "" {
		c.Engine.BaseURL = url
	}
}

func (c *Config) normalize() error {
	for _, entry := range []struct {
		name  string
		value *string
	}{
		{"data_dir", &c.Paths.DataDir},
		{"log_dir", &c.Paths.LogDir},
		{"media_dir", &c.Paths.MediaDir},
		{"training_dir", &c.Paths.TrainingDir},
	} {
		expanded, err := ExpandPath(*entry.value)
		if err != nil {
			return fmt.Errorf("expand %s: %w", entry.name, err)
		}
		*entry.value = expanded
	}

	c.Engine.BaseURL = strings.TrimRight(strings.TrimSpace(c.Engine.BaseURL), "/")
	c.Media.BaseURL = strings.TrimRight(strings.TrimSpace(c.Media.BaseURL), "/")
	c.Engine.Username = strings.TrimSpace(c.Engine.Username)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

// EnsureDirectories creates the data and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file %s already exists", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ExpandPath resolves ~ and environment variables inside a filesystem path.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Clean(os.ExpandEnv(path)), nil
}
