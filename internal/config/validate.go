package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that the configuration is usable for engine operations.
// It returns all problems found rather than stopping at the first.
func (c *Config) Validate() error {
	var problems []string

	if c.Engine.BaseURL == "" {
		problems = append(problems, "engine.base_url is required")
	} else if u, err := url.Parse(c.Engine.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, fmt.Sprintf("engine.base_url %q is not a valid URL", c.Engine.BaseURL))
	}
	if c.Engine.APIKey == "" {
		problems = append(problems, "engine.api_key is required (or set LOOM_ENGINE_API_KEY)")
	}
	if c.Engine.Username == "" {
		problems = append(problems, "engine.username is required to scope invocation sweeps")
	}
	if c.Engine.TimeoutSeconds <= 0 {
		problems = append(problems, "engine.timeout_seconds must be positive")
	}
	if c.Engine.UploadTimeoutSeconds <= 0 {
		problems = append(problems, "engine.upload_timeout_seconds must be positive")
	}
	if c.Refresh.StatusWindowMinutes <= 0 {
		problems = append(problems, "refresh.status_window_minutes must be positive")
	}
	if c.Refresh.TableWindowMinutes <= 0 {
		problems = append(problems, "refresh.table_window_minutes must be positive")
	}
	if c.Paths.DataDir == "" {
		problems = append(problems, "paths.data_dir is required")
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not one of console, json", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
