package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the settings a command needs are present. Modes:
// "records", "import", "pull" and "serve". Every problem is reported at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "records":
		errs = append(errs, c.validateStore()...)
	case "import":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateXray()...)
	case "pull":
		errs = append(errs, c.validateStore()...)
		if c.Notion.Token == "" {
			errs = append(errs, "notion.token is required")
		}
		if c.Notion.CaseDB == "" {
			errs = append(errs, "notion.case_db is required")
		}
	case "serve":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateXray()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port must be > 0 and <= 65535 (got %d)", c.Server.Port))
		}
		if c.Monitoring.Enabled {
			if r := c.Monitoring.FailureRateThreshold; r <= 0 || r > 1 {
				errs = append(errs, "monitoring.failure_rate_threshold must be in (0, 1]")
			}
			if r := c.Monitoring.WarningRateThreshold; r <= 0 || r > 1 {
				errs = append(errs, "monitoring.warning_rate_threshold must be in (0, 1]")
			}
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres (got %q)", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
}

func (c *Config) validateXray() []string {
	var errs []string
	if c.Xray.BaseURL == "" {
		errs = append(errs, "xray.base_url is required")
	}
	if c.Xray.Token == "" {
		errs = append(errs, "xray.token is required")
	}
	if c.Xray.TimeoutSecs < 0 {
		errs = append(errs, "xray.timeout_secs must be >= 0")
	}
	if c.Xray.RateLimit < 0 {
		errs = append(errs, "xray.rate_limit must be >= 0")
	}
	if c.Xray.Retry.MaxAttempts < 1 || c.Xray.Retry.MaxAttempts > 10 {
		errs = append(errs, fmt.Sprintf("xray.retry.max_attempts must be between 1 and 10 (got %d)", c.Xray.Retry.MaxAttempts))
	}
	if c.Xray.Circuit.FailureThreshold < 0 {
		errs = append(errs, "xray.circuit.failure_threshold must be >= 0")
	}
	return errs
}
