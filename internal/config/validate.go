package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateArchivematica(); err != nil {
		return err
	}
	if err := c.validateCleanup(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.SourceDir) == "" {
		return errors.New("paths.source_dir must be set")
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DestDir) == "" {
		return errors.New("paths.dest_dir must be set")
	}
	return nil
}

func (c *Config) validateArchivematica() error {
	for origin, am := range c.Archivematica {
		if am.BaseURL == "" {
			return fmt.Errorf("archivematica.%s.baseurl must be set", origin)
		}
		if am.Username == "" {
			return fmt.Errorf("archivematica.%s.username must be set", origin)
		}
		if am.APIKey == "" {
			return fmt.Errorf("archivematica.%s.api_key must be set", origin)
		}
		if am.LocationUUID == "" {
			return fmt.Errorf("archivematica.%s.location_uuid must be set", origin)
		}
		if am.Version != "" {
			if _, _, ok := parseVersion(am.Version); !ok {
				return fmt.Errorf("archivematica.%s.version %q is not a dotted version", origin, am.Version)
			}
		}
	}
	return nil
}

func (c *Config) validateCleanup() error {
	if url := strings.TrimSpace(c.Cleanup.URL); url != "" {
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return fmt.Errorf("cleanup.url %q must be an http(s) URL", url)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
