package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeArchivematica()
	c.normalizeLogging()
	c.normalizeWorkflow()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.SourceDir, err = expandPath(c.Paths.SourceDir); err != nil {
		return fmt.Errorf("paths.source_dir: %w", err)
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.DestDir, err = expandPath(c.Paths.DestDir); err != nil {
		return fmt.Errorf("paths.dest_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeArchivematica() {
	if c.Archivematica == nil {
		c.Archivematica = map[string]Archivematica{}
	}
	for origin, am := range c.Archivematica {
		am.BaseURL = strings.TrimRight(strings.TrimSpace(am.BaseURL), "/")
		am.Username = strings.TrimSpace(am.Username)
		am.APIKey = strings.TrimSpace(am.APIKey)
		am.LocationUUID = strings.TrimSpace(am.LocationUUID)
		am.ProcessingConfig = strings.TrimSpace(am.ProcessingConfig)
		am.Version = strings.TrimSpace(am.Version)
		c.Archivematica[origin] = am
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level

	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.StagePollInterval <= 0 {
		c.Workflow.StagePollInterval = defaultStagePollInterval
	}
	if c.Workflow.RequestTimeout <= 0 {
		c.Workflow.RequestTimeout = defaultWorkflowRequestTimeout
	}
	if c.Cleanup.RequestTimeout <= 0 {
		c.Cleanup.RequestTimeout = defaultCleanupRequestTimeout
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}
