package config

const (
	defaultSourceDir              = "~/.local/share/fornax/src"
	defaultWorkDir                = "~/.local/share/fornax/tmp"
	defaultDestDir                = "~/.local/share/fornax/dest"
	defaultLogDir                 = "~/.local/share/fornax/logs"
	defaultAPIBind                = "127.0.0.1:8003"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 60
	defaultStagePollInterval      = 60
	defaultWorkflowRequestTimeout = 60
	defaultCleanupRequestTimeout  = 30
	defaultNotifyRequestTimeout   = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SourceDir: defaultSourceDir,
			WorkDir:   defaultWorkDir,
			DestDir:   defaultDestDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Archivematica: map[string]Archivematica{},
		Cleanup: Cleanup{
			RequestTimeout: defaultCleanupRequestTimeout,
		},
		Workflow: Workflow{
			StagePollInterval: defaultStagePollInterval,
			RequestTimeout:    defaultWorkflowRequestTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Assembly:       true,
			Transfers:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
