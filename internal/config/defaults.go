package config

const (
	defaultDataDir                   = "~/.local/share/lostarchives"
	defaultLogDir                    = "~/.local/state/lostarchives/logs"
	defaultDatabaseDriver            = DriverSQLite
	defaultDatabaseFile              = "lostarchives.db"
	defaultAPIBind                   = "127.0.0.1:8080"
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultWorkflowPollInterval      = 5
	defaultWorkflowErrorInterval     = 10
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
	defaultReclaimSchedule           = "@every 1m"
	defaultRetryBaseDelaySeconds     = 30
	defaultRetryMaxRetries           = 3
	defaultWorkerInstance            = "default"
	defaultLanguage                  = "en-US"
	defaultStyle                     = "cinematic"
	defaultAspectRatio               = "16:9"
	defaultTargetDurationMinutes     = 8
	defaultThumbnailOptions          = 3
	defaultTitleOptions              = 3
	defaultLLMBaseURL                = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel                  = "google/gemini-3-flash-preview"
	defaultLLMReferer                = "https://github.com/tiagogladstone/the-lost-archives"
	defaultLLMTitle                  = "The Lost Archives"
	defaultLLMTimeoutSeconds         = 120
	defaultMediaTimeoutSeconds       = 600
	defaultNotifyRequestTimeout      = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Database: Database{
			Driver: defaultDatabaseDriver,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultWorkflowPollInterval,
			ErrorRetryInterval: defaultWorkflowErrorInterval,
			HeartbeatInterval:  defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkflowHeartbeatTimeout,
			ReclaimSchedule:    defaultReclaimSchedule,
		},
		Retry: Retry{
			BaseDelaySeconds: defaultRetryBaseDelaySeconds,
			MaxRetries:       defaultRetryMaxRetries,
		},
		Workers: Workers{
			Instance: defaultWorkerInstance,
		},
		Pipeline: Pipeline{
			Languages:             []string{defaultLanguage},
			Style:                 defaultStyle,
			AspectRatio:           defaultAspectRatio,
			TargetDurationMinutes: defaultTargetDurationMinutes,
			ThumbnailOptions:      defaultThumbnailOptions,
			TitleOptions:          defaultTitleOptions,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Media: Media{
			TimeoutSeconds: defaultMediaTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Review:         true,
			Published:      true,
			Failures:       true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
