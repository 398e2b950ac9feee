package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/text/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDatabase()
	c.normalizeAPI()
	c.normalizeWorkflow()
	c.normalizeWorkers()
	if err := c.normalizePipeline(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeMedia()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDatabase() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "", "sqlite3":
		c.Database.Driver = DriverSQLite
	case "postgresql", "pg":
		c.Database.Driver = DriverPostgres
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.Database.DSN == "" {
		if value, ok := os.LookupEnv("DATABASE_URL"); ok {
			c.Database.DSN = strings.TrimSpace(value)
		}
	}
	if c.Database.Driver == DriverSQLite && strings.HasPrefix(c.Database.DSN, "~") {
		if expanded, err := expandPath(c.Database.DSN); err == nil {
			c.Database.DSN = expanded
		}
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	if port, ok := os.LookupEnv("PORT"); ok && strings.TrimSpace(port) != "" {
		host, _, err := net.SplitHostPort(c.API.Bind)
		if err != nil {
			host = ""
		}
		c.API.Bind = net.JoinHostPort(host, strings.TrimSpace(port))
	}
}

func (c *Config) normalizeWorkflow() {
	c.Workflow.ReclaimSchedule = strings.TrimSpace(c.Workflow.ReclaimSchedule)
	if c.Workflow.ReclaimSchedule == "" {
		c.Workflow.ReclaimSchedule = defaultReclaimSchedule
	}
}

func (c *Config) normalizeWorkers() {
	c.Workers.Instance = strings.TrimSpace(c.Workers.Instance)
	if c.Workers.Instance == "" {
		c.Workers.Instance = defaultWorkerInstance
	}
	types := make([]string, 0, len(c.Workers.JobTypes))
	seen := make(map[string]struct{}, len(c.Workers.JobTypes))
	for _, jobType := range c.Workers.JobTypes {
		normalized := strings.ToLower(strings.TrimSpace(jobType))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		types = append(types, normalized)
	}
	c.Workers.JobTypes = types
}

func (c *Config) normalizePipeline() error {
	langs, err := CanonicalLanguages(c.Pipeline.Languages)
	if err != nil {
		return fmt.Errorf("pipeline.languages: %w", err)
	}
	if len(langs) == 0 {
		langs = []string{defaultLanguage}
	}
	c.Pipeline.Languages = langs

	c.Pipeline.Style = strings.ToLower(strings.TrimSpace(c.Pipeline.Style))
	if c.Pipeline.Style == "" {
		c.Pipeline.Style = defaultStyle
	}
	c.Pipeline.AspectRatio = strings.TrimSpace(c.Pipeline.AspectRatio)
	if c.Pipeline.AspectRatio == "" {
		c.Pipeline.AspectRatio = defaultAspectRatio
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeMedia() {
	c.Media.BaseURL = strings.TrimRight(strings.TrimSpace(c.Media.BaseURL), "/")
	if c.Media.BaseURL == "" {
		if value, ok := os.LookupEnv("MEDIA_BASE_URL"); ok {
			c.Media.BaseURL = strings.TrimRight(strings.TrimSpace(value), "/")
		}
	}
	c.Media.APIKey = strings.TrimSpace(c.Media.APIKey)
	if c.Media.APIKey == "" {
		if value, ok := os.LookupEnv("MEDIA_API_KEY"); ok {
			c.Media.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Media.TimeoutSeconds <= 0 {
		c.Media.TimeoutSeconds = defaultMediaTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json", "auto":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// CanonicalLanguages parses BCP 47 tags, canonicalises them and drops blanks
// and duplicates while keeping the first occurrence order.
func CanonicalLanguages(raw []string) ([]string, error) {
	langs := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		tag, err := language.Parse(value)
		if err != nil {
			return nil, fmt.Errorf("invalid language tag %q: %w", value, err)
		}
		canonical := tag.String()
		if _, exists := seen[canonical]; exists {
			continue
		}
		seen[canonical] = struct{}{}
		langs = append(langs, canonical)
	}
	return langs, nil
}
