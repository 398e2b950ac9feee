package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/tiagogladstone/the-lost-archives/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The store is a SQLite file inside the temp dir; collaborators are unset.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.LLM.APIKey = ""
	cfgVal.Media.APIKey = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithLanguages sets the pipeline languages; the first is the source language.
func WithLanguages(languages ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.Languages = languages
	}
}

// WithRetry overrides the retry budget and backoff base.
func WithRetry(maxRetries, baseDelaySeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Retry.MaxRetries = maxRetries
		b.cfg.Retry.BaseDelaySeconds = baseDelaySeconds
	}
}

// WithOptionCounts overrides how many title and thumbnail options a story needs.
func WithOptionCounts(titles, thumbnails int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.TitleOptions = titles
		b.cfg.Pipeline.ThumbnailOptions = thumbnails
	}
}

// WithLLM points the LLM client at baseURL with a test key.
func WithLLM(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = baseURL
		b.cfg.LLM.APIKey = "test"
	}
}

// WithMedia points the media client at baseURL with a test key.
func WithMedia(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Media.BaseURL = baseURL
		b.cfg.Media.APIKey = "test"
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
