package storybook

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const DefaultBaseURL = "https://cloud.leonardo.ai/api/rest/v1"

// Settings holds the process configuration read from the environment.
// Variables use the STORYBOOK_ prefix; the Leonardo ones also accept their
// bare names (LEONARDO_API_KEY, LEONARDO_BASE_URL).
type Settings struct {
	APIKey  string `envconfig:"LEONARDO_API_KEY"`
	BaseURL string `envconfig:"LEONARDO_BASE_URL" default:"https://cloud.leonardo.ai/api/rest/v1"`

	CatalogPath string `split_words:"true" default:"config/storybook.yaml"`
	OutputDir   string `split_words:"true" default:"output"`
	KeepImages  bool   `split_words:"true" default:"true"`
	NumImages   int    `split_words:"true" default:"1"`

	PollInterval    time.Duration `split_words:"true" default:"5s"`
	PollTimeout     time.Duration `split_words:"true" default:"150s"`
	RequestTimeout  time.Duration `split_words:"true" default:"60s"`
	DownloadTimeout time.Duration `split_words:"true" default:"120s"`

	RedisAddr     string `split_words:"true"`
	RedisPassword string `split_words:"true"`
	RedisDB       int    `split_words:"true" default:"0"`
	HistoryLimit  int    `split_words:"true" default:"100"`

	ListenAddr    string `split_words:"true" default:":8080"`
	LogFile       string `split_words:"true"`
	GenerateLimit int    `split_words:"true" default:"6"`
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := envconfig.Process("storybook", &s); err != nil {
		return nil, fmt.Errorf("%w: loading settings: %v", ErrConfig, err)
	}
	if s.PollInterval <= 0 || s.PollTimeout <= 0 {
		return nil, fmt.Errorf("%w: poll interval and timeout must be positive", ErrConfig)
	}
	return &s, nil
}
