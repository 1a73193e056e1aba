package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the full on-disk configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// Secrets (whatsapp.access_token, whatsapp.verify_token, openai.api_key) may
// be left empty in the file and provided via environment variables instead:
// ALAN_WHATSAPP_ACCESS_TOKEN, ALAN_WHATSAPP_VERIFY_TOKEN, ALAN_OPENAI_API_KEY.
type Config struct {
	HTTP     HTTPConfig     `json:"http"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	OpenAI   OpenAIConfig   `json:"openai,omitempty"`
	Notify   NotifyConfig   `json:"notify,omitempty"`
	Papers   PapersConfig   `json:"papers,omitempty"`
	Cron     CronConfig     `json:"cron,omitempty"`
}

type HTTPConfig struct {
	Addr string `json:"addr,omitempty"` // default ":8080"
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"` // trace|debug|info|warn|error
	Console bool   `json:"console"`
	File    struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path,omitempty"`
	} `json:"file,omitempty"`
}

type StorageConfig struct {
	Path        string `json:"path,omitempty"`         // default "./data/alan.db"
	BusyTimeout string `json:"busy_timeout,omitempty"` // default "5s"
}

type WhatsAppConfig struct {
	PhoneNumberID string `json:"phone_number_id"`
	AccessToken   string `json:"access_token,omitempty"`
	VerifyToken   string `json:"verify_token,omitempty"`
	BaseURL       string `json:"base_url,omitempty"`     // default Graph API v17.0
	RatePerSec    int    `json:"rate_per_sec,omitempty"` // default 20
}

type OpenAIConfig struct {
	Enabled   bool   `json:"enabled"`
	APIKey    string `json:"api_key,omitempty"`
	Model     string `json:"model,omitempty"`      // default "gpt-3.5-turbo"
	MaxTokens int    `json:"max_tokens,omitempty"` // default 150
	BaseURL   string `json:"base_url,omitempty"`
}

// NotifyConfig controls the daily notification run.
//
// Defaults (when fields are omitted/zero):
//   - window_minutes: 5
//   - recency_window: "24h"
//   - batch_size: 60
//   - batch_delay: "1s"
type NotifyConfig struct {
	WindowMinutes int    `json:"window_minutes,omitempty"`
	RecencyWindow string `json:"recency_window,omitempty"`
	BatchSize     int    `json:"batch_size,omitempty"`
	BatchDelay    string `json:"batch_delay,omitempty"`
}

type PapersConfig struct {
	SourceURL string `json:"source_url,omitempty"` // default papers listing page
	MaxPapers int    `json:"max_papers,omitempty"` // default 3
}

// CronConfig controls the built-in trigger. Deployments that drive the
// /jobs endpoints from an external scheduler should disable it.
type CronConfig struct {
	Enabled   bool   `json:"enabled"`
	SendSpec  string `json:"send_spec,omitempty"`  // default "*/5 * * * *"
	FetchSpec string `json:"fetch_spec,omitempty"` // default "@hourly"
}

const (
	DefaultHTTPAddr      = ":8080"
	DefaultStoragePath   = "./data/alan.db"
	DefaultWindowMinutes = 5
	DefaultBatchSize     = 60
	DefaultRatePerSec    = 20
	DefaultMaxPapers     = 3
	DefaultSendSpec      = "*/5 * * * *"
	DefaultFetchSpec     = "@hourly"

	DefaultRecencyWindow = 24 * time.Hour
	DefaultBatchDelay    = time.Second
	DefaultBusyTimeout   = 5 * time.Second
)

// ApplyEnvOverrides fills secret fields from the environment when the file
// leaves them empty. File values win so local overrides stay possible.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.WhatsApp.AccessToken == "" {
		cfg.WhatsApp.AccessToken = os.Getenv("ALAN_WHATSAPP_ACCESS_TOKEN")
	}
	if cfg.WhatsApp.VerifyToken == "" {
		cfg.WhatsApp.VerifyToken = os.Getenv("ALAN_WHATSAPP_VERIFY_TOKEN")
	}
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("ALAN_OPENAI_API_KEY")
	}
}

// Validate checks cross-field constraints and duration syntax.
// It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.WhatsApp.PhoneNumberID) == "" {
		return errors.New("whatsapp.phone_number_id is required")
	}
	if strings.TrimSpace(cfg.WhatsApp.AccessToken) == "" {
		return errors.New("whatsapp.access_token is required (file or ALAN_WHATSAPP_ACCESS_TOKEN)")
	}
	if cfg.OpenAI.Enabled && strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		return errors.New("openai.api_key is required when openai.enabled (file or ALAN_OPENAI_API_KEY)")
	}
	if cfg.Notify.WindowMinutes < 0 {
		return errors.New("notify.window_minutes must be >= 0")
	}
	if cfg.Notify.BatchSize < 0 {
		return errors.New("notify.batch_size must be >= 0")
	}
	if _, err := ParseDurationField("notify.recency_window", cfg.Notify.RecencyWindow); err != nil {
		return err
	}
	if _, err := ParseDurationField("notify.batch_delay", cfg.Notify.BatchDelay); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}
	if cfg.WhatsApp.RatePerSec < 0 {
		return fmt.Errorf("whatsapp.rate_per_sec must be >= 0")
	}
	return nil
}
