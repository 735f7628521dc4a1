package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone     = "UTC"
	configPathEnv       = "TENDER_SCANNER_CONFIG"
	databasePathEnv     = "DATABASE_PATH"
	classifierAPIKeyEnv = "CLASSIFIER_API_KEY"
	classifierModelEnv  = "CLASSIFIER_MODEL"
	telegramTokenPrefix = "TELEGRAM_TOKEN_"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Browser       BrowserConfig      `yaml:"browser"`
	Listings      ListingsConfig     `yaml:"listings"`
	Watermarks    WatermarksConfig   `yaml:"watermarks"`
	Classifier    ClassifierConfig   `yaml:"classifier"`
	Notifications NotificationConfig `yaml:"notifications"`
	Sources       []SourceConfig     `yaml:"sources"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes the SQLite document store location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig defines when the pipeline should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// BrowserConfig wires the page-session driver.
type BrowserConfig struct {
	Headless  bool   `yaml:"headless"`
	UserAgent string `yaml:"userAgent"`
	RemoteURL string `yaml:"remoteUrl"`
}

// ListingsConfig locates the downloaded listing payloads, one subdirectory
// per source holding dated CSV files.
type ListingsConfig struct {
	Dir string `yaml:"dir"`
}

// WatermarksConfig locates the local fallback watermark files used when the
// primary store is unreachable.
type WatermarksConfig struct {
	FallbackDir string `yaml:"fallbackDir"`
}

// ClassifierConfig defines how to contact the classification API.
type ClassifierConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Model         string `yaml:"model"`
	FallbackModel string `yaml:"fallbackModel"`
	APIKey        string `yaml:"apiKey"`
}

// NotificationConfig encapsulates the outbound Telegram channels.
type NotificationConfig struct {
	Channels     []ChannelConfig `yaml:"channels"`
	ReportToken  string          `yaml:"reportToken"`
	ReportChatID int64           `yaml:"reportChatId"`
}

// ChannelConfig wires one notification destination. Kind selects the
// routing rule set: "default", "health", or "supplies".
type ChannelConfig struct {
	Name             string   `yaml:"name"`
	Source           string   `yaml:"source"`
	Kind             string   `yaml:"kind"`
	BotToken         string   `yaml:"botToken"`
	ChatIDs          []int64  `yaml:"chatIds"`
	ItemCodePrefixes []string `yaml:"itemCodePrefixes"`
	// RequireOpenDate drops records whose opening date already passed
	// (used by the NACION channel).
	RequireOpenDate bool `yaml:"requireOpenDate"`
}

// SourceConfig describes a single portal to ingest.
type SourceConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	// Critical makes total extraction failure of this source fatal for
	// the whole run.
	Critical bool `yaml:"critical"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

// LoadFile reads configuration from an explicit path, bypassing the env
// variable lookup. Used by the CLI --config flag.
func LoadFile(path string) (Config, error) {
	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg = mergeConfig(cfg, fileCfg)
	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(classifierAPIKeyEnv); v != "" {
		c.Classifier.APIKey = v
	}

	if v := os.Getenv(classifierModelEnv); v != "" {
		c.Classifier.Model = v
	}

	for i := range c.Notifications.Channels {
		key := telegramTokenPrefix + strings.ToUpper(strings.ReplaceAll(c.Notifications.Channels[i].Name, "-", "_"))
		if v := os.Getenv(key); v != "" {
			c.Notifications.Channels[i].BotToken = v
		}
	}

	if v := os.Getenv(telegramTokenPrefix + "REPORT"); v != "" {
		c.Notifications.ReportToken = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Browser.UserAgent != "" {
		base.Browser.UserAgent = override.Browser.UserAgent
	}
	if override.Browser.RemoteURL != "" {
		base.Browser.RemoteURL = override.Browser.RemoteURL
	}

	if override.Listings.Dir != "" {
		base.Listings = override.Listings
	}

	if override.Watermarks.FallbackDir != "" {
		base.Watermarks = override.Watermarks
	}

	if override.Classifier.Endpoint != "" {
		base.Classifier.Endpoint = override.Classifier.Endpoint
	}
	if override.Classifier.Model != "" {
		base.Classifier.Model = override.Classifier.Model
	}
	if override.Classifier.FallbackModel != "" {
		base.Classifier.FallbackModel = override.Classifier.FallbackModel
	}
	if override.Classifier.APIKey != "" {
		base.Classifier.APIKey = override.Classifier.APIKey
	}

	if len(override.Notifications.Channels) > 0 {
		base.Notifications.Channels = override.Notifications.Channels
	}
	if override.Notifications.ReportToken != "" {
		base.Notifications.ReportToken = override.Notifications.ReportToken
	}
	if override.Notifications.ReportChatID != 0 {
		base.Notifications.ReportChatID = override.Notifications.ReportChatID
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Database:  DatabaseConfig{Path: "data/tenders.db"},
		Scheduler: SchedulerConfig{CronExpression: "0 6 * * *", Timezone: defaultTimezone, location: tz},
		Browser: BrowserConfig{
			Headless:  true,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/109.0.0.0 Safari/537.36",
		},
		Listings:   ListingsConfig{Dir: "data/listings"},
		Watermarks: WatermarksConfig{FallbackDir: "data/watermarks"},
		Classifier: ClassifierConfig{
			Endpoint:      "https://generativelanguage.googleapis.com/v1beta/models",
			Model:         "gemini-2.5-flash",
			FallbackModel: "gemini-2.0-flash",
		},
		Notifications: NotificationConfig{
			Channels: []ChannelConfig{
				{Name: "caba-general", Source: "caba", Kind: "default"},
				{Name: "caba-salud", Source: "caba", Kind: "health"},
				{
					Name:   "caba-insumos",
					Source: "caba",
					Kind:   "supplies",
					ItemCodePrefixes: []string{
						"33.11.001.",
						"33.11.003.",
						"35.01.001.",
					},
				},
				{Name: "nacion-general", Source: "nacion", Kind: "default", RequireOpenDate: true},
			},
		},
		Sources: []SourceConfig{
			{Name: "caba", URL: "https://www.buenosairescompras.gob.ar/", Critical: true},
			{Name: "pba", URL: "https://pbac.cgp.gba.gov.ar/"},
			{Name: "nacion", URL: "https://comprar.gob.ar/"},
		},
	}
}
