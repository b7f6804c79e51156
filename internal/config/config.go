// engine/internal/config/config.go
package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"leadgen-engine/internal/pacer"
)

type Config struct {
	App struct {
		Port     int    `yaml:"port" json:"port"`
		DataDir  string `yaml:"data_dir" json:"data_dir"`
		LogLevel string `yaml:"log_level" json:"log_level"`
	} `yaml:"app" json:"app"`

	Database struct {
		URL string `yaml:"url" json:"url"`
		// Key is the database password; it never lives in the yaml file.
		Key string `yaml:"-" json:"-"`
	} `yaml:"database" json:"database"`

	Sender struct {
		Name  string `yaml:"name" json:"name"`
		Email string `yaml:"email" json:"email"`
	} `yaml:"sender" json:"sender"`

	SES struct {
		Enabled          bool   `yaml:"enabled" json:"enabled"`
		Region           string `yaml:"region" json:"region"`
		ConfigurationSet string `yaml:"configuration_set" json:"configuration_set"`
		AccessKey        string `yaml:"-" json:"-"`
		SecretKey        string `yaml:"-" json:"-"`
	} `yaml:"ses" json:"ses"`

	Schedule struct {
		RunTime        string `yaml:"run_time" json:"run_time"`
		RunImmediately bool   `yaml:"run_immediately" json:"run_immediately"`
	} `yaml:"schedule" json:"schedule"`

	Scrape struct {
		BaseURL        string   `yaml:"base_url" json:"base_url"`
		SearchURLs     []string `yaml:"search_urls" json:"search_urls"`
		MaxItems       int      `yaml:"max_items" json:"max_items"`
		TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds"`
		Cookie         string   `yaml:"-" json:"-"`
	} `yaml:"scrape" json:"scrape"`

	Apollo struct {
		Enabled bool   `yaml:"enabled" json:"enabled"`
		BaseURL string `yaml:"base_url" json:"base_url"`
		APIKey  string `yaml:"-" json:"-"`
	} `yaml:"apollo" json:"apollo"`

	// Delays are the fixed pauses between calls to each external service.
	Delays struct {
		SiteMillis   int `yaml:"site_ms" json:"site_ms"`
		EmailMillis  int `yaml:"email_ms" json:"email_ms"`
		LookupMillis int `yaml:"lookup_ms" json:"lookup_ms"`
		SearchMillis int `yaml:"search_ms" json:"search_ms"`
	} `yaml:"delays" json:"delays"`

	Outreach struct {
		// PrimaryJob is most_recent or first.
		PrimaryJob string `yaml:"primary_job" json:"primary_job"`
	} `yaml:"outreach" json:"outreach"`

	Bounce struct {
		Enabled     bool   `yaml:"enabled" json:"enabled"`
		IMAPHost    string `yaml:"imap_host" json:"imap_host"`
		IMAPPort    int    `yaml:"imap_port" json:"imap_port"`
		Username    string `yaml:"username" json:"username"`
		Mailbox     string `yaml:"mailbox" json:"mailbox"`
		PollSeconds int    `yaml:"poll_seconds" json:"poll_seconds"`
		Password    string `yaml:"-" json:"-"`
	} `yaml:"bounce" json:"bounce"`

	Cache struct {
		RedisURL string `yaml:"redis_url" json:"redis_url"`
		TTLHours int    `yaml:"ttl_hours" json:"ttl_hours"`
	} `yaml:"cache" json:"cache"`
}

// Default is the configuration written on first start.
func Default() Config {
	var cfg Config
	cfg.App.Port = 38471
	cfg.App.DataDir = "."
	cfg.App.LogLevel = "info"
	cfg.Database.URL = "leadgen.db"
	cfg.SES.Region = "us-east-1"
	cfg.SES.ConfigurationSet = "EmailMetrics"
	cfg.Schedule.RunTime = "09:00"
	cfg.Scrape.MaxItems = 100
	cfg.Scrape.TimeoutSeconds = 20
	cfg.Delays.SiteMillis = 2000
	cfg.Delays.EmailMillis = 1000
	cfg.Delays.LookupMillis = 1000
	cfg.Delays.SearchMillis = 1000
	cfg.Outreach.PrimaryJob = "most_recent"
	cfg.Bounce.IMAPPort = 993
	cfg.Bounce.Mailbox = "INBOX"
	cfg.Bounce.PollSeconds = 300
	cfg.Cache.TTLHours = 720
	return cfg
}

// Load reads path over the defaults, so keys missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// ServiceDelays maps pacer service names to their configured delay.
func (c Config) ServiceDelays() map[string]time.Duration {
	return map[string]time.Duration{
		pacer.ServiceSite:   millis(c.Delays.SiteMillis),
		pacer.ServiceEmail:  millis(c.Delays.EmailMillis),
		pacer.ServiceLookup: millis(c.Delays.LookupMillis),
		pacer.ServiceSearch: millis(c.Delays.SearchMillis),
	}
}

// DatabaseDSN is Database.URL with Database.Key filled in as the password
// of a postgres URL that carries none. Relative SQLite paths are resolved
// against App.DataDir.
func (c Config) DatabaseDSN() string {
	raw := strings.TrimSpace(c.Database.URL)
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "postgres://") && !strings.HasPrefix(lower, "postgresql://") {
		path := strings.TrimPrefix(raw, "sqlite://")
		if path != "" && path != ":memory:" && !filepath.IsAbs(path) && c.App.DataDir != "" {
			return filepath.Join(c.App.DataDir, path)
		}
		return path
	}
	if c.Database.Key == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), c.Database.Key)
	return u.String()
}
