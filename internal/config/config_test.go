package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"leadgen-engine/internal/secrets"
)

func validConfig() Config {
	cfg := Default()
	cfg.Sender.Name = "Jordan Lee"
	cfg.Sender.Email = "jordan@example.com"
	cfg.SES.Enabled = true
	cfg.SES.AccessKey = "AKIA"
	cfg.SES.SecretKey = "secret"
	return cfg
}

func TestNormalizeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing sender", mutate: func(c *Config) { c.Sender.Name = "  " }, wantErr: "sender.name"},
		{name: "bad sender email", mutate: func(c *Config) { c.Sender.Email = "not-an-address" }, wantErr: "sender.email"},
		{name: "bad run time", mutate: func(c *Config) { c.Schedule.RunTime = "9am" }, wantErr: "schedule.run_time"},
		{name: "hour out of range", mutate: func(c *Config) { c.Schedule.RunTime = "24:00" }, wantErr: "schedule.run_time"},
		{name: "negative delay", mutate: func(c *Config) { c.Delays.EmailMillis = -1 }, wantErr: "delays.email_ms"},
		{name: "unknown primary job", mutate: func(c *Config) { c.Outreach.PrimaryJob = "random" }, wantErr: "outreach.primary_job"},
		{name: "ses without keys", mutate: func(c *Config) { c.SES.SecretKey = "" }, wantErr: "SES credentials"},
		{name: "apollo without key", mutate: func(c *Config) { c.Apollo.Enabled = true }, wantErr: "apollo api key"},
		{name: "bounce without host", mutate: func(c *Config) {
			c.Bounce.Enabled = true
			c.Bounce.Username = "u"
			c.Bounce.Password = "p"
		}, wantErr: "bounce.imap_host"},
		{name: "bad log level", mutate: func(c *Config) { c.App.LogLevel = "loud" }, wantErr: "app.log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			_, v := NormalizeAndValidate(cfg)

			if tt.wantErr == "" {
				if !v.OK() {
					t.Fatalf("unexpected errors: %v", v.Errors)
				}
				return
			}
			if v.OK() {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(strings.Join(v.Errors, "\n"), tt.wantErr) {
				t.Errorf("errors %v do not mention %q", v.Errors, tt.wantErr)
			}
			if v.Err() == nil {
				t.Error("Err() = nil for failed validation")
			}
		})
	}
}

func TestNormalizeTrimsSearchURLs(t *testing.T) {
	cfg := validConfig()
	cfg.Scrape.SearchURLs = []string{" https://a/search ", "", "https://A/search", "https://b/search"}
	out, _ := NormalizeAndValidate(cfg)
	if len(out.Scrape.SearchURLs) != 2 {
		t.Errorf("SearchURLs = %v, want 2 entries", out.Scrape.SearchURLs)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DATABASE_URL":      "postgres://lead@db:5432/leads",
		"SENDER_NAME":       "Jordan Lee",
		"SENDER_EMAIL":      "jordan@example.com",
		"PIPELINE_RUN_TIME": "07:30",
		"RUN_IMMEDIATELY":   "True",
		"AWS_REGION":        "eu-west-1",
	}
	vault := map[string]string{
		secrets.DatabaseKey:  "pw",
		secrets.AWSAccessKey: "AKIA",
		secrets.AWSSecretKey: "shh",
		secrets.ApolloAPIKey: "apollo",
	}
	secret := func(name string) (string, error) {
		if v, ok := vault[name]; ok {
			return v, nil
		}
		return "", secrets.ErrNotFound
	}

	cfg := ApplyEnv(Default(), func(k string) string { return env[k] }, secret)

	if cfg.Schedule.RunTime != "07:30" || !cfg.Schedule.RunImmediately {
		t.Errorf("schedule = %+v", cfg.Schedule)
	}
	if cfg.SES.Region != "eu-west-1" || cfg.SES.AccessKey != "AKIA" || cfg.SES.SecretKey != "shh" {
		t.Errorf("ses = %+v", cfg.SES)
	}
	if cfg.Apollo.APIKey != "apollo" {
		t.Errorf("apollo key = %q", cfg.Apollo.APIKey)
	}
	if cfg.Bounce.Password != "" {
		t.Errorf("unset secret should stay empty, got %q", cfg.Bounce.Password)
	}
	if got, want := cfg.DatabaseDSN(), "postgres://lead:pw@db:5432/leads"; got != want {
		t.Errorf("DatabaseDSN() = %q, want %q", got, want)
	}
	if cfg.SES.ConfigurationSet != "EmailMetrics" {
		t.Errorf("default configuration set lost: %q", cfg.SES.ConfigurationSet)
	}
}

func TestDatabaseDSNSQLite(t *testing.T) {
	cfg := Default()
	cfg.App.DataDir = "/var/lib/leadgen"
	if got := cfg.DatabaseDSN(); got != filepath.Join("/var/lib/leadgen", "leadgen.db") {
		t.Errorf("DatabaseDSN() = %q", got)
	}
	cfg.Database.URL = ":memory:"
	if got := cfg.DatabaseDSN(); got != ":memory:" {
		t.Errorf("DatabaseDSN() = %q", got)
	}
}

func TestEnsureUserConfigWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path, err := EnsureUserConfig(dir, filepath.Join(dir, "missing.yml"))
	if err != nil {
		t.Fatalf("EnsureUserConfig: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Schedule.RunTime != "09:00" || cfg.App.DataDir != dir {
		t.Errorf("loaded = %+v / %+v", cfg.Schedule, cfg.App)
	}

	// second call keeps the existing file
	cfg.Schedule.RunTime = "10:15"
	if err := SaveAtomic(path, cfg); err != nil {
		t.Fatalf("SaveAtomic: %v", err)
	}
	if _, err := EnsureUserConfig(dir, ""); err != nil {
		t.Fatalf("EnsureUserConfig again: %v", err)
	}
	again, _ := Load(path)
	if again.Schedule.RunTime != "10:15" {
		t.Errorf("config overwritten: run_time = %q", again.Schedule.RunTime)
	}
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Errorf("expected backup file: %v", err)
	}
}

func TestSaveAtomicRejectsInvalid(t *testing.T) {
	cfg := Default()
	cfg.App.Port = 0
	err := SaveAtomic(filepath.Join(t.TempDir(), "config.yml"), cfg)
	if err == nil || !strings.Contains(err.Error(), "app.port") {
		t.Errorf("SaveAtomic err = %v", err)
	}
}

func TestLoadDotEnvSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("LEADGEN_TEST_SENDER=Casey\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LEADGEN_TEST_SENDER", "")
	os.Unsetenv("LEADGEN_TEST_SENDER")

	if err := LoadDotEnv(filepath.Join(dir, "nope.env"), envPath); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("LEADGEN_TEST_SENDER"); got != "Casey" {
		t.Errorf("LEADGEN_TEST_SENDER = %q", got)
	}
}
