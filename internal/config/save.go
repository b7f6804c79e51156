package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"leadgen-engine/internal/pipeline"
	"leadgen-engine/internal/scheduler"
)

// Validate checks what can be checked from the file alone. Secrets and
// other runtime requirements are checked by NormalizeAndValidate.
func Validate(cfg Config) error {
	var errs []string

	if cfg.App.Port <= 0 || cfg.App.Port > 65535 {
		errs = append(errs, "app.port must be 1..65535")
	}
	if strings.TrimSpace(cfg.Database.URL) == "" {
		errs = append(errs, "database.url is required")
	}
	if _, err := scheduler.ParseClock(cfg.Schedule.RunTime); err != nil {
		errs = append(errs, "schedule.run_time: "+err.Error())
	}
	if _, err := pipeline.ParsePrimaryJob(cfg.Outreach.PrimaryJob); err != nil {
		errs = append(errs, "outreach.primary_job: "+err.Error())
	}
	if cfg.Scrape.MaxItems < 0 {
		errs = append(errs, "scrape.max_items must be >= 0")
	}
	if cfg.Scrape.TimeoutSeconds < 0 {
		errs = append(errs, "scrape.timeout_seconds must be >= 0")
	}

	delays := []struct {
		name string
		v    int
	}{
		{"delays.site_ms", cfg.Delays.SiteMillis},
		{"delays.email_ms", cfg.Delays.EmailMillis},
		{"delays.lookup_ms", cfg.Delays.LookupMillis},
		{"delays.search_ms", cfg.Delays.SearchMillis},
	}
	for _, d := range delays {
		if d.v < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", d.name))
		}
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n- " + joinLines(errs))
	}
	return nil
}

func SaveAtomic(path string, cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	bak := path + ".bak"

	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}

	_ = os.Remove(bak)
	_ = os.Rename(path, bak)

	return os.Rename(tmp, path)
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n- ")
}
