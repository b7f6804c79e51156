package config

import (
	"fmt"
	"net/mail"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return fmt.Errorf("config validation failed:\n- %s", joinLines(v.Errors))
}

// NormalizeAndValidate returns a normalized copy of cfg with the checks a
// run needs: file-level rules plus sender identity and credentials of the
// enabled services. Errors are fatal at startup.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Scrape.SearchURLs = trimList(out.Scrape.SearchURLs)
	out.Sender.Name = strings.TrimSpace(out.Sender.Name)
	out.Sender.Email = strings.TrimSpace(out.Sender.Email)
	out.Schedule.RunTime = strings.TrimSpace(out.Schedule.RunTime)
	out.Outreach.PrimaryJob = strings.ToLower(strings.TrimSpace(out.Outreach.PrimaryJob))
	out.App.LogLevel = strings.ToLower(strings.TrimSpace(out.App.LogLevel))

	// ---- Validation rules ----

	if err := Validate(out); err != nil {
		for _, line := range strings.Split(err.Error(), "\n- ")[1:] {
			res.addErr("%s", line)
		}
	}

	switch out.App.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		res.addErr("app.log_level must be debug, info, warn or error")
	}

	// sender identity is part of every rendered message
	if out.Sender.Name == "" {
		res.addErr("sender.name is required (SENDER_NAME)")
	}
	if out.Sender.Email == "" {
		res.addErr("sender.email is required (SENDER_EMAIL)")
	} else if _, err := mail.ParseAddress(out.Sender.Email); err != nil {
		res.addErr("sender.email %q is not a valid address", out.Sender.Email)
	}

	if out.SES.Enabled {
		if strings.TrimSpace(out.SES.Region) == "" {
			res.addErr("ses.region is required when ses.enabled=true (AWS_REGION)")
		}
		if out.SES.AccessKey == "" || out.SES.SecretKey == "" {
			res.addErr("SES credentials are required when ses.enabled=true (AWS_ACCESS_KEY, AWS_SECRET_KEY)")
		}
		if strings.TrimSpace(out.SES.ConfigurationSet) == "" {
			res.addWarn("ses.configuration_set is empty; delivery tracking is off.")
		}
	} else {
		res.addWarn("ses.enabled is false; the send stage is skipped.")
	}

	if out.Apollo.Enabled && out.Apollo.APIKey == "" {
		res.addErr("apollo api key is required when apollo.enabled=true (APOLLO_API_KEY)")
	}
	if !out.Apollo.Enabled && out.Apollo.APIKey != "" {
		res.addWarn("an apollo api key is set but apollo.enabled is false.")
	}

	if out.Bounce.Enabled {
		if strings.TrimSpace(out.Bounce.IMAPHost) == "" {
			res.addErr("bounce.imap_host is required when bounce.enabled=true")
		}
		if strings.TrimSpace(out.Bounce.Username) == "" {
			res.addErr("bounce.username is required when bounce.enabled=true")
		}
		if out.Bounce.Password == "" {
			res.addErr("bounce mailbox password is required when bounce.enabled=true (IMAP_PASSWORD)")
		}
		if out.Bounce.PollSeconds <= 0 {
			res.addErr("bounce.poll_seconds must be > 0")
		} else if out.Bounce.PollSeconds < 30 {
			res.addWarn("bounce.poll_seconds is very low (%d) and may cause rate limits.", out.Bounce.PollSeconds)
		}
	}

	// pacing sanity
	if out.Delays.SiteMillis < 500 {
		res.addWarn("delays.site_ms is very low (%d); the site may throttle the session.", out.Delays.SiteMillis)
	}
	if len(out.Scrape.SearchURLs) > 0 && out.Scrape.Cookie == "" {
		res.addWarn("search_urls are set but no session cookie is configured (LINKEDIN_COOKIE); results may be empty.")
	}

	return out, res
}
