package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"leadgen-engine/internal/secrets"
)

// LoadDotEnv loads each existing .env file into the process environment.
// Variables already set win; missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// SecretFunc resolves a named secret; see secrets.Get.
type SecretFunc func(name string) (string, error)

// ApplyEnv overlays environment variables and secrets onto cfg. A nil getenv
// uses os.Getenv and a nil secret uses secrets.Get.
func ApplyEnv(cfg Config, getenv func(string) string, secret SecretFunc) Config {
	if getenv == nil {
		getenv = os.Getenv
	}
	if secret == nil {
		secret = secrets.Get
	}

	str := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str(&cfg.Database.URL, "DATABASE_URL")
	str(&cfg.SES.Region, "AWS_REGION")
	str(&cfg.SES.ConfigurationSet, "SES_CONFIGURATION_SET")
	str(&cfg.Sender.Name, "SENDER_NAME")
	str(&cfg.Sender.Email, "SENDER_EMAIL")
	str(&cfg.Schedule.RunTime, "PIPELINE_RUN_TIME")
	str(&cfg.Cache.RedisURL, "REDIS_URL")
	str(&cfg.App.DataDir, "LEADGEN_DATA_DIR")

	if v := strings.TrimSpace(getenv("RUN_IMMEDIATELY")); v != "" {
		cfg.Schedule.RunImmediately = parseFlag(v)
	}

	sec := func(dst *string, name string) {
		if v, err := secret(name); err == nil && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	sec(&cfg.Database.Key, secrets.DatabaseKey)
	sec(&cfg.SES.AccessKey, secrets.AWSAccessKey)
	sec(&cfg.SES.SecretKey, secrets.AWSSecretKey)
	sec(&cfg.Apollo.APIKey, secrets.ApolloAPIKey)
	sec(&cfg.Scrape.Cookie, secrets.LinkedInCookie)
	sec(&cfg.Bounce.Password, secrets.IMAPPassword)

	return cfg
}

func parseFlag(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// WithSecrets copies the secret fields of from into cfg. Secrets never
// travel through the yaml file or the HTTP API.
func WithSecrets(cfg, from Config) Config {
	cfg.Database.Key = from.Database.Key
	cfg.SES.AccessKey = from.SES.AccessKey
	cfg.SES.SecretKey = from.SES.SecretKey
	cfg.Apollo.APIKey = from.Apollo.APIKey
	cfg.Scrape.Cookie = from.Scrape.Cookie
	cfg.Bounce.Password = from.Bounce.Password
	return cfg
}
