package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// “Service” groups the engine's secrets in the OS keychain.
	KeyringService = "leadgen"
)

// Names of the secrets the engine knows how to store.
const (
	AWSAccessKey   = "aws_access_key"
	AWSSecretKey   = "aws_secret_key"
	ApolloAPIKey   = "apollo_api_key"
	LinkedInCookie = "linkedin_cookie"
	IMAPPassword   = "imap_password"
	DatabaseKey    = "database_key"
)

var envNames = map[string]string{
	AWSAccessKey:   "AWS_ACCESS_KEY",
	AWSSecretKey:   "AWS_SECRET_KEY",
	ApolloAPIKey:   "APOLLO_API_KEY",
	LinkedInCookie: "LINKEDIN_COOKIE",
	IMAPPassword:   "IMAP_PASSWORD",
	DatabaseKey:    "DATABASE_KEY",
}

var ErrNotFound = errors.New("secret not found")

// Known reports whether name is a secret the engine stores.
func Known(name string) bool {
	_, ok := envNames[name]
	return ok
}

// Account is the keychain account for name.
func Account(name string) string {
	return fmt.Sprintf("leadgen:%s", name)
}

// Get reads name from the keychain, then from its environment variable.
func Get(name string) (string, error) {
	if !Known(name) {
		return "", fmt.Errorf("unknown secret %q", name)
	}
	// 1) Keyring first
	if v, err := keyring.Get(KeyringService, Account(name)); err == nil && strings.TrimSpace(v) != "" {
		return v, nil
	}
	// 2) Environment
	if v := strings.TrimSpace(os.Getenv(envNames[name])); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s (set it in keychain or via %s): %w", name, envNames[name], ErrNotFound)
}

func Set(name, value string) error {
	if !Known(name) {
		return fmt.Errorf("unknown secret %q", name)
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret value is empty")
	}
	return keyring.Set(KeyringService, Account(name), value)
}

func Delete(name string) error {
	if !Known(name) {
		return fmt.Errorf("unknown secret %q", name)
	}
	err := keyring.Delete(KeyringService, Account(name))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
