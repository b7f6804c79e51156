package secrets

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestGetPrefersKeyring(t *testing.T) {
	keyring.MockInit()
	t.Setenv("APOLLO_API_KEY", "from-env")

	got, err := Get(ApolloAPIKey)
	if err != nil || got != "from-env" {
		t.Fatalf("env fallback = %q, %v", got, err)
	}

	if err := Set(ApolloAPIKey, "from-keyring"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, _ = Get(ApolloAPIKey)
	if got != "from-keyring" {
		t.Errorf("Get = %q, want keyring value", got)
	}

	if err := Delete(ApolloAPIKey); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := Delete(ApolloAPIKey); err != nil {
		t.Errorf("second Delete = %v", err)
	}
	got, _ = Get(ApolloAPIKey)
	if got != "from-env" {
		t.Errorf("after delete Get = %q", got)
	}
}

func TestGetMissing(t *testing.T) {
	keyring.MockInit()
	t.Setenv("IMAP_PASSWORD", "")

	if _, err := Get(IMAPPassword); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := Get("root_password"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("unknown secret err = %v", err)
	}
	if err := Set(IMAPPassword, "  "); err == nil {
		t.Error("empty value accepted")
	}
}
