package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a lookup miss. Callers treat it as a branch, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrTransient marks a network or database hiccup worth one retry.
	ErrTransient = errors.New("transient backend error")

	// ErrDuplicateKey marks an insert that collided with an existing key.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrProvider marks an email provider rejection.
	ErrProvider = errors.New("email provider error")

	// ErrExtractionIncomplete marks partial scraped data.
	ErrExtractionIncomplete = errors.New("extraction incomplete")
)

type classified struct {
	kind error
	err  error
}

func (c *classified) Error() string {
	return fmt.Sprintf("%v: %v", c.kind, c.err)
}

func (c *classified) Unwrap() []error { return []error{c.kind, c.err} }

// Transient wraps err so that errors.Is(err, ErrTransient) holds.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classified{kind: ErrTransient, err: err}
}

// ProviderError wraps an email provider failure.
func ProviderError(err error) error {
	if err == nil {
		return nil
	}
	return &classified{kind: ErrProvider, err: err}
}
