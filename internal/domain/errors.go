package domain

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors shared across services.
var (
	// ErrClubNotFound means a club name did not resolve against the roster.
	ErrClubNotFound = errors.New("club not found")

	// ErrTransportUnavailable means the mail transport could not be reached.
	ErrTransportUnavailable = errors.New("mail transport unavailable")

	// ErrProviderQuotaExceeded means an AI provider rejected the call for
	// quota or rate-limit reasons.
	ErrProviderQuotaExceeded = errors.New("provider quota exceeded")

	// ErrTimeout means a provider or transport call exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")
)

// ProviderStage identifies which AI call failed.
type ProviderStage string

const (
	StageResearch ProviderStage = "research"
	StageContent  ProviderStage = "content"
)

// ProviderError wraps a research or content generation failure, tagged with
// the stage that produced it.
type ProviderError struct {
	Stage ProviderStage
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Stage, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StorageError wraps a persistence failure. Storage errors are fatal to the
// single operation that hit them and always surface to the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// WrapTimeout converts context deadline errors into ErrTimeout so callers can
// test with errors.Is regardless of which boundary call expired.
func WrapTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
