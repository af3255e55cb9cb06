// internal/allocation/errors.go
package allocation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyInProgress is returned when a submission is rejected because
	// another one has not reached a terminal state yet.
	ErrAlreadyInProgress = errors.New("allocation update already in progress")

	// ErrInvalidTotal is returned when a candidate set does not total 100.
	ErrInvalidTotal = errors.New("total allocation must equal 100%")

	// ErrNoChanges signals that the candidate matches the current portfolio.
	// Callers should treat this as a successful no-op, not a failure.
	ErrNoChanges = errors.New("allocations match the current portfolio")

	// ErrUserCancelled is returned when the signer declined the transaction.
	// The store is rolled back and no error banner should be shown.
	ErrUserCancelled = errors.New("transaction cancelled by user")
)

// ChainWriteError wraps any chain-side failure other than a signer decline.
// It is the only error class a caller should surface as a failure state.
type ChainWriteError struct {
	Hash string
	Err  error
}

func (e *ChainWriteError) Error() string {
	if e.Hash != "" {
		return fmt.Sprintf("chain write failed (tx %s): %v", e.Hash, e.Err)
	}
	return fmt.Sprintf("chain write failed: %v", e.Err)
}

func (e *ChainWriteError) Unwrap() error { return e.Err }

// cancellationMarkers mirrors the wallet-provider strings observed in the
// wild; providers rarely agree on a machine-readable decline code.
var cancellationMarkers = []string{
	"user denied",
	"user rejected",
	"cancelled",
	"canceled",
}

// IsUserCancellation reports whether err represents the signer declining the
// transaction rather than a real chain failure.
func IsUserCancellation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserCancelled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range cancellationMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
