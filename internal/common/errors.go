// Package common defines the error taxonomy and small helpers shared by every
// layer of the inscription pipeline. Callers should use errors.Is to match
// these values; KindOf maps an error back to its stable kind name.
package common

import (
	"errors"
)

var (
	// Input errors. Local, never retried.
	ErrValidation = errors.New("validation error")

	// Decryption errors. Never retried, always surfaced.
	ErrAuthentication = errors.New("authentication failed")
	ErrCorruptData    = errors.New("corrupt data")

	// Policy gate of time-locked content.
	ErrTimeLockNotExpired = errors.New("time-lock has not expired yet")

	// Inscription errors.
	ErrSubmission        = errors.New("submission error")
	ErrTransientPoll     = errors.New("transient poll error")
	ErrTimeout           = errors.New("inscription timeout")
	ErrCancelled         = errors.New("inscription cancelled")
	ErrInscriptionFailed = errors.New("inscription failed")

	// Persistence errors.
	ErrStore         = errors.New("store error")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrValidation, "validation"},
	{ErrAuthentication, "authentication"},
	{ErrCorruptData, "corrupt_data"},
	{ErrTimeLockNotExpired, "timelock_not_expired"},
	{ErrSubmission, "submission"},
	{ErrTransientPoll, "transient_poll"},
	{ErrTimeout, "timeout"},
	{ErrCancelled, "cancelled"},
	{ErrInscriptionFailed, "failed"},
	{ErrNotFound, "not_found"},
	{ErrAlreadyExists, "already_exists"},
	{ErrStore, "store"},
}

// KindOf returns the kind name of the first taxonomy error found in err's
// chain, or "internal" when err carries none of them. A nil error has no kind.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}

// IsRecoverable reports whether a publication may degrade to a "pending"
// record instead of failing when the inscription step returns err.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrInscriptionFailed) ||
		errors.Is(err, ErrSubmission)
}
