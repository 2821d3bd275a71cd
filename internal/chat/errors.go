package chat

import (
	"errors"
	"fmt"
)

// Admission rejection reasons. The UI must distinguish exhausted credits
// from everything else, so the reason survives the error boundary.
const (
	ReasonInsufficientCredits = "insufficient_credits"
	ReasonGeneric             = "generic"
)

// ErrPipelineClosed is returned by Submit when the project is paused or
// terminal. New user input on a terminal project starts a new project.
var ErrPipelineClosed = errors.New("pipeline is closed for new input")

// ErrNotEntered is returned by session actions before Enter succeeded.
var ErrNotEntered = errors.New("no active project view")

// ErrEmptyInput is returned by Submit for whitespace-only input; an
// empty message would burn a gated advance call for nothing.
var ErrEmptyInput = errors.New("input is empty")

// AdmissionError is an authoritative rejection from the advance gate.
type AdmissionError struct {
	Reason  string
	Message string
}

func (e *AdmissionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("advance rejected (%s): %s", e.Reason, e.Message)
	}
	return fmt.Sprintf("advance rejected (%s)", e.Reason)
}

func (e *AdmissionError) InsufficientCredits() bool {
	return e.Reason == ReasonInsufficientCredits
}

// FetchError wraps a failed entity read. Safe to retry by re-entering
// the project view.
type FetchError struct {
	Entity string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Entity, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SubscriptionError records a dropped change feed. The session keeps
// serving last-known state instead of failing the whole view.
type SubscriptionError struct {
	Err error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("change subscription failed: %v", e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }
