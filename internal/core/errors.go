package core

import "errors"

// Error taxonomy shared by the services. Wrap with fmt.Errorf("...: %w", ...)
// and branch with errors.Is.
var (
	// ErrValidation marks malformed or inconsistent input. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a missing entity or one not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientHistory is recoverable: the caller (and the scheduler)
	// treats it as a skip, not a failure.
	ErrInsufficientHistory = errors.New("insufficient transaction history")

	// ErrPredictorUnavailable marks a failed or timed-out external
	// predictor call. The category path degrades to a default category;
	// health and forecast computations fail with it.
	ErrPredictorUnavailable = errors.New("predictor unavailable")
)
