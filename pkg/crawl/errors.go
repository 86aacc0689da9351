package crawl

import (
	"errors"
)

var (
	// ErrNoTargets is returned by RunAll without identifiers.
	ErrNoTargets = errors.New("no product identifiers")

	// ErrCancelled is returned when the run context ends.
	ErrCancelled = errors.New("crawl cancelled")
)

// StopReason tells how a target's loop ended.
type StopReason string

const (
	// StopCompleted: the current page passed the last known page.
	StopCompleted StopReason = "completed"

	// StopBudget: the review budget was reached.
	StopBudget StopReason = "budget"

	// StopFetchFailed: a non-200 (other than 503) or absent response.
	StopFetchFailed StopReason = "fetch_failed"

	// StopRetryBudget: a page was retried more often than allowed.
	StopRetryBudget StopReason = "retry_budget"

	// StopStoreError: the artifact could not be checked or written.
	StopStoreError StopReason = "store_error"

	// StopCancelled: the run context ended.
	StopCancelled StopReason = "cancelled"
)
