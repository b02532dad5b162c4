// Package errkind classifies errors into the taxonomy of spec.md §7, so
// every caller along the pipeline can decide retry/skip/abort the same way
// without re-deriving the policy table.
package errkind

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Kind is one row of the §7 error taxonomy table.
type Kind int

const (
	// KindRetryable covers transient DB errors and node timeouts: retry
	// with backoff, never advance the cursor on final failure.
	KindRetryable Kind = iota
	// KindConflict is a unique-constraint violation on an idempotent
	// insert path: swallow it, treat as success.
	KindConflict
	// KindSkipBlock is a pruned/missing/out-of-range block: mark the
	// block processed with zero charms and advance.
	KindSkipBlock
	// KindSilent covers spell-parse failures and address-decode
	// failures: the unit of work (tx, output) contributes nothing, no
	// log above debug.
	KindSilent
)

// nodeSkipSubstrings are matched case-insensitively against ChainClient
// errors per spec.md §6: "pruned, block not available, block height out
// of range, block not found → skip this height".
var nodeSkipSubstrings = []string{
	"pruned",
	"block not available",
	"block height out of range",
	"block not found",
}

// Classify inspects err and returns its §7 taxonomy bucket. Unrecognized
// errors default to KindRetryable, matching §7's "all others → retry".
func Classify(err error) Kind {
	if err == nil {
		return KindRetryable
	}

	if isConflict(err) {
		return KindConflict
	}

	msg := strings.ToLower(err.Error())
	for _, s := range nodeSkipSubstrings {
		if strings.Contains(msg, s) {
			return KindSkipBlock
		}
	}

	return KindRetryable
}

// IsTimeout reports whether err is a context-deadline style node timeout,
// per spec.md §7's "Node timeout: >5s on tip fetch".
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// isConflict recognizes the sqlite3 unique-constraint error text, since
// mattn/go-sqlite3 reports conflicts as plain strings rather than a typed
// sentinel the caller can errors.Is against.
func isConflict(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}
