package errkind

import (
	"context"
	"testing"

	stderrors "errors"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestClassify_SkipBlockSubstrings(t *testing.T) {
	cases := []string{
		"block not available (pruned data)",
		"Block height out of range",
		"block not found",
		"database is pruned",
	}
	for _, msg := range cases {
		require.Equal(t, KindSkipBlock, Classify(errors.New(msg)), msg)
	}
}

func TestClassify_ConflictSubstrings(t *testing.T) {
	require.Equal(t, KindConflict, Classify(errors.New("UNIQUE constraint failed: charms.txid")))
	require.Equal(t, KindConflict, Classify(errors.New("constraint failed")))
}

func TestClassify_UnrecognizedDefaultsToRetryable(t *testing.T) {
	require.Equal(t, KindRetryable, Classify(errors.New("connection reset by peer")))
}

func TestClassify_NilIsRetryable(t *testing.T) {
	require.Equal(t, KindRetryable, Classify(nil))
}

func TestIsTimeout(t *testing.T) {
	require.True(t, IsTimeout(context.DeadlineExceeded))
	require.True(t, IsTimeout(context.Canceled))
	require.True(t, IsTimeout(errors.Wrap(context.DeadlineExceeded, "chainclient: tip fetch")))
	require.False(t, IsTimeout(stderrors.New("unrelated")))
}
