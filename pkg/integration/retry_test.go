package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orchestr8/engine/internal/orcherr"
)

func TestDoRetriesRecoverableErrorsUntilSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), nil, "test", "op", fastPolicy(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return orcherr.UpstreamError("test", "op", "transient", errors.New("boom"))
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDoStopsImmediatelyOnNonRecoverableError(t *testing.T) {
	attempts := 0
	sentinel := orcherr.ValidationFailure("test", "op", "bad input", nil)
	err := Do(context.Background(), nil, "test", "op", fastPolicy(), func(context.Context) error {
		attempts++
		return sentinel
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
	require.ErrorIs(t, err, sentinel)
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	p := fastPolicy()
	p.MaxRetries = 2
	err := Do(context.Background(), nil, "test", "op", p, func(context.Context) error {
		attempts++
		return orcherr.OperationTimeout("test", "op", "slow", nil)
	})
	require.Error(t, err)
	require.Equal(t, 3, attempts) // initial attempt + 2 retries
}

func fastPolicy() Policy {
	p := DefaultPolicy()
	p.BaseInterval = 1
	p.MaxInterval = 1
	return p
}
