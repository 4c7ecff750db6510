package utils_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ArkLabsHQ/oracle-node/utils"
	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	t.Run("done", func(t *testing.T) {
		calls := 0
		err := utils.Retry(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("error", func(t *testing.T) {
		errStop := errors.New("stop")
		err := utils.Retry(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
			return false, errStop
		})
		require.ErrorIs(t, err, errStop)
	})

	t.Run("timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := utils.Retry(ctx, 5*time.Millisecond, func(context.Context) (bool, error) {
			return false, nil
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := utils.Retry(ctx, time.Millisecond, func(context.Context) (bool, error) {
			return false, nil
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}
