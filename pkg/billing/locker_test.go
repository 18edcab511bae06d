package billing_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billable/pkg/billing"
)

func TestMemoryLocker(t *testing.T) {
	t.Parallel()

	t.Run("serializes same key", func(t *testing.T) {
		t.Parallel()
		l := billing.NewMemoryLocker()
		ctx := context.Background()

		var inside, maxInside atomic.Int32
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := l.Lock(ctx, "k")
				if !assert.NoError(t, err) {
					return
				}
				defer unlock()

				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxInside.Load())
	})

	t.Run("different keys do not block", func(t *testing.T) {
		t.Parallel()
		l := billing.NewMemoryLocker()
		ctx := context.Background()

		unlockA, err := l.Lock(ctx, "a")
		require.NoError(t, err)
		defer unlockA()

		lctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		unlockB, err := l.Lock(lctx, "b")
		require.NoError(t, err)
		unlockB()
	})

	t.Run("times out on held key", func(t *testing.T) {
		t.Parallel()
		l := billing.NewMemoryLocker()
		ctx := context.Background()

		unlock, err := l.Lock(ctx, "k")
		require.NoError(t, err)

		lctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err = l.Lock(lctx, "k")
		assert.ErrorIs(t, err, billing.ErrLockTimeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		unlock()
		unlock()

		again, err := l.Lock(ctx, "k")
		require.NoError(t, err)
		again()
	})
}

func TestOwnerLockKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "billing:owner:42", billing.OwnerLockKey("42"))
}
