package quote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/paygate/pkg/money"
)

func rate(t *testing.T, s string) money.Rate {
	t.Helper()
	r, err := money.NewRate(s)
	require.NoError(t, err)
	return r
}

func TestLockReset(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("should start unlocked and impose no constraint", func(t *testing.T) {
		q := New(90*time.Second, 50)
		assert.False(t, q.Locked())
		assert.True(t, q.Check(now, rate(t, "150")).OK())
	})

	t.Run("should capture rate and timestamp on lock", func(t *testing.T) {
		q := New(90*time.Second, 50)
		locked, err := q.Lock("Q-1", rate(t, "150"), now)
		require.NoError(t, err)
		assert.True(t, locked.Locked())
		assert.Equal(t, "Q-1", locked.ID)
		assert.Equal(t, now, locked.LockedAt)
		assert.True(t, locked.LockedRate.Equal(rate(t, "150")))
	})

	t.Run("should reject double lock", func(t *testing.T) {
		q := New(90*time.Second, 50)
		locked, err := q.Lock("Q-1", rate(t, "150"), now)
		require.NoError(t, err)

		_, err = locked.Lock("Q-2", rate(t, "151"), now)
		assert.ErrorIs(t, err, ErrAlreadyLocked)
	})

	t.Run("should discard captured state on reset", func(t *testing.T) {
		q := New(90*time.Second, 50)
		locked, err := q.Lock("Q-1", rate(t, "150"), now)
		require.NoError(t, err)

		reset := locked.Reset()
		assert.False(t, reset.Locked())
		assert.Empty(t, reset.ID)
		assert.True(t, reset.LockedAt.IsZero())

		// Re-lock after reset is permitted.
		_, err = reset.Lock("Q-2", rate(t, "151"), now)
		assert.NoError(t, err)
	})

	t.Run("should not mutate the original on lock", func(t *testing.T) {
		q := New(90*time.Second, 50)
		_, err := q.Lock("Q-1", rate(t, "150"), now)
		require.NoError(t, err)
		assert.False(t, q.Locked())
	})
}

func TestHoldWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	q := New(90*time.Second, 50)
	locked, err := q.Lock("Q-1", rate(t, "150"), now)
	require.NoError(t, err)
	r := rate(t, "150")

	t.Run("should be valid up to and including the window bound", func(t *testing.T) {
		assert.True(t, locked.Check(now.Add(89*time.Second), r).HoldValid)
		assert.True(t, locked.Check(now.Add(90*time.Second), r).HoldValid)
	})

	t.Run("should expire one second past the window", func(t *testing.T) {
		v := locked.Check(now.Add(91*time.Second), r)
		assert.False(t, v.HoldValid)
		assert.False(t, v.OK())
	})

	t.Run("should stay expired without re-locking", func(t *testing.T) {
		// Expiry is monotonic in elapsed time; reading never revives a quote.
		assert.False(t, locked.Check(now.Add(91*time.Second), r).HoldValid)
		assert.False(t, locked.Check(now.Add(5*time.Minute), r).HoldValid)
		assert.True(t, locked.Locked())
	})

	t.Run("should report remaining hold time", func(t *testing.T) {
		assert.Equal(t, 30*time.Second, locked.RemainingHold(now.Add(60*time.Second)))
		assert.Equal(t, time.Duration(0), locked.RemainingHold(now.Add(2*time.Minute)))
	})
}

func TestSlippageBound(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	q := New(90*time.Second, 50)
	locked, err := q.Lock("Q-1", rate(t, "150.0"), now)
	require.NoError(t, err)

	t.Run("should breach at 66.7bps against a 50bps bound", func(t *testing.T) {
		v := locked.Check(now, rate(t, "151.0"))
		assert.True(t, v.HoldValid)
		assert.False(t, v.SlippageValid)
		assert.False(t, v.OK())
	})

	t.Run("should pass within the bound", func(t *testing.T) {
		// 150.5 vs 150.0 = 33.3bps
		v := locked.Check(now, rate(t, "150.5"))
		assert.True(t, v.SlippageValid)
		assert.True(t, v.OK())
	})

	t.Run("should treat downward moves symmetrically", func(t *testing.T) {
		v := locked.Check(now, rate(t, "149.0"))
		assert.False(t, v.SlippageValid)
	})

	t.Run("should pass at exactly the bound", func(t *testing.T) {
		// 150.75 vs 150.0 = exactly 50bps
		v := locked.Check(now, rate(t, "150.75"))
		assert.True(t, v.SlippageValid)
	})

	t.Run("should not mutate state when read", func(t *testing.T) {
		before := locked
		locked.Check(now.Add(time.Hour), rate(t, "200"))
		assert.Equal(t, before, locked)
	})
}
