package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/terminal-bench/paygate/internal/policy"
	"github.com/terminal-bench/paygate/pkg/money"
)

func snapshot(enabled bool, cap int64, window policy.Window) policy.Snapshot {
	return policy.Snapshot{
		Jurisdiction: "JP",
		Instruments:  []string{"stablecoin", "ledger", "card"},
		Currency:     "JPY",
		Enabled:      enabled,
		MaxPerTxn:    money.NewAmountFromInt(cap),
		Window:       window,
	}
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestEvaluatePrecedence(t *testing.T) {
	window := policy.Window{Start: "09:00", End: "20:00"}

	t.Run("should block disabled policy regardless of amount and time", func(t *testing.T) {
		snap := snapshot(false, 15000, window)
		dec := Evaluate(snap, money.NewAmountFromInt(1), at(12, 0))
		assert.False(t, dec.Approved)
		assert.Equal(t, ReasonPolicyDisabled, dec.Reason)

		// Disabled wins over every other check.
		dec = Evaluate(snap, money.NewAmountFromInt(999999), at(3, 0))
		assert.Equal(t, ReasonPolicyDisabled, dec.Reason)
	})

	t.Run("should block outside the window before checking the cap", func(t *testing.T) {
		snap := snapshot(true, 15000, window)
		dec := Evaluate(snap, money.NewAmountFromInt(999999), at(21, 0))
		assert.Equal(t, ReasonOutsideWindow, dec.Reason)
	})

	t.Run("should approve within cap and window", func(t *testing.T) {
		snap := snapshot(true, 15000, window)
		dec := Evaluate(snap, money.NewAmountFromInt(10000), at(12, 0))
		assert.True(t, dec.Approved)
		assert.Equal(t, ReasonNone, dec.Reason)
	})

	t.Run("should block totals above the cap", func(t *testing.T) {
		snap := snapshot(true, 15000, window)
		dec := Evaluate(snap, money.NewAmountFromInt(20000), at(12, 0))
		assert.Equal(t, ReasonCapExceeded, dec.Reason)
	})

	t.Run("should pass totals equal to the cap", func(t *testing.T) {
		snap := snapshot(true, 15000, window)
		dec := Evaluate(snap, money.NewAmountFromInt(15000), at(12, 0))
		assert.True(t, dec.Approved)
	})
}

func TestWindowBounds(t *testing.T) {
	snap := snapshot(true, 0, policy.Window{Start: "09:00", End: "20:00"})
	total := money.NewAmountFromInt(100)

	t.Run("should include both bounds", func(t *testing.T) {
		assert.True(t, Evaluate(snap, total, at(9, 0)).Approved)
		assert.True(t, Evaluate(snap, total, at(20, 0)).Approved)
	})

	t.Run("should exclude one minute past either bound", func(t *testing.T) {
		assert.Equal(t, ReasonOutsideWindow, Evaluate(snap, total, at(8, 59)).Reason)
		assert.Equal(t, ReasonOutsideWindow, Evaluate(snap, total, at(20, 1)).Reason)
	})
}

func TestZeroCapEscape(t *testing.T) {
	t.Run("should treat cap zero as no cap enforced", func(t *testing.T) {
		snap := snapshot(true, 0, policy.Unrestricted)
		dec := Evaluate(snap, money.NewAmountFromInt(10_000_000), at(12, 0))
		assert.True(t, dec.Approved)
	})
}

func TestEvaluateIsPure(t *testing.T) {
	t.Run("should give identical decisions for identical inputs", func(t *testing.T) {
		snap := snapshot(true, 15000, policy.Window{Start: "09:00", End: "20:00"})
		total := money.NewAmountFromInt(20000)
		now := at(12, 0)

		first := Evaluate(snap, total, now)
		second := Evaluate(snap, total, now)
		assert.Equal(t, first, second)
	})
}

func TestReasonMessages(t *testing.T) {
	t.Run("should have a message for every reason", func(t *testing.T) {
		for _, r := range []Reason{
			ReasonPolicyDisabled, ReasonOutsideWindow, ReasonCapExceeded,
			ReasonQuoteExpired, ReasonSlippageBreached,
		} {
			assert.NotEqual(t, "approved", r.Message())
			assert.NotEmpty(t, r.Message())
		}
		assert.Equal(t, "approved", ReasonNone.Message())
	})
}
