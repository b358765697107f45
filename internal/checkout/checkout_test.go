package checkout

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminal-bench/paygate/internal/gate"
	"github.com/terminal-bench/paygate/internal/policy"
	"github.com/terminal-bench/paygate/pkg/money"
)

var noon = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testSnapshot(cap int64) policy.Snapshot {
	return policy.Snapshot{
		Jurisdiction: "JP",
		Instruments:  []string{"ledger", "stablecoin", "card"},
		Currency:     "JPY",
		Enabled:      true,
		MaxPerTxn:    money.NewAmountFromInt(cap),
		Window:       policy.Window{Start: "09:00", End: "20:00"},
	}
}

func rate(t *testing.T, s string) money.Rate {
	t.Helper()
	r, err := money.NewRate(s)
	require.NoError(t, err)
	return r
}

func testContext(t *testing.T, cap int64, autoFallback bool) Context {
	t.Helper()
	ctx, err := New(testSnapshot(cap), Params{
		SessionID:        "sess-1",
		Jurisdiction:     "JP",
		Merchant:         "Ramen Alley",
		MerchantCategory: "5812",
		LedgerAmount:     money.NewAmountFromInt(2000),
		LedgerIssuerID:   "issuer-7",
		AssetAmount:      decimal.NewFromInt(50),
		AssetChain:       "ethereum",
		CardAmount:       money.NewAmountFromInt(500),
		CardBrand:        "visa",
		CurrentRate:      rate(t, "150.0"),
		HoldWindow:       90 * time.Second,
		SlippageBoundBps: 50,
		AutoFallback:     autoFallback,
		Refs:             CounterpartyRefs{Aggregator: "agg-jp-01", Acquirer: "acq-tokyo-9"},
	}, noon)
	require.NoError(t, err)
	return ctx
}

func TestNewContext(t *testing.T) {
	t.Run("should reject negative amounts at the boundary", func(t *testing.T) {
		_, err := New(testSnapshot(0), Params{
			LedgerAmount: money.NewAmountFromFloat(-1),
			CurrentRate:  rate(t, "150"),
		}, noon)
		assert.ErrorIs(t, err, ErrNegativeAmount)
	})

	t.Run("should reject an empty snapshot", func(t *testing.T) {
		_, err := New(policy.Snapshot{}, Params{CurrentRate: rate(t, "150")}, noon)
		assert.ErrorIs(t, err, ErrNoSnapshot)
	})

	t.Run("should hold the three legs in stable order", func(t *testing.T) {
		ctx := testContext(t, 0, false)
		require.Len(t, ctx.Tenders, 3)
		assert.Equal(t, TenderLedgerCredit, ctx.Tenders[0].Kind)
		assert.Equal(t, TenderVariableRate, ctx.Tenders[1].Kind)
		assert.Equal(t, TenderCardFallback, ctx.Tenders[2].Kind)
	})
}

func TestTotals(t *testing.T) {
	t.Run("should convert the variable leg at the current rate", func(t *testing.T) {
		ctx := testContext(t, 0, false)
		// 2000 + 50*150 + 500 = 10000
		assert.Equal(t, "10000.00", ctx.TotalLocal().String())
	})

	t.Run("should verify declared totals within rounding tolerance", func(t *testing.T) {
		ctx := testContext(t, 0, false)
		assert.NoError(t, ctx.VerifyDeclaredTotal(money.NewAmountFromInt(10000)))
		assert.NoError(t, ctx.VerifyDeclaredTotal(money.NewAmountFromFloat(10000.01)))
		assert.ErrorIs(t, ctx.VerifyDeclaredTotal(money.NewAmountFromInt(9999)), ErrTotalMismatch)
	})
}

func TestTransitions(t *testing.T) {
	t.Run("should replace amounts without touching other state", func(t *testing.T) {
		ctx := testContext(t, 0, false)
		next, err := Apply(ctx, SetAmounts{
			Ledger: money.NewAmountFromInt(1),
			Asset:  decimal.NewFromInt(2),
			Card:   money.NewAmountFromInt(3),
		}, noon)
		require.NoError(t, err)
		assert.Equal(t, "1.00", next.LedgerLeg().Amount.String())
		assert.Equal(t, "2", next.VariableLeg().AssetAmount.String())
		assert.Equal(t, "3.00", next.CardLeg().Amount.String())

		// Input context untouched.
		assert.Equal(t, "2000.00", ctx.LedgerLeg().Amount.String())
	})

	t.Run("should reject negative amounts", func(t *testing.T) {
		ctx := testContext(t, 0, false)
		_, err := Apply(ctx, SetAmounts{Ledger: money.NewAmountFromFloat(-5)}, noon)
		assert.ErrorIs(t, err, ErrNegativeAmount)
	})

	t.Run("should lock and reset the quote explicitly", func(t *testing.T) {
		ctx := testContext(t, 0, false)
		locked, err := Apply(ctx, LockQuote{QuoteID: "Q-1"}, noon)
		require.NoError(t, err)
		assert.True(t, locked.Quote.Locked())
		assert.True(t, locked.Quote.LockedRate.Equal(ctx.CurrentRate))

		reset, err := Apply(locked, ResetQuote{}, noon)
		require.NoError(t, err)
		assert.False(t, reset.Quote.Locked())
	})

	t.Run("should leave the locked rate alone when the current rate moves", func(t *testing.T) {
		ctx := testContext(t, 0, false)
		locked, err := Apply(ctx, LockQuote{QuoteID: "Q-1"}, noon)
		require.NoError(t, err)

		moved, err := Apply(locked, SetRate{Rate: rate(t, "151.0")}, noon)
		require.NoError(t, err)
		assert.True(t, moved.Quote.LockedRate.Equal(rate(t, "150.0")))
		assert.True(t, moved.CurrentRate.Equal(rate(t, "151.0")))
	})

	t.Run("should toggle auto fallback", func(t *testing.T) {
		ctx := testContext(t, 0, false)
		next, err := Apply(ctx, ToggleAutoFallback{}, noon)
		require.NoError(t, err)
		assert.True(t, next.AutoFallback)
	})

	t.Run("should reject a nil event", func(t *testing.T) {
		ctx := testContext(t, 0, false)
		_, err := Apply(ctx, nil, noon)
		assert.ErrorIs(t, err, ErrUnknownEvent)
	})
}

func TestEvaluateScenarios(t *testing.T) {
	t.Run("scenario: total over cap is blocked", func(t *testing.T) {
		// window 09:00-20:00, now 12:00, total 20000, cap 15000
		ctx := testContext(t, 15000, false)
		next, err := Apply(ctx, SetAmounts{
			Ledger: money.NewAmountFromInt(12000),
			Asset:  decimal.NewFromInt(50),
			Card:   money.NewAmountFromInt(500),
		}, noon)
		require.NoError(t, err)
		require.Equal(t, "20000.00", next.TotalLocal().String())

		res := Evaluate(next, noon)
		assert.Equal(t, gate.ReasonCapExceeded, res.Decision.Reason)
	})

	t.Run("scenario: total under cap is approved", func(t *testing.T) {
		ctx := testContext(t, 15000, false)
		res := Evaluate(ctx, noon)
		assert.True(t, res.Decision.Approved)
		assert.Equal(t, "10000.00", res.TotalLocal.String())
	})

	t.Run("scenario: expired hold blocks as quote_expired", func(t *testing.T) {
		ctx := testContext(t, 0, false)
		locked, err := Apply(ctx, LockQuote{QuoteID: "Q-1"}, noon)
		require.NoError(t, err)

		res := Evaluate(locked, noon.Add(91*time.Second))
		assert.Equal(t, gate.ReasonQuoteExpired, res.Decision.Reason)
		assert.False(t, res.FallbackApplied)
	})

	t.Run("scenario: slippage breach blocks as slippage_breached", func(t *testing.T) {
		ctx := testContext(t, 0, false)
		locked, err := Apply(ctx, LockQuote{QuoteID: "Q-1"}, noon)
		require.NoError(t, err)
		moved, err := Apply(locked, SetRate{Rate: rate(t, "151.0")}, noon)
		require.NoError(t, err)

		res := Evaluate(moved, noon.Add(10*time.Second))
		assert.Equal(t, gate.ReasonSlippageBreached, res.Decision.Reason)
	})

	t.Run("should report expiry ahead of slippage when both fail", func(t *testing.T) {
		ctx := testContext(t, 0, false)
		locked, err := Apply(ctx, LockQuote{QuoteID: "Q-1"}, noon)
		require.NoError(t, err)
		moved, err := Apply(locked, SetRate{Rate: rate(t, "160.0")}, noon)
		require.NoError(t, err)

		res := Evaluate(moved, noon.Add(time.Hour))
		assert.Equal(t, gate.ReasonQuoteExpired, res.Decision.Reason)
	})

	t.Run("should put gate failures ahead of quote failures", func(t *testing.T) {
		ctx := testContext(t, 15000, false)
		locked, err := Apply(ctx, LockQuote{QuoteID: "Q-1"}, noon)
		require.NoError(t, err)
		over, err := Apply(locked, SetAmounts{
			Ledger: money.NewAmountFromInt(20000),
			Asset:  decimal.NewFromInt(50),
			Card:   money.NewAmountFromInt(500),
		}, noon)
		require.NoError(t, err)

		res := Evaluate(over, noon.Add(time.Hour))
		// Outside window at 13:00+... still inside; cap fails first anyway.
		assert.Equal(t, gate.ReasonCapExceeded, res.Decision.Reason)
	})

	t.Run("should not let an unlocked quote block anything", func(t *testing.T) {
		ctx := testContext(t, 0, false)
		res := Evaluate(ctx, noon.Add(24*time.Hour-12*time.Hour)) // 00:00 next day
		// Outside window blocks, but never a quote reason while unlocked.
		assert.NotEqual(t, gate.ReasonQuoteExpired, res.Decision.Reason)
		assert.NotEqual(t, gate.ReasonSlippageBreached, res.Decision.Reason)
	})
}

func TestFallbackTransform(t *testing.T) {
	expired := func(t *testing.T) (Context, time.Time) {
		t.Helper()
		ctx := testContext(t, 0, true)
		locked, err := Apply(ctx, LockQuote{QuoteID: "Q-1"}, noon)
		require.NoError(t, err)
		return locked, noon.Add(91 * time.Second)
	}

	t.Run("should preserve total value across the transform", func(t *testing.T) {
		ctx, later := expired(t)
		before := ctx.TotalLocal()

		res := Evaluate(ctx, later)
		require.True(t, res.FallbackApplied)
		assert.Equal(t, before.String(), res.Context.TotalLocal().String())

		// 50 units at 150.0 moved to the card leg: 500 + 7500.
		assert.Equal(t, "8000.00", res.Context.CardLeg().Amount.String())
		assert.True(t, res.Context.VariableLeg().AssetAmount.IsZero())
		assert.Equal(t, "7500.00", res.FallbackMoved.String())
	})

	t.Run("should still report the quote failure that triggered it", func(t *testing.T) {
		ctx, later := expired(t)
		res := Evaluate(ctx, later)
		assert.Equal(t, gate.ReasonQuoteExpired, res.Decision.Reason)
	})

	t.Run("should be one-shot: the next evaluation passes on the new legs", func(t *testing.T) {
		ctx, later := expired(t)
		first := Evaluate(ctx, later)
		require.True(t, first.FallbackApplied)

		second := Evaluate(first.Context, later.Add(time.Second))
		assert.False(t, second.FallbackApplied)
		assert.True(t, second.Decision.Approved)
		assert.Equal(t, first.Context.TotalLocal().String(), second.TotalLocal.String())
	})

	t.Run("should convert at the current rate, not the locked rate", func(t *testing.T) {
		ctx, later := expired(t)
		moved, err := Apply(ctx, SetRate{Rate: rate(t, "152.0")}, later)
		require.NoError(t, err)

		res := Evaluate(moved, later)
		require.True(t, res.FallbackApplied)
		// 50 * 152.0 = 7600
		assert.Equal(t, "7600.00", res.FallbackMoved.String())
	})

	t.Run("should not trigger while the quote is valid", func(t *testing.T) {
		ctx := testContext(t, 0, true)
		locked, err := Apply(ctx, LockQuote{QuoteID: "Q-1"}, noon)
		require.NoError(t, err)

		res := Evaluate(locked, noon.Add(30*time.Second))
		assert.False(t, res.FallbackApplied)
		assert.True(t, res.Decision.Approved)
	})

	t.Run("should not trigger with auto fallback off", func(t *testing.T) {
		ctx := testContext(t, 0, false)
		locked, err := Apply(ctx, LockQuote{QuoteID: "Q-1"}, noon)
		require.NoError(t, err)

		res := Evaluate(locked, noon.Add(91*time.Second))
		assert.False(t, res.FallbackApplied)
		assert.Equal(t, gate.ReasonQuoteExpired, res.Decision.Reason)
	})

	t.Run("should not trigger on a zero variable leg", func(t *testing.T) {
		ctx := testContext(t, 0, true)
		zeroed, err := Apply(ctx, SetAmounts{
			Ledger: money.NewAmountFromInt(2000),
			Asset:  decimal.Zero,
			Card:   money.NewAmountFromInt(500),
		}, noon)
		require.NoError(t, err)
		locked, err := Apply(zeroed, LockQuote{QuoteID: "Q-1"}, noon)
		require.NoError(t, err)

		res := Evaluate(locked, noon.Add(time.Hour))
		assert.False(t, res.FallbackApplied)
		// A stale lock on an empty leg imposes no constraint.
		assert.True(t, res.Decision.Approved)
	})

	t.Run("should keep the snapshot frozen across the transform", func(t *testing.T) {
		ctx, later := expired(t)
		res := Evaluate(ctx, later)
		assert.Equal(t, ctx.Snapshot, res.Context.Snapshot)
	})
}
