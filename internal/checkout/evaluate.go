package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/terminal-bench/paygate/internal/gate"
	"github.com/terminal-bench/paygate/internal/quote"
	"github.com/terminal-bench/paygate/pkg/money"
)

// Result is the outcome of one evaluation pass.
type Result struct {
	Decision        gate.Decision  `json:"decision"`
	Validity        quote.Validity `json:"validity"`
	TotalLocal      money.Amount   `json:"total_local"`
	FallbackApplied bool           `json:"fallback_applied"`
	FallbackMoved   money.Amount   `json:"fallback_moved,omitempty"`
	Context         Context        `json:"-"`
	EvaluatedAt     time.Time      `json:"evaluated_at"`
}

// Evaluate runs the gate and the quote machine against the context and
// combines them into one decision. The quote constraint only binds while the
// quote is locked and the variable leg carries a positive amount; once a
// fallback has zeroed the leg, a stale lock no longer blocks.
//
// When the quote constraint fails and auto-fallback is on, the fallback
// transform runs inside this pass: the decision still reports the quote
// failure that triggered it, the returned context carries the moved legs, and
// the next evaluation proceeds on the new totals. The policy snapshot is
// never recomputed here.
func Evaluate(c Context, now time.Time) Result {
	validity := c.Quote.Check(now, c.CurrentRate)
	binding := c.Quote.Locked() && c.VariableLeg().AssetAmount.IsPositive()

	res := Result{Validity: validity, Context: c, EvaluatedAt: now}

	if binding && !validity.OK() && c.AutoFallback {
		next, moved := applyFallback(c)
		res.Context = next
		res.FallbackApplied = true
		res.FallbackMoved = moved
	}

	// Gate checks run against the post-fallback total; the snapshot is the
	// one frozen at context creation.
	res.TotalLocal = res.Context.TotalLocal()
	res.Decision = gate.Evaluate(c.Snapshot, res.TotalLocal, now)
	if !res.Decision.Approved {
		return res
	}

	if binding && !validity.OK() {
		if !validity.HoldValid {
			res.Decision = gate.Blocked(gate.ReasonQuoteExpired)
		} else {
			res.Decision = gate.Blocked(gate.ReasonSlippageBreached)
		}
	}
	return res
}

// applyFallback converts the variable-rate leg into the card fallback leg at
// the current rate. Value-preserving and one-shot: the variable amount goes to
// zero, so the trigger condition cannot re-fire on the transform's own output.
// Re-arming requires the caller to set a new positive asset amount and re-lock.
func applyFallback(c Context) (Context, money.Amount) {
	vi, v := c.tender(TenderVariableRate)
	ci, card := c.tender(TenderCardFallback)
	if vi < 0 || ci < 0 || !v.AssetAmount.IsPositive() {
		return c, money.Zero
	}

	addLocal := c.CurrentRate.Convert(v.AssetAmount)

	tenders := append([]Tender(nil), c.Tenders...)
	tenders[vi].AssetAmount = decimal.Zero
	tenders[ci].Amount = card.Amount.Add(addLocal)
	tenders[ci].Authorized = true
	c.Tenders = tenders
	return c, addLocal
}
