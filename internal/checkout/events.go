package checkout

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/terminal-bench/paygate/pkg/money"
)

var ErrUnknownEvent = errors.New("checkout: unknown event")

// Event is a caller-invoked state transition. Transitions replace the
// reactive recompute-on-change pattern: nothing in the engine fires on its
// own, the caller decides when state moves.
type Event interface {
	apply(Context, time.Time) (Context, error)
}

// SetAmounts replaces the three leg amounts.
type SetAmounts struct {
	Ledger money.Amount
	Asset  decimal.Decimal
	Card   money.Amount
}

func (e SetAmounts) apply(c Context, _ time.Time) (Context, error) {
	if e.Ledger.IsNegative() || e.Card.IsNegative() || e.Asset.IsNegative() {
		return c, ErrNegativeAmount
	}
	tenders := append([]Tender(nil), c.Tenders...)
	for i := range tenders {
		switch tenders[i].Kind {
		case TenderLedgerCredit:
			tenders[i].Amount = e.Ledger
		case TenderVariableRate:
			tenders[i].AssetAmount = e.Asset
		case TenderCardFallback:
			tenders[i].Amount = e.Card
		}
	}
	c.Tenders = tenders
	return c, nil
}

// SetRate replaces the current exchange rate. The locked rate, if any, is
// untouched; a moved rate only shows up through the validity predicate.
type SetRate struct {
	Rate money.Rate
}

func (e SetRate) apply(c Context, _ time.Time) (Context, error) {
	c.CurrentRate = e.Rate
	return c, nil
}

// LockQuote captures the current rate for the hold window.
type LockQuote struct {
	QuoteID string
}

func (e LockQuote) apply(c Context, now time.Time) (Context, error) {
	q, err := c.Quote.Lock(e.QuoteID, c.CurrentRate, now)
	if err != nil {
		return c, err
	}
	c.Quote = q
	return c, nil
}

// ResetQuote discards the lock.
type ResetQuote struct{}

func (ResetQuote) apply(c Context, _ time.Time) (Context, error) {
	c.Quote = c.Quote.Reset()
	return c, nil
}

// ToggleAutoFallback flips the auto-fallback flag.
type ToggleAutoFallback struct{}

func (ToggleAutoFallback) apply(c Context, _ time.Time) (Context, error) {
	c.AutoFallback = !c.AutoFallback
	return c, nil
}

// Apply runs one transition and returns the successor context. The input
// context is never mutated.
func Apply(c Context, e Event, now time.Time) (Context, error) {
	if e == nil {
		return c, ErrUnknownEvent
	}
	return e.apply(c, now)
}
