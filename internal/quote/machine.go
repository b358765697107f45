// Package quote tracks the validity window of the variable-rate leg's price
// quote. Locking is a caller commitment; validity is a pure function of
// current time and current rate, computed on demand and never as a side
// effect of being read.
package quote

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/terminal-bench/paygate/pkg/money"
)

var ErrAlreadyLocked = errors.New("quote: already locked, reset first")

// State is the lock state of a quote.
type State string

const (
	StateUnlocked State = "unlocked"
	StateLocked   State = "locked"
)

// Quote holds the hold-window and slippage parameters plus, once locked, the
// captured rate and lock time. The zero value is an unlocked quote.
type Quote struct {
	ID               string        `json:"id,omitempty"`
	HoldWindow       time.Duration `json:"hold_window"`
	SlippageBoundBps int64         `json:"slippage_bound_bps"`

	State      State      `json:"state"`
	LockedRate money.Rate `json:"locked_rate,omitempty"`
	LockedAt   time.Time  `json:"locked_at,omitempty"`
}

// New returns an unlocked quote with the given validity parameters.
func New(holdWindow time.Duration, slippageBoundBps int64) Quote {
	return Quote{HoldWindow: holdWindow, SlippageBoundBps: slippageBoundBps, State: StateUnlocked}
}

// Locked reports whether the quote is locked.
func (q Quote) Locked() bool {
	return q.State == StateLocked
}

// Lock captures the current rate and timestamp. Locking an already locked
// quote is rejected; re-locking requires an explicit Reset.
func (q Quote) Lock(id string, rate money.Rate, now time.Time) (Quote, error) {
	if q.Locked() {
		return q, ErrAlreadyLocked
	}
	q.ID = id
	q.State = StateLocked
	q.LockedRate = rate
	q.LockedAt = now
	return q, nil
}

// Reset discards the captured rate and timestamp, returning to Unlocked.
// Resetting an unlocked quote is a no-op.
func (q Quote) Reset() Quote {
	q.ID = ""
	q.State = StateUnlocked
	q.LockedRate = money.Rate{}
	q.LockedAt = time.Time{}
	return q
}

// Validity is the result of checking a quote against current time and rate.
type Validity struct {
	HoldValid     bool `json:"hold_valid"`
	SlippageValid bool `json:"slippage_valid"`
}

// OK reports whether both validity conditions hold.
func (v Validity) OK() bool {
	return v.HoldValid && v.SlippageValid
}

// Check evaluates the validity predicate. An unlocked quote imposes no
// constraint and is always valid. Check never mutates the quote: a silently
// expired hold is observable on every read without a state transition.
func (q Quote) Check(now time.Time, currentRate money.Rate) Validity {
	if !q.Locked() {
		return Validity{HoldValid: true, SlippageValid: true}
	}
	v := Validity{
		HoldValid: now.Sub(q.LockedAt) <= q.HoldWindow,
	}
	bps := q.LockedRate.DeviationBps(currentRate)
	v.SlippageValid = bps.LessThanOrEqual(decimal.NewFromInt(q.SlippageBoundBps))
	return v
}

// RemainingHold returns how much of the hold window is left at now, floored
// at zero. Zero for an unlocked quote.
func (q Quote) RemainingHold(now time.Time) time.Duration {
	if !q.Locked() {
		return 0
	}
	rem := q.HoldWindow - now.Sub(q.LockedAt)
	if rem < 0 {
		return 0
	}
	return rem
}
