// Package gate applies a resolved policy snapshot to a proposed checkout
// total. Evaluation is pure: identical inputs always produce the identical
// decision.
package gate

import (
	"time"

	"github.com/terminal-bench/paygate/internal/policy"
	"github.com/terminal-bench/paygate/pkg/money"
)

// Reason is the closed set of block reasons, in precedence order.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonPolicyDisabled   Reason = "policy_disabled"
	ReasonOutsideWindow    Reason = "outside_window"
	ReasonCapExceeded      Reason = "cap_exceeded"
	ReasonQuoteExpired     Reason = "quote_expired"
	ReasonSlippageBreached Reason = "slippage_breached"
)

// Message returns the human-readable reason string.
func (r Reason) Message() string {
	switch r {
	case ReasonPolicyDisabled:
		return "policy disabled for jurisdiction/instrument"
	case ReasonOutsideWindow:
		return "current time outside permitted window"
	case ReasonCapExceeded:
		return "total exceeds per-transaction cap"
	case ReasonQuoteExpired:
		return "locked quote hold window elapsed"
	case ReasonSlippageBreached:
		return "rate moved beyond slippage bound"
	}
	return "approved"
}

// Decision is the outcome of a gate evaluation. Derived, never stored.
type Decision struct {
	Approved bool   `json:"approved"`
	Reason   Reason `json:"reason,omitempty"`
}

// Approved is the passing decision.
var Approved = Decision{Approved: true}

// Blocked builds a blocking decision with the given reason.
func Blocked(r Reason) Decision {
	return Decision{Approved: false, Reason: r}
}

// Evaluate applies the snapshot's constraints to the proposed local-currency
// total. Checks run in fixed precedence; the first failing check sets the
// reason:
//
//	1. policy enabled
//	2. now within the local time window (inclusive bounds, time of day only)
//	3. total within the per-transaction cap (cap 0 means no cap enforced)
func Evaluate(snap policy.Snapshot, totalLocal money.Amount, now time.Time) Decision {
	if !snap.Enabled {
		return Blocked(ReasonPolicyDisabled)
	}
	if !snap.Window.Contains(now) {
		return Blocked(ReasonOutsideWindow)
	}
	if !snap.MaxPerTxn.IsZero() && !totalLocal.LessThanOrEqual(snap.MaxPerTxn) {
		return Blocked(ReasonCapExceeded)
	}
	return Approved
}
