// Package checkout owns the mutable state of one checkout session: the tender
// basket, the quote lock, and the current rate. Every change is an explicit
// (context, event) -> context transition invoked by the caller; nothing is
// recomputed in the background.
package checkout

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/terminal-bench/paygate/internal/policy"
	"github.com/terminal-bench/paygate/internal/quote"
	"github.com/terminal-bench/paygate/pkg/money"
)

var (
	ErrNegativeAmount = errors.New("checkout: tender amounts must be non-negative")
	ErrNoSnapshot     = errors.New("checkout: policy snapshot is required")
	ErrTotalMismatch  = errors.New("checkout: declared total does not match tender sum")
)

// TenderKind tags the payment leg variants.
type TenderKind string

const (
	TenderLedgerCredit TenderKind = "ledger_credit"
	TenderVariableRate TenderKind = "variable_rate_asset"
	TenderCardFallback TenderKind = "card_fallback"
)

// Tender is one payment leg. Amount carries local-currency legs; AssetAmount
// carries the variable-rate leg in asset units. The remaining fields are
// populated per kind.
type Tender struct {
	Kind        TenderKind      `json:"kind"`
	Amount      money.Amount    `json:"amount,omitempty"`
	AssetAmount decimal.Decimal `json:"asset_amount,omitempty"`
	IssuerID    string          `json:"issuer_id,omitempty"`
	Chain       string          `json:"chain,omitempty"`
	Brand       string          `json:"brand,omitempty"`
	Authorized  bool            `json:"authorized,omitempty"`
}

// LocalValue converts the tender to local currency: 1:1 for local-currency
// legs, asset amount times rate for the variable-rate leg.
func (t Tender) LocalValue(rate money.Rate) money.Amount {
	if t.Kind == TenderVariableRate {
		return rate.Convert(t.AssetAmount)
	}
	return t.Amount
}

// CounterpartyRefs are opaque identifiers copied through to the artifacts,
// never validated.
type CounterpartyRefs struct {
	Aggregator string `json:"aggregator"`
	Acquirer   string `json:"acquirer"`
}

// Context is one checkout session's state. The policy snapshot is frozen at
// construction and survives fallback transforms untouched; only tender
// amounts and the quote lock change afterwards.
type Context struct {
	SessionID        string           `json:"session_id"`
	Jurisdiction     string           `json:"jurisdiction"`
	Merchant         string           `json:"merchant"`
	MerchantCategory string           `json:"merchant_category"`
	Snapshot         policy.Snapshot  `json:"snapshot"`
	Tenders          []Tender         `json:"tenders"`
	Quote            quote.Quote      `json:"quote"`
	CurrentRate      money.Rate       `json:"current_rate"`
	AutoFallback     bool             `json:"auto_fallback"`
	Refs             CounterpartyRefs `json:"refs"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Params carries the inputs needed to establish a checkout context.
type Params struct {
	SessionID        string
	Jurisdiction     string
	Merchant         string
	MerchantCategory string
	LedgerAmount     money.Amount
	LedgerIssuerID   string
	AssetAmount      decimal.Decimal
	AssetChain       string
	CardAmount       money.Amount
	CardBrand        string
	CurrentRate      money.Rate
	HoldWindow       time.Duration
	SlippageBoundBps int64
	AutoFallback     bool
	Refs             CounterpartyRefs
}

// New establishes a checkout context with the three legs in stable order and
// the policy snapshot frozen as supplied. Negative amounts are a caller
// contract violation and are rejected here, at the boundary.
func New(snap policy.Snapshot, p Params, now time.Time) (Context, error) {
	if len(snap.Instruments) == 0 {
		return Context{}, ErrNoSnapshot
	}
	if p.LedgerAmount.IsNegative() || p.CardAmount.IsNegative() || p.AssetAmount.IsNegative() {
		return Context{}, ErrNegativeAmount
	}
	return Context{
		SessionID:        p.SessionID,
		Jurisdiction:     p.Jurisdiction,
		Merchant:         p.Merchant,
		MerchantCategory: p.MerchantCategory,
		Snapshot:         snap,
		Tenders: []Tender{
			{Kind: TenderLedgerCredit, Amount: p.LedgerAmount, IssuerID: p.LedgerIssuerID},
			{Kind: TenderVariableRate, AssetAmount: p.AssetAmount, Chain: p.AssetChain},
			{Kind: TenderCardFallback, Amount: p.CardAmount, Brand: p.CardBrand},
		},
		Quote:        quote.New(p.HoldWindow, p.SlippageBoundBps),
		CurrentRate:  p.CurrentRate,
		AutoFallback: p.AutoFallback,
		Refs:         p.Refs,
		CreatedAt:    now,
	}, nil
}

// TotalLocal sums every tender converted to local currency at the current
// rate.
func (c Context) TotalLocal() money.Amount {
	total := money.Zero
	for _, t := range c.Tenders {
		total = total.Add(t.LocalValue(c.CurrentRate))
	}
	return total
}

// VerifyDeclaredTotal checks the declared total against the tender sum within
// one unit of two-decimal rounding.
func (c Context) VerifyDeclaredTotal(declared money.Amount) error {
	diff := c.TotalLocal().Sub(declared).Decimal().Abs()
	if diff.GreaterThan(decimal.NewFromFloat(0.01)) {
		return fmt.Errorf("%w: declared %s, tenders sum to %s", ErrTotalMismatch, declared, c.TotalLocal())
	}
	return nil
}

// tender returns the first tender of the given kind, with its index.
func (c Context) tender(kind TenderKind) (int, Tender) {
	for i, t := range c.Tenders {
		if t.Kind == kind {
			return i, t
		}
	}
	return -1, Tender{}
}

// VariableLeg returns the variable-rate tender.
func (c Context) VariableLeg() Tender {
	_, t := c.tender(TenderVariableRate)
	return t
}

// CardLeg returns the card fallback tender.
func (c Context) CardLeg() Tender {
	_, t := c.tender(TenderCardFallback)
	return t
}

// LedgerLeg returns the local ledger credit tender.
func (c Context) LedgerLeg() Tender {
	_, t := c.tender(TenderLedgerCredit)
	return t
}
