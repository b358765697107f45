// Package artifact freezes an evaluation pass into its audit record: a
// receipt view and a reconciliation view assembled from the same inputs, so
// the RID, totals, and net amount can never drift between the two.
package artifact

import (
	"time"

	"github.com/terminal-bench/paygate/internal/checkout"
	"github.com/terminal-bench/paygate/internal/gate"
	"github.com/terminal-bench/paygate/internal/policy"
	"github.com/terminal-bench/paygate/pkg/money"
)

// Fee parameters. Illustrative placeholder schedule, not a real fee model;
// what matters is that identical inputs always produce identical figures.
const (
	feeBps          = 25
	aggregatorShare = 6000 // bps of the fee
)

var minFee = money.NewAmountFromFloat(0.50)

// Receipt is the customer-facing view.
type Receipt struct {
	RID          string                    `json:"rid"`
	Merchant     string                    `json:"merchant"`
	Jurisdiction string                    `json:"jurisdiction"`
	Currency     string                    `json:"currency"`
	Decision     gate.Decision             `json:"decision"`
	Reason       string                    `json:"reason"`
	Snapshot     policy.Snapshot           `json:"snapshot"`
	Tenders      []checkout.Tender         `json:"tenders"`
	Refs         checkout.CounterpartyRefs `json:"refs"`
	Gross        money.Amount              `json:"gross"`
	Fee          money.Amount              `json:"fee"`
	Net          money.Amount              `json:"net"`
	IssuedAt     time.Time                 `json:"issued_at"`
}

// Reconciliation is the settlement-facing view.
type Reconciliation struct {
	RID            string       `json:"rid"`
	BatchID        string       `json:"batch_id"`
	ValueDate      string       `json:"value_date"`
	Gross          money.Amount `json:"gross"`
	Fee            money.Amount `json:"fee"`
	AggregatorFee  money.Amount `json:"aggregator_fee"`
	AcquirerFee    money.Amount `json:"acquirer_fee"`
	Net            money.Amount `json:"net"`
	AssetInType    string       `json:"asset_in_type"`
	AssetInAmount  string       `json:"asset_in_amount"`
	AssetInChain   string       `json:"asset_in_chain"`
	AssetInTxRef   string       `json:"asset_in_tx_ref"`
	QuoteID        string       `json:"quote_id"`
	QuoteRate      string       `json:"quote_rate"`
	HoldFrom       time.Time    `json:"hold_from"`
	HoldUntil      time.Time    `json:"hold_until"`
	PolicyVersion  string       `json:"policy_version"`
	PolicyHash     string       `json:"policy_hash"`
	AggregatorRef  string       `json:"aggregator_ref"`
	AcquirerRef    string       `json:"acquirer_ref"`
}

// Artifact is the frozen union of snapshot, resolved tenders, decision, and
// both derived views. Immutable once built; a new evaluation pass builds a new
// artifact under a new RID.
type Artifact struct {
	RID            string                    `json:"rid"`
	Decision       gate.Decision             `json:"decision"`
	Snapshot       policy.Snapshot           `json:"snapshot"`
	Tenders        []checkout.Tender         `json:"tenders"`
	Refs           checkout.CounterpartyRefs `json:"refs"`
	Receipt        Receipt                   `json:"receipt"`
	Reconciliation Reconciliation            `json:"reconciliation"`
	BuiltAt        time.Time                 `json:"built_at"`
}

// Builder assembles artifacts. The RID generator is its only state.
type Builder struct {
	rids *RIDGenerator
}

// NewBuilder returns a Builder with a fresh RID sequence.
func NewBuilder() *Builder {
	return &Builder{rids: NewRIDGenerator()}
}

// Build freezes the given evaluation result. Both views are assembled from
// the same inputs in one pass; the RID, gross, and net figures are shared by
// construction. Tenders are the post-fallback legs; the snapshot is embedded
// verbatim as frozen at context creation.
func (b *Builder) Build(res checkout.Result) Artifact {
	c := res.Context
	rid := b.rids.Next(c.Jurisdiction, res.EvaluatedAt)

	gross := res.TotalLocal
	fee := gross.MulBps(feeBps)
	if fee.Cmp(minFee) < 0 {
		fee = minFee
	}
	aggFee := fee.MulBps(aggregatorShare)
	acqFee := fee.Sub(aggFee)
	net := gross.Sub(fee)

	tenders := append([]checkout.Tender(nil), c.Tenders...)
	variable := c.VariableLeg()

	receipt := Receipt{
		RID:          rid,
		Merchant:     c.Merchant,
		Jurisdiction: c.Jurisdiction,
		Currency:     c.Snapshot.Currency,
		Decision:     res.Decision,
		Reason:       res.Decision.Reason.Message(),
		Snapshot:     c.Snapshot,
		Tenders:      tenders,
		Refs:         c.Refs,
		Gross:        gross,
		Fee:          fee,
		Net:          net,
		IssuedAt:     res.EvaluatedAt,
	}

	recon := Reconciliation{
		RID:           rid,
		BatchID:       "SETL-" + res.EvaluatedAt.Format("20060102") + "-" + c.Jurisdiction,
		ValueDate:     res.EvaluatedAt.AddDate(0, 0, 1).Format("2006-01-02"),
		Gross:         gross,
		Fee:           fee,
		AggregatorFee: aggFee,
		AcquirerFee:   acqFee,
		Net:           net,
		AssetInType:   string(checkout.TenderVariableRate),
		AssetInAmount: variable.AssetAmount.String(),
		AssetInChain:  variable.Chain,
		AssetInTxRef:  "ASSETIN-" + rid,
		QuoteID:       c.Quote.ID,
		PolicyVersion: c.Snapshot.Version(),
		PolicyHash:    c.Snapshot.Hash(),
		AggregatorRef: c.Refs.Aggregator,
		AcquirerRef:   c.Refs.Acquirer,
	}
	if c.Quote.Locked() {
		recon.QuoteRate = c.Quote.LockedRate.String()
		recon.HoldFrom = c.Quote.LockedAt
		recon.HoldUntil = c.Quote.LockedAt.Add(c.Quote.HoldWindow)
	}

	return Artifact{
		RID:            rid,
		Decision:       res.Decision,
		Snapshot:       c.Snapshot,
		Tenders:        tenders,
		Refs:           c.Refs,
		Receipt:        receipt,
		Reconciliation: recon,
		BuiltAt:        res.EvaluatedAt,
	}
}
