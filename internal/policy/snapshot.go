package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/terminal-bench/paygate/pkg/money"
)

// Snapshot is the resolved basket-level policy view for one evaluation.
// It is computed once when the checkout context is established and embedded
// verbatim into the audit artifact; it is never recomputed after a fallback
// mutates leg amounts.
type Snapshot struct {
	Jurisdiction    string       `json:"jurisdiction"`
	Instruments     []string     `json:"instruments"`
	Currency        string       `json:"currency"`
	Enabled         bool         `json:"enabled"`
	MaxPerTxn       money.Amount `json:"max_per_txn"`
	DailyCap        money.Amount `json:"daily_cap"`
	Window          Window       `json:"window"`
	Disclosures     []string     `json:"disclosures"`
	KYC             KYCLevel     `json:"kyc"`
	TravelRule      bool         `json:"travel_rule"`
	SanctionsScreen bool         `json:"sanctions_screen"`
	SourceRows      []Key        `json:"source_rows"`
}

// Hash returns the sha256 fingerprint of the canonical snapshot encoding,
// carried in reconciliation records so a settled transaction can be tied back
// to the exact policy it was evaluated under.
func (s Snapshot) Hash() string {
	var b strings.Builder
	b.WriteString(s.Jurisdiction)
	b.WriteByte('|')
	b.WriteString(strings.Join(s.Instruments, ","))
	b.WriteByte('|')
	b.WriteString(s.Currency)
	fmt.Fprintf(&b, "|%t|%s|%s|%s|", s.Enabled, s.MaxPerTxn, s.DailyCap, s.Window)
	b.WriteString(strings.Join(s.Disclosures, ","))
	fmt.Fprintf(&b, "|%s|%t|%t|", s.KYC, s.TravelRule, s.SanctionsScreen)
	for _, k := range s.SourceRows {
		fmt.Fprintf(&b, "%s/%s/v%d;", k.Jurisdiction, k.Instrument, k.Version)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Version summarizes the contributing row versions, e.g. "JP:stablecoin.v3+JP:ledger.v1".
func (s Snapshot) Version() string {
	if len(s.SourceRows) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(s.SourceRows))
	for _, k := range s.SourceRows {
		parts = append(parts, fmt.Sprintf("%s:%s.v%d", k.Jurisdiction, k.Instrument, k.Version))
	}
	return strings.Join(parts, "+")
}

// MergeStrategy folds the matched rows for one jurisdiction into a Snapshot.
// Keeping the fold behind an interface makes the merge rule auditable and
// testable in isolation.
type MergeStrategy interface {
	Merge(jurisdiction string, instruments []string, rows []Row) Snapshot
}

// BasketMerge is the default strategy:
//   - enabled iff any matched row allows
//   - per-transaction and daily caps are the maximum across matched rows
//     (basket-level ceilings; per-instrument caps would be a follow-up)
//   - time window comes from the first matched row in stable store order;
//     intersecting windows would be stricter but changes observable behavior
//   - disclosures are the sorted set union
//   - kyc is the strictest level among matched rows
//   - travel rule and sanctions screening apply if any matched row requires them
type BasketMerge struct{}

// Merge implements MergeStrategy. An empty rows slice produces the fail-closed
// default: disabled, all caps zero, unrestricted window.
func (BasketMerge) Merge(jurisdiction string, instruments []string, rows []Row) Snapshot {
	snap := Snapshot{
		Jurisdiction: jurisdiction,
		Instruments:  append([]string(nil), instruments...),
		Window:       Unrestricted,
		Disclosures:  []string{},
		SourceRows:   []Key{},
	}
	sort.Strings(snap.Instruments)
	if len(rows) == 0 {
		return snap
	}

	snap.Window = rows[0].Window
	snap.Currency = rows[0].Currency
	seen := make(map[string]struct{})
	for _, r := range rows {
		snap.SourceRows = append(snap.SourceRows, r.Key())
		if r.Allow {
			snap.Enabled = true
		}
		if snap.MaxPerTxn.Cmp(r.MaxPerTxn) < 0 {
			snap.MaxPerTxn = r.MaxPerTxn
		}
		if snap.DailyCap.Cmp(r.DailyCap) < 0 {
			snap.DailyCap = r.DailyCap
		}
		for _, d := range r.Disclosures {
			if _, ok := seen[d]; !ok {
				seen[d] = struct{}{}
				snap.Disclosures = append(snap.Disclosures, d)
			}
		}
		if r.KYC > snap.KYC {
			snap.KYC = r.KYC
		}
		if r.TravelRule {
			snap.TravelRule = true
		}
		if r.SanctionsScreen {
			snap.SanctionsScreen = true
		}
	}
	sort.Strings(snap.Disclosures)
	return snap
}
