package artifact

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/terminal-bench/paygate/internal/checkout"
	"github.com/terminal-bench/paygate/internal/policy"
)

// RenderReceipt produces the deterministic plain-text receipt.
func RenderReceipt(a Artifact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "RECEIPT %s\n", a.RID)
	fmt.Fprintf(&b, "merchant: %s (%s)\n", a.Receipt.Merchant, a.Receipt.Jurisdiction)
	fmt.Fprintf(&b, "decision: %s\n", decisionLabel(a))
	fmt.Fprintf(&b, "issued:   %s\n", a.Receipt.IssuedAt.Format("2006-01-02 15:04:05"))
	b.WriteString("tenders:\n")
	for _, t := range a.Tenders {
		switch t.Kind {
		case checkout.TenderVariableRate:
			fmt.Fprintf(&b, "  %-20s %s units (%s)\n", t.Kind, t.AssetAmount, t.Chain)
		default:
			fmt.Fprintf(&b, "  %-20s %s %s\n", t.Kind, t.Amount, a.Receipt.Currency)
		}
	}
	fmt.Fprintf(&b, "gross: %s  fee: %s  net: %s\n", a.Receipt.Gross, a.Receipt.Fee, a.Receipt.Net)
	fmt.Fprintf(&b, "disclosures: %s\n", strings.Join(a.Snapshot.Disclosures, ", "))
	fmt.Fprintf(&b, "aggregator: %s  acquirer: %s\n", a.Refs.Aggregator, a.Refs.Acquirer)
	return b.String()
}

// RenderReconciliation produces the deterministic plain-text settlement record.
func RenderReconciliation(a Artifact) string {
	r := a.Reconciliation
	var b strings.Builder
	fmt.Fprintf(&b, "RECON %s\n", r.RID)
	fmt.Fprintf(&b, "batch: %s  value date: %s\n", r.BatchID, r.ValueDate)
	fmt.Fprintf(&b, "gross: %s  fee: %s (agg %s / acq %s)  net: %s\n",
		r.Gross, r.Fee, r.AggregatorFee, r.AcquirerFee, r.Net)
	fmt.Fprintf(&b, "asset in: %s %s on %s ref %s\n",
		r.AssetInAmount, r.AssetInType, r.AssetInChain, r.AssetInTxRef)
	if r.QuoteID != "" {
		fmt.Fprintf(&b, "quote: %s @ %s, hold %s .. %s\n",
			r.QuoteID, r.QuoteRate,
			r.HoldFrom.Format("15:04:05"), r.HoldUntil.Format("15:04:05"))
	}
	fmt.Fprintf(&b, "policy: %s hash %s\n", r.PolicyVersion, r.PolicyHash)
	return b.String()
}

// RenderPolicyTable renders the policy store as a table with no derived
// fields.
func RenderPolicyTable(rows []policy.Row) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JUR\tINSTRUMENT\tVER\tALLOW\tMAX/TXN\tDAILY\tWINDOW\tKYC\tFALLBACK\tAPPROVER")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Jurisdiction, r.Instrument, r.Version, r.Allow,
			r.MaxPerTxn, r.DailyCap, r.Window, r.KYC,
			r.FallbackInstrument, r.Approver)
	}
	w.Flush()
	return b.String()
}

func decisionLabel(a Artifact) string {
	if a.Decision.Approved {
		return "APPROVED"
	}
	return "BLOCKED: " + a.Decision.Reason.Message()
}
