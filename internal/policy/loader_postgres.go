package policy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/terminal-bench/paygate/pkg/money"
)

// LoadPostgres reads the policy table from the policy_rows relation.
// The table is read once at startup; the engine never writes to it.
func LoadPostgres(ctx context.Context, db *sql.DB) ([]Row, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT jurisdiction, use_case, instrument, chain, allow,
		        max_per_txn, daily_cap, monthly_cap, currency,
		        window_start, window_end, disclosures, kyc,
		        travel_rule, sanctions_screen, merchant_categories,
		        fallback_instrument, effective_from, effective_to,
		        version, approver, note
		 FROM policy_rows
		 ORDER BY jurisdiction, instrument, version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query policy rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r           Row
			maxPerTxn   string
			dailyCap    string
			monthlyCap  string
			kycLabel    string
			effectiveTo sql.NullTime
		)
		err := rows.Scan(&r.Jurisdiction, &r.UseCase, &r.Instrument, &r.Chain, &r.Allow,
			&maxPerTxn, &dailyCap, &monthlyCap, &r.Currency,
			&r.Window.Start, &r.Window.End, pq.Array(&r.Disclosures), &kycLabel,
			&r.TravelRule, &r.SanctionsScreen, pq.Array(&r.MerchantCategories),
			&r.FallbackInstrument, &r.EffectiveFrom, &effectiveTo,
			&r.Version, &r.Approver, &r.Note)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy row: %w", err)
		}

		if r.MaxPerTxn, err = money.NewAmount(maxPerTxn); err != nil {
			return nil, fmt.Errorf("policy row %s/%s: %w", r.Jurisdiction, r.Instrument, err)
		}
		if r.DailyCap, err = money.NewAmount(dailyCap); err != nil {
			return nil, fmt.Errorf("policy row %s/%s: %w", r.Jurisdiction, r.Instrument, err)
		}
		if r.MonthlyCap, err = money.NewAmount(monthlyCap); err != nil {
			return nil, fmt.Errorf("policy row %s/%s: %w", r.Jurisdiction, r.Instrument, err)
		}
		if r.KYC, err = ParseKYCLevel(kycLabel); err != nil {
			return nil, fmt.Errorf("policy row %s/%s: %w", r.Jurisdiction, r.Instrument, err)
		}
		if effectiveTo.Valid {
			t := effectiveTo.Time
			r.EffectiveTo = &t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read policy rows: %w", err)
	}
	return out, nil
}

// WaitPostgres pings the database until it responds or the context expires.
func WaitPostgres(ctx context.Context, db *sql.DB, interval time.Duration) error {
	for {
		if err := db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("database not reachable: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
}
