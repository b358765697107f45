package policy

import (
	"fmt"
	"sort"
	"time"
)

// Store holds the immutable policy table, loaded once at startup.
// Rows are kept in a stable order (jurisdiction, instrument, version) so
// first-match merge behavior is deterministic.
type Store struct {
	rows  []Row
	merge MergeStrategy
}

// NewStore validates and indexes the given rows. Rows are copied; the caller's
// slice is not retained.
func NewStore(rows []Row, merge MergeStrategy) (*Store, error) {
	if merge == nil {
		merge = BasketMerge{}
	}
	sorted := append([]Row(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Jurisdiction != b.Jurisdiction {
			return a.Jurisdiction < b.Jurisdiction
		}
		if a.Instrument != b.Instrument {
			return a.Instrument < b.Instrument
		}
		return a.Version < b.Version
	})

	keys := make(map[Key]struct{}, len(sorted))
	for _, r := range sorted {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := keys[r.Key()]; dup {
			return nil, fmt.Errorf("%w: %s/%s v%d", ErrDuplicateRow, r.Jurisdiction, r.Instrument, r.Version)
		}
		keys[r.Key()] = struct{}{}
	}

	return &Store{rows: sorted, merge: merge}, nil
}

// Rows returns a copy of every row in stable order, for the policy table
// export. No derived fields are added.
func (s *Store) Rows() []Row {
	return append([]Row(nil), s.rows...)
}

// Len returns the number of rows.
func (s *Store) Len() int {
	return len(s.rows)
}

// Resolve selects the rows effective at asOf whose jurisdiction matches,
// whose instrument is in the requested set, and whose merchant category set
// admits the basket's category, then merges them into a Snapshot. Absence of
// any matching row is not an error: the merge strategy degrades to the
// fail-closed default (disabled, caps zero).
func (s *Store) Resolve(jurisdiction string, instruments []string, merchantCategory string, asOf time.Time) Snapshot {
	want := make(map[string]struct{}, len(instruments))
	for _, in := range instruments {
		want[in] = struct{}{}
	}

	var matched []Row
	for _, r := range s.rows {
		if r.Jurisdiction != jurisdiction {
			continue
		}
		if _, ok := want[r.Instrument]; !ok {
			continue
		}
		if !r.MatchesMerchantCategory(merchantCategory) {
			continue
		}
		if !r.EffectiveAt(asOf) {
			continue
		}
		matched = append(matched, r)
	}

	return s.merge.Merge(jurisdiction, instruments, matched)
}
