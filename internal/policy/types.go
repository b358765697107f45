package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/terminal-bench/paygate/pkg/money"
)

var (
	ErrInvalidWindow   = errors.New("policy: invalid time window")
	ErrNegativeCap     = errors.New("policy: negative cap")
	ErrDuplicateRow    = errors.New("policy: duplicate row key")
	ErrUnknownKYCLevel = errors.New("policy: unknown kyc level")
)

// KYCLevel orders verification requirements from weakest to strongest.
type KYCLevel int

const (
	KYCNone KYCLevel = iota
	KYCPartner
	KYCIssuer
)

// ParseKYCLevel parses a kyc level label.
func ParseKYCLevel(s string) (KYCLevel, error) {
	switch s {
	case "none", "":
		return KYCNone, nil
	case "partner":
		return KYCPartner, nil
	case "issuer":
		return KYCIssuer, nil
	}
	return KYCNone, fmt.Errorf("%w: %q", ErrUnknownKYCLevel, s)
}

func (l KYCLevel) String() string {
	switch l {
	case KYCPartner:
		return "partner"
	case KYCIssuer:
		return "issuer"
	}
	return "none"
}

// Window is an inclusive local time-of-day window with HH:MM bounds.
// "00:00".."24:00" denotes unrestricted.
type Window struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// Unrestricted is the window that admits every time of day.
var Unrestricted = Window{Start: "00:00", End: "24:00"}

// Validate checks HH:MM form and start <= end.
func (w Window) Validate() error {
	if _, err := minuteOfDay(w.Start); err != nil {
		return fmt.Errorf("%w: start %q", ErrInvalidWindow, w.Start)
	}
	if _, err := minuteOfDay(w.End); err != nil {
		return fmt.Errorf("%w: end %q", ErrInvalidWindow, w.End)
	}
	if w.Start > w.End {
		return fmt.Errorf("%w: %s > %s", ErrInvalidWindow, w.Start, w.End)
	}
	return nil
}

// Contains reports whether the wall-clock time of day of now falls inside the
// window, inclusive on both bounds. The date component is ignored.
func (w Window) Contains(now time.Time) bool {
	start, err := minuteOfDay(w.Start)
	if err != nil {
		return false
	}
	end, err := minuteOfDay(w.End)
	if err != nil {
		return false
	}
	m := now.Hour()*60 + now.Minute()
	return m >= start && m <= end
}

// IsUnrestricted reports whether the window admits every time of day.
func (w Window) IsUnrestricted() bool {
	return w.Start == "00:00" && w.End == "24:00"
}

func (w Window) String() string {
	return w.Start + "-" + w.End
}

func minuteOfDay(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("bad HH:MM value %q", s)
	}
	var h, m int
	if _, err := fmt.Sscanf(s, "%02d:%02d", &h, &m); err != nil {
		return 0, err
	}
	// 24:00 is the inclusive upper sentinel for an unrestricted window.
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("bad HH:MM value %q", s)
	}
	return h*60 + m, nil
}

// Row is one immutable policy table entry, identified by
// (jurisdiction, instrument, version).
type Row struct {
	Jurisdiction       string       `json:"jurisdiction" yaml:"jurisdiction"`
	UseCase            string       `json:"use_case" yaml:"use_case"`
	Instrument         string       `json:"instrument" yaml:"instrument"`
	Chain              string       `json:"chain" yaml:"chain"`
	Allow              bool         `json:"allow" yaml:"allow"`
	MaxPerTxn          money.Amount `json:"max_per_txn" yaml:"max_per_txn"`
	DailyCap           money.Amount `json:"daily_cap" yaml:"daily_cap"`
	MonthlyCap         money.Amount `json:"monthly_cap" yaml:"monthly_cap"`
	Currency           string       `json:"currency" yaml:"currency"`
	Window             Window       `json:"window" yaml:"window"`
	Disclosures        []string     `json:"disclosures" yaml:"disclosures"`
	KYC                KYCLevel     `json:"kyc" yaml:"-"`
	KYCLabel           string       `json:"-" yaml:"kyc"`
	TravelRule         bool         `json:"travel_rule" yaml:"travel_rule"`
	SanctionsScreen    bool         `json:"sanctions_screen" yaml:"sanctions_screen"`
	MerchantCategories []string     `json:"merchant_categories" yaml:"merchant_categories"`
	FallbackInstrument string       `json:"fallback_instrument" yaml:"fallback_instrument"`
	EffectiveFrom      time.Time    `json:"effective_from" yaml:"effective_from"`
	EffectiveTo        *time.Time   `json:"effective_to,omitempty" yaml:"effective_to"`
	Version            int          `json:"version" yaml:"version"`
	Approver           string       `json:"approver" yaml:"approver"`
	Note               string       `json:"note" yaml:"note"`
}

// Key uniquely identifies a row.
type Key struct {
	Jurisdiction string
	Instrument   string
	Version      int
}

// Key returns the row's identity.
func (r Row) Key() Key {
	return Key{Jurisdiction: r.Jurisdiction, Instrument: r.Instrument, Version: r.Version}
}

// Validate checks a row's internal consistency.
func (r Row) Validate() error {
	if r.Jurisdiction == "" || r.Instrument == "" {
		return fmt.Errorf("policy: row missing jurisdiction or instrument")
	}
	if err := r.Window.Validate(); err != nil {
		return err
	}
	if r.MaxPerTxn.IsNegative() || r.DailyCap.IsNegative() || r.MonthlyCap.IsNegative() {
		return fmt.Errorf("%w: %s/%s v%d", ErrNegativeCap, r.Jurisdiction, r.Instrument, r.Version)
	}
	return nil
}

// EffectiveAt reports whether the row is in force on the given date.
func (r Row) EffectiveAt(at time.Time) bool {
	if at.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && at.After(*r.EffectiveTo) {
		return false
	}
	return true
}

// MatchesMerchantCategory reports whether mcc is admitted by the row's
// merchant category set. A "*" entry or an empty set admits everything.
func (r Row) MatchesMerchantCategory(mcc string) bool {
	if len(r.MerchantCategories) == 0 {
		return true
	}
	for _, c := range r.MerchantCategories {
		if c == "*" || c == mcc {
			return true
		}
	}
	return false
}
