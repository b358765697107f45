package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Event subjects published by the checkout engine.
const (
	EventTypeCheckoutEvaluated = "checkout.evaluated"
	EventTypeFallbackApplied   = "checkout.fallback_applied"
	EventTypeArtifactBuilt     = "checkout.artifact_built"
	EventTypeQuoteLocked       = "checkout.quote_locked"
	EventTypeQuoteReset        = "checkout.quote_reset"
)

// EvaluatedEvent reports the combined decision of one evaluation pass.
type EvaluatedEvent struct {
	EventID      uuid.UUID `json:"event_id"`
	SessionID    string    `json:"session_id"`
	RID          string    `json:"rid,omitempty"`
	Jurisdiction string    `json:"jurisdiction"`
	Approved     bool      `json:"approved"`
	Reason       string    `json:"reason,omitempty"`
	TotalLocal   string    `json:"total_local"`
	EvaluatedAt  time.Time `json:"evaluated_at"`
}

// FallbackEvent reports a variable-rate leg converted to the card leg.
type FallbackEvent struct {
	EventID     uuid.UUID `json:"event_id"`
	SessionID   string    `json:"session_id"`
	RID         string    `json:"rid,omitempty"`
	MovedLocal  string    `json:"moved_local"`
	CurrentRate string    `json:"current_rate"`
	Trigger     string    `json:"trigger"` // "quote_expired" or "slippage_breached"
	AppliedAt   time.Time `json:"applied_at"`
}

// ArtifactEvent reports a frozen audit artifact.
type ArtifactEvent struct {
	EventID      uuid.UUID `json:"event_id"`
	SessionID    string    `json:"session_id"`
	RID          string    `json:"rid"`
	Jurisdiction string    `json:"jurisdiction"`
	BatchID      string    `json:"batch_id"`
	Gross        string    `json:"gross"`
	Net          string    `json:"net"`
	PolicyHash   string    `json:"policy_hash"`
	BuiltAt      time.Time `json:"built_at"`
}

// QuoteEvent reports a quote lock or reset.
type QuoteEvent struct {
	EventID   uuid.UUID `json:"event_id"`
	SessionID string    `json:"session_id"`
	QuoteID   string    `json:"quote_id,omitempty"`
	Rate      string    `json:"rate,omitempty"`
	At        time.Time `json:"at"`
}
