package schema

import (
	"encoding/json"
	"time"
)

// Assignment is the durable record of which variant a visitor was allocated to.
type Assignment struct {
	ID           int64     `json:"id"`
	AccountID    int64     `json:"account_id"`
	ExperimentID int64     `json:"experiment_id"`
	VariantID    int64     `json:"variant_id"`
	VisitorID    string    `json:"visitor_id"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// InsertResult reports the outcome of an insert-if-absent on the assignment table.
// VariantID is always the persisted variant, whether or not this call inserted it.
type InsertResult struct {
	Inserted  bool
	VariantID int64
}

// Event is an append-only tracked visitor action.
type Event struct {
	ID           int64           `json:"id"`
	AccountID    int64           `json:"account_id"`
	ExperimentID *int64          `json:"experiment_id,omitempty"`
	VariantID    *int64          `json:"variant_id,omitempty"`
	VisitorID    string          `json:"visitor_id"`
	EventType    EventType       `json:"event_type"`
	EventName    string          `json:"event_name,omitempty"`
	EventValue   *float64        `json:"event_value,omitempty"`
	URL          string          `json:"url,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// DateRange bounds event aggregation. Zero values mean unbounded.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies inside the range, bounds inclusive.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// VariantStats is the per-variant aggregation over assignments and events.
type VariantStats struct {
	VariantID        int64   `json:"variant_id"`
	VariantName      string  `json:"variant_name"`
	IsControl        bool    `json:"is_control"`
	Visitors         int64   `json:"visitors"`          // distinct assigned visitors
	Pageviews        int64   `json:"pageviews"`         // distinct visitors with a pageview
	Conversions      int64   `json:"conversions"`       // distinct converting visitors
	TotalConversions int64   `json:"total_conversions"` // conversion event count
	Revenue          float64 `json:"revenue"`
}
