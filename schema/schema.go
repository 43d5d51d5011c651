// Package schema has models, constants and shared helpers for all parts of exprora.
package schema

import (
	"encoding/json"
	"time"
)

// Account is a tenant. Every experiment, assignment and event is scoped to one.
type Account struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	APIKey    string    `json:"api_key"`
	CreatedAt time.Time `json:"created_at"`
}

// TargetingRule is a single predicate a visitor must satisfy to enter an experiment.
type TargetingRule struct {
	Type      TargetingType      `json:"type"`
	Condition TargetingCondition `json:"condition"`
	Value     string             `json:"value"`
	Key       string             `json:"key,omitempty"` // attribute name for custom rules
}

// Experiment holds the tenant-owned definition of an experiment.
type Experiment struct {
	ID                int64            `json:"id"`
	AccountID         int64            `json:"account_id"`
	Name              string           `json:"name"`
	Description       string           `json:"description,omitempty"`
	Type              ExperimentType   `json:"type"`
	Status            ExperimentStatus `json:"status"`
	TrafficAllocation int              `json:"traffic_allocation"` // percent of visitors that participate
	StartDate         *time.Time       `json:"start_date,omitempty"`
	EndDate           *time.Time       `json:"end_date,omitempty"`
	TargetingRules    []TargetingRule  `json:"targeting_rules,omitempty"`
	PrimaryGoal       string           `json:"primary_goal,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// IsActiveAt reports whether the experiment is running and inside its schedule at t.
func (e Experiment) IsActiveAt(t time.Time) bool {
	if e.Status != RunningStatus {
		return false
	}
	if e.StartDate != nil && e.StartDate.After(t) {
		return false
	}
	if e.EndDate != nil && e.EndDate.Before(t) {
		return false
	}
	return true
}

// Variant is one arm of an experiment. TrafficPercentage is a relative weight.
type Variant struct {
	ID                int64           `json:"id"`
	ExperimentID      int64           `json:"experiment_id"`
	Name              string          `json:"name"`
	TrafficPercentage int             `json:"traffic_percentage"`
	IsControl         bool            `json:"is_control"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// RunningExperiment is an experiment together with its variants in listed order.
type RunningExperiment struct {
	Experiment
	Variants []Variant `json:"variants"`
}

// Weights returns the variant weights in listed order.
func (r RunningExperiment) Weights() []int {
	weights := make([]int, len(r.Variants))
	for i, v := range r.Variants {
		weights[i] = v.TrafficPercentage
	}
	return weights
}

// VariantByID returns the variant with the given id, if present.
func (r RunningExperiment) VariantByID(id int64) (Variant, bool) {
	for _, v := range r.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// Visitor is an anonymous, cookie-identified browser session.
type Visitor struct {
	AccountID   int64     `json:"account_id"`
	VisitorID   string    `json:"visitor_id"`
	SessionID   string    `json:"session_id,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// VisitorContext carries the request attributes targeting rules are matched against.
type VisitorContext struct {
	VisitorID  string
	URL        string
	UserAgent  string
	Country    string
	Attributes map[string]string
}
