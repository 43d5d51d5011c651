package api

import (
	"encoding/json"
	"time"

	"github.com/huangsam/exprora/internal/errs"
	"github.com/huangsam/exprora/schema"
)

type visitorInitRequest struct {
	VisitorID string `json:"visitor_id" binding:"required,max=255"`
	SessionID string `json:"session_id" binding:"max=255"`
	UserAgent string `json:"user_agent"`
	IPAddress string `json:"ip_address" binding:"omitempty,ip"`
}

type activeExperimentsQuery struct {
	VisitorID string `form:"visitor_id" json:"visitor_id" binding:"required,max=255"`
	URL       string `form:"url" json:"url" binding:"omitempty,url"`
}

type trackEventRequest struct {
	VisitorID    string          `json:"visitor_id" binding:"required,max=255"`
	ExperimentID *int64          `json:"experiment_id" binding:"omitempty,gt=0"`
	VariantID    *int64          `json:"variant_id" binding:"omitempty,gt=0"`
	EventType    string          `json:"event_type" binding:"required,event_type"`
	EventName    string          `json:"event_name" binding:"max=255"`
	EventValue   *float64        `json:"event_value"`
	URL          string          `json:"url" binding:"omitempty,url"`
	Metadata     json.RawMessage `json:"metadata"`
}

func (r trackEventRequest) toEvent(accountID int64) schema.Event {
	return schema.Event{
		AccountID:    accountID,
		ExperimentID: r.ExperimentID,
		VariantID:    r.VariantID,
		VisitorID:    r.VisitorID,
		EventType:    schema.EventType(r.EventType),
		EventName:    r.EventName,
		EventValue:   r.EventValue,
		URL:          r.URL,
		Metadata:     r.Metadata,
	}
}

type resultsQuery struct {
	StartDate string `form:"start_date" json:"start_date"`
	EndDate   string `form:"end_date" json:"end_date"`
}

type targetingRuleRequest struct {
	Type      string `json:"type" binding:"required,targeting_type"`
	Condition string `json:"condition" binding:"required,targeting_condition"`
	Value     string `json:"value" binding:"required"`
	Key       string `json:"key" binding:"required_if=Type custom"`
}

func toRules(in []targetingRuleRequest) []schema.TargetingRule {
	if in == nil {
		return nil
	}
	rules := make([]schema.TargetingRule, len(in))
	for i, r := range in {
		rules[i] = schema.TargetingRule{
			Type:      schema.TargetingType(r.Type),
			Condition: schema.TargetingCondition(r.Condition),
			Value:     r.Value,
			Key:       r.Key,
		}
	}
	return rules
}

type createExperimentRequest struct {
	Name              string                 `json:"name" binding:"required,min=1,max=255"`
	Description       string                 `json:"description"`
	Type              string                 `json:"type" binding:"required,experiment_type"`
	TrafficAllocation *int                   `json:"traffic_allocation" binding:"omitempty,min=1,max=100"`
	PrimaryGoal       string                 `json:"primary_goal" binding:"max=255"`
	TargetingRules    []targetingRuleRequest `json:"targeting_rules" binding:"omitempty,dive"`
	StartDate         *time.Time             `json:"start_date"`
	EndDate           *time.Time             `json:"end_date"`
}

func (r createExperimentRequest) toExperiment(accountID int64) schema.Experiment {
	allocation := schema.DefaultTrafficAllocation
	if r.TrafficAllocation != nil {
		allocation = *r.TrafficAllocation
	}
	return schema.Experiment{
		AccountID:         accountID,
		Name:              r.Name,
		Description:       r.Description,
		Type:              schema.ExperimentType(r.Type),
		TrafficAllocation: allocation,
		PrimaryGoal:       r.PrimaryGoal,
		TargetingRules:    toRules(r.TargetingRules),
		StartDate:         r.StartDate,
		EndDate:           r.EndDate,
	}
}

// updateExperimentRequest is a partial update. A nil field is left as is;
// an empty targeting_rules list clears the rules.
type updateExperimentRequest struct {
	Name              *string                `json:"name" binding:"omitempty,min=1,max=255"`
	Description       *string                `json:"description"`
	Type              *string                `json:"type" binding:"omitempty,experiment_type"`
	TrafficAllocation *int                   `json:"traffic_allocation" binding:"omitempty,min=1,max=100"`
	PrimaryGoal       *string                `json:"primary_goal" binding:"omitempty,max=255"`
	TargetingRules    []targetingRuleRequest `json:"targeting_rules" binding:"omitempty,dive"`
	StartDate         *time.Time             `json:"start_date"`
	EndDate           *time.Time             `json:"end_date"`
	Status            *string                `json:"status" binding:"omitempty,experiment_status"`
}

func (r updateExperimentRequest) apply(e schema.Experiment) schema.Experiment {
	if r.Name != nil {
		e.Name = *r.Name
	}
	if r.Description != nil {
		e.Description = *r.Description
	}
	if r.Type != nil {
		e.Type = schema.ExperimentType(*r.Type)
	}
	if r.TrafficAllocation != nil {
		e.TrafficAllocation = *r.TrafficAllocation
	}
	if r.PrimaryGoal != nil {
		e.PrimaryGoal = *r.PrimaryGoal
	}
	if r.TargetingRules != nil {
		e.TargetingRules = toRules(r.TargetingRules)
	}
	if r.StartDate != nil {
		e.StartDate = r.StartDate
	}
	if r.EndDate != nil {
		e.EndDate = r.EndDate
	}
	return e
}

type statusRequest struct {
	Status string `json:"status" binding:"required,experiment_status"`
}

type variantRequest struct {
	Name              string          `json:"name" binding:"required,min=1,max=255"`
	Type              string          `json:"type" binding:"omitempty,oneof=control variant"`
	TrafficPercentage *int            `json:"traffic_percentage" binding:"omitempty,min=0,max=100"`
	IsControl         bool            `json:"is_control"`
	Payload           json.RawMessage `json:"payload"`
}

func (r variantRequest) toVariant(experimentID int64) schema.Variant {
	weight := schema.DefaultTrafficPercentage
	if r.TrafficPercentage != nil {
		weight = *r.TrafficPercentage
	}
	return schema.Variant{
		ExperimentID:      experimentID,
		Name:              r.Name,
		TrafficPercentage: weight,
		IsControl:         r.IsControl || r.Type == "control",
		Payload:           r.Payload,
	}
}

// validateSchedule rejects a start date after the end date.
func validateSchedule(start, end *time.Time) error {
	if start != nil && end != nil && start.After(*end) {
		return errs.Validation("start_date must not be after end_date")
	}
	return nil
}
