// Package parquet exports experiment assignments, events and results to
// Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/huangsam/exprora/schema"
	"github.com/parquet-go/parquet-go"
)

// AssignmentRecord is one sticky visitor assignment.
type AssignmentRecord struct {
	AccountID    int64     `parquet:"account_id,snappy"`
	ExperimentID int64     `parquet:"experiment_id,snappy"`
	VariantID    int64     `parquet:"variant_id,snappy"`
	VisitorID    string    `parquet:"visitor_id,snappy,dict"`
	AssignedAt   time.Time `parquet:"assigned_at,snappy"`
}

// EventRecord is one tracked event.
type EventRecord struct {
	EventID      int64    `parquet:"event_id,snappy"`
	AccountID    int64    `parquet:"account_id,snappy"`
	ExperimentID *int64   `parquet:"experiment_id,optional,snappy"`
	VariantID    *int64   `parquet:"variant_id,optional,snappy"`
	VisitorID    string   `parquet:"visitor_id,snappy,dict"`
	EventType    string   `parquet:"event_type,snappy,dict"`
	EventName    *string  `parquet:"event_name,optional,snappy"`
	EventValue   *float64 `parquet:"event_value,optional,snappy"`
	URL          *string  `parquet:"url,optional,snappy"`

	// Metadata is the raw JSON document attached to the event (nullable)
	Metadata *string `parquet:"metadata,optional,snappy"`

	CreatedAt time.Time `parquet:"created_at,snappy"`
}

// ResultRecord is one variant row of a results report.
type ResultRecord struct {
	ExperimentID     int64    `parquet:"experiment_id,snappy"`
	ExperimentName   string   `parquet:"experiment_name,snappy"`
	VariantID        int64    `parquet:"variant_id,snappy"`
	VariantName      string   `parquet:"variant_name,snappy"`
	IsControl        bool     `parquet:"is_control"`
	Visitors         int64    `parquet:"visitors,snappy"`
	Pageviews        int64    `parquet:"pageviews,snappy"`
	Conversions      int64    `parquet:"conversions,snappy"`
	TotalConversions int64    `parquet:"total_conversions,snappy"`
	ConversionRate   float64  `parquet:"conversion_rate,snappy"`
	Revenue          float64  `parquet:"revenue,snappy"`
	Lift             *float64 `parquet:"lift,optional,snappy"`
	ZScore           *float64 `parquet:"z_score,optional,snappy"`
	PValue           *float64 `parquet:"p_value,optional,snappy"`
	IsSignificant    *bool    `parquet:"is_significant,optional"`
}

// WriteRecords writes rows to a Parquet file whose schema is derived from T.
func WriteRecords[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// ConvertAssignments converts store assignments to Parquet records.
func ConvertAssignments(rows []schema.Assignment) []AssignmentRecord {
	result := make([]AssignmentRecord, len(rows))
	for i, a := range rows {
		result[i] = AssignmentRecord{
			AccountID:    a.AccountID,
			ExperimentID: a.ExperimentID,
			VariantID:    a.VariantID,
			VisitorID:    a.VisitorID,
			AssignedAt:   a.AssignedAt.UTC(),
		}
	}
	return result
}

// ConvertEvents converts store events to Parquet records.
func ConvertEvents(rows []schema.Event) []EventRecord {
	result := make([]EventRecord, len(rows))
	for i, e := range rows {
		result[i] = EventRecord{
			EventID:      e.ID,
			AccountID:    e.AccountID,
			ExperimentID: e.ExperimentID,
			VariantID:    e.VariantID,
			VisitorID:    e.VisitorID,
			EventType:    string(e.EventType),
			EventName:    optionalString(e.EventName),
			EventValue:   e.EventValue,
			URL:          optionalString(e.URL),
			Metadata:     optionalString(string(e.Metadata)),
			CreatedAt:    e.CreatedAt.UTC(),
		}
	}
	return result
}

// ConvertResults flattens a results report to one record per variant.
func ConvertResults(results schema.ExperimentResults) []ResultRecord {
	result := make([]ResultRecord, len(results.Variants))
	for i, v := range results.Variants {
		rec := ResultRecord{
			ExperimentID:     results.Experiment.ID,
			ExperimentName:   results.Experiment.Name,
			VariantID:        v.VariantID,
			VariantName:      v.VariantName,
			IsControl:        v.IsControl,
			Visitors:         v.Visitors,
			Pageviews:        v.Pageviews,
			Conversions:      v.Conversions,
			TotalConversions: v.TotalConversions,
			ConversionRate:   v.ConversionRate,
			Revenue:          v.Revenue,
		}
		if s := v.Statistics; s != nil {
			lift, z, p, sig := s.Lift, s.ZScore, s.PValue, s.IsSignificant
			rec.Lift, rec.ZScore, rec.PValue, rec.IsSignificant = &lift, &z, &p, &sig
		}
		result[i] = rec
	}
	return result
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
