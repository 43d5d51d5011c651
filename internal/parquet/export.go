package parquet

import (
	"context"
	"fmt"

	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/schema"
)

// File suffixes appended to the export prefix.
const (
	AssignmentsSuffix = "_assignments.parquet"
	EventsSuffix      = "_events.parquet"
	ResultsSuffix     = "_results.parquet"
)

// ExportExperiment writes the assignments, events and results of one
// experiment next to each other and returns the written paths in that order.
func ExportExperiment(ctx context.Context, src contract.Exporter, accountID int64, results schema.ExperimentResults, r schema.DateRange, prefix string) ([]string, error) {
	expID := results.Experiment.ID

	assignments, err := src.ListAssignments(ctx, accountID, expID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	events, err := src.ListEvents(ctx, accountID, expID, r)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	paths := []string{prefix + AssignmentsSuffix, prefix + EventsSuffix, prefix + ResultsSuffix}
	if err := WriteRecords(ConvertAssignments(assignments), paths[0]); err != nil {
		return nil, err
	}
	if err := WriteRecords(ConvertEvents(events), paths[1]); err != nil {
		return nil, err
	}
	if err := WriteRecords(ConvertResults(results), paths[2]); err != nil {
		return nil, err
	}
	return paths, nil
}
