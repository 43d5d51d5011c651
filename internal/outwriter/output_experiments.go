package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/schema"
	"github.com/olekukonko/tablewriter"
)

// PrintExperiments writes an experiment listing in the configured format.
func PrintExperiments(experiments []schema.Experiment, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error { return writeJSON(w, experiments) }, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error { return writeExperimentsCSV(w, experiments) }, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error { return writeExperimentsTable(w, experiments, cfg) }, "Wrote table")
	}
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(contract.DateTimeFormat)
}

func writeExperimentsTable(w io.Writer, experiments []schema.Experiment, cfg *contract.Config) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"ID", "Name", "Type", "Status", "Traffic", "Start", "End", "Rules"})

	nameWidth := GetMaxTableNameWidth(cfg)
	var data [][]string
	for _, e := range experiments {
		data = append(data, []string{
			fmt.Sprintf("%d", e.ID),
			schema.TruncateName(e.Name, nameWidth),
			string(e.Type),
			string(e.Status),
			fmt.Sprintf("%d%%", e.TrafficAllocation),
			formatOptionalTime(e.StartDate),
			formatOptionalTime(e.EndDate),
			fmt.Sprintf("%d", len(e.TargetingRules)),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Showing %d experiments\n", len(experiments))
	return err
}

func writeExperimentsCSV(w io.Writer, experiments []schema.Experiment) error {
	header := []string{"id", "name", "type", "status", "traffic_allocation", "start_date", "end_date", "primary_goal", "created_at"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, e := range experiments {
			start, end := "", ""
			if e.StartDate != nil {
				start = e.StartDate.UTC().Format(contract.DateTimeFormat)
			}
			if e.EndDate != nil {
				end = e.EndDate.UTC().Format(contract.DateTimeFormat)
			}
			if err := cw.Write([]string{
				fmt.Sprintf("%d", e.ID),
				e.Name,
				string(e.Type),
				string(e.Status),
				fmt.Sprintf("%d", e.TrafficAllocation),
				start,
				end,
				e.PrimaryGoal,
				e.CreatedAt.UTC().Format(contract.DateTimeFormat),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}
