package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintExperimentResults writes a results report in the configured format.
func PrintExperimentResults(results schema.ExperimentResults, cfg *contract.Config, duration time.Duration) error {
	f := newFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, results)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeResultsCSV(w, results, f)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeResultsTable(w, results, cfg, f, duration)
		}, "Wrote table")
	}
	return nil
}

// variantLabel returns the significance label of a results row.
func variantLabel(v schema.VariantResult, colored bool) string {
	if v.IsControl {
		if colored {
			return contract.BaselineColor.Sprint(contract.BaselineValue)
		}
		return contract.BaselineValue
	}
	if v.Statistics == nil {
		return "-"
	}
	if colored {
		return contract.GetColorLabel(v.Statistics.PValue, v.Statistics.IsSignificant)
	}
	return contract.GetPlainLabel(v.Statistics.PValue, v.Statistics.IsSignificant)
}

// writeResultsTable renders the human-readable results table.
func writeResultsTable(w io.Writer, results schema.ExperimentResults, cfg *contract.Config, f formatters, duration time.Duration) error {
	if _, err := fmt.Fprintf(w, "Experiment #%d %s (%s)\n", results.Experiment.ID, results.Experiment.Name, results.Experiment.Status); err != nil {
		return err
	}
	if results.Experiment.PrimaryGoal != "" {
		if _, err := fmt.Fprintf(w, "Primary goal: %s\n", results.Experiment.PrimaryGoal); err != nil {
			return err
		}
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Variant", "Control", "Visitors", "Conversions", "Rate", "Revenue", "Lift", "Z", "P", "Confidence", "Label"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
	})

	nameWidth := GetMaxTableNameWidth(cfg)
	var data [][]string
	var totalVisitors, totalConversions int64
	for _, v := range results.Variants {
		totalVisitors += v.Visitors
		totalConversions += v.Conversions

		row := []string{
			schema.TruncateName(v.VariantName, nameWidth),
			yesNo(v.IsControl),
			fmt.Sprintf("%d", v.Visitors),
			fmt.Sprintf("%d", v.Conversions),
			f.percent(v.ConversionRate),
			f.float(v.Revenue),
		}
		if s := v.Statistics; s != nil {
			row = append(row,
				f.signedPercent(s.Lift),
				f.float(s.ZScore),
				f.pValue(s.PValue),
				f.percent(s.ConfidenceLevel),
			)
		} else {
			row = append(row, "-", "-", "-", "-")
		}
		row = append(row, variantLabel(v, cfg.UseColors))
		data = append(data, row)
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Showing %d variants (visitors: %d, conversions: %d)\n", len(results.Variants), totalVisitors, totalConversions); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Computed in %v\n", duration.Round(time.Millisecond)); err != nil {
		return err
	}
	return nil
}

// writeResultsCSV writes one row per variant. Statistics columns are empty
// for the control and when no control exists.
func writeResultsCSV(w io.Writer, results schema.ExperimentResults, f formatters) error {
	header := []string{
		"variant_id", "variant_name", "is_control", "visitors", "pageviews", "conversions",
		"total_conversions", "conversion_rate", "revenue", "lift", "z_score", "p_value",
		"confidence", "significant", "label",
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, v := range results.Variants {
			rec := []string{
				fmt.Sprintf("%d", v.VariantID),
				v.VariantName,
				yesNo(v.IsControl),
				fmt.Sprintf("%d", v.Visitors),
				fmt.Sprintf("%d", v.Pageviews),
				fmt.Sprintf("%d", v.Conversions),
				fmt.Sprintf("%d", v.TotalConversions),
				f.float(v.ConversionRate),
				f.float(v.Revenue),
			}
			if s := v.Statistics; s != nil {
				rec = append(rec, f.float(s.Lift), f.float(s.ZScore), fmt.Sprintf("%.6f", s.PValue), f.float(s.ConfidenceLevel), yesNo(s.IsSignificant))
			} else {
				rec = append(rec, "", "", "", "", "")
			}
			rec = append(rec, variantLabel(v, false))
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}
