package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/schema"
	"github.com/olekukonko/tablewriter"
)

// PrintSignificance writes a two-arm comparison in the configured format.
func PrintSignificance(r schema.SignificanceReport, cfg *contract.Config) error {
	f := newFormatters(cfg.Precision)
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error { return writeJSON(w, r) }, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error { return writeSignificanceCSV(w, r, f) }, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error { return writeSignificanceText(w, r, cfg, f) }, "Wrote text")
	}
}

func writeSignificanceText(w io.Writer, r schema.SignificanceReport, cfg *contract.Config, f formatters) error {
	label := contract.GetPlainLabel(r.PValue, r.IsSignificant)
	if cfg.UseColors {
		label = contract.GetColorLabel(r.PValue, r.IsSignificant)
	}
	return writeKeyValueTable(w, [][]string{
		{"Control", fmt.Sprintf("%d / %d (%s)", r.ControlConversions, r.ControlVisitors, f.percent(r.ControlRate))},
		{"Variant", fmt.Sprintf("%d / %d (%s)", r.VariantConversions, r.VariantVisitors, f.percent(r.VariantRate))},
		{"Lift", f.signedPercent(r.Lift.LiftPercentage)},
		{"Z-score", f.float(r.ZScore)},
		{"P-value", f.pValue(r.PValue)},
		{"Confidence", f.percent(r.ConfidenceLevel)},
		{"Result", label},
	})
}

func writeSignificanceCSV(w io.Writer, r schema.SignificanceReport, f formatters) error {
	header := []string{
		"control_conversions", "control_visitors", "variant_conversions", "variant_visitors",
		"control_rate", "variant_rate", "lift", "lift_percentage", "z_score", "p_value", "confidence", "significant",
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		return cw.Write([]string{
			fmt.Sprintf("%d", r.ControlConversions),
			fmt.Sprintf("%d", r.ControlVisitors),
			fmt.Sprintf("%d", r.VariantConversions),
			fmt.Sprintf("%d", r.VariantVisitors),
			f.float(r.ControlRate),
			f.float(r.VariantRate),
			f.float(r.Lift.Lift),
			f.float(r.Lift.LiftPercentage),
			f.float(r.ZScore),
			fmt.Sprintf("%.6f", r.PValue),
			f.float(r.ConfidenceLevel),
			yesNo(r.IsSignificant),
		})
	})
}

// PrintLift writes the absolute and relative lift between two rates.
func PrintLift(controlRate, variantRate float64, lift schema.LiftResult, cfg *contract.Config) error {
	f := newFormatters(cfg.Precision)
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, struct {
				ControlRate float64 `json:"control_rate"`
				VariantRate float64 `json:"variant_rate"`
				schema.LiftResult
			}{controlRate, variantRate, lift})
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVWithHeader(w, []string{"control_rate", "variant_rate", "lift", "lift_percentage"}, func(cw *csv.Writer) error {
				return cw.Write([]string{f.float(controlRate), f.float(variantRate), f.float(lift.Lift), f.float(lift.LiftPercentage)})
			})
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeKeyValueTable(w, [][]string{
				{"Control rate", f.float(controlRate)},
				{"Variant rate", f.float(variantRate)},
				{"Lift", f.float(lift.Lift)},
				{"Relative lift", f.signedPercent(lift.LiftPercentage)},
			})
		}, "Wrote text")
	}
}

// PrintSampleSize writes a sample size estimate.
func PrintSampleSize(est schema.SampleSizeEstimate, cfg *contract.Config) error {
	f := newFormatters(cfg.Precision)
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error { return writeJSON(w, est) }, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			header := []string{"baseline_rate", "minimum_detectable_effect", "power", "alpha", "per_variant"}
			return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
				return cw.Write([]string{f.float(est.BaselineRate), f.float(est.MinimumDetectableEffect), f.float(est.Power), f.float(est.Alpha), fmt.Sprintf("%d", est.PerVariant)})
			})
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			if err := writeKeyValueTable(w, [][]string{
				{"Baseline rate", f.float(est.BaselineRate)},
				{"Minimum detectable effect", f.float(est.MinimumDetectableEffect)},
				{"Power", f.float(est.Power)},
				{"Alpha", f.float(est.Alpha)},
				{"Visitors per variant", fmt.Sprintf("%d", est.PerVariant)},
			}); err != nil {
				return err
			}
			if est.Note != "" {
				if _, err := fmt.Fprintf(w, "Note: %s\n", est.Note); err != nil {
					return err
				}
			}
			return nil
		}, "Wrote text")
	}
}

// writeKeyValueTable renders a two-column table without a header.
func writeKeyValueTable(w io.Writer, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
