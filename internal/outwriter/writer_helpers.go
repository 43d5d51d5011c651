package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/huangsam/exprora/internal/contract"
)

// writeWithFile opens the configured output (stdout when empty), runs the
// writer against it and reports where a file was written.
func writeWithFile(outputFile string, writer func(io.Writer) error, successMsg string) error {
	file, err := contract.SelectOutputFile(outputFile)
	if err != nil {
		return err
	}
	if file != os.Stdout {
		defer func() { _ = file.Close() }()
	}

	if err := writer(file); err != nil {
		return err
	}

	if file != os.Stdout {
		_, _ = fmt.Fprintf(os.Stderr, "💾 %s to %s\n", successMsg, outputFile)
	}
	return nil
}

// writeJSON encodes data with two-space indentation.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeCSVWithHeader writes a header row followed by whatever writeRows emits.
func writeCSVWithHeader(w io.Writer, header []string, writeRows func(*csv.Writer) error) error {
	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	return writeRows(csvWriter)
}

// formatters renders numbers at the configured precision.
type formatters struct {
	precision int
}

func newFormatters(precision int) formatters {
	return formatters{precision: precision}
}

// float renders v with the configured number of decimals.
func (f formatters) float(v float64) string {
	return fmt.Sprintf("%.*f", f.precision, v)
}

// percent renders v as a percentage.
func (f formatters) percent(v float64) string {
	return fmt.Sprintf("%.*f%%", f.precision, v)
}

// signedPercent renders v as a percentage with an explicit sign.
func (f formatters) signedPercent(v float64) string {
	return fmt.Sprintf("%+.*f%%", f.precision, v)
}

// pValue keeps small p-values readable regardless of precision.
func (f formatters) pValue(p float64) string {
	if p > 0 && p < 0.0001 {
		return "<0.0001"
	}
	return fmt.Sprintf("%.4f", p)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
