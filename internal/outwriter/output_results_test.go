package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() schema.ExperimentResults {
	return schema.ExperimentResults{
		Experiment: schema.ExperimentSummary{ID: 7, Name: "checkout", Status: schema.RunningStatus, PrimaryGoal: "purchase"},
		Variants: []schema.VariantResult{
			{
				VariantStats:   schema.VariantStats{VariantID: 1, VariantName: "control", IsControl: true, Visitors: 1000, Conversions: 50, TotalConversions: 55, Revenue: 120.5},
				ConversionRate: 5,
			},
			{
				VariantStats:   schema.VariantStats{VariantID: 2, VariantName: "treatment", Visitors: 1000, Conversions: 70, TotalConversions: 71, Revenue: 180},
				ConversionRate: 7,
				Statistics: &schema.VariantStatistics{
					SignificanceResult: schema.SignificanceResult{ZScore: 1.883, PValue: 0.0597, ConfidenceLevel: 94.03},
					Lift:               40,
					ControlRate:        5,
				},
			},
		},
	}
}

func TestVariantLabel(t *testing.T) {
	results := sampleResults()
	assert.Equal(t, contract.BaselineValue, variantLabel(results.Variants[0], false))
	assert.Equal(t, contract.TrendingValue, variantLabel(results.Variants[1], false))
	assert.Equal(t, "-", variantLabel(schema.VariantResult{}, false))

	significant := schema.VariantResult{Statistics: &schema.VariantStatistics{
		SignificanceResult: schema.SignificanceResult{PValue: 0.01, IsSignificant: true},
	}}
	assert.Equal(t, contract.SignificantValue, variantLabel(significant, false))
}

func TestWriteResultsTable(t *testing.T) {
	cfg := &contract.Config{Precision: 2, Width: 160}
	var buf bytes.Buffer
	require.NoError(t, writeResultsTable(&buf, sampleResults(), cfg, newFormatters(2), 1500*time.Microsecond))

	out := buf.String()
	assert.Contains(t, out, "Experiment #7 checkout (running)")
	assert.Contains(t, out, "Primary goal: purchase")
	assert.Contains(t, out, "treatment")
	assert.Contains(t, out, "+40.00%")
	assert.Contains(t, out, "0.0597")
	assert.Contains(t, out, contract.BaselineValue)
	assert.Contains(t, out, "Showing 2 variants (visitors: 2000, conversions: 120)")
}

func TestWriteResultsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResultsCSV(&buf, sampleResults(), newFormatters(2)))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "variant_id", records[0][0])
	assert.Len(t, records[1], len(records[0]))

	control := records[1]
	assert.Equal(t, "control", control[1])
	assert.Equal(t, "Yes", control[2])
	assert.Equal(t, "", control[9])
	assert.Equal(t, contract.BaselineValue, control[14])

	treatment := records[2]
	assert.Equal(t, "40.00", treatment[9])
	assert.Equal(t, "0.059700", treatment[11])
	assert.Equal(t, "No", treatment[13])
	assert.Equal(t, contract.TrendingValue, treatment[14])
}

func TestPrintExperimentResults_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	cfg := &contract.Config{Output: schema.JSONOut, OutputFile: path, Precision: 2}
	require.NoError(t, PrintExperimentResults(sampleResults(), cfg, time.Second))

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded schema.ExperimentResults
	require.NoError(t, json.Unmarshal(content, &decoded))
	assert.Equal(t, int64(7), decoded.Experiment.ID)
	require.Len(t, decoded.Variants, 2)
	assert.Nil(t, decoded.Variants[0].Statistics)
	require.NotNil(t, decoded.Variants[1].Statistics)
	assert.InDelta(t, 40.0, decoded.Variants[1].Statistics.Lift, 1e-9)
}

func TestGetMaxTableNameWidth(t *testing.T) {
	tests := []struct {
		width    int
		expected int
	}{
		{width: 80, expected: 12},
		{width: 120, expected: 25},
		{width: 300, expected: 48},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, GetMaxTableNameWidth(&contract.Config{Width: tt.width}))
	}
}
