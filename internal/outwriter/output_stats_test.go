package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() schema.SignificanceReport {
	return schema.SignificanceReport{
		ControlConversions: 50,
		ControlVisitors:    1000,
		VariantConversions: 70,
		VariantVisitors:    1000,
		ControlRate:        5,
		VariantRate:        7,
		SignificanceResult: schema.SignificanceResult{ZScore: 1.883, PValue: 0.0597, ConfidenceLevel: 94.03},
		Lift:               schema.LiftResult{Lift: 2, LiftPercentage: 40},
	}
}

func TestWriteSignificanceText(t *testing.T) {
	var buf bytes.Buffer
	cfg := &contract.Config{Precision: 2}
	require.NoError(t, writeSignificanceText(&buf, sampleReport(), cfg, newFormatters(2)))

	out := buf.String()
	assert.Contains(t, out, "50 / 1000 (5.00%)")
	assert.Contains(t, out, "70 / 1000 (7.00%)")
	assert.Contains(t, out, "+40.00%")
	assert.Contains(t, out, "0.0597")
	assert.Contains(t, out, contract.TrendingValue)
}

func TestWriteSignificanceCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSignificanceCSV(&buf, sampleReport(), newFormatters(3)))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "control_conversions", records[0][0])
	assert.Equal(t, []string{"50", "1000", "70", "1000", "5.000", "7.000", "2.000", "40.000", "1.883", "0.059700", "94.030", "No"}, records[1])
}

func TestPrintSignificance_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sig.json")
	cfg := &contract.Config{Output: schema.JSONOut, OutputFile: path, Precision: 2}
	require.NoError(t, NewOutWriter().WriteSignificance(sampleReport(), cfg))

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(content, &decoded))
	assert.InDelta(t, 1.883, decoded["zScore"], 1e-9)
	assert.InDelta(t, 5.0, decoded["control_rate"], 1e-9)
	lift, ok := decoded["lift"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 40.0, lift["liftPercentage"], 1e-9)
}

func TestPrintLift_Formats(t *testing.T) {
	lift := schema.LiftResult{Lift: 2, LiftPercentage: 40}
	dir := t.TempDir()

	tests := []struct {
		name   string
		output schema.OutputMode
		expect string
	}{
		{"text", schema.TextOut, "+40.00%"},
		{"csv", schema.CSVOut, "control_rate,variant_rate,lift,lift_percentage\n5.00,7.00,2.00,40.00\n"},
		{"json", schema.JSONOut, `"liftPercentage": 40`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			cfg := &contract.Config{Output: tt.output, OutputFile: path, Precision: 2}
			require.NoError(t, NewOutWriter().WriteLift(5, 7, lift, cfg))

			content, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(content), tt.expect)
		})
	}
}

func TestPrintSampleSize(t *testing.T) {
	dir := t.TempDir()

	t.Run("text shows note", func(t *testing.T) {
		path := filepath.Join(dir, "size.txt")
		est := schema.SampleSizeEstimate{BaselineRate: 0.05, MinimumDetectableEffect: 0.02, Power: 0.9, Alpha: 0.01, PerVariant: 2210, Note: "fixed critical values"}
		require.NoError(t, PrintSampleSize(est, &contract.Config{Output: schema.TextOut, OutputFile: path, Precision: 2}))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "2210")
		assert.Contains(t, string(content), "Note: fixed critical values")
	})

	t.Run("csv", func(t *testing.T) {
		path := filepath.Join(dir, "size.csv")
		est := schema.SampleSizeEstimate{BaselineRate: 0.05, MinimumDetectableEffect: 0.02, Power: 0.8, Alpha: 0.05, PerVariant: 2210}
		require.NoError(t, PrintSampleSize(est, &contract.Config{Output: schema.CSVOut, OutputFile: path, Precision: 2}))

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(content)), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "0.05,0.02,0.80,0.05,2210", lines[1])
	})
}

func TestPrintExperiments(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	experiments := []schema.Experiment{
		{ID: 1, Name: "checkout", Type: schema.ABTest, Status: schema.RunningStatus, TrafficAllocation: 100, StartDate: &start, CreatedAt: start},
		{ID: 2, Name: "pricing, annual", Type: schema.Multivariate, Status: schema.DraftStatus, TrafficAllocation: 50, CreatedAt: start},
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeExperimentsTable(&buf, experiments, &contract.Config{Width: 160}))
		out := buf.String()
		assert.Contains(t, out, "checkout")
		assert.Contains(t, out, "2026-01-02T03:04:05Z")
		assert.Contains(t, out, "50%")
		assert.Contains(t, out, "Showing 2 experiments")
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeExperimentsCSV(&buf, experiments))
		records, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "pricing, annual", records[2][1])
		assert.Equal(t, "2026-01-02T03:04:05Z", records[1][5])
		assert.Equal(t, "", records[2][5])
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "experiments.json")
		require.NoError(t, NewOutWriter().WriteExperiments(experiments, &contract.Config{Output: schema.JSONOut, OutputFile: path}))
		content, err := os.ReadFile(path)
		require.NoError(t, err)
		var decoded []schema.Experiment
		require.NoError(t, json.Unmarshal(content, &decoded))
		assert.Len(t, decoded, 2)
	})
}
