package contract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPlainLabel(t *testing.T) {
	tests := []struct {
		name        string
		pValue      float64
		significant bool
		expected    string
	}{
		{
			name:        "significant result",
			pValue:      0.01,
			significant: true,
			expected:    SignificantValue,
		},
		{
			name:     "just above the significance threshold",
			pValue:   0.0597,
			expected: TrendingValue,
		},
		{
			name:     "exactly trending threshold",
			pValue:   0.10,
			expected: NotSignificantValue,
		},
		{
			name:     "neutral result",
			pValue:   1,
			expected: NotSignificantValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetPlainLabel(tt.pValue, tt.significant))
		})
	}
}

func TestGetColorLabel(t *testing.T) {
	tests := []struct {
		name        string
		pValue      float64
		significant bool
		label       string
	}{
		{"significant", 0.001, true, SignificantValue},
		{"trending", 0.07, false, TrendingValue},
		{"not significant", 0.5, false, NotSignificantValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetColorLabel(tt.pValue, tt.significant)
			// Should contain the plain label
			assert.Contains(t, result, tt.label)
		})
	}
}

func TestSelectOutputFile(t *testing.T) {
	t.Run("empty path returns stdout", func(t *testing.T) {
		file, err := SelectOutputFile("")
		require.NoError(t, err)
		assert.Equal(t, os.Stdout, file)
	})

	t.Run("valid path creates file", func(t *testing.T) {
		tempFile := filepath.Join(t.TempDir(), "test_output.txt")

		file, err := SelectOutputFile(tempFile)
		require.NoError(t, err)
		assert.NotNil(t, file)
		_ = file.Close()

		// Verify file was created
		_, err = os.Stat(tempFile)
		assert.NoError(t, err)
	})
}

func TestGetDBFilePath(t *testing.T) {
	path := GetDBFilePath()

	assert.NotEmpty(t, path)
	assert.Contains(t, path, ".exprora.db")

	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, homeDir), "path %s should start with home dir %s", path, homeDir)
}

func TestParseBoolString(t *testing.T) {
	tests := []struct {
		input     string
		want      bool
		expectErr bool
	}{
		{"yes", true, false},
		{"TRUE", true, false},
		{"1", true, false},
		{"no", false, false},
		{"False", false, false},
		{"0", false, false},
		{"maybe", false, true},
		{"", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBoolString(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewAPIKey(t *testing.T) {
	key := NewAPIKey()
	assert.Regexp(t, `^expr_[0-9a-f]{32}$`, key)
	assert.NotEqual(t, key, NewAPIKey())
}
