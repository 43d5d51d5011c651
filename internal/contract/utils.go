package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// Significance label constants.
const (
	SignificantValue    = "Significant"     // p below 0.05
	TrendingValue       = "Trending"        // p below 0.10
	NotSignificantValue = "Not significant" // anything else
	BaselineValue       = "Baseline"        // control row
)

// TrendingThreshold is the p-value under which a result is reported as trending.
const TrendingThreshold = 0.10

// Color variables for console output.
var (
	SignificantColor = color.New(color.FgGreen, color.Bold)
	TrendingColor    = color.New(color.FgYellow)
	BaselineColor    = color.New(color.FgCyan)
)

// GetPlainLabel returns a plain text label for a p-value. This is the core
// logic used for CSV, JSON, and table printing.
func GetPlainLabel(pValue float64, significant bool) string {
	switch {
	case significant:
		return SignificantValue
	case pValue < TrendingThreshold:
		return TrendingValue
	default:
		return NotSignificantValue
	}
}

// GetColorLabel returns a colored text label for console output (table).
func GetColorLabel(pValue float64, significant bool) string {
	text := GetPlainLabel(pValue, significant)

	switch text {
	case SignificantValue:
		return SignificantColor.Sprint(text)
	case TrendingValue:
		return TrendingColor.Sprint(text)
	default:
		return text
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. It falls back to os.Stdout when no path is given.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetDBFilePath returns the path to the default SQLite DB file.
func GetDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".exprora.db"
	}
	return filepath.Join(homeDir, ".exprora.db")
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}

// APIKeyPrefix starts every generated account key.
const APIKeyPrefix = "expr_"

// NewAPIKey returns APIKeyPrefix followed by 32 hex characters of a random UUID.
func NewAPIKey() string {
	return APIKeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
