//go:build basic || database

package integration

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	accountLine = regexp.MustCompile(`Account: (\d+) \(`)
	apiKeyLine  = regexp.MustCompile(`API key: (expr_[0-9a-f]{32})`)
	createdLine = regexp.MustCompile(`Created experiment (\d+) `)
)

// runLifecycle drives the CLI through account, experiment, results and stats
// commands against whatever store env selects.
func runLifecycle(t *testing.T, env map[string]string) {
	t.Helper()

	out, err := runExprora(t, env, "account", "create", "--name", "acme")
	require.NoError(t, err)
	acct := accountLine.FindStringSubmatch(out)
	require.Len(t, acct, 2, out)
	assert.Regexp(t, apiKeyLine, out)
	account := acct[1]

	out, err = runExprora(t, env, "experiment", "create", "--account", account, "--name", "Checkout button", "--goal", "purchase")
	require.NoError(t, err)
	created := createdLine.FindStringSubmatch(out)
	require.Len(t, created, 2, out)
	expID := created[1]

	_, err = runExprora(t, env, "experiment", "variant-add", expID, "--account", account, "--name", "control", "--control")
	require.NoError(t, err)
	_, err = runExprora(t, env, "experiment", "variant-add", expID, "--account", account, "--name", "green", "--payload", `{"color":"green"}`)
	require.NoError(t, err)

	out, err = runExprora(t, env, "experiment", "status", expID, "running", "--account", account)
	require.NoError(t, err)
	assert.Contains(t, out, "is now running")

	// draft is not reachable from running
	_, err = runExprora(t, env, "experiment", "status", expID, "draft", "--account", account)
	require.Error(t, err)

	out, err = runExprora(t, env, "experiment", "list", "--account", account, "--output", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Checkout button")
	assert.Contains(t, out, "running")

	out, err = runExprora(t, env, "results", expID, "--account", account, "--output", "json")
	require.NoError(t, err)
	var results struct {
		Experiment struct {
			Name string `json:"name"`
		} `json:"experiment"`
		Variants []struct {
			VariantName string `json:"variant_name"`
			Visitors    int64  `json:"visitors"`
		} `json:"variants"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &results), out)
	assert.Equal(t, "Checkout button", results.Experiment.Name)
	require.Len(t, results.Variants, 2)
	assert.Equal(t, "control", results.Variants[0].VariantName)
	assert.Zero(t, results.Variants[1].Visitors)

	out, err = runExprora(t, env, "store", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Total Accounts: 1")
	assert.Contains(t, out, "Total Experiments: 1")
}

func runStats(t *testing.T, env map[string]string) {
	t.Helper()

	out, err := runExprora(t, env, "stats", "significance", "--output", "json",
		"--control-conversions", "50", "--control-visitors", "1000",
		"--variant-conversions", "70", "--variant-visitors", "1000")
	require.NoError(t, err)
	var report struct {
		ZScore        float64 `json:"zScore"`
		IsSignificant bool    `json:"isSignificant"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.InDelta(t, 1.883, report.ZScore, 0.01)
	assert.False(t, report.IsSignificant)

	out, err = runExprora(t, env, "stats", "sample-size", "--baseline", "0.05", "--mde", "0.02", "--power", "0.9", "--color", "no")
	require.NoError(t, err)
	assert.Contains(t, out, "2210")
	assert.True(t, strings.Contains(out, "Note:"), out)
}
