package cmd

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestVersionCmd(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("db-backend", "postgresql")
	viper.Set("allocation-mode", "hash")

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	t.Cleanup(func() { versionCmd.SetOut(nil) })
	versionCmd.Run(versionCmd, nil)

	out := buf.String()
	assert.Contains(t, out, "exprora CLI")
	assert.Contains(t, out, "Store:      postgresql")
	assert.Contains(t, out, "Allocation: hash")
	assert.Contains(t, out, "p < 0.05, power 0.8")
}
