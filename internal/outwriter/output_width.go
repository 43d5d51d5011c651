package outwriter

import (
	"os"

	"github.com/huangsam/exprora/internal/contract"
	"golang.org/x/term"
)

// GetMaxTableNameWidth returns the width available for variant and
// experiment names in table output, based on the terminal width.
func GetMaxTableNameWidth(cfg *contract.Config) int {
	termWidth := cfg.Width
	if termWidth == 0 {
		detected, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detected <= 0 {
			termWidth = 80 // CI and pipes
		} else {
			termWidth = detected
		}
	}

	// Visitors, conversions, rate, lift, z, p, confidence and label columns
	// plus borders take roughly this much.
	const fixedColumns = 95

	available := termWidth - fixedColumns
	if available < 12 {
		return 12
	}
	if available > 48 {
		return 48
	}
	return available
}
