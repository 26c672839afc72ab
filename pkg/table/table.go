// Package table renders pterm tables for CLI output.
package table

import (
	"github.com/pterm/pterm"
)

// PrintTableNoPad renders data with its first row as the header. Cells are
// separated by a single column of spacing rather than pterm's default padding.
func PrintTableNoPad(data pterm.TableData, withRowSeparators bool) {
	if len(data) == 0 {
		return
	}
	tbl := pterm.DefaultTable.
		WithHasHeader(true).
		WithSeparator(" ").
		WithData(data)
	if withRowSeparators && len(data) > 2 {
		tbl = tbl.WithHeaderRowSeparator("-")
	}
	_ = tbl.Render()
}
