package render

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// newTable returns a borderless left-aligned table in the style used by
// every listing
func newTable(header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateHeader = true
	t.Style().Options.SeparateColumns = false
	t.Style().Box.PaddingRight = "   "
	t.Style().Format.Header = text.FormatDefault

	colConfigs := make([]table.ColumnConfig, len(header))
	for i := range header {
		colConfigs[i] = table.ColumnConfig{
			Number: i + 1,
			Align:  text.AlignLeft,
		}
	}
	t.SetColumnConfigs(colConfigs)
	t.AppendHeader(header)
	return t
}
