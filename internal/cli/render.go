package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/dbchat/internal/database"
	"github.com/theirongolddev/dbchat/internal/dialect"
	"github.com/theirongolddev/dbchat/internal/inspect"
)

// Theme colors (Flexoki Dark)
var (
	ColorBorder    = lipgloss.Color("#282726")
	ColorTextDim   = lipgloss.Color("#575653")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorGreen     = lipgloss.Color("#879A39")
	ColorOrange    = lipgloss.Color("#DA702C")
	ColorRed       = lipgloss.Color("#D14D41")
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Align(lipgloss.Center)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	valueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	okStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	warnStyle = lipgloss.NewStyle().
			Foreground(ColorOrange)

	errStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	dimStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)
)

// DefaultCellWidth caps result cells so one long value cannot blow up a table.
const DefaultCellWidth = 40

// Table represents a bordered text table for CLI output.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Footer  string // muted line under the table
}

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	width := 55
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(width).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

// RenderTable renders a bordered table with headers and rows.
// Numeric cells are right-aligned.
func RenderTable(t Table) string {
	if len(t.Rows) == 0 && len(t.Headers) == 0 {
		return ""
	}

	numCols := len(t.Headers)
	for _, row := range t.Rows {
		if len(row) > numCols {
			numCols = len(row)
		}
	}

	widths := make([]int, numCols)
	for i, h := range t.Headers {
		widths[i] = max(widths[i], lipgloss.Width(h))
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder

	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}

	rule := func(left, mid, right string) {
		b.WriteString(dimStyle.Render(left))
		for i, w := range widths {
			b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render(mid))
			}
		}
		b.WriteString(dimStyle.Render(right))
		b.WriteString("\n")
	}

	rule("╭", "┬", "╮")

	if len(t.Headers) > 0 {
		b.WriteString(dimStyle.Render("│"))
		for i := 0; i < numCols; i++ {
			h := ""
			if i < len(t.Headers) {
				h = t.Headers[i]
			}
			b.WriteString(headerStyle.Render(" " + pad(h, widths[i], false) + " "))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
		rule("├", "┼", "┤")
	}

	for _, row := range t.Rows {
		b.WriteString(dimStyle.Render("│"))
		for i := 0; i < numCols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteString(valueStyle.Render(" " + pad(cell, widths[i], isNumeric(cell)) + " "))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
	}

	rule("╰", "┴", "╯")

	if t.Footer != "" {
		b.WriteString(mutedStyle.Render("  " + t.Footer))
		b.WriteString("\n")
	}

	return b.String()
}

func pad(s string, w int, right bool) string {
	gap := w - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

// ResultTable converts a statement result into a Table, keeping at most
// maxRows rows (maxRows <= 0 keeps everything). A result without columns
// becomes a footer-only table.
func ResultTable(res database.Result, maxRows int) Table {
	if !res.HasRows() {
		return Table{Footer: fmt.Sprintf("%d rows affected", res.RowsAffected)}
	}

	t := Table{Headers: res.Columns}
	for i, row := range res.Rows {
		if maxRows > 0 && i == maxRows {
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = Truncate(database.FormatValue(v), DefaultCellWidth)
		}
		t.Rows = append(t.Rows, cells)
	}

	t.Footer = FormatRows(len(res.Rows))
	if hidden := len(res.Rows) - len(t.Rows); hidden > 0 {
		t.Footer += fmt.Sprintf(", %s not shown", FormatNumber(int64(hidden)))
	}
	return t
}

// RenderResult renders a statement result for the terminal.
func RenderResult(res database.Result, maxRows int) string {
	t := ResultTable(res, maxRows)
	if len(t.Headers) == 0 {
		return mutedStyle.Render(t.Footer) + "\n"
	}
	return RenderTable(t)
}

// RenderTrace renders how many times each normalizer rule matched.
func RenderTrace(hits []dialect.RuleHits) string {
	t := Table{Title: "Normalization", Headers: []string{"Rule", "Matches"}}
	total := 0
	for _, h := range hits {
		t.Rows = append(t.Rows, []string{h.Rule, FormatNumber(int64(h.Hits))})
		total += h.Hits
	}
	t.Footer = fmt.Sprintf("%s rewrites across %d rules", FormatNumber(int64(total)), len(hits))
	return RenderTable(t)
}

// RenderFindings renders an inspection report, one line per finding.
func RenderFindings(rep inspect.Report) string {
	var b strings.Builder
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d statements, %d tables", rep.Statements, len(rep.Tables))))
	b.WriteString("\n")
	if len(rep.Findings) == 0 {
		b.WriteString(okStyle.Render("  No constructs outside the rewrite rules."))
		b.WriteString("\n")
		return b.String()
	}
	for _, f := range rep.Findings {
		b.WriteString(warnStyle.Render("  ! "))
		b.WriteString(valueStyle.Render(f.String()))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderError renders an error line.
func RenderError(err error) string {
	return errStyle.Render("  error: ") + valueStyle.Render(err.Error())
}
