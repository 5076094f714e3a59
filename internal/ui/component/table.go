package component

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/whaleshi/b/internal/ui/style"
)

// TableColumn represents a column configuration. Width 0 shares the
// remaining space with the other auto columns.
type TableColumn struct {
	Header string
	Width  int
	Align  lipgloss.Position
}

// TableRow is one row; Style overrides the default row style when set.
type TableRow struct {
	Data  []string
	Style *lipgloss.Style
}

// Table renders rows with a selection cursor and keeps the cursor in view.
type Table struct {
	columns     []TableColumn
	rows        []TableRow
	width       int
	height      int
	selectedRow int
	offset      int

	headerStyle      lipgloss.Style
	rowStyle         lipgloss.Style
	selectedRowStyle lipgloss.Style
	emptyText        string
}

func NewTable() *Table {
	palette := style.DefaultPalette()

	return &Table{
		headerStyle: lipgloss.NewStyle().
			Foreground(palette.Secondary).
			Bold(true).
			Padding(0, 1),

		rowStyle: lipgloss.NewStyle().
			Foreground(palette.Text).
			Padding(0, 1),

		selectedRowStyle: lipgloss.NewStyle().
			Foreground(palette.Background).
			Background(palette.Primary).
			Padding(0, 1),

		emptyText: "No rows",
	}
}

func (t *Table) SetColumns(columns []TableColumn) *Table {
	t.columns = columns
	return t
}

func (t *Table) SetEmptyText(text string) *Table {
	t.emptyText = text
	return t
}

// SetRows replaces all rows and clamps the selection.
func (t *Table) SetRows(rows []TableRow) *Table {
	t.rows = rows
	if t.selectedRow >= len(rows) {
		t.selectedRow = len(rows) - 1
	}
	if t.selectedRow < 0 {
		t.selectedRow = 0
	}
	t.scrollToSelection()
	return t
}

// SetSize sets the table dimensions; height counts the header lines.
func (t *Table) SetSize(width, height int) *Table {
	t.width = width
	t.height = height
	t.scrollToSelection()
	return t
}

func (t *Table) SetSelectedRow(index int) *Table {
	if index >= 0 && index < len(t.rows) {
		t.selectedRow = index
		t.scrollToSelection()
	}
	return t
}

func (t *Table) GetSelectedRow() int {
	return t.selectedRow
}

func (t *Table) GetRowCount() int {
	return len(t.rows)
}

func (t *Table) MoveUp() *Table {
	if t.selectedRow > 0 {
		t.selectedRow--
		t.scrollToSelection()
	}
	return t
}

func (t *Table) MoveDown() *Table {
	if t.selectedRow < len(t.rows)-1 {
		t.selectedRow++
		t.scrollToSelection()
	}
	return t
}

// visibleRows is how many data rows fit; 0 height means unlimited.
func (t *Table) visibleRows() int {
	if t.height <= 0 {
		return len(t.rows)
	}
	n := t.height - 2 // header + separator
	if n < 1 {
		n = 1
	}
	return n
}

func (t *Table) scrollToSelection() {
	visible := t.visibleRows()
	if t.selectedRow < t.offset {
		t.offset = t.selectedRow
	}
	if t.selectedRow >= t.offset+visible {
		t.offset = t.selectedRow - visible + 1
	}
	if last := len(t.rows) - visible; t.offset > last {
		t.offset = last
	}
	if t.offset < 0 {
		t.offset = 0
	}
}

func (t *Table) View() string {
	if len(t.columns) == 0 {
		return ""
	}
	widths := t.columnWidths()

	var content strings.Builder
	for i, col := range t.columns {
		content.WriteString(renderCell(col.Header, widths[i], col.Align, t.headerStyle))
		if i < len(t.columns)-1 {
			content.WriteString("│")
		}
	}
	content.WriteString("\n")
	for i := range t.columns {
		content.WriteString(strings.Repeat("─", widths[i]+2))
		if i < len(t.columns)-1 {
			content.WriteString("┼")
		}
	}

	if len(t.rows) == 0 {
		content.WriteString("\n")
		content.WriteString(style.MutedStyle.Padding(0, 1).Render(t.emptyText))
		return content.String()
	}

	end := t.offset + t.visibleRows()
	if end > len(t.rows) {
		end = len(t.rows)
	}
	for rowIndex := t.offset; rowIndex < end; rowIndex++ {
		row := t.rows[rowIndex]
		rowStyle := t.rowStyle
		if row.Style != nil {
			rowStyle = *row.Style
		}
		if rowIndex == t.selectedRow {
			rowStyle = t.selectedRowStyle
		}

		content.WriteString("\n")
		for i, col := range t.columns {
			cellData := ""
			if i < len(row.Data) {
				cellData = row.Data[i]
			}
			content.WriteString(renderCell(cellData, widths[i], col.Align, rowStyle))
			if i < len(t.columns)-1 {
				content.WriteString("│")
			}
		}
	}
	return content.String()
}

// renderCell truncates by rune so multi-byte names never split.
func renderCell(content string, width int, align lipgloss.Position, cellStyle lipgloss.Style) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(content)
	if len(runes) > width {
		if width > 1 {
			content = string(runes[:width-1]) + "…"
		} else {
			content = string(runes[:width])
		}
	}
	return cellStyle.Width(width + 2).Align(align).Render(content)
}

// columnWidths splits the free width between auto columns. Widths exclude padding.
func (t *Table) columnWidths() []int {
	widths := make([]int, len(t.columns))
	fixed, auto := 0, 0
	for i, col := range t.columns {
		widths[i] = col.Width
		if col.Width > 0 {
			fixed += col.Width
		} else {
			auto++
		}
	}
	if auto == 0 {
		return widths
	}

	overhead := len(t.columns)*2 + len(t.columns) - 1
	free := t.width - fixed - overhead
	each := 10
	if t.width > 0 && free/auto > each {
		each = free / auto
	}
	for i := range widths {
		if widths[i] <= 0 {
			widths[i] = each
		}
	}
	return widths
}
