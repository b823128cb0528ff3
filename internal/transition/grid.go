// Package transition animates the switch between two rendered text
// previews.
package transition

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/rivo/uniseg"
)

// Cell is one terminal column and the SGR sequence active for it. A wide
// grapheme occupies its first column; the columns it covers after that
// hold continuation cells with Width 0 and no text.
type Cell struct {
	// Style is the last SGR sequence before the cell, empty after a reset.
	// Cell renderers emit complete styles, so one sequence is enough.
	Style string
	Text  string
	Width int
}

var blank = Cell{Text: " ", Width: 1}

// Grid is a payload split into rows of cells, one cell per column.
type Grid struct {
	Rows [][]Cell
	// Cols is the width of the widest row in columns.
	Cols int
}

// Parse splits a text payload into cells. Escape sequences other than SGR
// are dropped.
func Parse(payload []byte) *Grid {
	g := &Grid{}
	for _, line := range strings.Split(string(payload), "\n") {
		row, width := parseLine(line)
		g.Rows = append(g.Rows, row)
		g.Cols = max(g.Cols, width)
	}
	return g
}

func parseLine(s string) ([]Cell, int) {
	var (
		row   []Cell
		style string
		width int
		state = -1
	)
	for len(s) > 0 {
		if s[0] == ansi.ESC {
			seq, _, n, _ := ansi.DecodeSequence(s, ansi.NormalState, nil)
			if n == 0 {
				n = 1
			}
			if ansi.HasCsiPrefix(seq) && strings.HasSuffix(seq, "m") {
				style = seq
				if isReset(seq) {
					style = ""
				}
			}
			s = s[n:]
			state = -1
			continue
		}

		var cluster string
		var w int
		cluster, s, w, state = uniseg.FirstGraphemeClusterInString(s, state)
		if w == 0 {
			// Control characters and zero-width clusters take no cell.
			continue
		}
		row = append(row, Cell{Style: style, Text: cluster, Width: w})
		for range w - 1 {
			row = append(row, Cell{Style: style})
		}
		width += w
	}
	return row, width
}

func isReset(seq string) bool {
	return seq == ansi.ResetStyle || seq == "\x1b[0m"
}

// Size returns the number of rows and the widest row.
func (g *Grid) Size() (rows, cols int) {
	return len(g.Rows), g.Cols
}

// At returns the cell at row r, column c, or a blank cell outside the grid.
func (g *Grid) At(r, c int) Cell {
	if r < 0 || r >= len(g.Rows) || c < 0 || c >= len(g.Rows[r]) {
		return blank
	}
	return g.Rows[r][c]
}

// String serializes the grid, emitting SGR only where the style changes
// and resetting at the end of each styled row.
func (g *Grid) String() string {
	lines := make([]string, len(g.Rows))
	for i, row := range g.Rows {
		lines[i] = renderRow(row)
	}
	return strings.Join(lines, "\n")
}

// renderRow writes one row. Mixed frames can split a wide grapheme from its
// continuation columns; the orphaned columns are written as spaces so every
// row keeps its width.
func renderRow(row []Cell) string {
	var sb strings.Builder
	cur := ""
	for i := 0; i < len(row); i++ {
		c := row[i]
		switch {
		case c.Width == 0:
			c.Text = " "
		case c.Width > 1 && continued(row, i, c.Width):
			i += c.Width - 1
		case c.Width > 1:
			c.Text = " "
		}
		if c.Style != cur {
			if c.Style == "" {
				sb.WriteString(ansi.ResetStyle)
			} else {
				sb.WriteString(c.Style)
			}
			cur = c.Style
		}
		sb.WriteString(c.Text)
	}
	if cur != "" {
		sb.WriteString(ansi.ResetStyle)
	}
	return sb.String()
}

// continued reports whether the w-1 cells after i are continuations.
func continued(row []Cell, i, w int) bool {
	if i+w > len(row) {
		return false
	}
	for _, c := range row[i+1 : i+w] {
		if c.Width != 0 {
			return false
		}
	}
	return true
}
