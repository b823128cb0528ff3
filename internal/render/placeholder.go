package render

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Placeholder returns a framed box with msg centered on the middle row.
// It is used when a preview cannot be produced.
func Placeholder(cols, rows int, msg string) string {
	if cols < 4 || rows < 2 {
		return ""
	}

	inner := cols - 2
	lines := make([]string, 0, rows)
	lines = append(lines, "┌"+strings.Repeat("─", inner)+"┐")

	for i := 1; i < rows-1; i++ {
		if i == rows/2 && msg != "" {
			text := runewidth.Truncate(msg, inner, "…")
			w := runewidth.StringWidth(text)
			padding := (inner - w) / 2
			lines = append(lines, "│"+strings.Repeat(" ", padding)+text+strings.Repeat(" ", inner-w-padding)+"│")
		} else {
			lines = append(lines, "│"+strings.Repeat(" ", inner)+"│")
		}
	}

	lines = append(lines, "└"+strings.Repeat("─", inner)+"┘")
	return strings.Join(lines, "\n")
}
