//go:build !unix

package render

func getCellSize() (cellW, cellH int) {
	return defaultCellWidth, defaultCellHeight
}
