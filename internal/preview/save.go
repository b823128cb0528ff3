package preview

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/llehouerou/ptui/internal/render"
)

// ErrNotText is returned when saving a preview that is not ASCII art.
var ErrNotText = errors.New("preview is not ASCII art")

// ASCIIPath returns where SaveASCII writes the art for imagePath:
// the image's directory, its name without extension, and ".ascii".
func ASCIIPath(imagePath string) string {
	ext := filepath.Ext(imagePath)
	return strings.TrimSuffix(imagePath, ext) + ".ascii"
}

// SaveASCII writes an ASCII-art preview next to its image with color
// sequences stripped. It refuses to overwrite an existing file.
func SaveASCII(entry *Entry, imagePath string) (string, error) {
	if entry == nil || entry.Placeholder || entry.Backend != render.BackendASCII {
		return "", ErrNotText
	}

	path := ASCIIPath(imagePath)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return path, fmt.Errorf("%s: %w", filepath.Base(path), os.ErrExist)
		}
		return path, err
	}

	text := ansi.Strip(string(entry.Payload))
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return path, err
	}
	return path, f.Close()
}
