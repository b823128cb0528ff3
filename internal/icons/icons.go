// Package icons provides the status bar glyphs in the configured style.
package icons

// Style represents the icon style to use.
type Style string

const (
	StyleNerd    Style = "nerd"
	StyleUnicode Style = "unicode"
	StyleNone    Style = "none"
)

// Icons holds the icon characters for the current style.
type Icons struct {
	Image    string
	Playing  string
	Stopped  string
	Fallback string
	Failed   string
	Saved    string
}

var (
	nerdIcons = Icons{
		Image:    "\uf03e ", // nf-fa-image
		Playing:  "\uf04b",  // nf-fa-play
		Stopped:  "\uf04c",  // nf-fa-pause
		Fallback: "\uf071",  // nf-fa-warning
		Failed:   "\uf00d",  // nf-fa-times
		Saved:    "\uf0c7",  // nf-fa-save
	}

	unicodeIcons = Icons{
		Image:    "🖼 ",
		Playing:  "▶",
		Stopped:  "⏸",
		Fallback: "⚠",
		Failed:   "✗",
		Saved:    "✓",
	}

	noneIcons = Icons{
		Image:    "",
		Playing:  "[>]",
		Stopped:  "[=]",
		Fallback: "[!]",
		Failed:   "[x]",
		Saved:    "[s]",
	}

	// current holds the active icon set
	current = noneIcons
)

// Init initializes the icons based on the style.
// Call this once at startup with the configured value.
func Init(style string) {
	switch Style(style) {
	case StyleNerd:
		current = nerdIcons
	case StyleUnicode:
		current = unicodeIcons
	default:
		current = noneIcons
	}
}

// FormatImage formats an image file name with the appropriate icon.
func FormatImage(name string) string {
	return current.Image + name
}

// Slideshow returns the slideshow state indicator.
func Slideshow(playing bool) string {
	if playing {
		return current.Playing
	}
	return current.Stopped
}

// Fallback marks a preview drawn by a backend other than the requested one.
func Fallback() string {
	return current.Fallback
}

// Failed marks a placeholder shown in place of a preview.
func Failed() string {
	return current.Failed
}

// Saved marks a successful export.
func Saved() string {
	return current.Saved
}
