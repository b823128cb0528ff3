//nolint:goconst // test cases intentionally repeat strings for readability
package icons

import (
	"testing"
)

func TestInit(t *testing.T) {
	tests := []struct {
		name     string
		style    string
		expected Icons
	}{
		{"nerd style", "nerd", nerdIcons},
		{"unicode style", "unicode", unicodeIcons},
		{"none style", "none", noneIcons},
		{"empty string defaults to none", "", noneIcons},
		{"unknown style defaults to none", "invalid", noneIcons},
		{"case sensitive - NERD defaults to none", "NERD", noneIcons},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Init(tt.style)
			if current != tt.expected {
				t.Errorf("Init(%q) selected %+v", tt.style, current)
			}
		})
	}

	Init("none")
}

func TestFormatImage(t *testing.T) {
	tests := []struct {
		style    string
		expected string
	}{
		{"none", "cat.jpg"},
		{"nerd", "\uf03e cat.jpg"},
		{"unicode", "🖼 cat.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			Init(tt.style)
			defer Init("none")

			if got := FormatImage("cat.jpg"); got != tt.expected {
				t.Errorf("FormatImage() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSlideshow(t *testing.T) {
	Init("none")
	if got := Slideshow(true); got != "[>]" {
		t.Errorf("Slideshow(true) = %q, want [>]", got)
	}
	if got := Slideshow(false); got != "[=]" {
		t.Errorf("Slideshow(false) = %q, want [=]", got)
	}
}

func TestMarkersNonEmpty(t *testing.T) {
	for _, style := range []string{"nerd", "unicode", "none"} {
		t.Run(style, func(t *testing.T) {
			Init(style)
			defer Init("none")

			for name, v := range map[string]string{
				"Fallback": Fallback(),
				"Failed":   Failed(),
				"Saved":    Saved(),
				"Playing":  Slideshow(true),
				"Stopped":  Slideshow(false),
			} {
				if v == "" {
					t.Errorf("%s is empty for style %s", name, style)
				}
			}
		})
	}
}
