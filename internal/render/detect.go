package render

import (
	"os"
	"slices"
	"strings"

	"golang.org/x/term"
)

// Capabilities describes what the attached terminal can display.
type Capabilities struct {
	// Protocols lists the inline-graphics backends the terminal supports.
	Protocols []Backend
	// TermProgram is $TERM_PROGRAM, used for terminal-specific quirks.
	TermProgram string
	// CellWidth and CellHeight are the pixel dimensions of one cell.
	CellWidth, CellHeight int
	// Cols and Rows are the terminal size in cells, zero when unknown.
	Cols, Rows int
}

// Supports reports whether b can be displayed. Text backends always can.
func (c Capabilities) Supports(b Backend) bool {
	if !b.Inline() {
		return true
	}
	return slices.Contains(c.Protocols, b)
}

// Probe reports terminal capabilities.
type Probe interface {
	Probe() Capabilities
}

// EnvProbe detects capabilities from environment variables set by
// terminal emulators.
//
// Override forces the result, as PTUI_IMAGE_PROTOCOL does:
//   - "kitty", "iterm2", "sixel": only that protocol
//   - "none": no inline graphics
//   - "" or "auto": detect
type EnvProbe struct {
	Override string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	// IsTTY defaults to checking whether stdout is a terminal.
	IsTTY func() bool
}

func (p EnvProbe) getenv(key string) string {
	if p.Getenv != nil {
		return p.Getenv(key)
	}
	return os.Getenv(key)
}

func (p EnvProbe) isTTY() bool {
	if p.IsTTY != nil {
		return p.IsTTY()
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Probe implements Probe.
func (p EnvProbe) Probe() Capabilities {
	caps := Capabilities{
		TermProgram: p.getenv("TERM_PROGRAM"),
		CellWidth:   defaultCellWidth,
		CellHeight:  defaultCellHeight,
	}
	if !p.isTTY() {
		return caps
	}

	caps.CellWidth, caps.CellHeight = getCellSize()
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		caps.Cols, caps.Rows = w, h
	}

	switch strings.ToLower(strings.TrimSpace(p.Override)) {
	case "kitty":
		caps.Protocols = []Backend{BackendKitty}
		return caps
	case "iterm2", "iterm":
		caps.Protocols = []Backend{BackendITerm2}
		return caps
	case "sixel":
		caps.Protocols = []Backend{BackendSixel}
		return caps
	case "none":
		return caps
	}

	if p.kittySupported() {
		caps.Protocols = append(caps.Protocols, BackendKitty)
	}
	if p.iterm2Supported() {
		caps.Protocols = append(caps.Protocols, BackendITerm2)
	}
	if p.sixelSupported() {
		caps.Protocols = append(caps.Protocols, BackendSixel)
	}
	return caps
}

func (p EnvProbe) kittySupported() bool {
	// Contour sets CONTOUR_PROFILE but doesn't support Kitty protocol.
	// Check early because parent terminal env vars (e.g. GHOSTTY_RESOURCES_DIR)
	// can leak into Contour when launched from a Kitty-capable terminal.
	if p.getenv("CONTOUR_PROFILE") != "" {
		return false
	}

	if p.getenv("KITTY_WINDOW_ID") != "" {
		return true
	}
	if p.getenv("TERM") == "xterm-kitty" {
		return true
	}
	if p.getenv("TERM_PROGRAM") == "WezTerm" {
		return true
	}
	if p.getenv("GHOSTTY_RESOURCES_DIR") != "" {
		return true
	}
	// KONSOLE_VERSION is like "220401" for 22.04.01
	if version := p.getenv("KONSOLE_VERSION"); version != "" {
		if len(version) >= 4 && version[:4] >= "2204" {
			return true
		}
	}
	return strings.Contains(p.getenv("TERM"), "kitty")
}

func (p EnvProbe) iterm2Supported() bool {
	switch p.getenv("TERM_PROGRAM") {
	case "iTerm.app", "WezTerm", "vscode", "mintty":
		return true
	}
	return p.getenv("LC_TERMINAL") == "iTerm2"
}

// sixelSupported only trusts terminals known to draw sixel. A plain xterm
// TERM is not enough: most emulators that set it cannot, so generic xterm
// needs PTUI_IMAGE_PROTOCOL=sixel.
func (p EnvProbe) sixelSupported() bool {
	switch p.getenv("TERM") {
	case "foot", "foot-extra", "mlterm", "contour":
		return true
	}
	switch p.getenv("TERM_PROGRAM") {
	case "mintty", "WezTerm", "contour":
		return true
	}
	return p.getenv("CONTOUR_PROFILE") != ""
}

// StaticProbe returns fixed capabilities.
type StaticProbe Capabilities

// Probe implements Probe.
func (s StaticProbe) Probe() Capabilities { return Capabilities(s) }
