package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	// ErrParse is returned when a config file cannot be read or decoded.
	ErrParse = errors.New("config parse failure")
	// ErrValidation is returned when decoded values are out of range.
	ErrValidation = errors.New("config validation failure")
)

// Converter kinds.
const (
	ConverterChafa     = "chafa"
	ConverterJp2a      = "jp2a"
	ConverterGraphical = "graphical"
)

var (
	converterKinds = []string{ConverterChafa, ConverterJp2a, ConverterGraphical}
	chafaFormats   = []string{"ansi", "symbols", "sixel", "kitty", "iterm"}
	chafaColors    = []string{"full", "256", "16"}
	jp2aDithers    = []string{"none", "floyd", "ordered"}
	filterTypes    = []string{"nearest", "bilinear", "bicubic", "mitchell", "lanczos2", "lanczos3"}

	// Effects lists the slideshow transition effects accepted in
	// slideshow_transitions.effect.
	Effects = []string{"scattering", "typewriter", "scrolling_left", "scrolling_right", "climbing"}
)

type Config struct {
	Converter            ConverterConfig  `koanf:"converter"             toml:"converter"`
	Locale               string           `koanf:"locale"                toml:"locale"`
	SlideshowDelayMS     int              `koanf:"slideshow_delay_ms"    toml:"slideshow_delay_ms"`
	SlideshowTransitions TransitionConfig `koanf:"slideshow_transitions" toml:"slideshow_transitions"`
}

// ConverterConfig holds per-converter options and the active converter.
type ConverterConfig struct {
	Chafa     ChafaConfig     `koanf:"chafa"     toml:"chafa"`
	Jp2a      Jp2aConfig      `koanf:"jp2a"      toml:"jp2a"`
	Graphical GraphicalConfig `koanf:"graphical" toml:"graphical"`
	Selected  string          `koanf:"selected"  toml:"selected"` // "chafa", "jp2a" or "graphical"
}

// ChafaConfig configures the ANSI-cell renderer.
type ChafaConfig struct {
	Format string `koanf:"format" toml:"format"` // "ansi", "symbols", "sixel", "kitty", "iterm"
	Colors string `koanf:"colors" toml:"colors"` // "full", "256", "16"
}

// Jp2aConfig configures the ASCII-art renderer.
type Jp2aConfig struct {
	Colors bool    `koanf:"colors" toml:"colors"`
	Invert bool    `koanf:"invert" toml:"invert"`
	Dither string  `koanf:"dither" toml:"dither"`          // "none", "floyd", "ordered"
	Chars  *string `koanf:"chars"  toml:"chars,omitempty"` // nil uses the built-in ramp
}

// GraphicalConfig configures the inline-graphics renderer.
type GraphicalConfig struct {
	FilterType   string `koanf:"filter_type"   toml:"filter_type"`
	MaxDimension int    `koanf:"max_dimension" toml:"max_dimension"`
	AutoResize   bool   `koanf:"auto_resize"   toml:"auto_resize"`
}

// TransitionConfig holds slideshow transition settings.
type TransitionConfig struct {
	Enabled         bool   `koanf:"enabled"           toml:"enabled"`
	Effect          string `koanf:"effect"            toml:"effect"`
	FrameDurationMS int    `koanf:"frame_duration_ms" toml:"frame_duration_ms"`
}

// Default returns the configuration used when no file overrides a value.
func Default() Config {
	return Config{
		Converter: ConverterConfig{
			Chafa: ChafaConfig{Format: "ansi", Colors: "full"},
			Jp2a:  Jp2aConfig{Colors: true, Dither: "none"},
			Graphical: GraphicalConfig{
				FilterType:   "lanczos3",
				MaxDimension: 384,
				AutoResize:   true,
			},
			Selected: ConverterChafa,
		},
		Locale:           "en",
		SlideshowDelayMS: 2000,
		SlideshowTransitions: TransitionConfig{
			Effect:          "scattering",
			FrameDurationMS: 50,
		},
	}
}

// Load reads every existing config file in search order and returns the
// merged, validated configuration.
func Load() (*Config, error) {
	return LoadFiles(getConfigPaths())
}

// LoadFiles merges the given files in order (last wins). Missing files are
// skipped. The result is validated.
func LoadFiles(paths []string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		path = expandPath(path)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
		}
	}

	if err := migrateLegacy(k); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) koanf.Parser {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Parser()
	}
	return toml.Parser()
}

// migrateLegacy moves a top-level "chafa" block into "converter.chafa"
// unless the new location is already set.
func migrateLegacy(k *koanf.Koanf) error {
	if !k.Exists("chafa") {
		return nil
	}
	legacy := k.Cut("chafa")
	if k.Exists("converter.chafa") {
		return nil
	}
	return k.MergeAt(legacy, "converter.chafa")
}

func (c *Config) normalize() {
	c.Converter.Selected = strings.ToLower(strings.TrimSpace(c.Converter.Selected))
	c.Converter.Chafa.Format = strings.ToLower(strings.TrimSpace(c.Converter.Chafa.Format))
	c.Converter.Chafa.Colors = strings.ToLower(strings.TrimSpace(c.Converter.Chafa.Colors))
	c.Converter.Jp2a.Dither = strings.ToLower(strings.TrimSpace(c.Converter.Jp2a.Dither))
	c.Converter.Graphical.FilterType = strings.ToLower(strings.TrimSpace(c.Converter.Graphical.FilterType))
	c.SlideshowTransitions.Effect = strings.ToLower(strings.TrimSpace(c.SlideshowTransitions.Effect))
	if c.Converter.Jp2a.Chars != nil && *c.Converter.Jp2a.Chars == "" {
		c.Converter.Jp2a.Chars = nil
	}
}

// Validate reports every out-of-range value, wrapped in ErrValidation.
func (c *Config) Validate() error {
	var errs []error
	check := func(field, value string, allowed []string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("%s: %q not in %v", field, value, allowed))
		}
	}

	check("converter.selected", c.Converter.Selected, converterKinds)
	check("converter.chafa.format", c.Converter.Chafa.Format, chafaFormats)
	check("converter.chafa.colors", c.Converter.Chafa.Colors, chafaColors)
	check("converter.jp2a.dither", c.Converter.Jp2a.Dither, jp2aDithers)
	check("converter.graphical.filter_type", c.Converter.Graphical.FilterType, filterTypes)
	check("slideshow_transitions.effect", c.SlideshowTransitions.Effect, Effects)

	if d := c.Converter.Graphical.MaxDimension; d < 64 || d > 4096 {
		errs = append(errs, fmt.Errorf("converter.graphical.max_dimension: %d not in [64, 4096]", d))
	}
	if c.SlideshowDelayMS < 100 {
		errs = append(errs, fmt.Errorf("slideshow_delay_ms: %d below 100", c.SlideshowDelayMS))
	}
	if d := c.SlideshowTransitions.FrameDurationMS; d < 1 || d > 1000 {
		errs = append(errs, fmt.Errorf("slideshow_transitions.frame_duration_ms: %d not in [1, 1000]", d))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, errors.Join(errs...))
}

// clone returns a deep copy so snapshots never share mutable state.
func (c Config) clone() Config {
	if c.Converter.Jp2a.Chars != nil {
		chars := *c.Converter.Jp2a.Chars
		c.Converter.Jp2a.Chars = &chars
	}
	return c
}

func getConfigPaths() []string {
	dir := filepath.Join(xdg.ConfigHome, "ptui")
	return []string{
		// 1. legacy JSON settings file
		filepath.Join(dir, "ptui.json"),
		// 2. $XDG_CONFIG_HOME/ptui/config.toml
		filepath.Join(dir, "config.toml"),
		// 3. ./config.toml (pwd, highest priority)
		"config.toml",
	}
}

// DefaultPath is where WriteDefault creates the user config file.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "ptui", "config.toml")
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
