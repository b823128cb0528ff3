package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	maxDefaultWorkers = 8
	maxWorkers        = 64
)

// Env holds process-level tuning read from the environment. It is fixed for
// the lifetime of the process and never hot-reloaded.
type Env struct {
	Workers       int    `env:"PTUI_WORKERS"`
	CacheBytes    int64  `env:"PTUI_CACHE_BYTES"    envDefault:"268435456"`
	PrefetchDepth int    `env:"PTUI_PREFETCH_DEPTH" envDefault:"2"`
	ImageProtocol string `env:"PTUI_IMAGE_PROTOCOL" envDefault:"auto"` // kitty, iterm2, sixel, none, auto
	MetricsAddr   string `env:"PTUI_METRICS_ADDR"`
	Icons         string `env:"PTUI_ICONS"          envDefault:"unicode"` // nerd, unicode, none
	Notify        bool   `env:"PTUI_NOTIFY"         envDefault:"true"`
	Resume        bool   `env:"PTUI_RESUME"         envDefault:"true"`
}

// LoadEnv parses the process environment.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	e.normalize()
	return e, nil
}

// LoadEnvFrom parses the given variables instead of the process environment.
func LoadEnvFrom(vars map[string]string) (Env, error) {
	var e Env
	if err := env.ParseWithOptions(&e, env.Options{Environment: vars}); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	e.normalize()
	return e, nil
}

func (e *Env) normalize() {
	switch {
	case e.Workers <= 0:
		e.Workers = min(max(runtime.GOMAXPROCS(0), 1), maxDefaultWorkers)
	case e.Workers > maxWorkers:
		e.Workers = maxWorkers
	}
	if e.CacheBytes <= 0 {
		e.CacheBytes = 256 << 20
	}
	if e.PrefetchDepth < 0 {
		e.PrefetchDepth = 0
	}
	e.ImageProtocol = strings.ToLower(strings.TrimSpace(e.ImageProtocol))
	if e.ImageProtocol == "" {
		e.ImageProtocol = "auto"
	}
	e.Icons = strings.ToLower(strings.TrimSpace(e.Icons))
}
