package config

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/knadh/koanf/providers/file"

	"github.com/llehouerou/ptui/internal/logging"
)

// Snapshot is an immutable, versioned view of the configuration. Consumers
// must treat it as read-only.
type Snapshot struct {
	Version uint64
	Config  Config
}

// Selected returns the active converter kind.
func (s *Snapshot) Selected() string {
	return s.Config.Converter.Selected
}

// Store publishes configuration snapshots. Readers call Current and always
// observe a fully-formed snapshot; reloads and version bumps swap the
// pointer atomically.
type Store struct {
	paths []string

	current atomic.Pointer[Snapshot]
	mu      sync.Mutex // serializes publishers
	changes chan *Snapshot

	watchMu  sync.Mutex
	watchers []*file.File
}

// NewStore returns a store whose first snapshot has version 1. paths are
// the files re-read by Reload and observed by Watch.
func NewStore(cfg Config, paths ...string) *Store {
	s := &Store{
		paths:   paths,
		changes: make(chan *Snapshot, 1),
	}
	s.current.Store(&Snapshot{Version: 1, Config: cfg.clone()})
	return s
}

// Open loads the configuration from the default search paths.
func Open() (*Store, error) {
	paths := getConfigPaths()
	cfg, err := LoadFiles(paths)
	if err != nil {
		return nil, err
	}
	return NewStore(*cfg, paths...), nil
}

// Current returns the active snapshot.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Changes delivers each newly published snapshot. Only the latest pending
// snapshot is kept when the reader falls behind.
func (s *Store) Changes() <-chan *Snapshot {
	return s.changes
}

// Reload re-reads the store's files. A parse or validation failure keeps
// the current snapshot and is returned to the caller.
func (s *Store) Reload() error {
	cfg, err := LoadFiles(s.paths)
	if err != nil {
		return err
	}
	s.publish(*cfg)
	return nil
}

// Bump republishes the current settings under a new version, making every
// cache key derived from the previous version unreachable.
func (s *Store) Bump() *Snapshot {
	return s.publish(s.Current().Config)
}

// Replace publishes cfg after validating it.
func (s *Store) Replace(cfg Config) (*Snapshot, error) {
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return s.publish(cfg), nil
}

func (s *Store) publish(cfg Config) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := &Snapshot{
		Version: s.current.Load().Version + 1,
		Config:  cfg.clone(),
	}
	s.current.Store(next)

	// Keep only the newest snapshot in the channel.
	select {
	case <-s.changes:
	default:
	}
	s.changes <- next
	return next
}

// Watch observes the store's existing files and reloads on every change.
// Rejected configurations are logged and the prior snapshot stays active.
func (s *Store) Watch() error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if len(s.watchers) > 0 {
		return nil
	}

	for _, path := range s.paths {
		path = expandPath(path)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		fp := file.Provider(path)
		err := fp.Watch(func(_ interface{}, err error) {
			if err != nil {
				logging.Warn("config watch %s: %v", path, err)
				return
			}
			s.onFileChange(path)
		})
		if err != nil {
			s.unwatchLocked()
			return fmt.Errorf("watch %s: %w", path, err)
		}
		s.watchers = append(s.watchers, fp)
	}
	return nil
}

func (s *Store) onFileChange(path string) {
	if err := s.Reload(); err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			logging.Warn("config %s rejected, keeping version %d: %v", path, s.Current().Version, err)
		default:
			logging.Warn("config %s unreadable, keeping version %d: %v", path, s.Current().Version, err)
		}
		return
	}
	logging.Info("config reloaded from %s (version %d)", path, s.Current().Version)
}

// Close stops watching files.
func (s *Store) Close() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.unwatchLocked()
}

func (s *Store) unwatchLocked() {
	for _, fp := range s.watchers {
		if err := fp.Unwatch(); err != nil {
			logging.Debug("config unwatch: %v", err)
		}
	}
	s.watchers = nil
}
