// Package state persists viewer state between runs in a SQLite database
// under the XDG data directory.
package state

import (
	"database/sql"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"

	"github.com/llehouerou/ptui/internal/db"
	"github.com/llehouerou/ptui/internal/logging"
)

const (
	appName      = "ptui"
	dbFileName   = "state.db"
	saveDebounce = 500 * time.Millisecond
)

type Manager struct {
	db        *sql.DB
	saveMu    sync.Mutex
	saveTimer *time.Timer
	pending   map[string]NavigationState
}

// Open opens the state database at its default location.
func Open() (*Manager, error) {
	dbPath, err := xdg.DataFile(filepath.Join(appName, dbFileName))
	if err != nil {
		return nil, err
	}
	return OpenPath(dbPath)
}

// OpenPath opens the state database at path.
func OpenPath(path string) (*Manager, error) {
	conn, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &Manager{db: conn, pending: make(map[string]NavigationState)}, nil
}

// Close flushes pending saves and closes the database.
func (m *Manager) Close() error {
	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	pending := m.takePendingLocked()
	m.saveMu.Unlock()

	m.flush(pending)
	return m.db.Close()
}

// GetNavigation returns the saved state for dir, or nil if none.
func (m *Manager) GetNavigation(dir string) (*NavigationState, error) {
	m.saveMu.Lock()
	if st, ok := m.pending[dir]; ok {
		m.saveMu.Unlock()
		return &st, nil
	}
	m.saveMu.Unlock()
	return getNavigation(m.db, dir)
}

// SaveNavigation records state. Writes are debounced; rapid navigation
// only stores the last position.
func (m *Manager) SaveNavigation(state NavigationState) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.pending[state.Dir] = state

	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	m.saveTimer = time.AfterFunc(saveDebounce, func() {
		m.saveMu.Lock()
		pending := m.takePendingLocked()
		m.saveMu.Unlock()
		m.flush(pending)
	})
}

func (m *Manager) takePendingLocked() []NavigationState {
	out := make([]NavigationState, 0, len(m.pending))
	for _, st := range m.pending {
		out = append(out, st)
	}
	clear(m.pending)
	return out
}

func (m *Manager) flush(states []NavigationState) {
	for _, st := range states {
		if err := saveNavigation(m.db, st); err != nil {
			logging.Warn("state: save %s: %v", st.Dir, err)
		}
	}
}
