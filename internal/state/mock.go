package state

// Mock is a test double for Manager.
type Mock struct {
	nav    map[string]NavigationState
	closed bool
}

// NewMock creates a new mock state manager for testing.
func NewMock() *Mock {
	return &Mock{nav: make(map[string]NavigationState)}
}

func (m *Mock) SaveNavigation(state NavigationState) { m.nav[state.Dir] = state }

func (m *Mock) GetNavigation(dir string) (*NavigationState, error) {
	st, ok := m.nav[dir]
	if !ok {
		return nil, nil //nolint:nilnil // mirrors Manager
	}
	return &st, nil
}

func (m *Mock) Close() error {
	m.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (m *Mock) IsClosed() bool { return m.closed }

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
