package authority

import (
	"errors"
	"sync"

	"github.com/RoseWrightdev/conference-authority/internal/v1/types"
)

// mockFocusManager is a minimal in-memory types.FocusManager for tests. It
// can be told to fail GetConference to simulate an open circuit breaker.
type mockFocusManager struct {
	mu         sync.Mutex
	rooms      map[types.RoomName]bool
	listener   types.FocusAllocationListener
	failNext   bool
	failAlways bool
}

func newMockFocusManager() *mockFocusManager {
	return &mockFocusManager{rooms: make(map[types.RoomName]bool)}
}

func (m *mockFocusManager) GetConference(room types.RoomName) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failAlways || m.failNext {
		m.failNext = false
		return false, errors.New("focus manager unavailable")
	}

	return m.rooms[room], nil
}

func (m *mockFocusManager) SetFocusAllocationListener(l types.FocusAllocationListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

func (m *mockFocusManager) Create(room types.RoomName) {
	m.mu.Lock()
	m.rooms[room] = true
	m.mu.Unlock()
}

func (m *mockFocusManager) Destroy(room types.RoomName) {
	m.mu.Lock()
	delete(m.rooms, room)
	listener := m.listener
	m.mu.Unlock()

	if listener != nil {
		listener.OnFocusDestroyed(room)
	}
}

func (m *mockFocusManager) setFailAlways(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAlways = fail
}
