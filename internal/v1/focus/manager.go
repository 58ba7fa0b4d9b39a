// Package focus provides an in-memory reference implementation of the
// conference-side collaborator the authority package depends on: it
// tracks which rooms currently have a live conference and notifies a
// registered listener when one is destroyed.
package focus

import (
	"sync"
	"time"

	"github.com/RoseWrightdev/conference-authority/internal/v1/logging"
	"github.com/RoseWrightdev/conference-authority/internal/v1/metrics"
	"github.com/RoseWrightdev/conference-authority/internal/v1/types"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Manager is an in-memory conference registry suitable for a demonstration
// deployment. GetConference is wrapped in a circuit breaker so that a
// production allocator running out-of-process can fail without the
// Authority's expiry loop guessing at room state.
type Manager struct {
	mu    sync.RWMutex
	rooms map[types.RoomName]struct{}
	cb    *gobreaker.CircuitBreaker

	listenerMu sync.RWMutex
	listener   types.FocusAllocationListener
}

// NewManager constructs a Manager with its GetConference circuit breaker
// configured to match the pack's convention for out-of-process dependencies.
func NewManager() *Manager {
	st := gobreaker.Settings{
		Name:        "focus-manager",
		MaxRequests: 3,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("focus-manager").Set(stateVal)
			logging.Warn(nil, "focus manager circuit breaker state change", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}

	return &Manager{
		rooms: make(map[types.RoomName]struct{}),
		cb:    gobreaker.NewCircuitBreaker(st),
	}
}

// Create marks room as having a live conference.
func (m *Manager) Create(room types.RoomName) {
	m.mu.Lock()
	m.rooms[room] = struct{}{}
	m.mu.Unlock()
}

// Destroy removes room's conference and notifies the registered
// FocusAllocationListener, if any, outside the manager's own lock.
func (m *Manager) Destroy(room types.RoomName) {
	m.mu.Lock()
	delete(m.rooms, room)
	m.mu.Unlock()

	m.listenerMu.RLock()
	listener := m.listener
	m.listenerMu.RUnlock()

	if listener != nil {
		listener.OnFocusDestroyed(room)
	}
}

// GetConference reports whether room currently has a live conference. The
// call is routed through a circuit breaker; on an open breaker it returns
// an error rather than guessing, so callers can fail safe.
func (m *Manager) GetConference(room types.RoomName) (bool, error) {
	result, err := m.cb.Execute(func() (interface{}, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		_, exists := m.rooms[room]
		return exists, nil
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailuresTotal.WithLabelValues("focus-manager").Inc()
		}
		return false, err
	}

	return result.(bool), nil
}

// SetFocusAllocationListener implements types.FocusManager.
func (m *Manager) SetFocusAllocationListener(l types.FocusAllocationListener) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.listener = l
}
