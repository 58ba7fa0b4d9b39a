package authority

import (
	"context"
	"time"

	"github.com/RoseWrightdev/conference-authority/internal/v1/logging"
	"github.com/RoseWrightdev/conference-authority/internal/v1/metrics"
	"github.com/RoseWrightdev/conference-authority/internal/v1/types"
	"go.uber.org/zap"
)

// Start registers the Authority as focusManager's allocation listener and
// schedules the periodic expiry task. Idempotent: a second call while
// already started is a no-op.
func (a *Authority) Start(focusManager types.FocusManager) {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	if a.started {
		return
	}

	a.focusMu.Lock()
	a.focus = focusManager
	a.focusMu.Unlock()

	if focusManager != nil {
		focusManager.SetFocusAllocationListener(a)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.stopExpiry = cancel

	a.wg.Add(1)
	go a.expiryLoop(ctx)

	a.started = true
}

// Stop cancels the expiry task, de-registers from the Focus Manager and
// releases every pending token and state. Idempotent. Blocks until any
// in-flight expiry tick has drained.
func (a *Authority) Stop() {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	if !a.started {
		return
	}

	a.stopExpiry()
	a.wg.Wait()

	a.focusMu.Lock()
	if a.focus != nil {
		a.focus.SetFocusAllocationListener(nil)
	}
	a.focus = nil
	a.focusMu.Unlock()

	a.mu.Lock()
	a.tokens = make(map[types.TokenString]token)
	a.states = make(map[types.ParticipantAddress]state)
	a.mu.Unlock()
	metrics.TokensLive.Set(0)
	metrics.StatesLive.Set(0)

	a.started = false
}

// OnFocusDestroyed implements types.FocusAllocationListener. It removes
// every token and every state whose room_name equals roomName.
func (a *Authority) OnFocusDestroyed(roomName types.RoomName) {
	ctx := context.Background()

	a.mu.Lock()
	for ts, tok := range snapshotTokens(a.tokens) {
		if tok.roomName == roomName {
			delete(a.tokens, ts)
			metrics.TokensEvictedTotal.WithLabelValues("room_gone").Inc()
		}
	}
	for addr, st := range snapshotStates(a.states) {
		if st.roomName == roomName {
			delete(a.states, addr)
			metrics.StatesEvictedTotal.WithLabelValues("room_gone").Inc()
		}
	}
	liveTokens := len(a.tokens)
	liveStates := len(a.states)
	a.mu.Unlock()

	metrics.TokensLive.Set(float64(liveTokens))
	metrics.StatesLive.Set(float64(liveStates))

	logging.Info(ctx, "removed tokens and states for destroyed room", zap.String("room_name", string(roomName)))
}

func snapshotTokens(m map[types.TokenString]token) map[types.TokenString]token {
	out := make(map[types.TokenString]token, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func snapshotStates(m map[types.ParticipantAddress]state) map[types.ParticipantAddress]state {
	out := make(map[types.ParticipantAddress]state, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// expiryLoop runs one tick every ExpiryPollInterval until ctx is cancelled,
// draining the wait group on exit so Stop can block until it is quiescent.
func (a *Authority) expiryLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.ExpiryPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.expiryTick(ctx)
		}
	}
}

// expiryTick implements §4.5: evict tokens older than TokenLifetime
// unconditionally, and evict states past PreAuthLifetime only for rooms
// that the Focus Manager reports as not existing. Both table reads are
// snapshotted outside the mutex so that Focus Manager queries and listener
// dispatch never happen while the Authority mutex is held.
func (a *Authority) expiryTick(ctx context.Context) {
	a.focusMu.RLock()
	focus := a.focus
	a.focusMu.RUnlock()

	if focus == nil {
		return
	}

	now := a.clock.Now()

	a.mu.Lock()
	tokenSnapshot := snapshotTokens(a.tokens)
	a.mu.Unlock()

	for ts, tok := range tokenSnapshot {
		if now.Sub(tok.createdAt) <= a.cfg.TokenLifetime {
			continue
		}
		a.mu.Lock()
		if current, ok := a.tokens[ts]; ok && current.createdAt == tok.createdAt {
			delete(a.tokens, ts)
		}
		liveTokens := len(a.tokens)
		a.mu.Unlock()
		metrics.TokensEvictedTotal.WithLabelValues("expired").Inc()
		metrics.TokensLive.Set(float64(liveTokens))
	}

	a.mu.Lock()
	stateSnapshot := snapshotStates(a.states)
	a.mu.Unlock()

	for addr, st := range stateSnapshot {
		exists, err := focus.GetConference(st.roomName)
		if err != nil {
			// Breaker open or query failed: treat as unknown, never evict
			// on uncertain information (P9).
			continue
		}
		if exists {
			continue
		}
		if now.Sub(st.authenticatedAt) <= a.cfg.PreAuthLifetime {
			continue
		}

		a.mu.Lock()
		if current, ok := a.states[addr]; ok && current.authenticatedAt == st.authenticatedAt {
			delete(a.states, addr)
		}
		liveStates := len(a.states)
		a.mu.Unlock()
		metrics.StatesEvictedTotal.WithLabelValues("pre_auth_expired").Inc()
		metrics.StatesLive.Set(float64(liveStates))
	}
}
