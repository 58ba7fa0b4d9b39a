// Package authority implements the external-authentication authority: the
// issuance of single-use authentication tokens, their promotion to
// authentication states on a successful identity-provider round trip, and
// the time- and room-lifecycle-based expiry of both.
package authority

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/RoseWrightdev/conference-authority/internal/v1/logging"
	"github.com/RoseWrightdev/conference-authority/internal/v1/metrics"
	"github.com/RoseWrightdev/conference-authority/internal/v1/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("conference-authority/authority")

// token is the internal record for an unredeemed authentication token.
type token struct {
	participantAddress types.ParticipantAddress
	roomName           types.RoomName
	createdAt          time.Time
}

// state is the internal record for a proven AuthenticationState.
type state struct {
	roomName        types.RoomName
	identity        types.ExternalIdentity
	authenticatedAt time.Time
}

// Authority is the core in-process component. The zero value is not usable;
// construct with NewAuthority.
type Authority struct {
	cfg   Config
	clock Clock

	mu     sync.Mutex
	tokens map[types.TokenString]token
	states map[types.ParticipantAddress]state

	listenersMu sync.RWMutex
	listeners   []types.IdentityBindListener

	focusMu sync.RWMutex
	focus   types.FocusManager

	wg         sync.WaitGroup
	stopExpiry context.CancelFunc
	started    bool
	lifecycle  sync.Mutex
}

// NewAuthority validates cfg and constructs an Authority ready to have
// Start called on it. It uses the system wall clock; tests that need
// deterministic expiry should use NewAuthorityWithClock.
func NewAuthority(cfg Config) (*Authority, error) {
	return NewAuthorityWithClock(cfg, systemClock{})
}

// NewAuthorityWithClock is NewAuthority with an injectable Clock, for tests.
func NewAuthorityWithClock(cfg Config, clock Clock) (*Authority, error) {
	if !validateURLTemplate(cfg.URLTemplate) {
		return nil, fmt.Errorf("%w: url template must contain exactly one %%s slot, got %q", ErrInvalidConfiguration, cfg.URLTemplate)
	}
	if cfg.TokenLifetime <= 0 {
		cfg.TokenLifetime = 60 * time.Second
	}
	if cfg.PreAuthLifetime <= 0 {
		cfg.PreAuthLifetime = 30 * time.Second
	}
	if cfg.ExpiryPollInterval <= 0 {
		cfg.ExpiryPollInterval = 10 * time.Second
	}

	return &Authority{
		cfg:    cfg,
		clock:  clock,
		tokens: make(map[types.TokenString]token),
		states: make(map[types.ParticipantAddress]state),
	}, nil
}

// generateTokenString draws 32 bytes (256 bits) from a CSPRNG and encodes
// them unpadded and URL-safe, since the token string rides in a query string.
func generateTokenString() (types.TokenString, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return types.TokenString(base64.RawURLEncoding.EncodeToString(buf)), nil
}

// IssueURL generates a fresh single-use token bound to participantAddress
// and roomName, and returns the identity-provider URL embedding it.
func (a *Authority) IssueURL(ctx context.Context, participantAddress types.ParticipantAddress, roomName types.RoomName) (string, error) {
	ctx, span := tracer.Start(ctx, "authority.issue_url", trace.WithAttributes(
		attribute.String("room_name", string(roomName)),
	))
	defer span.End()

	if participantAddress == "" || roomName == "" {
		return "", fmt.Errorf("%w: participant address and room name are required", ErrInvalidArgument)
	}

	tokenString, err := generateTokenString()
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.tokens[tokenString] = token{
		participantAddress: participantAddress,
		roomName:           roomName,
		createdAt:          a.clock.Now(),
	}
	liveTokens := len(a.tokens)
	a.mu.Unlock()

	metrics.TokensIssuedTotal.Inc()
	metrics.TokensLive.Set(float64(liveTokens))

	logging.Info(ctx, "issued authentication token", zap.String("room_name", string(roomName)))

	return fmt.Sprintf(a.cfg.URLTemplate, tokenString), nil
}

// Authenticate consumes tokenString and, if it is live, promotes it to an
// AuthenticationState bound to externalIdentity, overwriting any previous
// state for the same participant address. Returns true on success.
func (a *Authority) Authenticate(ctx context.Context, tokenString types.TokenString, externalIdentity types.ExternalIdentity) bool {
	ctx, span := tracer.Start(ctx, "authority.authenticate")
	defer span.End()

	a.mu.Lock()
	tok, ok := a.tokens[tokenString]
	if !ok {
		a.mu.Unlock()
		metrics.AuthenticateAttemptsTotal.WithLabelValues("unknown_token").Inc()
		logging.Error(ctx, "authenticate called with unknown token")
		return false
	}

	delete(a.tokens, tokenString)

	now := a.clock.Now()
	a.states[tok.participantAddress] = state{
		roomName:        tok.roomName,
		identity:        externalIdentity,
		authenticatedAt: now,
	}

	liveTokens := len(a.tokens)
	liveStates := len(a.states)
	a.mu.Unlock()

	metrics.AuthenticateAttemptsTotal.WithLabelValues("success").Inc()
	metrics.TokensLive.Set(float64(liveTokens))
	metrics.StatesLive.Set(float64(liveStates))

	logging.Info(ctx, "authenticated participant",
		zap.String("room_name", string(tok.roomName)),
	)

	a.dispatchIdentityBind(ctx, types.AuthenticationState{
		ParticipantAddress:    tok.participantAddress,
		RoomName:              tok.roomName,
		AuthenticatedIdentity: externalIdentity,
		AuthenticatedAt:       now.Unix(),
	})

	return true
}

// dispatchIdentityBind fires every registered IdentityBindListener outside
// the Authority mutex, per O3: listeners must never run while the mutex is
// held.
func (a *Authority) dispatchIdentityBind(ctx context.Context, bound types.AuthenticationState) {
	a.listenersMu.RLock()
	listeners := make([]types.IdentityBindListener, len(a.listeners))
	copy(listeners, a.listeners)
	a.listenersMu.RUnlock()

	for _, l := range listeners {
		a.invokeListener(ctx, l, bound)
	}
}

func (a *Authority) invokeListener(ctx context.Context, l types.IdentityBindListener, bound types.AuthenticationState) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ListenerDispatchFailuresTotal.WithLabelValues("in_process").Inc()
			logging.Error(ctx, "identity-bind listener panicked", zap.Any("recovered", r))
		}
	}()
	l.OnUserAuthenticated(bound)
}

// AddIdentityBindListener registers l to be notified on every future
// successful Authenticate call.
func (a *Authority) AddIdentityBindListener(l types.IdentityBindListener) {
	a.listenersMu.Lock()
	defer a.listenersMu.Unlock()
	a.listeners = append(a.listeners, l)
}

// IsAllowedToCreateRoom reports whether participantAddress may create
// roomName: either roomName's local part is reserved, or a state already
// exists for participantAddress (regardless of that state's own room).
func (a *Authority) IsAllowedToCreateRoom(participantAddress types.ParticipantAddress, roomName types.RoomName) bool {
	if participantAddress == "" {
		logging.Warn(context.Background(), "is-allowed-to-create-room called with empty participant address")
		return false
	}

	if _, reserved := a.cfg.reservedSet()[localPart(string(roomName))]; reserved {
		return true
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.states[participantAddress]
	return ok
}

// IsUserAuthenticated reports whether participantAddress holds a live state
// whose room equals roomName.
func (a *Authority) IsUserAuthenticated(participantAddress types.ParticipantAddress, roomName types.RoomName) bool {
	if participantAddress == "" {
		logging.Warn(context.Background(), "is-user-authenticated called with empty participant address")
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.states[participantAddress]
	return ok && st.roomName == roomName
}

// IsExternal always returns true: this authority type relies on an
// external identity provider.
func (a *Authority) IsExternal() bool {
	return true
}
