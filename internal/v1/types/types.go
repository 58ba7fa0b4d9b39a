// Package types defines shared types and contracts for the authentication authority.
package types

import "github.com/RoseWrightdev/conference-authority/internal/v1/auth"

// ParticipantAddress is the routing identifier the chat network uses to
// address a single endpoint of a user session (e.g. a room-local JID).
type ParticipantAddress string

// RoomName is the name of a conference. It may carry a domain suffix
// ("local@domain"); only the local part matters for reservation checks.
type RoomName string

// TokenString is an opaque, single-use string issued by the Authority and
// embedded in an identity-provider URL.
type TokenString string

// ExternalIdentity is the subject assertion returned by the identity
// provider. It is opaque to the Authority.
type ExternalIdentity string

// AuthenticationState is the proven binding between a participant address
// and an external identity for the duration of a specific room. It is the
// payload handed to every IdentityBindListener on a successful Authenticate.
type AuthenticationState struct {
	ParticipantAddress    ParticipantAddress
	RoomName              RoomName
	AuthenticatedIdentity ExternalIdentity
	AuthenticatedAt       int64 // unix seconds, see authority.Clock
}

// FocusAllocationListener is the contract the Authority implements so the
// Focus Manager can notify it when a conference is destroyed.
type FocusAllocationListener interface {
	OnFocusDestroyed(room RoomName)
}

// IdentityBindListener is the contract subscribers implement to learn
// about successful Authenticate calls. Invoked outside the Authority's
// mutex, exactly once per successful Authenticate, with the full bound
// state (room name and authentication time included).
type IdentityBindListener interface {
	OnUserAuthenticated(state AuthenticationState)
}

// IdentityBindListenerFunc adapts a plain function to an IdentityBindListener.
type IdentityBindListenerFunc func(state AuthenticationState)

// OnUserAuthenticated implements IdentityBindListener.
func (f IdentityBindListenerFunc) OnUserAuthenticated(state AuthenticationState) {
	f(state)
}

// FocusManager is the conference-side collaborator the Authority depends
// on: it answers whether a conference currently exists for a room, and it
// lets the Authority register to be told when one is destroyed.
type FocusManager interface {
	GetConference(room RoomName) (exists bool, err error)
	SetFocusAllocationListener(l FocusAllocationListener)
}

// TokenValidator validates identity-provider ID tokens. The Redirect
// Handler uses it when ID tokens are sent instead of raw identity strings.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.CustomClaims, error)
}
