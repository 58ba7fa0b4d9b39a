package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParticipantAddress(t *testing.T) {
	addr := ParticipantAddress("user1@conf.example")
	assert.Equal(t, "user1@conf.example", string(addr))
}

func TestRoomName(t *testing.T) {
	room := RoomName("room1@conf.example")
	assert.Equal(t, "room1@conf.example", string(room))
}

func TestAuthenticationState(t *testing.T) {
	st := AuthenticationState{
		ParticipantAddress:    "u1@x",
		RoomName:              "room1",
		AuthenticatedIdentity: "alice@idp",
		AuthenticatedAt:       2000,
	}

	assert.Equal(t, ExternalIdentity("alice@idp"), st.AuthenticatedIdentity)
	assert.Equal(t, int64(2000), st.AuthenticatedAt)
}

func TestIdentityBindListenerFunc(t *testing.T) {
	var got AuthenticationState

	var l IdentityBindListener = IdentityBindListenerFunc(func(state AuthenticationState) {
		got = state
	})

	l.OnUserAuthenticated(AuthenticationState{
		ParticipantAddress:    "u1@x",
		RoomName:              "room1",
		AuthenticatedIdentity: "alice@idp",
		AuthenticatedAt:       2000,
	})

	assert.Equal(t, ParticipantAddress("u1@x"), got.ParticipantAddress)
	assert.Equal(t, RoomName("room1"), got.RoomName)
	assert.Equal(t, ExternalIdentity("alice@idp"), got.AuthenticatedIdentity)
	assert.Equal(t, int64(2000), got.AuthenticatedAt)
}
