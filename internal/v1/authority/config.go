package authority

import (
	"strings"
	"time"
)

// Config is the immutable-after-construction policy the Authority is built
// with: the URL template, the reserved-room set, and the three timeouts.
type Config struct {
	URLTemplate        string
	ReservedRooms      []string
	TokenLifetime      time.Duration
	PreAuthLifetime    time.Duration
	ExpiryPollInterval time.Duration
}

// reservedSet returns the reserved room local-parts as a lookup set.
func (c Config) reservedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.ReservedRooms))
	for _, r := range c.ReservedRooms {
		set[r] = struct{}{}
	}
	return set
}

// localPart returns the portion of a room name up to (but not including)
// the first '@', matching the reservation-check asymmetry described in the
// design notes: reservation checks only ever look at the local part, while
// storage and room-destroyed/expiry matching use the full room string.
func localPart(room string) string {
	if idx := strings.IndexByte(room, '@'); idx >= 0 {
		return room[:idx]
	}
	return room
}

func validateURLTemplate(template string) bool {
	return strings.Count(template, "%s") == 1
}
