package authority

import "errors"

// ErrInvalidConfiguration is returned by NewAuthority when the URL template
// is empty or does not contain exactly one %s slot.
var ErrInvalidConfiguration = errors.New("authority: invalid configuration")

// ErrInvalidArgument is returned by IssueURL when a required participant
// address or room name is empty.
var ErrInvalidArgument = errors.New("authority: invalid argument")
