// Package ids generates the short opaque identifiers used for every
// entity in the session runtime (users, agents, sessions, events).
package ids

import (
	"github.com/google/uuid"
)

const (
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	length   = 10
)

// New returns a new 10-character alphanumeric identifier. It is not
// a UUID: uuid.New is used purely as a source of randomness, then
// reduced to the short opaque form every id in this system takes.
func New() string {
	u := uuid.New()
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = alphabet[int(u[i%len(u)])%len(alphabet)]
	}
	return string(out)
}
