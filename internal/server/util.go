package server

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// newJoinCode returns a 4-character uppercase code. Matching is
// case-insensitive so the alphabet carries no lowercase letters.
func newJoinCode() string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "AAAA"
	}
	for i := range buf {
		buf[i] = alphabet[int(buf[i])%len(alphabet)]
	}
	return string(buf)
}

// newPlayerToken issues the identity token a client presents on every call.
func newPlayerToken() string {
	return uuid.NewString()
}
