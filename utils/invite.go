package utils

import (
	"crypto/rand"
	"math/big"

	"github.com/gosimple/slug"
)

// Ambiguous characters (0/O, 1/I/L) are left out so codes survive being read
// aloud over voice chat.
const inviteAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateInviteCode returns an n-character squad invite code.
func GenerateInviteCode(n int) (string, error) {
	code := make([]byte, n)
	for i := range code {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(inviteAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = inviteAlphabet[idx.Int64()]
	}
	return string(code), nil
}

// SquadSlug builds a URL-safe slug from a squad name.
func SquadSlug(name string) string {
	return slug.Make(name)
}
