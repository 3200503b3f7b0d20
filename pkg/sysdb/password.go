package sysdb

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
)

// saltSize is the random salt length generated per user, large enough
// that precomputed rainbow tables over it are not worth building.
const saltSize = 16

// hashRounds is how many times the salted password is re-hashed. There is
// no KDF (bcrypt/scrypt/argon2) anywhere in the retrieval pack's
// dependency surface, so this package stays on the standard library
// rather than introducing an ungrounded dependency; iterated HMAC-SHA256
// is the closest stdlib-only approximation of a slow hash.
const hashRounds = 100000

func newSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func hashPassword(password string, salt []byte) []byte {
	sum := []byte(password)
	for i := 0; i < hashRounds; i++ {
		mac := hmac.New(sha256.New, salt)
		mac.Write(sum)
		sum = mac.Sum(nil)
	}
	return sum
}

func verifyPassword(password string, salt, want []byte) bool {
	got := hashPassword(password, salt)
	return subtle.ConstantTimeCompare(got, want) == 1
}
