// Package hash provides one-way password hashing and verification using
// argon2id. Hashes are encoded in the standard PHC string format so they are
// self-contained: verification needs no separately stored salt or parameters.
//
// The rest of Warden treats the hash as an opaque string. It is never compared
// with plain equality and never logged or returned in a response.
package hash

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters tuned for a self-hosted service running on modest
// hardware (2-4 CPU cores, 2-4 GB RAM). These follow OWASP recommendations
// for argon2id: memory=64MB, iterations=3, parallelism=4.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // 64 MB in KiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// Hash creates an argon2id hash of the given password. The output format is:
// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
func Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	digest := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(digest)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads, b64Salt, b64Hash)

	return encoded, nil
}

// Verify checks a plaintext password against an argon2id PHC hash string.
// Returns true if the password matches. A malformed hash returns false --
// callers cannot distinguish a bad hash from a wrong password, so nothing
// about the stored format leaks to the client.
func Verify(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	// argon2.IDKey panics on parameters outside its domain (zero lanes or
	// iterations, memory below 8 KiB per lane, empty output). A stored hash
	// carrying them is malformed, not a wrong password.
	if parallelism < 1 || iterations < 1 || memory < 8*uint32(parallelism) || len(expected) == 0 {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))

	// Constant-time comparison to prevent timing attacks.
	return subtle.ConstantTimeCompare(expected, computed) == 1
}
