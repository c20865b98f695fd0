package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id cost parameters. These gate every login, and logins gate
// control of lamps in someone's house, so the memory cost stays at the
// OWASP-recommended 64 MiB even though the target hardware is small.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 1
	argonKeyLen  = 32
	argonSaltLen = 16
)

// phcFieldCount is the number of $-delimited fields in an Argon2id PHC
// string: ["", "argon2id", "v=19", "m=...,t=...,p=..." , salt, hash].
const phcFieldCount = 6

// HashPassword derives an Argon2id hash of the password with a fresh
// random salt and returns it as a PHC string, e.g.
//
//	$argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
//
// The encoded parameters travel with the hash, so the cost constants
// above can be raised later without invalidating stored credentials.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return encoded, nil
}

// VerifyPassword reports whether the password matches the stored PHC
// hash. The comparison is constant-time; a malformed or non-Argon2id
// hash is an error, never a silent mismatch.
func VerifyPassword(password, encodedHash string) (bool, error) {
	stored, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), stored.salt,
		stored.time, stored.memory, stored.threads,
		uint32(len(stored.key))) //nolint:gosec // G115: key length always fits uint32

	return subtle.ConstantTimeCompare(stored.key, candidate) == 1, nil
}

// phcHash is a decoded Argon2id PHC string: the stored key, its salt,
// and the cost parameters it was derived with.
type phcHash struct {
	salt    []byte
	key     []byte
	time    uint32
	memory  uint32
	threads uint8
}

// parsePHC decodes an Argon2id PHC string, rejecting other algorithms
// and argon2 versions this binary cannot reproduce.
func parsePHC(encoded string) (*phcHash, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != phcFieldCount {
		return nil, fmt.Errorf("invalid PHC hash format")
	}
	if fields[1] != "argon2id" {
		return nil, fmt.Errorf("unsupported algorithm: %s", fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("parsing version: %w", err)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("unsupported argon2 version: %d", version)
	}

	h := &phcHash{}
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.threads); err != nil {
		return nil, fmt.Errorf("parsing parameters: %w", err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return nil, fmt.Errorf("decoding salt: %w", err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return nil, fmt.Errorf("decoding hash: %w", err)
	}

	return h, nil
}
