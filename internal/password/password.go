// Package password hashes and verifies user secrets with argon2id. The
// encoded form embeds the cost parameters and salt so old hashes stay
// verifiable after the defaults change.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Params are the argon2id cost settings used for new hashes.
type Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultParams balance login latency against brute-force cost.
var DefaultParams = Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 2,
	KeyLen:  32,
	SaltLen: 16,
}

var errInvalidHash = errors.New("invalid password hash")

// Hash returns an encoded argon2id digest using DefaultParams.
func Hash(password string) (string, error) {
	return HashWithParams(password, DefaultParams)
}

// HashWithParams returns an encoded argon2id digest for the given costs.
func HashWithParams(password string, p Params) (string, error) {
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	sum := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory,
		p.Time,
		p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify checks a password against an encoded argon2id digest in constant
// time with respect to the digest bytes.
func Verify(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, errInvalidHash
	}

	version, err := intAfter(parts[2], "v=")
	if err != nil || version != argon2.Version {
		return false, errInvalidHash
	}

	p, err := parseCosts(parts[3])
	if err != nil {
		return false, errInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, errInvalidHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, errInvalidHash
	}

	got := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func parseCosts(value string) (Params, error) {
	fields := strings.Split(value, ",")
	if len(fields) != 3 {
		return Params{}, errInvalidHash
	}

	mem, err := intAfter(fields[0], "m=")
	if err != nil {
		return Params{}, errInvalidHash
	}
	timeCost, err := intAfter(fields[1], "t=")
	if err != nil {
		return Params{}, errInvalidHash
	}
	threads, err := intAfter(fields[2], "p=")
	if err != nil || threads < 1 || threads > 255 {
		return Params{}, errInvalidHash
	}

	return Params{Time: uint32(timeCost), Memory: uint32(mem), Threads: uint8(threads)}, nil
}

func intAfter(value, prefix string) (int, error) {
	if !strings.HasPrefix(value, prefix) {
		return 0, errInvalidHash
	}
	return strconv.Atoi(strings.TrimPrefix(value, prefix))
}
