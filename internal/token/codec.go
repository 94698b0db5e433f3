// Package token signs and verifies the self-contained credentials issued by
// the auth service. Access tokens are short-lived and carry a roles snapshot;
// refresh tokens are long-lived and carry a random jti used as the revocation
// index key.
package token

import (
	"errors"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/VanHoang0612/Mochi-Chat/internal/domain"
)

// Type discriminates the two token families. Presenting one where the other
// is required is always rejected, regardless of signature validity.
type Type string

const (
	TypeAccess  Type = "ACCESS"
	TypeRefresh Type = "REFRESH"
)

// Decode failure classes. Callers log them differently: expired prompts a
// re-login, malformed is treated as tampering.
var (
	ErrExpired   = errors.New("token expired")
	ErrMalformed = errors.New("token malformed or untrusted")
)

// Claims is the decoded, verified payload of a token.
type Claims struct {
	Subject   string
	Type      Type
	Roles     []string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type customClaims struct {
	Type  string   `json:"typ"`
	Roles []string `json:"roles,omitempty"`
}

// Codec mints and decodes HS256-signed tokens with a single symmetric key.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec constructs a codec for the given symmetric secret.
func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret, now: time.Now}
}

// WithClock overrides the wall-clock source. Intended for tests.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

// Mint builds, signs, and serializes a token for the user. ACCESS tokens
// snapshot the user's current roles; REFRESH tokens get a fresh random jti.
func (c *Codec) Mint(user domain.User, typ Type, ttl time.Duration) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: c.secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := c.now().UTC()
	std := gojwt.Claims{
		Subject:  user.Username,
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(ttl)),
	}
	custom := customClaims{Type: string(typ)}
	switch typ {
	case TypeAccess:
		custom.Roles = append([]string(nil), user.Roles...)
	case TypeRefresh:
		std.ID = uuid.NewString()
	default:
		return "", fmt.Errorf("unknown token type %q", typ)
	}

	raw, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize token: %w", err)
	}
	return raw, nil
}

// Decode verifies signature and structure, then expiry. Signature or shape
// problems yield ErrMalformed; a good signature past its expiry yields
// ErrExpired.
func (c *Codec) Decode(raw string) (Claims, error) {
	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", ErrMalformed)
	}

	var std gojwt.Claims
	var custom customClaims
	if err := parsed.Claims(c.secret, &std, &custom); err != nil {
		return Claims{}, fmt.Errorf("verify token: %w", ErrMalformed)
	}

	claims, err := buildClaims(std, custom)
	if err != nil {
		return Claims{}, err
	}

	if !c.now().Before(claims.ExpiresAt) {
		return Claims{}, fmt.Errorf("token expired at %s: %w", claims.ExpiresAt.Format(time.RFC3339), ErrExpired)
	}
	return claims, nil
}

func buildClaims(std gojwt.Claims, custom customClaims) (Claims, error) {
	if std.Subject == "" || std.Expiry == nil || std.IssuedAt == nil {
		return Claims{}, fmt.Errorf("missing required claims: %w", ErrMalformed)
	}

	typ := Type(custom.Type)
	switch typ {
	case TypeAccess:
	case TypeRefresh:
		if std.ID == "" {
			return Claims{}, fmt.Errorf("refresh token without jti: %w", ErrMalformed)
		}
		if _, err := uuid.Parse(std.ID); err != nil {
			return Claims{}, fmt.Errorf("malformed jti: %w", ErrMalformed)
		}
	default:
		return Claims{}, fmt.Errorf("unknown token type %q: %w", custom.Type, ErrMalformed)
	}

	return Claims{
		Subject:   std.Subject,
		Type:      typ,
		Roles:     custom.Roles,
		JTI:       std.ID,
		IssuedAt:  std.IssuedAt.Time().UTC(),
		ExpiresAt: std.Expiry.Time().UTC(),
	}, nil
}
