package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"github.com/ovaphlow/pitchfork/service-tasklist/internal/apperr"
)

// MinSecretLen is the shortest accepted signing secret in bytes.
const MinSecretLen = 32

const keyInfo = "tasklist/jwt/hs256"

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

var (
	ErrInvalidSignature = apperr.Unauthorized("Invalid token signature.")
	ErrMalformed        = apperr.Malformed("Malformed token.")
)

// Claims is the payload of both token kinds. Roles are only set on access tokens.
type Claims struct {
	UserID int64     `json:"id"`
	Roles  []string  `json:"roles,omitempty"`
	Type   TokenType `json:"type"`
	jwt.RegisteredClaims
}

// NewSigningKey derives the HS256 key from the configured secret.
func NewSigningKey(secret string) ([]byte, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes, got %d", MinSecretLen, len(secret))
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return key, nil
}

// IDSource hands out unique token ids for the jti claim.
type IDSource interface {
	NewID() string
}

// TokenCodec signs and verifies tokens with a single symmetric key fixed at
// construction.
type TokenCodec struct {
	key    []byte
	issuer string
	ids    IDSource
	parser *jwt.Parser
	now    func() time.Time
}

func NewTokenCodec(key []byte, issuer string, ids IDSource) *TokenCodec {
	return &TokenCodec{
		key:    key,
		issuer: issuer,
		ids:    ids,
		// expiry is checked by IsLive, not by the parser
		parser: jwt.NewParser(
			jwt.WithoutClaimsValidation(),
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		),
		now: time.Now,
	}
}

// Encode mints a token of the given type valid for ttl from now.
func (c *TokenCodec) Encode(typ TokenType, id int64, username string, roles []string, ttl time.Duration) (string, error) {
	now := c.now().Truncate(time.Second)
	claims := Claims{
		UserID: id,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        c.ids.NewID(),
		},
	}
	if typ == TokenAccess {
		claims.Roles = append([]string{}, roles...)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
}

// Decode verifies the signature and returns the claims. Time claims are not
// checked here.
func (c *TokenCodec) Decode(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := c.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return claims, nil
}

// IsLive decodes token and reports whether it has not expired yet.
func (c *TokenCodec) IsLive(token string) (bool, error) {
	claims, err := c.Decode(token)
	if err != nil {
		return false, err
	}
	return c.live(claims), nil
}

func (c *TokenCodec) live(claims *Claims) bool {
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.After(c.now())
}
