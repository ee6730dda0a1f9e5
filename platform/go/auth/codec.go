package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failures. Verify returns exactly one of these; business-level
// checks (unknown tenant, revoked user) are the gate's job, not the codec's.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
)

// Claims is the decoded, verified payload of an access token.
type Claims struct {
	UserID      string
	TenantID    string
	Permissions []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type tokenClaims struct {
	TenantID    string   `json:"tenant_id"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// CodecConfig carries the signing material for a Codec.
type CodecConfig struct {
	// Secret is the shared HMAC-SHA256 signing key.
	Secret []byte
	// Clock overrides time.Now, used by tests to drive expiry.
	Clock func() time.Time
}

// Codec signs and verifies access tokens. Tokens are HS256 JWTs carrying
// subject, tenant and permission claims; the algorithm is pinned so a
// token cannot downgrade itself.
type Codec struct {
	secret []byte
	clock  func() time.Time
}

func NewCodec(cfg CodecConfig) *Codec {
	if len(cfg.Secret) == 0 {
		panic("auth codec requires a signing secret")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Codec{secret: cfg.Secret, clock: clock}
}

// Issue signs a token for the given subject. Pure function of the inputs,
// the clock and the secret; no side effects.
func (c *Codec) Issue(userID, tenantID string, permissions []string, ttl time.Duration) (string, error) {
	now := c.clock().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		TenantID:    tenantID,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of a compact token and returns its
// claims. The error is always one of ErrTokenMalformed, ErrTokenSignature or
// ErrTokenExpired.
func (c *Codec) Verify(tokenString string) (Claims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (any, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
			}
			return c.secret, nil
		},
		jwt.WithTimeFunc(c.clock),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrTokenSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrTokenExpired
		default:
			return Claims{}, ErrTokenMalformed
		}
	}

	out := Claims{
		UserID:      claims.Subject,
		TenantID:    claims.TenantID,
		Permissions: claims.Permissions,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
