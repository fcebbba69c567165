package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/baghaven/storefront/internal/model"
)

// Claims represents the storefront JWT claims. The API signs the user id as
// "id"; "sub" and "user_id" are accepted from other issuers.
type Claims struct {
	jwt.RegisteredClaims
	UID    string `json:"id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Role   string `json:"role,omitempty"`
}

func (c Claims) toModel() model.Claims {
	out := model.Claims{Subject: c.Subject, Role: c.Role}
	if out.Subject == "" {
		out.Subject = c.UID
	}
	if out.Subject == "" {
		out.Subject = c.UserID
	}
	if c.ExpiresAt != nil {
		exp := c.ExpiresAt.Time
		out.ExpiresAt = &exp
	}
	return out
}

// Decoder reads claims from tokens without verifying their signature.
// Clients never hold the signing secret; the server stays the authority.
type Decoder struct {
	parser *jwt.Parser
}

var _ model.TokenDecoder = (*Decoder)(nil)

// NewDecoder creates a client-side claims decoder.
func NewDecoder() *Decoder {
	return &Decoder{parser: jwt.NewParser()}
}

// Decode extracts the claims of tokenString. Expiry is not checked here;
// callers compare Claims.ExpiresAt against their own clock.
func (d *Decoder) Decode(tokenString string) (model.Claims, error) {
	if tokenString == "" {
		return model.Claims{}, fmt.Errorf("%w: empty token", model.ErrInvalidToken)
	}
	claims := &Claims{}
	if _, _, err := d.parser.ParseUnverified(tokenString, claims); err != nil {
		return model.Claims{}, fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}
	return claims.toModel(), nil
}

// JWT implements TokenManager backed by symmetric HMAC.
type JWT struct {
	secretKey string
	ttl       time.Duration
	now       func() time.Time
}

var _ model.TokenManager = (*JWT)(nil)

const defaultTTL = 24 * time.Hour

// NewJWT creates a new JWT token manager with the provided secret key and token lifetime.
func NewJWT(secretKey string, ttl time.Duration) *JWT {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &JWT{secretKey: secretKey, ttl: ttl, now: time.Now}
}

// Issue creates an access token for user.
func (j *JWT) Issue(user model.User) (string, error) {
	now := j.now()
	role := user.Role
	if role == "" {
		role = model.RoleUser
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
		UID:  user.ID,
		Role: role,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return tokenString, nil
}

// Parse validates the signature and expiry of tokenString and returns its claims.
func (j *JWT) Parse(tokenString string) (model.Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		return model.Claims{}, fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}
	if !token.Valid {
		return model.Claims{}, errors.New("access token is invalid")
	}
	out := claims.toModel()
	if out.Subject == "" {
		return model.Claims{}, fmt.Errorf("%w: missing subject", model.ErrInvalidToken)
	}
	return out, nil
}
