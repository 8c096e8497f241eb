package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried by issued tokens.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

const tokenTTL = 7 * 24 * time.Hour

// ErrInvalidToken covers every verification failure: bad signature, malformed
// structure, or expiry. Callers must not distinguish these to the end user.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the decoded payload of a verified token.
type Identity struct {
	Username string
	Role     string
}

type claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer mints and validates signed identity assertions.
type Issuer struct {
	secret []byte
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret)}
}

// Issue signs a token for username with the given role and a 7 day validity
// window. The role is fixed at issuance: revoking superuser status does not
// invalidate tokens already in flight.
func (i *Issuer) Issue(username, role string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the decoded identity.
func (i *Issuer) Verify(tokenString string) (*Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return &Identity{Username: c.Username, Role: c.Role}, nil
}
