package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned when no credential was presented at all
var ErrNoToken = errors.New("no token provided")

// Identity is the verified subject of a bearer token
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// tokenClaims mirrors the payload the credential-issuance service signs
type tokenClaims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Authenticator verifies bearer tokens against a shared HMAC secret.
// It never mints tokens; issuance lives in a separate service.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Verify checks signature and expiry and returns the embedded identity.
// Any failure - missing token, bad signature, expired, wrong algorithm -
// yields an error; callers must treat that as a hard rejection and must
// not create a session.
func (a *Authenticator) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no subject identity")
	}

	return &Identity{
		ID:    claims.UserID,
		Email: claims.Email,
		Name:  claims.Name,
	}, nil
}
