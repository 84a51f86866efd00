// Package identity creates and inspects the access tokens the booking
// backend issues.  The client needs its own user id to tell which seat
// locks it holds; the id travels in the token's subject claim, so the
// client can read it without a round trip.
package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token cannot be parsed, fails
// signature verification, or lacks a subject claim.
var ErrInvalidToken = errors.New("invalid token")

// NewAccessToken builds and signs an HS256 JWT for a user.  The JWT
// includes the standard claims: subject (sub), expiration (exp) and
// issued at (iat).  Used by the stub backend when issuing tokens.
func NewAccessToken(secret, userID string, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().UTC().Add(ttl)
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": exp.Unix(),
		"iat": time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses a token, checks its HS256 signature against the secret
// and returns the subject claim.  Rejects tokens signed with any other
// method.
func Verify(secret, raw string) (string, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return "", ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return "", ErrInvalidToken
	}
	return subject(tok)
}

// Subject returns the subject claim of a token without verifying its
// signature.  The client is not in possession of the signing secret;
// it only needs to read back the identity the backend put into the
// token it was handed, so an unverified parse is sufficient here.
func Subject(raw string) (string, error) {
	parser := jwt.NewParser()
	tok, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return "", ErrInvalidToken
	}
	return subject(tok)
}

func subject(tok *jwt.Token) (string, error) {
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}
