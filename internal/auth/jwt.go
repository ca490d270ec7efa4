// Package auth issues and checks login tokens and gates requests on them.
//
// TOKEN FLOW OVERVIEW:
//  1. POST /api/login verifies the password and asks TokenService.Issue for a
//     token. The token is an HS256 JWT whose only interesting claim is "jti",
//     a random id.
//  2. The service stores {jti, user_id, expiry} as a login session.
//  3. Clients send the token back as "Authorization: Bearer <token>".
//  4. The Gate checks the signature first (no database work for forged or
//     garbled tokens), then looks the jti up in the login session table.
//
// The session row, not the JWT, decides whether the token exists and when it
// expires. That is why Parse does not validate "exp": a token past its expiry
// must still parse so the Gate can report expired_token rather than
// invalid_token.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "drink-tracker"

// ErrMalformedToken covers every way a bearer string can fail to be one of
// our tokens: bad encoding, wrong algorithm, bad signature, missing jti.
var ErrMalformedToken = errors.New("auth: malformed token")

// TokenService signs and parses login tokens with one HMAC secret.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService rejects secrets shorter than 16 characters.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: token secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// IssuedToken is a freshly signed token and the values to persist for it.
type IssuedToken struct {
	Token   string
	TokenID string
	Expiry  time.Time
}

// Issue signs a new token for userID that the caller should store with
// Expiry = now + ttl. Every call yields a distinct token.
func (s *TokenService) Issue(userID int64, ttl time.Duration) (IssuedToken, error) {
	now := s.now().UTC().Truncate(time.Second)
	id := uuid.NewString()
	expiry := now.Add(ttl)

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("auth: signing token: %w", err)
	}
	return IssuedToken{Token: signed, TokenID: id, Expiry: expiry}, nil
}

// Parse checks the signature and returns the token id.
//
// Only HS256 is accepted; passing jwt.WithValidMethods stops a token that
// claims "alg":"none" from skipping the signature check.
func (s *TokenService) Parse(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || c.ID == "" || c.Issuer != issuer {
		return "", ErrMalformedToken
	}
	return c.ID, nil
}
