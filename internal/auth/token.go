// token.go implements the verification token service: short-lived HS256 JWTs
// that bind a member id to their quicklook id. Tokens are stateless and never
// persisted; every issuance path (intake, reminders) signs a fresh one.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerificationClaims represents the member verification JWT claims structure
type VerificationClaims struct {
	MemberID    string `json:"memberId"`
	QuicklookID string `json:"qlid"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies member verification tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given signing secret and token
// lifetime. The default lifetime is 7 days.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed verification token for a member.
func (s *TokenService) Issue(memberID, quicklookID string) (string, error) {
	now := time.Now()
	claims := &VerificationClaims{
		MemberID:    memberID,
		QuicklookID: quicklookID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    sessionIssuer,
			Subject:   memberID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses and validates a verification token, returning its claims.
// Expired or tampered tokens return an error; the caller maps that to an
// "invalid token" response without distinguishing the two cases.
func (s *TokenService) Verify(tokenString string) (*VerificationClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &VerificationClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*VerificationClaims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}

	return claims, nil
}
