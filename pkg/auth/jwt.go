package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrEmptySecret = errors.New("token secret is empty")

// TokenIssuer mints HS256 tokens shaped like the auth provider's access tokens. It backs demo
// mode, where there is no provider to issue sessions.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token carrying sub and email.
func (i *TokenIssuer) Issue(subject, email string) (string, error) {
	now := i.now()
	claims := jwt.MapClaims{
		ClaimSubject: subject,
		ClaimEmail:   email,
		"role":       "authenticated",
		"iat":        now.Unix(),
		"exp":        now.Add(i.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
