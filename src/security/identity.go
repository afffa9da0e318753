package security

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityService validates the bearer tokens minted by the upstream
// authentication layer. The token's subject is the user's email, which
// this backend treats as an opaque, already-authenticated identity; no
// credential validation happens here.
type IdentityService struct {
	Secret string
}

func NewIdentityService(secret string) *IdentityService {
	return &IdentityService{Secret: secret}
}

// ValidateToken checks the HS256 signature and expiry and returns the
// email carried in the 'sub' claim.
func (s *IdentityService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.Secret), nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		sub, ok := claims["sub"].(string)
		if !ok || strings.TrimSpace(sub) == "" {
			return "", errors.New("invalid token: 'sub' claim missing or not a string")
		}
		return sub, nil
	}

	return "", errors.New("invalid token")
}

// GenerateToken mints a token for an email. Used by tooling and tests;
// production tokens come from the upstream auth service.
func (s *IdentityService) GenerateToken(email string, expiry time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": email,
		"exp": time.Now().Add(expiry).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.Secret))
}
