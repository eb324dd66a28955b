package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidToken = goerr.New("invalid token")

type Claims struct {
	UserID     string `json:"uid"`
	TenantID   string `json:"tid"`
	RoleID     string `json:"rid"`
	RoleName   string `json:"role"`
	SessionID  string `json:"sid"`
	EmployeeID string `json:"eid,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) User() UserContext {
	return UserContext{
		UserID:     c.UserID,
		TenantID:   c.TenantID,
		RoleID:     c.RoleID,
		RoleName:   c.RoleName,
		SessionID:  c.SessionID,
		EmployeeID: c.EmployeeID,
	}
}

func GenerateToken(secret string, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", goerr.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, goerr.New("unexpected signing method", goerr.V("alg", token.Method.Alg()))
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidToken, err.Error())
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashToken is how session identifiers are stored at rest.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewSessionID returns a random URL-safe identifier.
func NewSessionID() (string, error) {
	buff := make([]byte, 32)
	if _, err := rand.Read(buff); err != nil {
		return "", goerr.Wrap(err, "failed to generate session id")
	}
	return base64.RawURLEncoding.EncodeToString(buff), nil
}
