package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles carried in tokens.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Identity is the authenticated caller as asserted by the token.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Role   string
}

func (i Identity) IsTeacher() bool { return i.Role == RoleTeacher }
func (i Identity) IsStudent() bool { return i.Role == RoleStudent }

// Token is a signed access token.
type Token struct {
	AccessToken string
	ID          string
	ExpiresAt   time.Time
}

// Claims represents JWT payload.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Identity returns the caller described by the claims.
func (c Claims) Identity() Identity {
	return Identity{UserID: c.Subject, Email: c.Email, Name: c.Name, Role: c.Role}
}

// Issue signs an access token for id.
func Issue(id Identity, issuer, key string, ttl time.Duration) (Token, error) {
	now := time.Now()
	exp := now.Add(ttl)
	jti := uuid.NewString()

	claims := Claims{
		Email: id.Email,
		Name:  id.Name,
		Role:  id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    issuer,
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ID: jti, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.Subject == "" || (claims.Role != RoleTeacher && claims.Role != RoleStudent) {
		return Claims{}, errors.New("incomplete claims")
	}
	return *claims, nil
}
