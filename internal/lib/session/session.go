// Package session signs and verifies the cookie-carried identity tokens.
// Admin and attendant sessions are separate scopes with separate cookies, so
// both identities can coexist in one browser without one being replayable as
// the other.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/classchain/classchain/internal/entity"
	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Scope string

const (
	ScopeAdmin     Scope = "admin"
	ScopeAttendant Scope = "attendant"
)

// Session is the verified, immutable claim set for one request.
// SubjectID is the admin id under ScopeAdmin and the attendant id under
// ScopeAttendant.
type Session struct {
	WalletAddress string
	SubjectID     int64
	Role          entity.Role
	Scope         Scope
	ExpiresAt     time.Time
}

type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

func (c *Codec) Issue(s Session, ttl time.Duration) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)
	claims := token.Claims.(jwt.MapClaims)

	claims["addr"] = s.WalletAddress
	claims["role"] = string(s.Role)
	claims["scope"] = string(s.Scope)
	claims["exp"] = time.Now().Add(ttl).Unix()
	claims["sid"] = s.SubjectID

	return token.SignedString(c.secret)
}

// Verify parses the token and checks signature, expiry and scope. Every
// failure collapses to ErrUnauthenticated so handlers can branch on one
// result instead of a taxonomy of parse errors.
func (c *Codec) Verify(tokenString string, scope Scope) (Session, error) {
	const op = "session.Verify"

	token, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Session{}, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	if sc, ok := claims["scope"].(string); !ok || Scope(sc) != scope {
		return Session{}, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	exp, ok := claims["exp"].(float64)
	if !ok || time.Unix(int64(exp), 0).Before(time.Now()) {
		return Session{}, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	addr, ok := claims["addr"].(string)
	if !ok {
		return Session{}, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	role, ok := claims["role"].(string)
	if !ok {
		return Session{}, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	s := Session{
		WalletAddress: addr,
		Role:          entity.Role(role),
		Scope:         scope,
		ExpiresAt:     time.Unix(int64(exp), 0),
	}
	if sid, ok := claims["sid"].(float64); ok {
		s.SubjectID = int64(sid)
	}

	return s, nil
}
