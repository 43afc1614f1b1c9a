package ws

import (
	"errors"
	"strings"
)

var ErrUnauthorized = errors.New("unauthorized")

// ClaimsProvider resolves the stable player id behind a HELLO token.
type ClaimsProvider interface {
	PlayerID(token string) (string, error)
}

// StaticClaims maps known tokens to player ids.
type StaticClaims map[string]string

func (c StaticClaims) PlayerID(token string) (string, error) {
	if id, ok := c[token]; ok && id != "" {
		return id, nil
	}
	return "", ErrUnauthorized
}

// DevClaims trusts the token as the player id. Local use only.
type DevClaims struct{}

func (DevClaims) PlayerID(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > 64 {
		return "", ErrUnauthorized
	}
	return token, nil
}
