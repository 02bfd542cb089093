// Package auth holds the access credential the coordinator acts under.
// The credential is only ever read: no validation, no refresh flow. The
// user identifier is decoded straight from the JWT payload.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

var (
	ErrMissingToken   = errors.New("missing access token")
	ErrMalformedToken = errors.New("malformed access token")
)

type Credentials struct {
	source oauth2.TokenSource
}

// NewCredentials wraps an oauth2 token source.
func NewCredentials(source oauth2.TokenSource) *Credentials {
	return &Credentials{source: source}
}

// StaticCredentials wraps a fixed bearer token.
func StaticCredentials(token string) *Credentials {
	return NewCredentials(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
}

// Token returns the current bearer token.
func (c *Credentials) Token() (string, error) {
	if c == nil || c.source == nil {
		return "", ErrMissingToken
	}
	tok, err := c.source.Token()
	if err != nil {
		return "", fmt.Errorf("read token source: %w", err)
	}
	if tok == nil || tok.AccessToken == "" {
		return "", ErrMissingToken
	}
	return tok.AccessToken, nil
}

// UserID extracts the user identifier from the JWT payload. The signature
// is not checked: this client trusts the token it was handed and only
// needs the subject to derive its notification topics.
func (c *Credentials) UserID() (string, error) {
	raw, err := c.Token()
	if err != nil {
		return "", err
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return "", ErrMalformedToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	var claims struct {
		Sub    string `json:"sub"`
		UserID string `json:"userId"`
		UUID   string `json:"uuid"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	for _, id := range []string{claims.Sub, claims.UserID, claims.UUID} {
		if id != "" {
			return id, nil
		}
	}
	return "", ErrMalformedToken
}
