// Package auth issues and verifies the HMAC-signed bearer tokens used for
// API sessions and workspace invites.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Claims is the payload of an access token for an authenticated principal.
type Claims struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
	JTI  string `json:"jti"`
	Exp  int64  `json:"exp"`
}

// InviteClaims is the payload of a workspace invite token. The role is the
// role granted on redemption.
type InviteClaims struct {
	Sub         string `json:"sub"`
	WorkspaceID string `json:"workspaceId"`
	Role        string `json:"role"`
	Exp         int64  `json:"exp"`
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

func IssueToken(secret []byte, claims Claims) (string, error) {
	return issue(secret, claims)
}

func ParseToken(secret []byte, token string) (Claims, error) {
	var claims Claims
	if err := parse(secret, token, &claims); err != nil {
		return Claims{}, err
	}
	if claims.Sub == "" || claims.JTI == "" || claims.Exp == 0 {
		return Claims{}, ErrInvalidToken
	}
	if time.Now().Unix() >= claims.Exp {
		return Claims{}, ErrExpiredToken
	}
	return claims, nil
}

func IssueInviteToken(secret []byte, claims InviteClaims) (string, error) {
	return issue(secret, claims)
}

// ParseInviteToken verifies signature and expiry before the caller touches
// any state. A lapsed token reports ErrExpiredToken, not ErrInvalidToken, so
// redemption can surface the distinction.
func ParseInviteToken(secret []byte, token string) (InviteClaims, error) {
	var claims InviteClaims
	if err := parse(secret, token, &claims); err != nil {
		return InviteClaims{}, err
	}
	if claims.Sub == "" || claims.WorkspaceID == "" || claims.Exp == 0 {
		return InviteClaims{}, ErrInvalidToken
	}
	if time.Now().Unix() >= claims.Exp {
		return InviteClaims{}, ErrExpiredToken
	}
	return claims, nil
}

func issue(secret []byte, claims any) (string, error) {
	payloadBytes, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(payloadBytes)
	return payload + "." + sign(secret, payload), nil
}

func parse(secret []byte, token string, target any) error {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return ErrInvalidToken
	}
	payload := parts[0]
	signature := parts[1]

	expected := sign(secret, payload)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidToken
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return ErrInvalidToken
	}
	if err := json.Unmarshal(decoded, target); err != nil {
		return ErrInvalidToken
	}
	return nil
}

func sign(secret []byte, payload string) string {
	sum := hmac.New(sha256.New, secret)
	_, _ = sum.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(sum.Sum(nil))
}

// HashToken derives the server-side lookup key for a token so the raw token
// is never stored.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}
