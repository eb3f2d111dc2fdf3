package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:  "user-1",
		Name: "Avery",
		JTI:  "jti-1",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	claims, err := ParseToken(secret, issued)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Sub != "user-1" || claims.Name != "Avery" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:  "user-1",
		Name: "Avery",
		JTI:  "jti-1",
		Exp:  time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	_, err = ParseToken(secret, issued)
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("ParseToken() error = %v, want ErrExpiredToken", err)
	}
}

func TestIssueAndParseInviteToken(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueInviteToken(secret, InviteClaims{
		Sub:         "user-2",
		WorkspaceID: "ws-1",
		Role:        "member",
		Exp:         time.Now().Add(7 * 24 * time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueInviteToken() error = %v", err)
	}
	claims, err := ParseInviteToken(secret, issued)
	if err != nil {
		t.Fatalf("ParseInviteToken() error = %v", err)
	}
	if claims.Sub != "user-2" || claims.WorkspaceID != "ws-1" || claims.Role != "member" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseInviteTokenRejectsBadSignature(t *testing.T) {
	issued, err := IssueInviteToken([]byte("secret"), InviteClaims{
		Sub:         "user-2",
		WorkspaceID: "ws-1",
		Role:        "member",
		Exp:         time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueInviteToken() error = %v", err)
	}
	_, err = ParseInviteToken([]byte("other-secret"), issued)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ParseInviteToken() error = %v, want ErrInvalidToken", err)
	}
}

func TestParseInviteTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueInviteToken(secret, InviteClaims{
		Sub:         "user-2",
		WorkspaceID: "ws-1",
		Role:        "member",
		Exp:         time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueInviteToken() error = %v", err)
	}
	_, err = ParseInviteToken(secret, issued)
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("ParseInviteToken() error = %v, want ErrExpiredToken", err)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	if _, err := ParseToken([]byte("secret"), "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ParseToken() error = %v, want ErrInvalidToken", err)
	}
	if _, err := ParseToken([]byte("secret"), strings.Repeat("a", 40)+"."+strings.Repeat("b", 40)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ParseToken() error = %v, want ErrInvalidToken", err)
	}
}
