package auth

import (
	"errors"
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("super-secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	if err := CheckPassword(hash, "super-secret"); err != nil {
		t.Fatalf("expected password to match, got %v", err)
	}

	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	secret := "test-secret"
	claims := Claims{UserID: "u1", TenantID: "t1", RoleID: "r1", RoleName: RoleHR, SessionID: "s1", EmployeeID: "e1"}

	token, err := GenerateToken(secret, claims, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	parsed, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	user := parsed.User()
	if user.UserID != "u1" || user.TenantID != "t1" || user.RoleID != "r1" || user.RoleName != RoleHR || user.SessionID != "s1" || user.EmployeeID != "e1" {
		t.Fatalf("claims mismatch: %+v", user)
	}
	if !user.IsHR() {
		t.Fatal("expected HR user")
	}
}

func TestParseTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	token, err := GenerateToken("one", Claims{UserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("two", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	expired, err := GenerateToken("one", Claims{UserID: "u1"}, -time.Minute)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("one", expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestHashTokenStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Fatal("expected stable hash")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Fatal("expected different hashes")
	}
	id1, err := NewSessionID()
	if err != nil {
		t.Fatalf("session id: %v", err)
	}
	id2, _ := NewSessionID()
	if id1 == id2 || len(id1) < 40 {
		t.Fatalf("unexpected session ids %q %q", id1, id2)
	}
}
