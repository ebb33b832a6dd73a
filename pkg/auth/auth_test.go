package auth

import (
	"testing"
	"time"
)

func TestCreateAndVerifyToken(t *testing.T) {
	tokens := NewTokens("test-secret")
	signed, err := tokens.CreateToken("dispatcher-7", "eoc-north", time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	claims, err := tokens.VerifyToken(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Actor != "dispatcher-7" || claims.Console != "eoc-north" {
		t.Errorf("Expected actor dispatcher-7 at eoc-north, got %+v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	tokens := NewTokens("test-secret")
	other := NewTokens("other-secret")
	signed, _ := other.CreateToken("dispatcher-7", "", time.Hour)
	if _, err := tokens.VerifyToken(signed); err == nil {
		t.Error("Expected token signed with another secret to be rejected")
	}

	tokens.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	expired, _ := tokens.CreateToken("dispatcher-7", "", time.Hour)
	tokens.now = time.Now
	if _, err := tokens.VerifyToken(expired); err == nil {
		t.Error("Expected expired token to be rejected")
	}
	if _, err := tokens.VerifyToken("not-a-token"); err == nil {
		t.Error("Expected garbage to be rejected")
	}
}

func TestDisabledTokens(t *testing.T) {
	tokens := NewTokens("")
	if tokens.Enabled() {
		t.Error("Expected tokens without a secret to be disabled")
	}
	if _, err := tokens.CreateToken("ops", "", 0); err != ErrNoSecret {
		t.Errorf("Expected ErrNoSecret, got %v", err)
	}
	if _, err := NewTokens("s").CreateToken("  ", "", 0); err == nil {
		t.Error("Expected empty actor to be rejected")
	}
}
