package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dispatch.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestSigningSecretFromConfigFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DISPATCH_CONFIG", "")
	path := writeConfig(t, "auth:\n  jwt_secret: from-yaml\n")

	secret, err := signingSecret(path)
	if err != nil {
		t.Fatalf("Expected secret from config, got %v", err)
	}
	if secret != "from-yaml" {
		t.Errorf("Expected from-yaml, got %q", secret)
	}
}

func TestSigningSecretEnvironmentWins(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("DISPATCH_CONFIG", "")
	path := writeConfig(t, "auth:\n  jwt_secret: from-yaml\n")

	secret, err := signingSecret(path)
	if err != nil || secret != "from-env" {
		t.Errorf("Expected from-env, got %q (%v)", secret, err)
	}
}

func TestSigningSecretMissing(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DISPATCH_CONFIG", "")
	if _, err := signingSecret(""); err == nil {
		t.Error("Expected error without any secret")
	}
}
