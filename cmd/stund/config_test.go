package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stund.toml")
	doc := `
listen = "127.0.0.1:3478"
fingerprint = true

[users]
"john doe" = "1234"
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Listen != "127.0.0.1:3478" {
		t.Errorf("got Listen %q, want 127.0.0.1:3478", cfg.Listen)
	}
	if !cfg.Fingerprint {
		t.Error("expected Fingerprint to be true")
	}
	if cfg.Software != "netreap/stund" {
		t.Errorf("got Software %q, want the default to survive an unset field", cfg.Software)
	}
	if cfg.Users["john doe"] != "1234" {
		t.Errorf("got password %q for john doe, want 1234", cfg.Users["john doe"])
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}
