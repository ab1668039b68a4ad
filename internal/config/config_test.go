package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerURL != "http://localhost:8080" {
		t.Fatalf("unexpected server url %q", cfg.ServerURL)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.RequestTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VIBE_SERVER_URL", "https://videos.example.com")
	t.Setenv("VIBE_REQUEST_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerURL != "https://videos.example.com" {
		t.Fatalf("override not applied: %q", cfg.ServerURL)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("override not applied: %s", cfg.RequestTimeout)
	}
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	t.Setenv("VIBE_REQUEST_TIMEOUT", "-1s")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative timeout")
	}
}
