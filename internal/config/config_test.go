package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.HTTPAddr != ":8084" {
		t.Fatalf("unexpected default addr %s", cfg.HTTPAddr)
	}
	if cfg.ScriptURL != "" || cfg.DatabaseURL != "" {
		t.Fatalf("remotes must default to unconfigured")
	}
	if cfg.HeartbeatInterval != 5*time.Minute {
		t.Fatalf("unexpected heartbeat interval %v", cfg.HeartbeatInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCRIPT_URL", "https://script.example.com/exec")
	t.Setenv("HEARTBEAT_INTERVAL", "30s")
	t.Setenv("SESSION_TTL_SECONDS", "60")

	cfg := Load()
	if cfg.ScriptURL != "https://script.example.com/exec" {
		t.Fatalf("script url not picked up: %s", cfg.ScriptURL)
	}
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Fatalf("unexpected interval %v", cfg.HeartbeatInterval)
	}
	if cfg.SessionTTL != time.Minute {
		t.Fatalf("unexpected ttl %v", cfg.SessionTTL)
	}
}
