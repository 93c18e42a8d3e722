package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesTypedFields(t *testing.T) {
	path := writeConfig(t, `
server:
  address: 127.0.0.1
  port: 9090
  max_body_size: 2MB
storage:
  db_path: /tmp/deck
assistant:
  model: gemini-custom
  timeout: 15s
  max_messages: 6
retention:
  enabled: true
  period: 30d
telemetry:
  slow_threshold: 750ms
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("addr wrong: %s", cfg.Addr())
	}
	if int64(cfg.Server.MaxBodySize) != 2_000_000 {
		t.Fatalf("size parse wrong: %d", cfg.Server.MaxBodySize)
	}
	if time.Duration(cfg.Assistant.Timeout) != 15*time.Second {
		t.Fatalf("duration parse wrong: %v", cfg.Assistant.Timeout)
	}
	if time.Duration(cfg.Telemetry.SlowThreshold) != 750*time.Millisecond {
		t.Fatalf("slow threshold wrong: %v", cfg.Telemetry.SlowThreshold)
	}
	if cfg.Assistant.MaxMessages != 6 || cfg.Assistant.Model != "gemini-custom" {
		t.Fatalf("assistant fields wrong: %+v", cfg.Assistant)
	}
}

func TestApplyDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	if c.Assistant.Model != "gemini-2.0-flash" {
		t.Fatalf("default model wrong: %s", c.Assistant.Model)
	}
	if c.Assistant.MaxMessages != 12 || c.Assistant.MaxContextChars != 5000 {
		t.Fatalf("context bounds wrong: %+v", c.Assistant)
	}
	if !c.Assistant.AssistantEnabled() {
		t.Fatalf("assistant must default enabled")
	}
	if c.Retention.BatchSize != 500 {
		t.Fatalf("retention batch default wrong: %d", c.Retention.BatchSize)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PILOTDECK_ADDR", "0.0.0.0:7000")
	t.Setenv("PILOTDECK_BACKEND_KEYS", "bk1, bk2 ,")
	t.Setenv("PILOTDECK_ASSISTANT_ENABLED", "false")
	t.Setenv("GEMINI_API_KEY", "secret-key")

	var c Config
	if !LoadEnvOverrides(&c) {
		t.Fatalf("env overrides not detected")
	}
	if c.Server.Address != "0.0.0.0:7000" {
		t.Fatalf("addr override wrong: %s", c.Server.Address)
	}
	if len(c.Security.APIKeys.Backend) != 2 || c.Security.APIKeys.Backend[1] != "bk2" {
		t.Fatalf("key splitting wrong: %+v", c.Security.APIKeys.Backend)
	}
	if c.Assistant.AssistantEnabled() {
		t.Fatalf("assistant enabled override ignored")
	}
	if c.Assistant.APIKey != "secret-key" {
		t.Fatalf("credential not picked up from environment")
	}
}

func TestLoadEffectivePrecedence(t *testing.T) {
	path := writeConfig(t, `
server:
  address: 127.0.0.1
  port: 9090
storage:
  db_path: /tmp/from-file
`)
	t.Setenv("PILOTDECK_CONFIG", "")
	t.Setenv("PILOTDECK_ADDR", "")
	t.Setenv("PILOTDECK_DB_PATH", "")

	flags := Flags{Addr: ":8080", DB: "./.database", Config: path, Set: map[string]bool{"config": true}}
	eff, err := LoadEffective(flags)
	if err != nil {
		t.Fatalf("load effective: %v", err)
	}
	if eff.Addr != "127.0.0.1:9090" {
		t.Fatalf("file addr should win without flags, got %s", eff.Addr)
	}
	if eff.DBPath != "/tmp/from-file" {
		t.Fatalf("file db path should win, got %s", eff.DBPath)
	}

	// explicit flag wins over file
	flags = Flags{Addr: ":7777", DB: "/tmp/flagdb", Config: path, Set: map[string]bool{"config": true, "addr": true, "db": true}}
	eff, err = LoadEffective(flags)
	if err != nil {
		t.Fatalf("load effective with flags: %v", err)
	}
	if eff.Addr != ":7777" || eff.DBPath != "/tmp/flagdb" {
		t.Fatalf("flags should win, got %s %s", eff.Addr, eff.DBPath)
	}
}

func TestLoadEffectiveMissingFile(t *testing.T) {
	t.Setenv("PILOTDECK_CONFIG", "")
	flags := Flags{Addr: ":8080", DB: "./.database", Config: filepath.Join(t.TempDir(), "absent.yaml"), Set: map[string]bool{"config": true}}
	eff, err := LoadEffective(flags)
	if err != nil {
		t.Fatalf("missing config file must not be fatal: %v", err)
	}
	if eff.Addr != ":8080" || eff.DBPath != "./.database" {
		t.Fatalf("flag defaults expected, got %s %s", eff.Addr, eff.DBPath)
	}
	if eff.Config.Assistant.MaxMessages != 12 {
		t.Fatalf("defaults not applied: %+v", eff.Config.Assistant)
	}
}
