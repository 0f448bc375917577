package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %s, want 8080", cfg.Server.Port)
	}
	if !cfg.OCR.Enabled || cfg.OCR.Language != "eng" {
		t.Errorf("ocr defaults = %+v", cfg.OCR)
	}
	if cfg.AI.Model != "gpt-4o-mini" {
		t.Errorf("ai model = %s", cfg.AI.Model)
	}
	if cfg.Pipeline.QueueSize != 64 {
		t.Errorf("queue size = %d, want 64", cfg.Pipeline.QueueSize)
	}
}

func TestManagerLoadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `server:
  port: "9090"
ocr:
  enabled: false
  language: deu
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cm, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	cfg := cm.Get()
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %s, want 9090", cfg.Server.Port)
	}
	if cfg.OCR.Enabled {
		t.Error("ocr should be disabled")
	}
	if cfg.OCR.Language != "deu" {
		t.Errorf("language = %s, want deu", cfg.OCR.Language)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %s, want debug", cfg.LogLevel)
	}
	// Values absent from the file keep their defaults.
	if cfg.AI.Model != "gpt-4o-mini" {
		t.Errorf("ai model = %s, want default", cfg.AI.Model)
	}
}

func TestManagerMissingFileUsesDefaults(t *testing.T) {
	cm, err := NewManager(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if cm.Get().Server.Host != "127.0.0.1" {
		t.Errorf("host = %s, want default", cm.Get().Server.Host)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("PAGECAST_TEST_KEY", "sk-secret")

	cases := map[string]string{
		"${PAGECAST_TEST_KEY}":        "sk-secret",
		"prefix-${PAGECAST_TEST_KEY}": "prefix-sk-secret",
		"plain-value":                 "plain-value",
		"${PAGECAST_UNSET_VAR}":       "",
		"":                            "",
	}
	for in, want := range cases {
		if got := ResolveEnvVars(in); got != want {
			t.Errorf("ResolveEnvVars(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolvedAPIKey(t *testing.T) {
	t.Setenv("PAGECAST_TEST_OPENAI", "sk-live")
	cfg := DefaultConfig()
	cfg.AI.APIKey = "${PAGECAST_TEST_OPENAI}"
	if got := cfg.ResolvedAPIKey(); got != "sk-live" {
		t.Errorf("ResolvedAPIKey = %q", got)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# Pagecast configuration") {
		t.Error("written config missing header comment")
	}

	// The written file must round-trip through the manager.
	cm, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager on written default: %v", err)
	}
	if cm.Get().OCR.RateLimit != 150 {
		t.Errorf("rate limit = %d, want 150", cm.Get().OCR.RateLimit)
	}
}
