package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docqa.yaml")
	data := `
server:
  addr: ":8080"
provider:
  name: claude
  model: claude-sonnet-4-5-20250929
retrieval:
  keep_top_n: 8
session:
  backend: redis
  redis:
    addr: redis:6379
    ttl: 1h
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Provider.Name != "claude" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Retrieval.KeepTopN != 8 || cfg.Retrieval.SearchTopK != 3 {
		t.Fatalf("partial override should keep defaults: %+v", cfg.Retrieval)
	}
	if cfg.Session.Backend != "redis" || cfg.Session.Redis.TTL.Hours() != 1 {
		t.Fatalf("nested override not applied: %+v", cfg.Session)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("provider:\n  name: skynet\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "provider.name") {
		t.Fatalf("expected provider.name validation error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nope/docqa.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidatorAccumulates(t *testing.T) {
	v := NewValidator()
	v.RequireNonEmpty("a", "").RequirePositive("b", 0).ValidatePort("c", 70000)
	if len(v.Errors()) != 3 {
		t.Fatalf("expected 3 errors, got %d", len(v.Errors()))
	}
	if v.Error() == nil {
		t.Fatal("expected combined error")
	}
}
