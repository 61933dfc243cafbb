package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "debug: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Debug {
		t.Error("expected debug true")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Search.Backend != "memory" {
		t.Errorf("default backend = %q, want memory", cfg.Search.Backend)
	}
	if cfg.Search.DefaultLimit != 6 {
		t.Errorf("default limit = %d, want 6", cfg.Search.DefaultLimit)
	}
	if len(cfg.Assets.Files) == 0 {
		t.Error("expected default asset file list")
	}
	if cfg.Speech.DefaultEngine != "native" {
		t.Errorf("default engine = %q, want native", cfg.Speech.DefaultEngine)
	}
	if got := cfg.Speech.ProviderOrder; len(got) != 3 || got[0] != "azure" {
		t.Errorf("provider order = %v, want [azure gemini orpheus]", got)
	}
	if cfg.Models.Gemma.MaxRetries != 3 {
		t.Errorf("gemma max retries = %d, want 3", cfg.Models.Gemma.MaxRetries)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "speech:\n  azure:\n    key: filekey\n    region: fileregion\n")
	t.Setenv("AZURE_TTS_KEY", "envkey")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Speech.Azure.Key != "envkey" {
		t.Errorf("azure key = %q, want env value", cfg.Speech.Azure.Key)
	}
	if cfg.Speech.Azure.Region != "fileregion" {
		t.Errorf("azure region = %q, want file value", cfg.Speech.Azure.Region)
	}
}

func TestLoad_PlaceholderKeyTreatedAsUnset(t *testing.T) {
	path := writeConfig(t, "speech:\n  azure:\n    key: REPLACE_WITH_KEY\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Speech.Azure.Key != "" {
		t.Errorf("placeholder key should be cleared, got %q", cfg.Speech.Azure.Key)
	}
}

func TestLoad_EngineLockFromEnv(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv("AGENTLEE_TTS_ENGINE_LOCK", "TRUE")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Speech.EngineLock {
		t.Error("expected engine lock enabled from env")
	}
}

func TestLoad_ExpandsRelativePrefsPath(t *testing.T) {
	path := writeConfig(t, "prefs:\n  database_path: ./state/agentlee.db\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !filepath.IsAbs(cfg.Prefs.DatabasePath) {
		t.Errorf("expected absolute prefs path, got %q", cfg.Prefs.DatabasePath)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
