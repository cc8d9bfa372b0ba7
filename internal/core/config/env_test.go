package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvEngine:       "streaming",
		EnvTier:         "medium",
		EnvPort:         "9090",
		EnvAPIKey:       "secret",
		EnvOpenAIAPIKey: "sk-test",
	}
	cfg := DefaultConfig()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Transcribe.Engine != "streaming" || cfg.Transcribe.Tier != "medium" {
		t.Errorf("engine/tier = %q/%q", cfg.Transcribe.Engine, cfg.Transcribe.Tier)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.APIKey != "secret" {
		t.Errorf("api key = %q", cfg.Server.APIKey)
	}
	if cfg.Transcribe.OpenAI.APIKey != "sk-test" {
		t.Errorf("openai key = %q", cfg.Transcribe.OpenAI.APIKey)
	}
}

func TestApplyEnvKeepsConfigured(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transcribe.OpenAI.APIKey = "from-file"
	port := cfg.Server.Port
	cfg.ApplyEnv(func(k string) string {
		switch k {
		case EnvOpenAIAPIKey:
			return "from-env"
		case EnvPort:
			return "not-a-port"
		}
		return ""
	})
	if cfg.Transcribe.OpenAI.APIKey != "from-file" {
		t.Errorf("openai key = %q, want from-file", cfg.Transcribe.OpenAI.APIKey)
	}
	if cfg.Server.Port != port {
		t.Errorf("port = %d, want %d", cfg.Server.Port, port)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TEXTUBE_TEST_DOTENV=loaded\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEXTUBE_TEST_DOTENV", "")
	os.Unsetenv("TEXTUBE_TEST_DOTENV")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("TEXTUBE_TEST_DOTENV"); got != "loaded" {
		t.Errorf("TEXTUBE_TEST_DOTENV = %q, want loaded", got)
	}
}
