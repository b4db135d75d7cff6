package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != BackendSQLite {
		t.Errorf("expected sqlite backend, got %s", cfg.Backend)
	}
	if !strings.HasSuffix(cfg.DB, filepath.Join(".guardia-ai", "guardia.db")) {
		t.Errorf("unexpected default db %s", cfg.DB)
	}
	if cfg.LLM.Timeout != 60*time.Second {
		t.Errorf("expected 60s timeout, got %s", cfg.LLM.Timeout)
	}
	if cfg.WriteRetries != 3 || cfg.Facility != "GUARDIA AI" || cfg.RequireNameOnSeen {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("GUARDIA_BACKEND", "memory")
	t.Setenv("GUARDIA_LLM_MODEL", "gemini-2.0-flash")
	t.Setenv("GUARDIA_LLM_TIMEOUT", "5s")
	t.Setenv("GUARDIA_REQUIRE_NAME_ON_SEEN", "true")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(nil, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != BackendMemory || cfg.LLM.Model != "gemini-2.0-flash" {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.LLM.Timeout != 5*time.Second || !cfg.RequireNameOnSeen {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("expected OPENAI_API_KEY fallback, got %q", cfg.LLM.APIKey)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	yaml := "backend: file\ndb: /tmp/pacientes.json\nllm:\n  base_url: http://localhost:11434/v1\n"
	if err := os.WriteFile(filepath.Join(dir, "guardia.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(nil, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != BackendFile || cfg.DB != "/tmp/pacientes.json" {
		t.Errorf("file not applied: %+v", cfg)
	}
	if cfg.LLM.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("nested key not applied: %q", cfg.LLM.BaseURL)
	}
}

func TestLoad_FlagsWin(t *testing.T) {
	t.Setenv("GUARDIA_DB", "/from/env.db")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", "", "")
	flags.String("model", "", "")
	if err := flags.Parse([]string{"--db", "/from/flag.db"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(flags, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DB != "/from/flag.db" {
		t.Errorf("expected flag to win, got %s", cfg.DB)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("unset flag should not override default, got %q", cfg.LLM.Model)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"sqlite", Config{Backend: BackendSQLite, DB: "x.db"}, true},
		{"sqlite without path", Config{Backend: BackendSQLite}, false},
		{"postgres without url", Config{Backend: BackendPostgres}, false},
		{"postgres", Config{Backend: BackendPostgres, DatabaseURL: "postgres://x"}, true},
		{"memory", Config{Backend: BackendMemory}, true},
		{"unknown", Config{Backend: "redis"}, false},
		{"negative retries", Config{Backend: BackendMemory, WriteRetries: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := (&Config{Env: "production"}).Logger(&buf)
	l.Info().Msg("hola")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}

	buf.Reset()
	l = (&Config{Env: "development"}).Logger(&buf)
	l.Info().Msg("hola")
	if strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), "hola") {
		t.Errorf("expected console output, got %q", buf.String())
	}
}
