package envutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnvExistingVarsWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "FROM_FILE=file\nALREADY_SET=file\n# comment\nbroken line\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ALREADY_SET", "env")
	os.Unsetenv("FROM_FILE")
	t.Cleanup(func() { os.Unsetenv("FROM_FILE") })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("FROM_FILE"); got != "file" {
		t.Fatalf("FROM_FILE = %q, want %q", got, "file")
	}
	if got := os.Getenv("ALREADY_SET"); got != "env" {
		t.Fatalf("ALREADY_SET = %q, want %q", got, "env")
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("missing file should not error, got %v", err)
	}
}

func TestWriteDotEnvRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := WriteDotEnv(path, map[string]string{"A": "1"}, false); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteDotEnv(path, map[string]string{"A": "2"}, false); err == nil {
		t.Fatal("expected error writing over existing file")
	}
	if err := WriteDotEnv(path, map[string]string{"A": "2"}, true); err != nil {
		t.Fatalf("overwrite with force: %v", err)
	}
}

func TestOrDefault(t *testing.T) {
	t.Setenv("SOME_VALUE", "  set  ")
	if got := OrDefault("SOME_VALUE", "fallback"); got != "set" {
		t.Fatalf("OrDefault = %q, want %q", got, "set")
	}
	if got := OrDefault("SOME_OTHER_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("OrDefault = %q, want %q", got, "fallback")
	}
}
