package workhourscli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExecuteUnknownCommand(t *testing.T) {
	err := Execute([]string{"bogus"})
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := Execute(nil); !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error for no args, got %v", err)
	}
}

func TestSetupWritesEnvFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")

	err := Execute([]string{"setup",
		"--admin-password", "supersecret",
		"--payroll-email", "payroll@example.com",
		"--env-file", envPath,
	})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	data, err := os.ReadFile(envPath)
	if err != nil {
		t.Fatalf("read env file: %v", err)
	}
	content := string(data)
	for _, want := range []string{
		"ADMIN_USERNAME=admin",
		"ADMIN_PASSWORD=supersecret",
		"PAYROLL_EMAIL=payroll@example.com",
		"API_ADDR=:8080",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("env file missing %q:\n%s", want, content)
		}
	}
}

func TestSetupRejectsShortPassword(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	err := Execute([]string{"setup", "--admin-password", "short", "--env-file", envPath})
	if err == nil {
		t.Fatal("expected error for short password")
	}
	if _, statErr := os.Stat(envPath); statErr == nil {
		t.Fatal("env file should not have been written")
	}
}

func TestSetupRefusesOverwrite(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte("EXISTING=1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	err := Execute([]string{"setup", "--admin-password", "supersecret", "--env-file", envPath})
	if err == nil {
		t.Fatal("expected error when env file exists without --force")
	}
}
