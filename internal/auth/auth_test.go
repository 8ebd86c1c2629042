package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakePrompter struct {
	answer string
	err    error
	asked  int
}

var _ Prompter = (*fakePrompter)(nil)

func (f *fakePrompter) ReadPassword(string) (string, error) {
	f.asked++
	return f.answer, f.err
}

func TestPassword_ConfiguredWins(t *testing.T) {
	t.Setenv("SLIPSOMAT_PASSWORD", "from-env")
	p := &fakePrompter{answer: "typed"}

	pw, err := Password("from-config", p)
	if err != nil {
		t.Fatalf("Password(): unexpected error: %v", err)
	}
	if pw != "from-config" {
		t.Errorf("Password(): got %q, want %q", pw, "from-config")
	}
	if p.asked != 0 {
		t.Error("Password(): prompted although a password was configured")
	}
}

func TestPassword_EnvPriority(t *testing.T) {
	t.Setenv("SLIPSOMAT_PASSWORD", "primary")
	t.Setenv("ALMA_PASSWORD", "secondary")

	pw, err := Password("", nil)
	if err != nil {
		t.Fatalf("Password(): unexpected error: %v", err)
	}
	if pw != "primary" {
		t.Errorf("Password(): SLIPSOMAT_PASSWORD should take priority, got %q", pw)
	}
}

func TestPassword_EnvFallback(t *testing.T) {
	t.Setenv("SLIPSOMAT_PASSWORD", "")
	t.Setenv("ALMA_PASSWORD", "secondary")

	pw, err := Password("", nil)
	if err != nil {
		t.Fatalf("Password(): unexpected error: %v", err)
	}
	if pw != "secondary" {
		t.Errorf("Password(): got %q, want %q", pw, "secondary")
	}
}

func TestPassword_Prompted(t *testing.T) {
	t.Setenv("SLIPSOMAT_PASSWORD", "")
	t.Setenv("ALMA_PASSWORD", "")
	p := &fakePrompter{answer: "typed"}

	pw, err := Password("", p)
	if err != nil {
		t.Fatalf("Password(): unexpected error: %v", err)
	}
	if pw != "typed" || p.asked != 1 {
		t.Errorf("Password(): got %q after %d prompts", pw, p.asked)
	}
}

func TestPassword_NoSource(t *testing.T) {
	t.Setenv("SLIPSOMAT_PASSWORD", "")
	t.Setenv("ALMA_PASSWORD", "")

	_, err := Password("", nil)
	if !errors.Is(err, ErrNoPassword) {
		t.Fatalf("Password(): got %v, want ErrNoPassword", err)
	}
}

func TestPassword_EmptyAnswer(t *testing.T) {
	t.Setenv("SLIPSOMAT_PASSWORD", "")
	t.Setenv("ALMA_PASSWORD", "")

	_, err := Password("", &fakePrompter{})
	if !errors.Is(err, ErrNoPassword) {
		t.Fatalf("Password(): got %v, want ErrNoPassword", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("SLIPSOMAT_PASSWORD", "")
	os.Unsetenv("SLIPSOMAT_PASSWORD")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SLIPSOMAT_PASSWORD=from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv(): unexpected error: %v", err)
	}
	if pw, ok := PasswordFromEnv(); !ok || pw != "from-dotenv" {
		t.Errorf("PasswordFromEnv(): got %q, %v", pw, ok)
	}
}

func TestLoadDotEnv_ExistingEnvWins(t *testing.T) {
	t.Setenv("SLIPSOMAT_PASSWORD", "already-set")
	path := filepath.Join(t.TempDir(), ".env")
	_ = os.WriteFile(path, []byte("SLIPSOMAT_PASSWORD=from-dotenv\n"), 0600)

	if err := LoadDotEnv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("SLIPSOMAT_PASSWORD"); got != "already-set" {
		t.Errorf("got %q, want existing value kept", got)
	}
}

func TestLoadDotEnv_Missing(t *testing.T) {
	t.Parallel()
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("LoadDotEnv(): unexpected error for missing file: %v", err)
	}
}
