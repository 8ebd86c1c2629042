package auth

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/term"
)

// passwordEnvVars lists the environment variables checked for the Alma
// password, in priority order.
var passwordEnvVars = []string{
	"SLIPSOMAT_PASSWORD",
	"ALMA_PASSWORD",
}

// ErrNoPassword is returned when no password is configured and none can be
// asked for.
var ErrNoPassword = errors.New("no password configured")

// Prompter reads a secret from the operator.
type Prompter interface {
	ReadPassword(prompt string) (string, error)
}

// LoadDotEnv loads variables from a .env file. Variables already set in the
// environment win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// PasswordFromEnv returns the password from the environment.
// It checks SLIPSOMAT_PASSWORD first, then ALMA_PASSWORD.
func PasswordFromEnv() (string, bool) {
	for _, env := range passwordEnvVars {
		if v := os.Getenv(env); v != "" {
			return v, true
		}
	}
	return "", false
}

// Password resolves the password: the configured value, then the
// environment, then the prompter. prompter may be nil.
func Password(configured string, prompter Prompter) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if v, ok := PasswordFromEnv(); ok {
		return v, nil
	}
	if prompter == nil {
		return "", fmt.Errorf(
			"%w: set login.password, %s or %s",
			ErrNoPassword, passwordEnvVars[0], passwordEnvVars[1],
		)
	}
	pw, err := prompter.ReadPassword("Password: ")
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if pw == "" {
		return "", ErrNoPassword
	}
	return pw, nil
}

// Terminal prompts on a terminal without echo.
type Terminal struct {
	In  *os.File
	Out io.Writer
}

var _ Prompter = Terminal{}

// TerminalPrompter returns a prompter for stdin, or nil if stdin is not a
// terminal.
func TerminalPrompter() Prompter {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	return Terminal{In: os.Stdin, Out: os.Stderr}
}

func (t Terminal) ReadPassword(prompt string) (string, error) {
	fmt.Fprint(t.Out, prompt)
	b, err := term.ReadPassword(int(t.In.Fd()))
	fmt.Fprintln(t.Out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
