// Package config loads slipsomat.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const DefaultFile = "slipsomat.toml"

// ErrNotFound is returned when the config file does not exist.
var ErrNotFound = errors.New("no slipsomat.toml file found in this directory")

func init() {
	// Report field errors under their slipsomat.toml keys.
	validation.ErrorTag = "toml"
}

// Auth types.
const (
	AuthLocal = ""
	AuthSAML  = "SAML"
	AuthFeide = "Feide"
)

// Config represents the full slipsomat.toml file.
type Config struct {
	Login      LoginConfig      `toml:"login"`
	Browser    BrowserConfig    `toml:"browser"`
	Screenshot ScreenshotConfig `toml:"screenshot"`
	Paths      PathsConfig      `toml:"paths"`
	Remote     RemoteConfig     `toml:"remote"`
	Git        GitConfig        `toml:"git"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Login.Validate(); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	if err := c.Screenshot.Validate(); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if err := c.Paths.Validate(); err != nil {
		return fmt.Errorf("paths: %w", err)
	}
	if err := c.Remote.Validate(); err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	if err := c.Git.Validate(); err != nil {
		return fmt.Errorf("git: %w", err)
	}
	return nil
}

// LoginConfig holds the Alma instance and credentials.
type LoginConfig struct {
	Instance    string `toml:"instance"`
	Institution string `toml:"institution"`
	AuthType    string `toml:"auth_type"`
	Domain      string `toml:"domain"`
	Username    string `toml:"username"`
	// Password may be left empty; it is then taken from the environment
	// or asked for.
	Password string `toml:"password"`
}

// Validate validates the login configuration.
func (c *LoginConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Instance, validation.Required),
		validation.Field(&c.Institution, validation.Required),
		validation.Field(&c.Username, validation.Required.Error("no username configured")),
		validation.Field(&c.AuthType, validation.In(AuthSAML, AuthFeide)),
	)
}

// BrowserConfig controls the Chrome instance.
type BrowserConfig struct {
	Headless bool   `toml:"headless"`
	ExecPath string `toml:"exec_path"`
	// DefaultTimeout is in seconds.
	DefaultTimeout int `toml:"default_timeout"`
	WindowWidth    int `toml:"window_width"`
	WindowHeight   int `toml:"window_height"`
}

// Timeout returns the per-action timeout.
func (c *BrowserConfig) Timeout() time.Duration {
	return time.Duration(c.DefaultTimeout) * time.Second
}

// Validate validates the browser configuration.
func (c *BrowserConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultTimeout, validation.Required, validation.Min(1)),
		validation.Field(&c.WindowWidth, validation.Required, validation.Min(200)),
		validation.Field(&c.WindowHeight, validation.Required, validation.Min(200)),
	)
}

// ScreenshotConfig controls test-render screenshots.
type ScreenshotConfig struct {
	Width int    `toml:"width"`
	Dir   string `toml:"dir"`
}

// Validate validates the screenshot configuration.
func (c *ScreenshotConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Width, validation.Required, validation.Min(100)),
		validation.Field(&c.Dir, validation.Required),
	)
}

// PathsConfig locates files in the working copy.
type PathsConfig struct {
	StatusFile    string `toml:"status_file"`
	LettersPrefix string `toml:"letters_prefix"`
	TestData      string `toml:"test_data"`
	HistoryFile   string `toml:"history_file"`
}

// Validate validates the paths configuration.
func (c *PathsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.StatusFile, validation.Required),
		validation.Field(&c.LettersPrefix, validation.Required),
		validation.Field(&c.TestData, validation.Required),
	)
}

// RemoteConfig describes how Alma presents data.
type RemoteConfig struct {
	// DateFormat is the Go layout of the "updated" column.
	DateFormat string `toml:"date_format"`
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DateFormat, validation.Required, validation.By(checkLayout)),
	)
}

func checkLayout(value any) error {
	layout, _ := value.(string)
	ref := time.Date(2024, time.March, 25, 0, 0, 0, 0, time.UTC)
	parsed, err := time.Parse(layout, ref.Format(layout))
	if err != nil || !parsed.Equal(ref) {
		return errors.New("must be a Go date layout with day, month and year")
	}
	return nil
}

// GitConfig controls automatic commits after pull and push.
type GitConfig struct {
	AutoCommit  bool   `toml:"autocommit"`
	AuthorName  string `toml:"author_name"`
	AuthorEmail string `toml:"author_email"`
}

// Validate validates the git configuration.
func (c *GitConfig) Validate() error {
	if !c.AutoCommit {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.AuthorName, validation.Required),
		validation.Field(&c.AuthorEmail, validation.Required),
	)
}

// NewDefaultConfig returns a Config with default values for everything but
// the login section.
func NewDefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			DefaultTimeout: 20,
			WindowWidth:    1300,
			WindowHeight:   800,
		},
		Screenshot: ScreenshotConfig{
			Width: 1000,
			Dir:   "test-data/screenshots",
		},
		Paths: PathsConfig{
			StatusFile:    "status.json",
			LettersPrefix: "xsl/letters",
			TestData:      "test-data",
			HistoryFile:   ".slipsomat_history",
		},
		Remote: RemoteConfig{
			DateFormat: "02/01/2006",
		},
		Git: GitConfig{
			AuthorName:  "slipsomat",
			AuthorEmail: "slipsomat@localhost",
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := NewDefaultConfig()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
