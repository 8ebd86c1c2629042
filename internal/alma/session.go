// Package alma drives the Alma staff web interface with a headless or
// visible Chrome instance. It is the only part of slipsomat that knows
// about page structure.
package alma

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/scriptotek/slipsomat/internal/remote"
)

// Config holds what the session needs to start a browser and log in.
type Config struct {
	Instance    string
	Institution string
	AuthType    string // "Feide", "SAML" or empty for a local account
	Domain      string
	Username    string
	Password    string

	Headless     bool
	ExecPath     string
	Timeout      time.Duration
	WindowWidth  int
	WindowHeight int
}

const loginTimeout = 30 * time.Second

// Session is a logged-in browser tab. Only one page is current at a time,
// so operations are serialized.
type Session struct {
	cfg Config
	log *slog.Logger

	mu          sync.Mutex
	browser     context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewSession creates an unconnected session.
func NewSession(cfg Config, log *slog.Logger) *Session {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Session{cfg: cfg, log: log}
}

// BaseURL returns the root URL of the Alma instance.
func (s *Session) BaseURL() string {
	return fmt.Sprintf("https://%s.alma.exlibrisgroup.com", s.cfg.Instance)
}

// URL returns an absolute URL for a path on the instance.
func (s *Session) URL(path string) string {
	return s.BaseURL() + "/" + strings.TrimLeft(path, "/")
}

// LoginPath returns the login page path for the configured auth type.
// Feide logins go through the SAML entry point.
func LoginPath(cfg Config) string {
	auth := cfg.AuthType
	if strings.EqualFold(auth, "Feide") {
		auth = "SAML"
	}
	q := url.Values{}
	q.Set("institute", cfg.Institution)
	q.Set("auth", auth)
	return "/mng/login?" + q.Encode()
}

// Connect starts the browser and logs in.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

func (s *Session) connectLocked(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-gpu", s.cfg.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(s.cfg.WindowWidth, s.cfg.WindowHeight),
	)
	if s.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(s.cfg.ExecPath))
	}

	// The browser outlives any single command, so it hangs off Background.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	s.browser, s.cancelTab, s.cancelAlloc = tabCtx, cancelTab, cancelAlloc

	s.log.Info("connecting", "instance", s.cfg.Instance, "institution", s.cfg.Institution)
	if err := s.runLocked(ctx, "start browser", loginTimeout); err != nil {
		s.closeLocked()
		return err
	}

	if err := s.runLocked(ctx, "log in", loginTimeout, s.loginActions()...); err != nil {
		s.closeLocked()
		return fmt.Errorf("failed to login to Alma: %w", err)
	}
	s.log.Info("logged in", "username", s.cfg.Username)
	return nil
}

func (s *Session) loginActions() []chromedp.Action {
	actions := []chromedp.Action{chromedp.Navigate(s.URL(LoginPath(s.cfg)))}

	switch {
	case strings.EqualFold(s.cfg.AuthType, "Feide") && s.cfg.Domain != "":
		actions = append(actions,
			chromedp.Click("#org_selector-selectized", chromedp.NodeVisible),
			chromedp.Click(fmt.Sprintf(`//div[@data-value=%q]`, s.cfg.Domain), chromedp.BySearch, chromedp.NodeVisible),
			chromedp.Click("#selectorg_button", chromedp.NodeVisible),
		)
	case strings.EqualFold(s.cfg.AuthType, "SAML") && s.cfg.Domain != "":
		actions = append(actions,
			chromedp.WaitVisible("#org"),
			chromedp.SetValue("#org", s.cfg.Domain),
			chromedp.Click("#submit", chromedp.NodeVisible),
		)
	}

	return append(actions,
		chromedp.SendKeys("#username", s.cfg.Username, chromedp.NodeVisible),
		chromedp.SendKeys("#password", s.cfg.Password+kb.Enter, chromedp.NodeVisible),
		chromedp.WaitVisible(".logoAlma"),
	)
}

// Restart closes the browser and logs in again.
func (s *Session) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return s.connectLocked(ctx)
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.browser == nil {
		return
	}
	if err := chromedp.Cancel(s.browser); err != nil {
		s.log.Debug("closing browser", "error", err)
	}
	s.cancelTab()
	s.cancelAlloc()
	s.browser = nil
}

// Run executes actions with the default timeout.
func (s *Session) Run(ctx context.Context, what string, actions ...chromedp.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runLocked(ctx, what, s.cfg.Timeout, actions...)
}

func (s *Session) runLocked(ctx context.Context, what string, timeout time.Duration, actions ...chromedp.Action) error {
	if s.browser == nil {
		return fmt.Errorf("%s: %w: browser not connected", what, remote.ErrSession)
	}

	opCtx, cancel := context.WithTimeout(s.browser, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	s.log.Debug("browser action", "what", what)
	return classify(ctx, what, chromedp.Run(opCtx, actions...))
}

// classify maps a chromedp failure to the remote error taxonomy.
func classify(ctx context.Context, what string, err error) error {
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", what, ctx.Err())
	case errors.Is(err, remote.ErrTimeout), errors.Is(err, remote.ErrSession), errors.Is(err, remote.ErrNotFound):
		return fmt.Errorf("%s: %w", what, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", what, remote.ErrTimeout)
	}
	return fmt.Errorf("%s: %w: %v", what, remote.ErrSession, err)
}
