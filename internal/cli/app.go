package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/scriptotek/slipsomat/internal/alma"
	"github.com/scriptotek/slipsomat/internal/auth"
	"github.com/scriptotek/slipsomat/internal/config"
	"github.com/scriptotek/slipsomat/internal/conflict"
	"github.com/scriptotek/slipsomat/internal/localstore"
	"github.com/scriptotek/slipsomat/internal/logging"
	"github.com/scriptotek/slipsomat/internal/reconcile"
	"github.com/scriptotek/slipsomat/internal/remote"
	"github.com/scriptotek/slipsomat/internal/status"
	"github.com/scriptotek/slipsomat/internal/vcs"
)

const dotEnvFile = ".env"

// renderer renders a test XML file in one language and returns the
// screenshot path.
type renderer interface {
	Run(ctx context.Context, xmlFile, lang string) (string, error)
}

// listingCache is a remote that keeps its listing between calls.
type listingCache interface {
	Invalidate()
}

// app is the state shared by every command of one process: the working
// copy, the ledger and, once needed, the browser session.
type app struct {
	cfg    *config.Config
	opts   *rootOptions
	fs     afero.Fs
	ledger *status.File
	local  *localstore.Store
	in     io.Reader
	out    io.Writer
	log    *slog.Logger

	// terminal is shared by every operation so buffered input carries over.
	terminal *conflict.Terminal

	// Set lazily by connect, or directly in tests.
	src     remote.Source
	render  renderer
	session *alma.Session
	table   *alma.TemplateTable
}

// newApp loads the config and the ledger from the current directory.
func newApp(opts *rootOptions, in io.Reader, out io.Writer) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := auth.LoadDotEnv(dotEnvFile); err != nil {
		return nil, err
	}
	return openApp(cfg, opts, afero.NewOsFs(), in, out)
}

// openApp wires an app around fs.
func openApp(cfg *config.Config, opts *rootOptions, fs afero.Fs, in io.Reader, out io.Writer) (*app, error) {
	ledger, err := status.Load(fs, cfg.Paths.StatusFile)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:    cfg,
		opts:   opts,
		fs:     fs,
		ledger: ledger,
		local:  localstore.New(fs, ledger),
		in:     in,
		out:    out,
		log:    logging.Component("cli"),
	}, nil
}

// connect starts the browser session unless one is already running.
func (a *app) connect(ctx context.Context) error {
	if a.src != nil {
		return nil
	}

	password, err := auth.Password(a.cfg.Login.Password, auth.TerminalPrompter())
	if err != nil {
		return err
	}

	login := a.cfg.Login
	browser := a.cfg.Browser
	almaLog := logging.Component("alma")
	session := alma.NewSession(alma.Config{
		Instance:     login.Instance,
		Institution:  login.Institution,
		AuthType:     login.AuthType,
		Domain:       login.Domain,
		Username:     login.Username,
		Password:     password,
		Headless:     browser.Headless,
		ExecPath:     browser.ExecPath,
		Timeout:      browser.Timeout(),
		WindowWidth:  browser.WindowWidth,
		WindowHeight: browser.WindowHeight,
	}, almaLog)

	fmt.Fprintf(a.out, "Connecting to %s as %s\n", session.BaseURL(), login.Username)
	if err := session.Connect(ctx); err != nil {
		return err
	}

	a.session = session
	a.table = alma.NewTemplateTable(session, almaLog)
	a.src = a.table
	a.render = alma.NewTestPage(session, a.fs, a.cfg.Screenshot.Dir, a.cfg.Screenshot.Width, almaLog)
	return nil
}

// begin connects and drops any listing read by an earlier operation, so
// each pull, defaults or push sees the current remote stamps.
func (a *app) begin(ctx context.Context) error {
	if err := a.connect(ctx); err != nil {
		return err
	}
	if c, ok := a.src.(listingCache); ok {
		c.Invalidate()
	}
	return nil
}

// restart logs in again in a fresh browser.
func (a *app) restart(ctx context.Context) error {
	if a.session == nil {
		return a.connect(ctx)
	}
	a.table.Invalidate()
	return a.session.Restart(ctx)
}

func (a *app) close() {
	if a.session != nil {
		a.session.Close()
	}
}

// deps assembles the reconciler dependencies for one operation.
func (a *app) deps(progress func(reconcile.Result)) reconcile.Deps {
	resolver, confirmer := a.prompts()
	retry := remote.DefaultRetry
	retry.Logger = logging.Component("remote")
	return reconcile.Deps{
		Ledger:     a.ledger,
		Local:      a.local,
		Remote:     a.src,
		Resolver:   resolver,
		Confirm:    &listConfirmer{out: a.out, next: confirmer},
		Retry:      retry,
		DateFormat: a.cfg.Remote.DateFormat,
		Logger:     logging.Component("reconcile"),
		Progress:   progress,
	}
}

// prompts returns the conflict resolver and batch confirmer for the
// --conflict and --yes flags.
func (a *app) prompts() (conflict.Resolver, conflict.Confirmer) {
	var resolver conflict.Resolver = conflict.Static{Decision: conflict.Reject}
	var confirmer conflict.Confirmer = conflict.Static{Approve: a.opts.yes}
	if a.opts.conflict == conflictAsk {
		if a.terminal == nil {
			a.terminal = conflict.NewTerminal(a.in, a.out)
		}
		t := a.terminal
		resolver = t
		if !a.opts.yes {
			confirmer = t
		}
	}
	return resolver, confirmer
}

// commit records written files in git when autocommit is on. A working copy
// outside a repository only gets a warning.
func (a *app) commit(paths []string, message string) error {
	if !a.cfg.Git.AutoCommit || len(paths) == 0 {
		return nil
	}
	c, err := vcs.Open(".", a.cfg.Git.AuthorName, a.cfg.Git.AuthorEmail)
	if err != nil {
		if errors.Is(err, vcs.ErrNotRepository) {
			a.log.Warn("autocommit is on but the working copy is not a git repository")
			return nil
		}
		return err
	}
	hash, ok, err := c.Commit(append(paths, a.cfg.Paths.StatusFile), message)
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	if ok {
		fmt.Fprintf(a.out, "Committed %s: %s\n", hash.String()[:7], message)
	}
	return nil
}

// withApp runs fn with an app for a one-shot command.
func withApp(opts *rootOptions, fn func(a *app) error) error {
	a, err := newApp(opts, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

// listConfirmer prints the count header before handing the list on.
type listConfirmer struct {
	out  io.Writer
	next conflict.Confirmer
}

var _ conflict.Confirmer = (*listConfirmer)(nil)

func (c *listConfirmer) Confirm(ctx context.Context, question string, items []string) (bool, error) {
	fmt.Fprintf(c.out, "The following %d file(s) contain local modifications.\n", len(items))
	return c.next.Confirm(ctx, question, items)
}
