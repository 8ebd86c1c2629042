package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"sort"
	"strings"

	prompt "github.com/c-bata/go-prompt"
	"github.com/spf13/cobra"

	"github.com/scriptotek/slipsomat/internal/localstore"
)

// Answers to the question asked after a remote failure.
const (
	choiceRestart = "restart"
	choiceExit    = "exit"
)

// Input the shell could not make sense of.
var (
	errUsage          = errors.New("usage")
	errUnknownCommand = errors.New("unknown command")
)

// shell is the interactive command loop. One browser session serves every
// command typed into it.
type shell struct {
	ctx      context.Context
	app      *app
	out      io.Writer
	history  *history
	commands []*cobra.Command

	// choose asks what to do after a remote failure.
	choose func() string
	quit   bool
}

// runShell connects once and reads commands until exit or Ctrl-D.
func runShell(ctx context.Context, root *cobra.Command, opts *rootOptions) error {
	return withApp(opts, func(a *app) error {
		fmt.Fprintf(a.out, "Starting slipsomat %s\n", version)
		if err := a.connect(ctx); err != nil {
			return err
		}

		hist, err := loadHistory(a.fs, a.cfg.Paths.HistoryFile)
		if err != nil {
			a.log.Warn("could not read shell history", "file", a.cfg.Paths.HistoryFile, "error", err)
			hist = &history{fs: a.fs, path: a.cfg.Paths.HistoryFile}
		}

		sh := newShell(ctx, a, hist, shellCommands(root))
		fmt.Fprintln(a.out, "Welcome to slipsomat. Type help to list commands.")
		prompt.New(sh.execute, sh.complete,
			prompt.OptionTitle("slipsomat"),
			prompt.OptionPrefix("slipsomat> "),
			prompt.OptionPrefixTextColor(prompt.Cyan),
			prompt.OptionHistory(hist.Lines()),
			prompt.OptionSetExitCheckerOnInput(sh.shouldExit),
		).Run()
		return nil
	})
}

func newShell(ctx context.Context, a *app, hist *history, commands []*cobra.Command) *shell {
	return &shell{
		ctx:      ctx,
		app:      a,
		out:      a.out,
		history:  hist,
		commands: commands,
		choose:   askRecovery,
	}
}

// shellCommands returns the subcommands available in the shell, by name.
func shellCommands(root *cobra.Command) []*cobra.Command {
	var cmds []*cobra.Command
	for _, c := range root.Commands() {
		if c.Hidden || c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		cmds = append(cmds, c)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name() < cmds[j].Name() })
	return cmds
}

func isExit(line string) bool {
	switch strings.TrimSpace(line) {
	case "exit", "quit", "EOF":
		return true
	}
	return false
}

func (s *shell) shouldExit(in string, breakline bool) bool {
	return breakline && (s.quit || isExit(in))
}

// execute runs one input line. Ctrl-C while it runs cancels the command.
func (s *shell) execute(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if err := s.history.Add(line); err != nil {
		s.app.log.Warn("could not write shell history", "error", err)
	}

	ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt)
	defer stop()

	if err := s.dispatch(ctx, line); err != nil {
		s.handleError(ctx, err)
	}
}

func (s *shell) dispatch(ctx context.Context, line string) error {
	args := strings.Fields(line)
	switch args[0] {
	case "pull":
		return s.app.pull(ctx)
	case "defaults":
		return s.app.pullDefaults(ctx)
	case "push":
		return s.app.push(ctx, args[1:])
	case "test":
		if len(args) != 2 {
			return fmt.Errorf("%w: test <pattern>[@<lang>[,<lang>...]]", errUsage)
		}
		return s.app.test(ctx, args[1])
	case "status":
		return s.app.status(false)
	case "help", "?":
		s.help(args[1:])
		return nil
	}
	if isExit(line) {
		return nil
	}
	return fmt.Errorf("%w %q, type help to list commands", errUnknownCommand, args[0])
}

// handleError reports err and, unless it is an operator mistake or failures
// that were already reported, offers to restart the browser or leave the
// shell.
func (s *shell) handleError(ctx context.Context, err error) {
	if errors.Is(err, context.Canceled) {
		yellow.Fprintln(s.out, "Interrupted")
		return
	}
	red.Fprintf(s.out, "Error: %s\n", err)
	if reported(err) {
		return
	}

	switch s.choose() {
	case choiceExit:
		s.quit = true
	default:
		fmt.Fprintln(s.out, "Restarting browser...")
		if err := s.app.restart(ctx); err != nil {
			red.Fprintf(s.out, "Error: %s\n", err)
		}
	}
}

// reported reports whether err needs nothing beyond the printed message.
func reported(err error) bool {
	return errors.Is(err, errUsage) ||
		errors.Is(err, errUnknownCommand) ||
		errors.Is(err, errNoTestFile) ||
		errors.Is(err, errFilesFailed)
}

// askRecovery asks on the terminal. An empty answer restarts.
func askRecovery() string {
	answer := prompt.Input("Now what? [restart] browser / [exit]: ", func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterHasPrefix([]prompt.Suggest{
			{Text: choiceRestart, Description: "Restart browser"},
			{Text: choiceExit, Description: "Exit"},
		}, d.GetWordBeforeCursor(), true)
	})
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "e") {
		return choiceExit
	}
	return choiceRestart
}

func (s *shell) help(topic []string) {
	if len(topic) > 0 {
		for _, c := range s.commands {
			if c.Name() == topic[0] {
				fmt.Fprintf(s.out, "\n%s\n\n%s\n\n", c.UseLine(), c.Long)
				return
			}
		}
		fmt.Fprintf(s.out, "No help on %s\n", topic[0])
		return
	}
	fmt.Fprintln(s.out, "Commands:")
	for _, c := range s.commands {
		fmt.Fprintf(s.out, "  %-10s %s\n", c.Name(), c.Short)
	}
	fmt.Fprintf(s.out, "  %-10s %s\n", "exit", "Close the browser and leave the shell")
}

// complete suggests command names, then letter files for push and test data
// files for test.
func (s *shell) complete(d prompt.Document) []prompt.Suggest {
	text := d.TextBeforeCursor()
	word := d.GetWordBeforeCursor()
	fields := strings.Fields(text)

	if len(fields) == 0 || (len(fields) == 1 && !strings.HasSuffix(text, " ")) {
		suggests := make([]prompt.Suggest, 0, len(s.commands)+1)
		for _, c := range s.commands {
			suggests = append(suggests, prompt.Suggest{Text: c.Name(), Description: c.Short})
		}
		suggests = append(suggests, prompt.Suggest{Text: "exit", Description: "Leave the shell"})
		return prompt.FilterHasPrefix(suggests, word, true)
	}

	paths := s.app.cfg.Paths
	switch fields[0] {
	case "push":
		return suggestFiles(letterFiles(s.app.local, paths.LettersPrefix), word)
	case "test":
		if strings.Contains(word, "@") {
			return nil
		}
		return suggestFiles(testDataFiles(s.app.local, paths.TestData), word)
	}
	return nil
}

// suggestFiles turns files into suggestions matching word, ignoring case.
func suggestFiles(files []string, word string) []prompt.Suggest {
	suggests := make([]prompt.Suggest, 0, len(files))
	for _, f := range files {
		suggests = append(suggests, prompt.Suggest{Text: f})
	}
	return prompt.FilterHasPrefix(suggests, word, true)
}

// letterFiles lists the XSL files under prefix, relative to it.
func letterFiles(local *localstore.Store, prefix string) []string {
	return relativeMatches(local, prefix, "**/*.xsl")
}

// relativeMatches globs pattern under dir and strips dir from the results.
func relativeMatches(local *localstore.Store, dir, pattern string) []string {
	matches, err := local.Glob(path.Join(dir, pattern))
	if err != nil {
		return nil
	}
	for i, m := range matches {
		matches[i] = strings.TrimPrefix(m, dir+"/")
	}
	return matches
}
