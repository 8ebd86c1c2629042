package conflict

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Terminal prompts an operator on a line-oriented terminal. Any read error,
// including end of input, counts as Reject (or "no" for confirmations).
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

var (
	_ Resolver  = (*Terminal)(nil)
	_ Confirmer = (*Terminal)(nil)
)

// NewTerminal creates a Terminal reading answers from in and writing prompts to out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

var (
	banner  = color.New(color.BgRed, color.FgWhite)
	added   = color.New(color.FgGreen)
	removed = color.New(color.FgRed)
	hunk    = color.New(color.FgCyan)
)

// Resolve shows the conflict and asks until the operator accepts or rejects.
// The diff can be shown any number of times.
func (t *Terminal) Resolve(ctx context.Context, c Conflict) (Decision, error) {
	fmt.Fprintln(t.out)
	banner.Fprintf(t.out, "Conflict: %s", c.Filename)
	fmt.Fprintln(t.out)
	if c.Reason != "" {
		banner.Fprint(t.out, c.Reason)
		fmt.Fprintln(t.out)
	}

	for {
		if err := ctx.Err(); err != nil {
			return Reject, err
		}
		answer, ok := t.ask(fmt.Sprintf("Continue %s? [y]es / [N]o / [d]iff ", c.Filename))
		if !ok {
			return Reject, nil
		}
		switch answer {
		case "y", "yes":
			return Accept, nil
		case "d", "diff":
			t.printDiff(Diff(c))
		default:
			return Reject, nil
		}
	}
}

// Confirm lists items and asks a yes/no question; the default is no.
func (t *Terminal) Confirm(ctx context.Context, question string, items []string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	for _, item := range items {
		fmt.Fprintf(t.out, " - %s\n", item)
	}
	answer, ok := t.ask(question + " (y/N) ")
	if !ok {
		return false, nil
	}
	return answer == "y" || answer == "yes", nil
}

func (t *Terminal) ask(prompt string) (string, bool) {
	fmt.Fprint(t.out, prompt)
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(t.out)
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(line)), true
}

func (t *Terminal) printDiff(diff string) {
	if diff == "" {
		fmt.Fprintln(t.out, "(no textual differences)")
		return
	}
	for _, line := range strings.SplitAfter(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Fprint(t.out, line)
		case strings.HasPrefix(line, "@@"):
			hunk.Fprint(t.out, line)
		case strings.HasPrefix(line, "+"):
			added.Fprint(t.out, line)
		case strings.HasPrefix(line, "-"):
			removed.Fprint(t.out, line)
		default:
			fmt.Fprint(t.out, line)
		}
	}
}
