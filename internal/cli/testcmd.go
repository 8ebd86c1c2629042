package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scriptotek/slipsomat/internal/localstore"
	"github.com/scriptotek/slipsomat/internal/remote"
)

// defaultTestLang is used when a test argument names no language.
const defaultTestLang = "en"

// errNoTestFile is returned when a test pattern matches nothing.
var errNoTestFile = errors.New("no such file")

func newTestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test <pattern>[@<lang>[,<lang>...]]",
		Short: "Render test XML files through the Alma notification template test page",
		Long: `Upload XML files from the test data folder (paths.test_data) to the Alma
notification template test page and store screenshots of the output.

<pattern> is a filename in the test data folder or a glob like '*.xml'.
<lang> is one or more language codes separated by comma, "en" by default:

  slipsomat test loan-receipt.xml@en,nb`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				return a.test(cmd.Context(), args[0])
			})
		},
	}
}

// parseTestArg splits "pattern@lang,lang" into its parts.
func parseTestArg(arg string) (string, []string) {
	pattern, langs, found := strings.Cut(strings.TrimSpace(arg), "@")
	if !found || strings.TrimSpace(langs) == "" {
		return pattern, []string{defaultTestLang}
	}
	var out []string
	for _, l := range strings.Split(langs, ",") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return pattern, out
}

// test resolves the argument and renders every match.
func (a *app) test(ctx context.Context, arg string) error {
	pattern, langs := parseTestArg(arg)
	files, err := a.local.Glob(path.Join(a.cfg.Paths.TestData, pattern))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: %s", errNoTestFile, path.Join(a.cfg.Paths.TestData, pattern))
	}
	if err := a.connect(ctx); err != nil {
		return err
	}
	return runTestWith(ctx, a.out, a.render, files, langs)
}

// runTestWith renders each file in each language. A broken session stops
// the run; other failures are reported and the run continues.
func runTestWith(ctx context.Context, out io.Writer, r renderer, files, langs []string) error {
	failed := 0
	for _, file := range files {
		for _, lang := range langs {
			if err := ctx.Err(); err != nil {
				return err
			}
			fmt.Fprintf(out, "- %-60s ", fmt.Sprintf("%s@%s", file, lang))
			shot, err := r.Run(ctx, file, lang)
			if err != nil {
				fmt.Fprintln(out, red.Sprintf("failed: %v", err))
				if errors.Is(err, remote.ErrSession) {
					return err
				}
				failed++
				continue
			}
			fmt.Fprintln(out, green.Sprint(shot))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d rendering(s) %w", failed, errFilesFailed)
	}
	return nil
}

// testDataFiles lists the XML files under dir, relative to it.
func testDataFiles(local *localstore.Store, dir string) []string {
	return relativeMatches(local, dir, "**/*.xml")
}
