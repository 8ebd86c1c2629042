package alma

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/spf13/afero"
)

// testPagePath is the "Notification Template" configuration page.
const testPagePath = "/infra/action/pageAction.do?&xmlFileName=configuration.configure_notification_template.xml" +
	"&pageViewMode=Edit&RenewBean=true&resetPaginationContext=true&showBackButton=true"

const (
	uploadFieldSel = "#pageBeannewFormFile"
	uploadBtnSel   = "#cbuttonupload"
	runBtnSel      = "#PAGE_BUTTONS_admconfigure_notification_templaterun_xsl"
)

// selectLanguageScript picks lang in the page's language selector, if any.
const selectLanguageScript = `(function (lang) {
  var sel = Array.from(document.querySelectorAll('select')).find(function (s) { return /lang/i.test(s.id || s.name || ''); });
  if (!sel) { return false; }
  var opt = Array.from(sel.options).find(function (o) { return o.value === lang; });
  if (!opt) { return false; }
  sel.value = lang;
  sel.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
})(%q)`

// TestPage renders sample XML documents through the notification template
// page and stores screenshots of the result.
type TestPage struct {
	s     *Session
	fs    afero.Fs
	dir   string
	width int
	log   *slog.Logger
}

// NewTestPage creates a TestPage writing screenshots below dir on fs.
func NewTestPage(s *Session, fs afero.Fs, dir string, width int, log *slog.Logger) *TestPage {
	if width <= 0 {
		width = 1000
	}
	return &TestPage{s: s, fs: fs, dir: dir, width: width, log: log}
}

// ScreenshotPath returns where the rendering of xmlFile in lang is stored.
func ScreenshotPath(dir, xmlFile, lang string) string {
	base := path.Base(filepath.ToSlash(xmlFile))
	base = strings.TrimSuffix(base, path.Ext(base))
	return path.Join(dir, fmt.Sprintf("%s_%s.png", base, lang))
}

// Run uploads xmlFile, renders it in lang and returns the screenshot path.
func (p *TestPage) Run(ctx context.Context, xmlFile, lang string) (string, error) {
	abs, err := filepath.Abs(xmlFile)
	if err != nil {
		return "", err
	}

	if err := p.s.Run(ctx, "upload "+xmlFile,
		chromedp.Navigate(p.s.URL(testPagePath)),
		chromedp.WaitVisible(uploadFieldSel),
		chromedp.SetUploadFiles(uploadFieldSel, []string{abs}),
		chromedp.Click(uploadBtnSel, chromedp.NodeVisible),
		chromedp.WaitVisible(runBtnSel),
		// Clicking run right away leaves the page hanging on the spinner.
		chromedp.Sleep(time.Second),
	); err != nil {
		return "", err
	}

	var selected bool
	if err := p.s.Run(ctx, "select language", chromedp.Evaluate(fmt.Sprintf(selectLanguageScript, lang), &selected)); err != nil {
		return "", err
	}
	if !selected {
		p.log.Warn("language not available on test page, using page default", "lang", lang)
	}

	var png []byte
	if err := p.s.Run(ctx, "render "+xmlFile,
		chromedp.Click(runBtnSel, chromedp.NodeVisible),
		chromedp.WaitReady("body"),
		chromedp.Sleep(2*time.Second),
		chromedp.EmulateViewport(int64(p.width), 800),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			png, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithCaptureBeyondViewport(true).
				Do(ctx)
			return err
		}),
	); err != nil {
		return "", err
	}

	out := ScreenshotPath(p.dir, xmlFile, lang)
	if err := p.fs.MkdirAll(path.Dir(out), 0755); err != nil {
		return "", fmt.Errorf("creating screenshot directory: %w", err)
	}
	if err := afero.WriteFile(p.fs, out, png, 0644); err != nil {
		return "", fmt.Errorf("writing screenshot: %w", err)
	}
	p.log.Info("stored screenshot", "file", out)
	return out, nil
}
