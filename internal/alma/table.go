package alma

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/scriptotek/slipsomat/internal/letter"
	"github.com/scriptotek/slipsomat/internal/remote"
)

// Page element ids and selectors of the "Customize Letters" configuration table.
const (
	tableSel        = "#TABLE_DATA_fileList"
	filenameSel     = "#pageBeanconfigFilefilename"
	contentID       = "pageBeanfileContent"
	backButtonSel   = "#PAGE_BUTTONS_cbuttonback"
	saveButtonID    = "PAGE_BUTTONS_cbuttonsave"
	customizeBtnID  = "PAGE_BUTTONS_cbuttoncustomize"
	tableViewSel    = ".typeD table"
	configMenuXPath = `//button[@aria-label="Open Alma configuration"]`
)

func rowLinkSel(i int) string {
	return fmt.Sprintf("#SELENIUM_ID_fileList_ROW_%d_COL_cfgFilefilename a", i)
}

func rowMenuSel(i int) string {
	return fmt.Sprintf("#input_fileList_%d", i)
}

// rowActionSel selects a row action. The ids contain dots, so they are
// matched as attributes rather than #id selectors.
func rowActionSel(i int, action string) string {
	return fmt.Sprintf(`[id="ROW_ACTION_fileList_%d_c.ui.table.btn.%s"]`, i, action)
}

func rowCustomizeSel(i int) string {
	return fmt.Sprintf("#ROW_ACTION_LI_fileList_%d a", i)
}

// cleanFilename strips the relative prefix Alma shows in front of letters.
func cleanFilename(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "../", "")
}

// listScript reads every table row in one round trip.
const listScript = `Array.from(document.querySelectorAll('#TABLE_DATA_fileList .jsRecordContainer')).map(function (el, n) {
  function text(id) {
    var e = document.getElementById(id);
    return e ? e.innerText.trim() : '';
  }
  return {
    filename: text('SELENIUM_ID_fileList_ROW_' + n + '_COL_cfgFilefilename'),
    modified: text('SPAN_SELENIUM_ID_fileList_ROW_' + n + '_COL_updateDate'),
    updatedBy: text('SPAN_SELENIUM_ID_fileList_ROW_' + n + '_COL_cfgFileupdatedBy')
  };
})`

type row struct {
	Filename  string `json:"filename"`
	Modified  string `json:"modified"`
	UpdatedBy string `json:"updatedBy"`
}

// decodeRows turns raw table rows into listing entries. A row updated by
// "-" has never been customized.
func decodeRows(rows []row) []remote.Entry {
	entries := make([]remote.Entry, 0, len(rows))
	for i, r := range rows {
		updatedBy := strings.TrimSpace(r.UpdatedBy)
		entries = append(entries, remote.Entry{
			Filename:   cleanFilename(r.Filename),
			Modified:   strings.TrimSpace(r.Modified),
			Index:      i,
			Customized: updatedBy != "" && updatedBy != "-",
		})
	}
	return entries
}

// setValueScript assigns value to a textarea. Typing large letters key by
// key is far too slow.
func setValueScript(id, value string) (string, error) {
	v, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`document.getElementById(%q).value = %s; true`, id, v), nil
}

// TemplateTable is the "Customize Letters" table. It implements remote.Source.
type TemplateTable struct {
	s   *Session
	log *slog.Logger

	entries []remote.Entry
}

var _ remote.Source = (*TemplateTable)(nil)

// NewTemplateTable creates a table view bound to s.
func NewTemplateTable(s *Session, log *slog.Logger) *TemplateTable {
	return &TemplateTable{s: s, log: log}
}

// Invalidate drops the cached listing. Every operation starts with it, so
// a listing never outlives the run that read it.
func (t *TemplateTable) Invalidate() {
	t.entries = nil
}

// open makes the letter table the current page.
func (t *TemplateTable) open(ctx context.Context) error {
	var state struct {
		Table bool   `json:"table"`
		Title string `json:"title"`
		Menu  bool   `json:"menu"`
	}
	err := t.s.Run(ctx, "inspect page", chromedp.Evaluate(`({
  table: !!document.querySelector('#TABLE_DATA_fileList'),
  title: ((document.querySelector('.pageTitle') || {}).innerText || '').trim(),
  menu: !!document.querySelector('button[aria-label="Open Alma configuration"]')
})`, &state))
	if err != nil {
		return err
	}

	switch {
	case state.Table && state.Title != "Configuration File":
		return nil
	case state.Title == "Configuration File":
		return t.s.Run(ctx, "back to letter table",
			chromedp.Click(backButtonSel, chromedp.NodeVisible),
			chromedp.WaitVisible(tableSel),
		)
	case !state.Menu:
		if err := t.s.Run(ctx, "open home", chromedp.Navigate(t.s.URL("/mng/action/home.do")), chromedp.WaitVisible(".logoAlma")); err != nil {
			return err
		}
	}

	return t.s.Run(ctx, "open letter table",
		chromedp.Click(configMenuXPath, chromedp.BySearch, chromedp.NodeVisible),
		chromedp.Click(`//a[@href="#CONF_MENU5"]`, chromedp.BySearch, chromedp.NodeVisible),
		chromedp.Click(`//*[text() = "Customize Letters"]`, chromedp.BySearch, chromedp.NodeVisible),
		chromedp.WaitVisible(tableSel),
	)
}

// List returns the letters in table order. The listing is cached for lookups
// within one operation, until a submit or Invalidate.
func (t *TemplateTable) List(ctx context.Context) ([]remote.Entry, error) {
	if t.entries != nil {
		return t.entries, nil
	}
	if err := t.open(ctx); err != nil {
		return nil, err
	}

	var rows []row
	if err := t.s.Run(ctx, "read letter table", chromedp.Evaluate(listScript, &rows)); err != nil {
		return nil, err
	}
	t.entries = decodeRows(rows)
	t.log.Info("read letter table", "rows", len(t.entries))
	return t.entries, nil
}

func (t *TemplateTable) find(ctx context.Context, filename string) (remote.Entry, error) {
	entries, err := t.List(ctx)
	if err != nil {
		return remote.Entry{}, err
	}
	e, ok := remote.Find(entries, filename)
	if !ok {
		return remote.Entry{}, fmt.Errorf("%s: %w", filename, remote.ErrNotFound)
	}
	return e, nil
}

// Fetch opens the letter's view page and reads its content.
func (t *TemplateTable) Fetch(ctx context.Context, filename string) (letter.Content, error) {
	e, err := t.find(ctx, filename)
	if err != nil {
		return letter.Content{}, err
	}
	if err := t.open(ctx); err != nil {
		return letter.Content{}, err
	}
	if err := t.s.Run(ctx, "view "+filename,
		chromedp.ScrollIntoView(rowLinkSel(e.Index)),
		chromedp.Click(rowLinkSel(e.Index), chromedp.NodeVisible),
		chromedp.WaitVisible(filenameSel),
	); err != nil {
		return letter.Content{}, err
	}
	return t.readContent(ctx, filename)
}

// FetchDefault opens "View Default" from the row's action menu.
func (t *TemplateTable) FetchDefault(ctx context.Context, filename string) (letter.Content, error) {
	e, err := t.find(ctx, filename)
	if err != nil {
		return letter.Content{}, err
	}
	if err := t.open(ctx); err != nil {
		return letter.Content{}, err
	}
	if err := t.s.Run(ctx, "view default "+filename,
		chromedp.ScrollIntoView(rowMenuSel(e.Index)),
		chromedp.Click(rowMenuSel(e.Index), chromedp.NodeVisible),
		chromedp.Click(rowActionSel(e.Index, "view_default"), chromedp.NodeVisible),
		chromedp.WaitVisible(filenameSel),
	); err != nil {
		return letter.Content{}, err
	}
	return t.readContent(ctx, filename)
}

// Submit opens the editor (or "Customize" for letters that were never
// customized), replaces the content and saves.
func (t *TemplateTable) Submit(ctx context.Context, filename string, content letter.Content) error {
	e, err := t.find(ctx, filename)
	if err != nil {
		return err
	}
	if err := t.open(ctx); err != nil {
		return err
	}

	var hasEdit bool
	if err := t.s.Run(ctx, "open actions "+filename,
		chromedp.ScrollIntoView(rowMenuSel(e.Index)),
		chromedp.Click(rowMenuSel(e.Index), chromedp.NodeVisible),
		chromedp.Evaluate(fmt.Sprintf(`!!document.querySelector(%q)`, rowActionSel(e.Index, "edit")), &hasEdit),
	); err != nil {
		return err
	}
	action := rowCustomizeSel(e.Index)
	if hasEdit {
		action = rowActionSel(e.Index, "edit") + " a"
	}
	if err := t.s.Run(ctx, "edit "+filename,
		chromedp.Click(action, chromedp.NodeVisible),
		chromedp.WaitVisible(filenameSel),
	); err != nil {
		return err
	}
	if err := t.assertFilename(ctx, filename); err != nil {
		return err
	}

	var enabled bool
	if err := t.s.Run(ctx, "check editor", chromedp.Evaluate(
		fmt.Sprintf(`(function () { var e = document.getElementById(%q); return !!e && !e.disabled && !e.readOnly; })()`, contentID),
		&enabled,
	)); err != nil {
		return err
	}
	if !enabled {
		return fmt.Errorf("edit %s: %w: editor is read-only", filename, remote.ErrSession)
	}

	script, err := setValueScript(contentID, content.Text())
	if err != nil {
		return err
	}
	save := fmt.Sprintf(`(function () {
  var b = document.getElementById(%q) || document.getElementById(%q);
  if (!b) { return false; }
  b.click();
  return true;
})()`, saveButtonID, customizeBtnID)

	var clicked bool
	if err := t.s.Run(ctx, "save "+filename,
		chromedp.Evaluate(script, nil),
		chromedp.Evaluate(save, &clicked),
	); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("save %s: %w: no save button", filename, remote.ErrSession)
	}

	// The listing changes after a save, so it is read again next time.
	t.Invalidate()
	return t.s.Run(ctx, "wait for letter table", chromedp.WaitVisible(tableViewSel))
}

func (t *TemplateTable) assertFilename(ctx context.Context, filename string) error {
	var shown string
	if err := t.s.Run(ctx, "read filename", chromedp.Text(filenameSel, &shown)); err != nil {
		return err
	}
	if got := cleanFilename(shown); got != filename {
		return fmt.Errorf("%w: opened %q, expected %q", remote.ErrSession, got, filename)
	}
	return nil
}

func (t *TemplateTable) readContent(ctx context.Context, filename string) (letter.Content, error) {
	if err := t.assertFilename(ctx, filename); err != nil {
		return letter.Content{}, err
	}
	var text string
	if err := t.s.Run(ctx, "read "+filename,
		chromedp.Evaluate(fmt.Sprintf(`document.getElementById(%q).value`, contentID), &text),
	); err != nil {
		return letter.Content{}, err
	}
	return letter.New(text), nil
}
