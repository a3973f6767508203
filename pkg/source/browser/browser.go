// Package browser implements source.RecordSource on top of a headless
// Chrome session driven through chromedp. All site knowledge lives in
// config.BrowserConfig: the listing URL template, role codes and selectors.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"eoscraper/pkg/config"
	errs "eoscraper/pkg/errors"
	"eoscraper/pkg/logger"
	"eoscraper/pkg/models"
	"eoscraper/pkg/source"
)

// Source is a RecordSource backed by one browser tab
type Source struct {
	cfg    config.BrowserConfig
	logger logger.Logger

	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	closeOnce   sync.Once
}

var _ source.RecordSource = (*Source)(nil)

// allocatorOptions builds the Chrome command line from cfg
func allocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	for _, f := range cfg.Flags {
		name, value, hasValue := strings.Cut(strings.TrimLeft(f, "-"), "=")
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

// Open launches the browser. ctx bounds the launch only; the browser lives
// until Close.
func Open(ctx context.Context, cfg config.BrowserConfig, log logger.Logger) (*Source, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "browser")

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
	)

	s := &Source{
		cfg:         cfg,
		logger:      log,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}

	// Run with no actions starts the browser and the first tab
	if err := s.run(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	log.InfoWithFields("Browser started", map[string]interface{}{
		"headless": cfg.Headless,
	})
	return s, nil
}

// run executes actions on the tab, bounded by ctx. Cancelling a context
// derived from the tab aborts the actions without closing the tab.
func (s *Source) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func isXPath(sel string) bool {
	return strings.HasPrefix(sel, "/") || strings.HasPrefix(sel, "(")
}

// by picks the query strategy for sel: XPath goes through DOM search,
// everything else is a CSS selector
func by(sel string) chromedp.QueryOption {
	if isXPath(sel) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func byAll(sel string) chromedp.QueryOption {
	if isXPath(sel) {
		return chromedp.BySearch
	}
	return chromedp.ByQueryAll
}

func (s *Source) waitTable() chromedp.Action {
	return chromedp.WaitVisible(s.cfg.Selectors.Table, by(s.cfg.Selectors.Table))
}

func (s *Source) settle() chromedp.Action {
	return chromedp.Sleep(s.cfg.SettleDelay)
}

func (s *Source) NavigateToListing(ctx context.Context, role string) error {
	url, err := s.cfg.RoleURL(role)
	if err != nil {
		return err
	}
	s.logger.InfoWithFields("Opening listing", map[string]interface{}{
		"role": role,
		"url":  url,
	})
	return s.run(ctx,
		chromedp.Navigate(url),
		s.waitTable(),
	)
}

// present reports whether sel currently matches at least one node
func (s *Source) present(ctx context.Context, sel string) (bool, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(sel, &nodes, byAll(sel), chromedp.AtLeast(0))); err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

// DismissOnboardingPrompts clicks the cookie consent and its follow-up
// prompt when they are shown
func (s *Source) DismissOnboardingPrompts(ctx context.Context) error {
	for _, sel := range []string{s.cfg.Selectors.CookieAccept, s.cfg.Selectors.CookiePromptClose} {
		if sel == "" {
			continue
		}
		ok, err := s.present(ctx, sel)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := s.run(ctx, chromedp.Click(sel, by(sel), chromedp.NodeVisible)); err != nil {
			return fmt.Errorf("failed to dismiss prompt %s: %w", sel, err)
		}
	}
	return nil
}

const clickOptionJS = `(() => {
	for (const el of document.querySelectorAll(%s)) {
		if (el.textContent.trim() === %s) { el.click(); return true; }
	}
	return false;
})()`

// SetPageSize opens the page size dropdown and picks the option reading n
func (s *Source) SetPageSize(ctx context.Context, n int) error {
	sel := s.cfg.Selectors
	if sel.PageSizeTrigger == "" || sel.PageSizeOptions == "" {
		return nil
	}

	optSel, _ := json.Marshal(sel.PageSizeOptions)
	label, _ := json.Marshal(fmt.Sprint(n))

	var clicked bool
	err := s.run(ctx,
		chromedp.ScrollIntoView(sel.PageSizeTrigger, by(sel.PageSizeTrigger)),
		chromedp.Click(sel.PageSizeTrigger, by(sel.PageSizeTrigger), chromedp.NodeVisible),
		chromedp.WaitVisible(sel.PageSizeOptions, by(sel.PageSizeOptions)),
		chromedp.Evaluate(fmt.Sprintf(clickOptionJS, optSel, label), &clicked),
	)
	if err != nil {
		return err
	}
	if !clicked {
		return errs.Extraction("set page size", "no page size option reads %d", n)
	}
	return s.run(ctx, s.settle(), s.waitTable())
}

func (s *Source) JumpToLastPage(ctx context.Context) error {
	last := s.cfg.Selectors.LastButton
	if last == "" {
		return errs.Configuration("jump to last page", "no last page selector configured")
	}
	return s.run(ctx,
		chromedp.ScrollIntoView(last, by(last)),
		chromedp.Click(last, by(last), chromedp.NodeVisible),
		s.settle(),
	)
}

// RefreshCurrentPage reloads the page and waits for the table
func (s *Source) RefreshCurrentPage(ctx context.Context) error {
	return s.run(ctx,
		chromedp.Reload(),
		s.waitTable(),
	)
}

// ReadRowCount counts every element matching the rows selector, header and
// trailing rows included
func (s *Source) ReadRowCount(ctx context.Context) (int, error) {
	rows := s.cfg.Selectors.Rows
	var nodes []*cdp.Node
	err := s.run(ctx,
		chromedp.WaitReady(rows, by(rows)),
		chromedp.Nodes(rows, &nodes, byAll(rows)),
	)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (s *Source) ReadRowIdentifier(ctx context.Context, i int) (models.RecordID, error) {
	sel := config.RowSelector(s.cfg.Selectors.RowID, i+1)
	var text string
	if err := s.run(ctx, chromedp.Text(sel, &text, by(sel))); err != nil {
		return "", err
	}
	id := strings.TrimSpace(text)
	if id == "" {
		return "", errs.Extraction("read row identifier", "row %d has an empty identifier", i)
	}
	return models.RecordID(id), nil
}

func (s *Source) OpenRowDetail(ctx context.Context, i int) error {
	sel := config.RowSelector(s.cfg.Selectors.DetailButton, i+1)
	return s.run(ctx,
		chromedp.ScrollIntoView(sel, by(sel)),
		chromedp.Click(sel, by(sel), chromedp.NodeVisible),
	)
}

func (s *Source) ReturnToListing(ctx context.Context) error {
	return s.run(ctx,
		chromedp.NavigateBack(),
		s.waitTable(),
	)
}

func (s *Source) IsDetailViewLoaded(ctx context.Context) (bool, error) {
	return s.present(ctx, s.cfg.Selectors.DetailReady)
}

// ExtractDetailFields reads the detail container, the last update entry and
// the current URL
func (s *Source) ExtractDetailFields(ctx context.Context) (models.Record, error) {
	sel := s.cfg.Selectors
	var (
		html, updated, url string
	)

	actions := []chromedp.Action{
		chromedp.WaitReady(sel.DetailContainer, by(sel.DetailContainer)),
		chromedp.OuterHTML(sel.DetailContainer, &html, by(sel.DetailContainer)),
	}
	if sel.LastUpdated != "" {
		actions = append(actions, chromedp.Text(sel.LastUpdated, &updated, by(sel.LastUpdated)))
	}
	actions = append(actions, chromedp.Location(&url))

	if err := s.run(ctx, actions...); err != nil {
		return nil, err
	}

	rec, err := ParseDetail(html, sel.FieldBlocks, s.cfg.SkipHeadings)
	if err != nil {
		return nil, err
	}
	if sel.LastUpdated != "" {
		key, value, err := ParseLastUpdated(updated)
		if err != nil {
			return nil, err
		}
		rec.Set(key, value)
	}
	if s.cfg.RecordURLField != "" {
		rec.Set(s.cfg.RecordURLField, url)
	}

	s.logger.DebugWithFields("Detail extracted", map[string]interface{}{
		"url":    url,
		"fields": len(rec),
	})
	return rec, nil
}

// IsAdvanceControlDisabled inspects the class list of the next page control
func (s *Source) IsAdvanceControlDisabled(ctx context.Context) (bool, error) {
	next := s.cfg.Selectors.NextButton
	var (
		class    string
		hasClass bool
		disabled string
		isSet    bool
	)
	err := s.run(ctx,
		chromedp.WaitReady(next, by(next)),
		chromedp.AttributeValue(next, "class", &class, &hasClass, by(next)),
		chromedp.AttributeValue(next, "disabled", &disabled, &isSet, by(next)),
	)
	if err != nil {
		return false, err
	}
	return isSet || hasClassName(class, s.cfg.Selectors.DisabledClass), nil
}

func hasClassName(classList, name string) bool {
	for _, c := range strings.Fields(classList) {
		if c == name {
			return true
		}
	}
	return false
}

func (s *Source) AdvanceToNextPage(ctx context.Context) error {
	next := s.cfg.Selectors.NextButton
	return s.run(ctx,
		chromedp.ScrollIntoView(next, by(next)),
		chromedp.Click(next, by(next), chromedp.NodeVisible),
		s.settle(),
	)
}

const heapJS = `(performance.memory ? performance.memory.usedJSHeapSize : 0)`

// MemoryUsage reports the JS heap of the tab
func (s *Source) MemoryUsage(ctx context.Context) (int64, error) {
	var used float64
	if err := s.run(ctx, chromedp.Evaluate(heapJS, &used)); err != nil {
		return 0, err
	}
	return int64(used), nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = chromedp.Cancel(s.tabCtx)
		s.tabCancel()
		s.allocCancel()
		s.logger.Debug("Browser closed")
	})
	return err
}
