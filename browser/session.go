package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"review-harvester/utils"
)

// ErrStartup is returned when no browser session could be created.
var ErrStartup = errors.New("browser: session could not be started")

// Options configures browser startup.
type Options struct {
	Headless      bool
	ProfileDir    string
	ChromeBin     string
	ActionTimeout time.Duration
}

// Session is a single chromedp tab driven sequentially for the whole run.
type Session struct {
	tabCtx        context.Context
	cancels       []context.CancelFunc
	actionTimeout time.Duration
	profileDir    string
}

var _ Automation = (*Session)(nil)

// Launch starts Chrome with the persistent profile and, if that fails,
// once more with a throwaway profile directory.
func Launch(ctx context.Context, opts Options, logger *utils.Logger) (*Session, error) {
	if opts.ChromeBin == "" {
		opts.ChromeBin = findChromeBinary()
	}
	logger.Info("[browser] Using browser binary: %s", valueOr(opts.ChromeBin, "(chromedp default)"))

	if opts.ProfileDir != "" {
		if err := os.MkdirAll(opts.ProfileDir, 0755); err == nil {
			s, err := start(ctx, opts, opts.ProfileDir)
			if err == nil {
				return s, nil
			}
			logger.Warn("[browser] Chrome with persistent profile failed to start: %v", err)
		}
	}

	tmp, err := os.MkdirTemp("", "chrome-2gis-")
	if err != nil {
		return nil, fmt.Errorf("%w: temp profile: %v", ErrStartup, err)
	}
	logger.Info("[browser] Retrying with temporary profile: %s", tmp)

	s, err := start(ctx, opts, tmp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartup, err)
	}
	return s, nil
}

func start(ctx context.Context, opts Options, profileDir string) (*Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("lang", "ru-RU"),
		chromedp.WindowSize(1280, 1000),
		chromedp.UserDataDir(profileDir),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if opts.ChromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	// Suppress chromedp log noise
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// An empty Run launches the browser and attaches to the first tab.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, err
	}

	timeout := opts.ActionTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Session{
		tabCtx:        tabCtx,
		cancels:       []context.CancelFunc{cancelTab, cancelAlloc},
		actionTimeout: timeout,
		profileDir:    profileDir,
	}, nil
}

// Close shuts the tab and the browser process.
func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

// run executes actions on the tab, bounded by both the per-action timeout
// and the caller's ctx.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tabCtx, s.actionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *Session) RunScript(ctx context.Context, fn string, out any, args ...any) error {
	expr, err := CallExpression(fn, args...)
	if err != nil {
		return err
	}
	return s.run(ctx, chromedp.Evaluate(expr, out))
}

func (s *Session) FindElement(ctx context.Context, loc Locator) (Element, bool) {
	var nodes []*cdp.Node
	by := chromedp.ByQuery
	if loc.Kind == ByXPath {
		by = chromedp.BySearch
	}
	if err := s.run(ctx, chromedp.Nodes(loc.Query, &nodes, by, chromedp.AtLeast(0))); err != nil || len(nodes) == 0 {
		return Element{}, false
	}

	el := Element{ID: int64(nodes[0].NodeID)}
	var text string
	if err := s.run(ctx, chromedp.Text([]cdp.NodeID{nodes[0].NodeID}, &text, chromedp.ByNodeID)); err == nil {
		el.Text = text
	}
	return el, true
}

func (s *Session) Click(ctx context.Context, el Element) error {
	ids := []cdp.NodeID{cdp.NodeID(el.ID)}
	return s.run(ctx,
		chromedp.ScrollIntoView(ids, chromedp.ByNodeID),
		chromedp.Click(ids, chromedp.ByNodeID),
	)
}

func (s *Session) SendKeys(ctx context.Context, el Element, keys string) error {
	return s.run(ctx, chromedp.SendKeys([]cdp.NodeID{cdp.NodeID(el.ID)}, keys, chromedp.ByNodeID))
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var u string
	err := s.run(ctx, chromedp.Location(&u))
	return u, err
}

func (s *Session) PageSource(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
