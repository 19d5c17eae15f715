package twogis

import (
	"context"
	"strings"
	"time"

	"review-harvester/browser"
	"review-harvester/models"
	"review-harvester/services"
	"review-harvester/utils"
)

// reviewSuffixes are tried in order to jump straight to the reviews tab.
var reviewSuffixes = []string{"/tab/reviews", "/reviews"}

// hintLocators are probed in order for the listing's total review count.
var hintLocators = []browser.Locator{
	browser.XPath(`//a[contains(@href,'reviews')]`),
	browser.XPath(`//*[contains(text(),'Отзывы')]`),
	browser.XPath(`//*[contains(@class,'reviews') or contains(@class,'count')]`),
}

// NavigatorConfig tunes page loading.
type NavigatorConfig struct {
	CardRetries   int
	SearchRetries int
	TabRetries    int
	// BaseDelay is both the settle time after a load and the first backoff.
	BaseDelay  time.Duration
	TabDelay   time.Duration
	ClickPause time.Duration
	KeyPause   time.Duration
}

// DefaultNavigatorConfig mirrors the site's observed load behaviour.
func DefaultNavigatorConfig() NavigatorConfig {
	return NavigatorConfig{
		CardRetries:   3,
		SearchRetries: 2,
		TabRetries:    2,
		BaseDelay:     600 * time.Millisecond,
		TabDelay:      500 * time.Millisecond,
		ClickPause:    500 * time.Millisecond,
		KeyPause:      150 * time.Millisecond,
	}
}

// Landing is the result of opening a candidate.
type Landing struct {
	Outcome  models.Outcome
	FinalURL string
	Reason   string
}

// Navigator lands the browser on listing pages and their reviews tab.
type Navigator struct {
	page   browser.Automation
	site   Site
	cfg    NavigatorConfig
	pacing *utils.Pacing
	logger *utils.Logger
}

func NewNavigator(page browser.Automation, site Site, cfg NavigatorConfig, pacing *utils.Pacing, logger *utils.Logger) *Navigator {
	return &Navigator{page: page, site: site, cfg: cfg, pacing: pacing, logger: logger}
}

// Load navigates to url with up to retries attempts, then waits for the page
// to settle.
func (n *Navigator) Load(ctx context.Context, url string, retries int, settle time.Duration) models.Outcome {
	retry := &utils.RetryConfig{
		MaxAttempts: retries,
		BaseDelay:   settle,
		Factor:      1.5,
		Pacing:      n.pacing,
		Logger:      n.logger,
	}

	err := retry.Do(ctx, "open "+url, func() error {
		if err := n.page.Navigate(ctx, url); err != nil {
			if ctx.Err() != nil {
				return utils.Permanent(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		n.logger.Debug("[navigator] %v", err)
		return models.OutcomeTransient
	}

	if err := n.pacing.Sleep(ctx, settle); err != nil {
		return models.OutcomeTransient
	}
	return models.OutcomeOK
}

// OpenCard opens a candidate and records its final URL in visited. A
// candidate that redirects to the locale root, or whose final URL was
// already harvested, is a permanent miss.
func (n *Navigator) OpenCard(ctx context.Context, candidate string, visited *utils.URLSet) Landing {
	if visited.Contains(candidate) {
		return Landing{Outcome: models.OutcomePermanent, FinalURL: candidate, Reason: "already visited"}
	}

	if out := n.Load(ctx, candidate, n.cfg.CardRetries, n.cfg.BaseDelay); out != models.OutcomeOK {
		return Landing{Outcome: out, FinalURL: candidate, Reason: "failed to open"}
	}

	final, err := n.page.CurrentURL(ctx)
	if err != nil || final == "" {
		final = candidate
	}
	if n.site.IsHome(final) {
		return Landing{Outcome: models.OutcomePermanent, FinalURL: final, Reason: "redirected to home"}
	}
	if !visited.Add(final) {
		return Landing{Outcome: models.OutcomePermanent, FinalURL: final, Reason: "alias of visited card"}
	}
	return Landing{Outcome: models.OutcomeOK, FinalURL: final}
}

// OpenReviews steers the card at finalURL to its reviews tab. It reports how
// it got there: "suffix", "tab", or "none" when it stayed on the current
// view.
func (n *Navigator) OpenReviews(ctx context.Context, finalURL string) string {
	base := strings.TrimRight(finalURL, "/")
	for _, suf := range reviewSuffixes {
		if n.Load(ctx, base+suf, n.cfg.TabRetries, n.cfg.TabDelay) != models.OutcomeOK {
			continue
		}
		cur, err := n.page.CurrentURL(ctx)
		if err == nil && !n.site.IsHome(cur) {
			n.logger.Debug("[navigator] Reviews via %s", cur)
			return "suffix"
		}
	}

	el, ok := n.page.FindElement(ctx, browser.XPath(reviewsTabXPath))
	if ok && n.page.Click(ctx, el) == nil {
		_ = n.pacing.Sleep(ctx, n.cfg.ClickPause)
		return "tab"
	}
	return "none"
}

// PrepareView presses End then Home so lazily rendered blocks mount.
func (n *Navigator) PrepareView(ctx context.Context) {
	body, ok := n.page.FindElement(ctx, browser.CSS("body"))
	if !ok {
		return
	}
	_ = n.page.SendKeys(ctx, body, browser.KeyEnd)
	_ = n.pacing.Sleep(ctx, n.cfg.KeyPause)
	_ = n.page.SendKeys(ctx, body, browser.KeyHome)
	_ = n.pacing.Sleep(ctx, n.cfg.KeyPause)
}

// ExtractHint returns the total review count shown on the card, if any.
func (n *Navigator) ExtractHint(ctx context.Context) (int, bool) {
	for _, loc := range hintLocators {
		el, ok := n.page.FindElement(ctx, loc)
		if !ok {
			continue
		}
		if hint, ok := services.ParseHint(el.Text); ok {
			return hint, true
		}
	}
	return 0, false
}
