package twogis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"review-harvester/browser"
	"review-harvester/models"
	"review-harvester/services"
	"review-harvester/utils"
)

var testSite = Site{BaseDomain: "https://2gis.uz", CitySlug: "tashkent"}

// fakePage is an in-memory browser.Automation. Navigation follows
// redirects, scripts are dispatched by identity and every action is
// counted. Like the chromedp session, every call fails once ctx is done.
type fakePage struct {
	current   string
	redirects map[string]string
	fail      map[string]int // remaining failures per URL
	pages     map[string]string
	elements  map[string]browser.Element
	noBody    bool

	clickResult  bool
	scrollResult bool
	scriptErr    map[string]error
	scriptOut    map[string]any

	navigations   []string
	keys          []string
	clicks        int
	scrolls       int
	containerRuns int
	tabClicks     int
	screenshots   int
	clickArgs     []any
	deadCalls     int
}

func newFakePage() *fakePage {
	return &fakePage{
		redirects: map[string]string{},
		fail:      map[string]int{},
		pages:     map[string]string{},
		elements:  map[string]browser.Element{},
		scriptErr: map[string]error{},
		scriptOut: map[string]any{},
	}
}

// dead records and reports a call made on a finished context.
func (p *fakePage) dead(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		p.deadCalls++
		return err
	}
	return nil
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	if err := p.dead(ctx); err != nil {
		return err
	}
	p.navigations = append(p.navigations, url)
	if p.fail[url] > 0 {
		p.fail[url]--
		return errors.New("net::ERR_TIMED_OUT")
	}
	if to, ok := p.redirects[url]; ok {
		url = to
	}
	p.current = url
	return nil
}

func (p *fakePage) RunScript(ctx context.Context, fn string, out any, args ...any) error {
	if err := p.dead(ctx); err != nil {
		return err
	}
	if err := p.scriptErr[fn]; err != nil {
		return err
	}

	var result any
	switch fn {
	case findContainerScript:
		p.containerRuns++
		result = "ancestor"
	case clickMoreScript:
		p.clicks++
		p.clickArgs = args
		result = p.clickResult
	case scrollScript:
		p.scrolls++
		result = p.scrollResult
	case jiggleScript:
		result = true
	default:
		v, ok := p.scriptOut[fn]
		if !ok {
			return fmt.Errorf("unexpected script %.30q", fn)
		}
		result = v
	}

	if out == nil {
		return nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (p *fakePage) FindElement(ctx context.Context, loc browser.Locator) (browser.Element, bool) {
	if p.dead(ctx) != nil {
		return browser.Element{}, false
	}
	if loc.Query == "body" {
		return browser.Element{ID: 1}, !p.noBody
	}
	el, ok := p.elements[loc.Query]
	return el, ok
}

func (p *fakePage) Click(ctx context.Context, _ browser.Element) error {
	if err := p.dead(ctx); err != nil {
		return err
	}
	p.tabClicks++
	return nil
}

func (p *fakePage) SendKeys(ctx context.Context, _ browser.Element, keys string) error {
	if err := p.dead(ctx); err != nil {
		return err
	}
	p.keys = append(p.keys, keys)
	return nil
}

func (p *fakePage) CurrentURL(ctx context.Context) (string, error) {
	if err := p.dead(ctx); err != nil {
		return "", err
	}
	return p.current, nil
}

func (p *fakePage) PageSource(ctx context.Context) (string, error) {
	if err := p.dead(ctx); err != nil {
		return "", err
	}
	return p.pages[p.current], nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := p.dead(ctx); err != nil {
		return nil, err
	}
	p.screenshots++
	return []byte("\x89PNG"), nil
}

// fakeLocator serves reviews from a function of the call number. Calls on a
// finished context find nothing and do not advance the call number.
type fakeLocator struct {
	count    int
	countErr error
	locate   func(call int) []models.RawReview

	counts  int
	locates int
}

func (l *fakeLocator) Count(ctx context.Context) (int, error) {
	l.counts++
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return l.count, l.countErr
}

func (l *fakeLocator) Locate(ctx context.Context) []models.RawReview {
	if ctx.Err() != nil {
		return nil
	}
	l.locates++
	if l.locate == nil {
		return nil
	}
	return l.locate(l.locates)
}

// fixed always returns the same items.
func fixed(items ...models.RawReview) func(int) []models.RawReview {
	return func(int) []models.RawReview { return items }
}

// growing returns one more distinct item on every call.
func growing() func(int) []models.RawReview {
	return func(call int) []models.RawReview {
		out := make([]models.RawReview, 0, call)
		for i := 1; i <= call; i++ {
			out = append(out, review(fmt.Sprintf("review %d", i)))
		}
		return out
	}
}

func review(text string) models.RawReview {
	return models.RawReview{Text: text, Date: "1 мая 2024", Width: "50px", Name: "Анна", ReviewCount: "3 отзыва"}
}

// cardLocator serves the reviews of whichever card the page is showing.
// onLocate, when set, runs before every Locate with the caller's context.
type cardLocator struct {
	page     *fakePage
	reviews  map[string][]models.RawReview
	onLocate func(ctx context.Context, call int)

	locates int
}

func (l *cardLocator) items() []models.RawReview {
	for card, items := range l.reviews {
		if l.page.current == card || strings.HasPrefix(l.page.current, card+"/") {
			return items
		}
	}
	return nil
}

func (l *cardLocator) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(l.items()), nil
}

func (l *cardLocator) Locate(ctx context.Context) []models.RawReview {
	l.locates++
	if l.onLocate != nil {
		l.onLocate(ctx, l.locates)
	}
	if ctx.Err() != nil {
		return nil
	}
	return l.items()
}

func quietHarvestConfig() HarvestConfig {
	return HarvestConfig{
		MaxSteps:         50,
		StagnationRounds: 3,
		Timeout:          time.Hour,
		BusyThreshold:    50,
		FlushClicks:      3,
		FlushScrolls:     3,
		FlushBudget:      time.Minute,
	}
}

func quietNavigatorConfig() NavigatorConfig {
	return NavigatorConfig{CardRetries: 3, SearchRetries: 2, TabRetries: 2}
}

func newTestHarvester(page browser.Automation, loc ReviewLocator, cfg HarvestConfig) *Harvester {
	return NewHarvester(page, loc, services.NewNormalizer(services.DefaultPixelsPerStar),
		cfg, utils.NoPacing(), utils.NewNopLogger())
}

func newTestNavigator(page browser.Automation) *Navigator {
	return NewNavigator(page, testSite, quietNavigatorConfig(), utils.NoPacing(), utils.NewNopLogger())
}
