package twogis

import (
	"context"
	"strconv"
	"time"

	"review-harvester/browser"
	"review-harvester/models"
	"review-harvester/services"
	"review-harvester/utils"
)

// HarvestConfig bounds and paces one harvest run.
type HarvestConfig struct {
	MaxSteps         int
	StagnationRounds int
	Timeout          time.Duration

	ClickPause  time.Duration // after a round that clicked "load more"
	ScrollPause time.Duration // after a scroll-only round
	// BusyPause is added to ScrollPause once more than BusyThreshold
	// reviews are collected; long lists render slower.
	BusyPause     time.Duration
	BusyThreshold int
	ClickSettle   time.Duration
	KeyPause      time.Duration

	FlushClicks      int
	FlushScrolls     int
	FlushClickPause  time.Duration
	FlushScrollPause time.Duration
	// FlushBudget bounds the flush phase. It runs on its own deadline so
	// that it still reaches the page after the harvest context expired.
	FlushBudget time.Duration
}

// DefaultHarvestConfig returns the production pacing.
func DefaultHarvestConfig() HarvestConfig {
	return HarvestConfig{
		MaxSteps:         150,
		StagnationRounds: 3,
		Timeout:          200 * time.Second,
		ClickPause:       1500 * time.Millisecond,
		ScrollPause:      500 * time.Millisecond,
		BusyPause:        200 * time.Millisecond,
		BusyThreshold:    50,
		ClickSettle:      1200 * time.Millisecond,
		KeyPause:         150 * time.Millisecond,
		FlushClicks:      3,
		FlushScrolls:     3,
		FlushClickPause:  1200 * time.Millisecond,
		FlushScrollPause: 1500 * time.Millisecond,
		FlushBudget:      15 * time.Second,
	}
}

// HarvestResult is what one harvest run produced.
type HarvestResult struct {
	Records []models.ReviewRecord
	State   models.TerminalState
	Rounds  int
	Elapsed time.Duration
}

// session is the per-card mutable state. It never outlives Harvest.
type session struct {
	seen     map[string]struct{}
	records  []models.ReviewRecord
	rounds   int
	stagnant int
	start    time.Time
	hint     int
}

func newSession(hint int, start time.Time) *session {
	return &session{seen: make(map[string]struct{}), start: start, hint: hint}
}

// merge adds unseen items in order and returns how many were new.
func (s *session) merge(items []models.RawReview, n *services.Normalizer) int {
	added := 0
	for _, it := range items {
		rec, ok := n.Normalize(it)
		if !ok {
			continue
		}
		if _, dup := s.seen[rec.ID]; dup {
			continue
		}
		s.seen[rec.ID] = struct{}{}
		s.records = append(s.records, rec)
		added++
	}
	return added
}

func (s *session) hintReached() bool {
	return s.hint > 0 && len(s.records) >= s.hint
}

// Harvester drives the load-more/scroll loop over a virtualized review list
// and accumulates deduplicated records.
type Harvester struct {
	page       browser.Automation
	locator    ReviewLocator
	normalizer *services.Normalizer
	cfg        HarvestConfig
	pacing     *utils.Pacing
	logger     *utils.Logger
	now        func() time.Time // for testing
}

func NewHarvester(page browser.Automation, locator ReviewLocator, normalizer *services.Normalizer,
	cfg HarvestConfig, pacing *utils.Pacing, logger *utils.Logger) *Harvester {
	return &Harvester{
		page:       page,
		locator:    locator,
		normalizer: normalizer,
		cfg:        cfg,
		pacing:     pacing,
		logger:     logger,
		now:        time.Now,
	}
}

// Harvest collects the reviews of the card currently open. hint is the
// expected total, or 0 when unknown.
func (h *Harvester) Harvest(ctx context.Context, hint int) HarvestResult {
	sess := newSession(hint, h.now())

	var how string
	if err := h.page.RunScript(ctx, findContainerScript, &how, reviewTextSelector); err != nil {
		h.logger.Debug("      • container lookup failed: %v", err)
	} else {
		h.logger.Debug("      • review container: %s", how)
	}
	h.pressKey(ctx, browser.KeyHome)

	n, err := h.locator.Count(ctx)
	switch {
	case err != nil:
		h.logger.Warn("      • Could not check for reviews (%v), continuing", err)
	case n == 0:
		h.logger.Info("      • No reviews on card, skipping scroll")
		return HarvestResult{State: models.StateNoReviews, Elapsed: h.now().Sub(sess.start)}
	}

	sess.merge(h.locator.Locate(ctx), h.normalizer)
	h.logger.Info("      • Initial load: %d collected", len(sess.records))

	state := h.loop(ctx, sess)

	budget := h.cfg.FlushBudget
	if budget <= 0 {
		budget = DefaultHarvestConfig().FlushBudget
	}
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), budget)
	h.flush(flushCtx, sess, state)
	cancel()

	h.logger.Info("      • %s after %d rounds: %d collected (expected %s)",
		state, sess.rounds, len(sess.records), hintLabel(hint))

	return HarvestResult{
		Records: sess.records,
		State:   state,
		Rounds:  sess.rounds,
		Elapsed: h.now().Sub(sess.start),
	}
}

func (h *Harvester) loop(ctx context.Context, sess *session) models.TerminalState {
	lastCount := len(sess.records)

	for step := 1; step <= h.cfg.MaxSteps; step++ {
		if h.now().Sub(sess.start) > h.cfg.Timeout || ctx.Err() != nil {
			h.logger.Info("      • Card timeout, stopping")
			return models.StateTimedOut
		}
		sess.rounds = step

		batch := h.locator.Locate(ctx)
		added := sess.merge(batch, h.normalizer)
		h.logger.Debug("      • Step %d: %d visible, %d collected (+%d)",
			step, len(batch), len(sess.records), added)

		if sess.hintReached() {
			h.logger.Info("      • Reached expected review count")
			return models.StateHintReached
		}

		clicked := h.clickMore(ctx)
		if clicked {
			h.logger.Debug("      • Clicked load more")
			_ = h.pacing.Sleep(ctx, h.cfg.ClickSettle)
		}
		moved := false
		if !clicked {
			moved = h.scroll(ctx)
		}
		if h.pacing.Chance() {
			_ = h.page.RunScript(ctx, jiggleScript, nil)
		}
		if !clicked && !moved {
			h.pressKey(ctx, browser.KeyPageDown)
			h.pressKey(ctx, browser.KeyEnd)
		}

		wait := h.cfg.ScrollPause
		if clicked {
			wait = h.cfg.ClickPause
		} else if len(sess.records) > h.cfg.BusyThreshold {
			wait += h.cfg.BusyPause
		}
		if err := h.pacing.Sleep(ctx, wait); err != nil {
			return models.StateTimedOut
		}

		if len(sess.records) == lastCount {
			sess.stagnant++
		} else {
			sess.stagnant = 0
			lastCount = len(sess.records)
		}
		if sess.stagnant >= h.cfg.StagnationRounds {
			h.logger.Info("      • Stagnation (%d/%d)", sess.stagnant, h.cfg.StagnationRounds)
			return models.StateStagnant
		}
	}
	return models.StateMaxSteps
}

// flush makes a last bounded pass for tail content. When the hint was
// already reached it only re-reads the page.
func (h *Harvester) flush(ctx context.Context, sess *session, state models.TerminalState) {
	before := len(sess.records)

	if state != models.StateHintReached {
		for i := 0; i < h.cfg.FlushClicks; i++ {
			if h.clickMore(ctx) {
				h.logger.Debug("      • Final load-more click")
				_ = h.pacing.Sleep(ctx, h.cfg.FlushClickPause)
			}
		}
		for i := 0; i < h.cfg.FlushScrolls; i++ {
			h.scroll(ctx)
			_ = h.pacing.Sleep(ctx, h.cfg.FlushScrollPause)
			sess.merge(h.locator.Locate(ctx), h.normalizer)
		}
	}
	sess.merge(h.locator.Locate(ctx), h.normalizer)

	if added := len(sess.records) - before; added > 0 {
		h.logger.Info("      • Final pass added %d, total %d", added, len(sess.records))
	}
}

func (h *Harvester) clickMore(ctx context.Context) bool {
	var clicked bool
	if err := h.page.RunScript(ctx, clickMoreScript, &clicked, loadMorePattern, reviewTextSelector); err != nil {
		return false
	}
	return clicked
}

func (h *Harvester) scroll(ctx context.Context) bool {
	var moved bool
	if err := h.page.RunScript(ctx, scrollScript, &moved); err != nil {
		return false
	}
	return moved
}

func (h *Harvester) pressKey(ctx context.Context, key string) {
	body, ok := h.page.FindElement(ctx, browser.CSS("body"))
	if !ok {
		return
	}
	if err := h.page.SendKeys(ctx, body, key); err == nil {
		_ = h.pacing.Sleep(ctx, h.cfg.KeyPause)
	}
}

// CardTimeout is the orchestration limit for one card: the harvest window
// plus its flush and the navigation that precedes it. It is always
// coarser than the harvester's own deadline.
func CardTimeout(h HarvestConfig, navigation time.Duration) time.Duration {
	return h.Timeout + h.FlushBudget + navigation
}

func hintLabel(hint int) string {
	if hint <= 0 {
		return "—"
	}
	return strconv.Itoa(hint)
}
