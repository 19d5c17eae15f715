package twogis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"review-harvester/browser"
	"review-harvester/models"
	"review-harvester/storage"
	"review-harvester/utils"
)

// emptyCardError annotates the placeholder row of a card that yielded
// nothing.
const emptyCardError = "0 reviews (virtualized)"

// Options are the orchestration-level limits.
type Options struct {
	// PerCardTimeout bounds one candidate from navigation to emitted rows.
	// It must be coarser than the harvester's deadline; see CardTimeout.
	PerCardTimeout time.Duration
	// EntityInterval is the minimum wall-clock time spent per entity.
	EntityInterval time.Duration
	CandidatePause [2]time.Duration
	EntityJitter   [2]time.Duration
}

// DefaultOptions returns the production pauses around the given limits.
func DefaultOptions(perCard, entityInterval time.Duration) Options {
	return Options{
		PerCardTimeout: perCard,
		EntityInterval: entityInterval,
		CandidatePause: [2]time.Duration{200 * time.Millisecond, 400 * time.Millisecond},
		EntityJitter:   [2]time.Duration{100 * time.Millisecond, 300 * time.Millisecond},
	}
}

// Scraper processes source entities one after another on a single browser
// session and hands the resulting rows to a sink.
type Scraper struct {
	page      browser.Automation
	resolver  *Resolver
	nav       *Navigator
	harvester *Harvester
	diag      *storage.DiagnosticsWriter
	sink      storage.RowSink
	throttle  *utils.Throttle
	opts      Options
	pacing    *utils.Pacing
	logger    *utils.Logger
	now       func() time.Time
}

// New wires a Scraper from its collaborators.
func New(page browser.Automation, resolver *Resolver, nav *Navigator, harvester *Harvester,
	diag *storage.DiagnosticsWriter, sink storage.RowSink, opts Options,
	pacing *utils.Pacing, logger *utils.Logger) *Scraper {
	return &Scraper{
		page:      page,
		resolver:  resolver,
		nav:       nav,
		harvester: harvester,
		diag:      diag,
		sink:      sink,
		throttle:  utils.NewThrottle(opts.EntityInterval),
		opts:      opts,
		pacing:    pacing,
		logger:    logger,
		now:       time.Now,
	}
}

// Run processes entities in input order. It stops early only when ctx is
// cancelled; everything below entity level is logged and swallowed.
func (s *Scraper) Run(ctx context.Context, entities []models.SourceEntity, run *RunState) error {
	for i, e := range entities {
		if err := s.throttle.Wait(ctx); err != nil {
			return fmt.Errorf("run interrupted before entity %d: %w", e.RowIndex, err)
		}

		s.logger.Info("[%d/%d] ► %s", i+1, len(entities), e.Label())
		res := s.ProcessEntity(ctx, e, run)
		run.Processed++
		run.Rows += res.Rows

		if err := s.sink.EntityDone(run.Processed); err != nil {
			s.logger.Error("Checkpoint after entity %d failed: %v", e.RowIndex, err)
		}
		s.logger.Info("  ► Entity total: cards %d, reviews %d", res.Hits, res.Reviews)

		if err := s.pacing.Sleep(ctx, s.pacing.Between(s.opts.EntityJitter[0], s.opts.EntityJitter[1])); err != nil {
			return fmt.Errorf("run interrupted after entity %d: %w", e.RowIndex, err)
		}
	}
	return nil
}

// ProcessEntity resolves and harvests every unvisited candidate of e.
func (s *Scraper) ProcessEntity(ctx context.Context, e models.SourceEntity, run *RunState) EntityResult {
	var res EntityResult

	candidates := s.resolver.Resolve(ctx, e, e.Location)
	s.logger.Info("  Unique candidates: %d", len(candidates))

	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		if run.Visited.Contains(c.URL) {
			s.logger.Info("    - already visited: %s", c.URL)
			continue
		}

		started := s.now()
		card, ok := s.processCard(ctx, e, c, run, res.Hits)
		if ok {
			res.Hits++
			res.Rows += card.rows
			res.Reviews += card.summary.Collected
			run.Cards = append(run.Cards, card.summary)
		}

		if s.now().Sub(started) > s.opts.PerCardTimeout || errors.Is(card.err, context.DeadlineExceeded) {
			s.logger.Info("    • Per-card timeout, moving to next entity")
			break
		}
		if err := s.pacing.Sleep(ctx, s.pacing.Between(s.opts.CandidatePause[0], s.opts.CandidatePause[1])); err != nil {
			break
		}
	}
	return res
}

type cardResult struct {
	summary models.CardSummary
	rows    int
	err     error
}

// processCard harvests one candidate. ok is false when the candidate never
// became a card (failed to open, dead, or an alias of a visited card).
func (s *Scraper) processCard(ctx context.Context, e models.SourceEntity, c models.CandidateURL,
	run *RunState, hit int) (cardResult, bool) {
	cardCtx, cancel := context.WithTimeout(ctx, s.opts.PerCardTimeout)
	defer cancel()

	landing := s.nav.OpenCard(cardCtx, c.URL, run.Visited)
	if landing.Outcome != models.OutcomeOK {
		s.logger.Info("    - %s (%s): %s", landing.Reason, landing.Outcome, landing.FinalURL)
		return cardResult{err: cardCtx.Err()}, false
	}
	s.logger.Info("    Opened card: %s", landing.FinalURL)

	how := s.nav.OpenReviews(cardCtx, landing.FinalURL)
	s.logger.Debug("    Reviews view via %s", how)
	s.nav.PrepareView(cardCtx)

	hint, _ := s.nav.ExtractHint(cardCtx)
	result := s.harvester.Harvest(cardCtx, hint)
	if len(result.Records) == 0 && hint > 0 && cardCtx.Err() == nil {
		s.logger.Info("    Nothing collected despite hint %d, retrying once", hint)
		result = s.harvester.Harvest(cardCtx, hint)
	}

	summary := models.CardSummary{
		SrcRowIndex: e.RowIndex,
		ListingURL:  landing.FinalURL,
		Hint:        hint,
		Collected:   len(result.Records),
		State:       result.State,
	}
	rows := BuildRows(e, landing.FinalURL, hint, result.Records)

	// Snapshots use the parent context: the card context may have expired.
	switch {
	case len(result.Records) == 0:
		summary.Empty = true
		s.snapshot(ctx, storage.SnapshotName(e.RowIndex, hit, false))
		s.logger.Info("    Reviews: 0")
	case hint > 0 && len(result.Records) < hint:
		summary.Incomplete = true
		s.snapshot(ctx, storage.SnapshotName(e.RowIndex, hit, true))
		s.logger.Info("    Reviews collected: %d (expected: %d)", len(result.Records), hint)
	default:
		s.logger.Info("    Reviews collected: %d (expected: %s)", len(result.Records), hintLabel(hint))
	}

	if err := s.sink.Append(rows); err != nil {
		s.logger.Error("    Failed to store rows of %s: %v", landing.FinalURL, err)
	}
	return cardResult{summary: summary, rows: len(rows), err: cardCtx.Err()}, true
}

func (s *Scraper) snapshot(ctx context.Context, name string) {
	if s.diag == nil {
		return
	}
	html, err := s.page.PageSource(ctx)
	if err != nil {
		s.logger.Warn("    Snapshot %s: page source unavailable: %v", name, err)
	}
	png, err := s.page.Screenshot(ctx)
	if err != nil {
		s.logger.Debug("    Snapshot %s: screenshot failed: %v", name, err)
	}
	if _, err := s.diag.Save(name, html, png); err != nil {
		s.logger.Warn("    Snapshot %s not saved: %v", name, err)
		return
	}
	s.logger.Info("    ⚠ debug saved: %s.html/png", name)
}

// BuildRows tags records with entity and listing metadata. No records
// yields a single placeholder row carrying the error annotation.
func BuildRows(e models.SourceEntity, listingURL string, hint int, records []models.ReviewRecord) []models.OutputRow {
	var ratingReviews *int
	if hint > 0 {
		h := hint
		ratingReviews = &h
	}
	base := models.OutputRow{
		SrcRowIndex:   e.RowIndex,
		FirmID:        e.IDPrefix,
		OrgName:       e.Name,
		ListingURL:    listingURL,
		RatingReviews: ratingReviews,
	}

	if len(records) == 0 {
		row := base
		row.Error = emptyCardError
		return []models.OutputRow{row}
	}

	rows := make([]models.OutputRow, 0, len(records))
	for _, r := range records {
		row := base
		row.Review = r
		rows = append(rows, row)
	}
	return rows
}
