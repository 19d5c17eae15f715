package twogis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"review-harvester/browser"
	"review-harvester/models"
)

func texts(recs []models.ReviewRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Text)
	}
	return out
}

func TestHarvestDeduplicatesAcrossRounds(t *testing.T) {
	page := newFakePage()
	batches := [][]models.RawReview{
		{review("a"), review("b")},
		{review("b"), review("c"), review("a")},
		{review("c"), review("d")},
	}
	loc := &fakeLocator{count: 2, locate: func(call int) []models.RawReview {
		if call > len(batches) {
			return batches[len(batches)-1]
		}
		return batches[call-1]
	}}

	res := newTestHarvester(page, loc, quietHarvestConfig()).Harvest(context.Background(), 0)

	require.Equal(t, []string{"a", "b", "c", "d"}, texts(res.Records))
	seen := map[string]bool{}
	for _, r := range res.Records {
		require.False(t, seen[r.ID], "duplicate identity key %s", r.ID)
		seen[r.ID] = true
	}
}

func TestHarvestSameTextDifferentDateKept(t *testing.T) {
	page := newFakePage()
	a := review("отлично")
	b := review("отлично")
	b.Date = "2 мая 2024"
	loc := &fakeLocator{count: 2, locate: fixed(a, b, a)}

	res := newTestHarvester(page, loc, quietHarvestConfig()).Harvest(context.Background(), 0)
	require.Len(t, res.Records, 2)
}

func TestHarvestStagnatesAfterExactlyThreshold(t *testing.T) {
	for _, threshold := range []int{1, 3, 5} {
		page := newFakePage()
		loc := &fakeLocator{count: 2, locate: fixed(review("a"), review("b"))}
		cfg := quietHarvestConfig()
		cfg.StagnationRounds = threshold

		res := newTestHarvester(page, loc, cfg).Harvest(context.Background(), 0)

		require.Equal(t, models.StateStagnant, res.State)
		require.Equal(t, threshold, res.Rounds)
		require.Len(t, res.Records, 2)
	}
}

func TestHarvestGrowthResetsStagnation(t *testing.T) {
	page := newFakePage()
	// grows on calls 1..4 then freezes
	loc := &fakeLocator{count: 1, locate: func(call int) []models.RawReview {
		if call > 4 {
			call = 4
		}
		return growing()(call)
	}}
	cfg := quietHarvestConfig()
	cfg.StagnationRounds = 2

	res := newTestHarvester(page, loc, cfg).Harvest(context.Background(), 0)

	require.Equal(t, models.StateStagnant, res.State)
	// initial load is call 1; rounds 1..3 grow, rounds 4 and 5 stagnate
	require.Equal(t, 5, res.Rounds)
	require.Len(t, res.Records, 4)
}

func TestHarvestHintReachedIssuesNoActions(t *testing.T) {
	page := newFakePage()
	page.clickResult = true
	loc := &fakeLocator{count: 2, locate: fixed(review("a"), review("b"))}

	res := newTestHarvester(page, loc, quietHarvestConfig()).Harvest(context.Background(), 2)

	require.Equal(t, models.StateHintReached, res.State)
	require.Equal(t, 1, res.Rounds)
	require.Zero(t, page.clicks)
	require.Zero(t, page.scrolls)
	require.Len(t, res.Records, 2)
}

func TestHarvestHintReachedMidway(t *testing.T) {
	page := newFakePage()
	page.clickResult = true
	loc := &fakeLocator{count: 1, locate: growing()}

	res := newTestHarvester(page, loc, quietHarvestConfig()).Harvest(context.Background(), 3)

	require.Equal(t, models.StateHintReached, res.State)
	// one click in round 1; round 2 reaches the hint before acting
	require.Equal(t, 1, page.clicks)
	require.GreaterOrEqual(t, len(res.Records), 3)
}

func TestHarvestTimesOut(t *testing.T) {
	page := newFakePage()
	loc := &fakeLocator{count: 1, locate: growing()}
	cfg := quietHarvestConfig()
	cfg.Timeout = 30 * time.Second

	h := newTestHarvester(page, loc, cfg)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time {
		clock = clock.Add(10 * time.Second)
		return clock
	}

	res := h.Harvest(context.Background(), 0)

	require.Equal(t, models.StateTimedOut, res.State)
	require.Equal(t, 3, res.Rounds)
}

func TestHarvestCancelledContextTimesOut(t *testing.T) {
	page := newFakePage()
	loc := &fakeLocator{count: 1, locate: growing()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestHarvester(page, loc, quietHarvestConfig()).Harvest(ctx, 0)

	require.Equal(t, models.StateTimedOut, res.State)
	require.Zero(t, res.Rounds)
}

func TestHarvestMaxSteps(t *testing.T) {
	page := newFakePage()
	loc := &fakeLocator{count: 1, locate: growing()}
	cfg := quietHarvestConfig()
	cfg.MaxSteps = 4

	res := newTestHarvester(page, loc, cfg).Harvest(context.Background(), 0)

	require.Equal(t, models.StateMaxSteps, res.State)
	require.Equal(t, 4, res.Rounds)
}

func TestHarvestTrueEmptyShortCircuits(t *testing.T) {
	page := newFakePage()
	loc := &fakeLocator{count: 0, locate: fixed(review("never"))}

	res := newTestHarvester(page, loc, quietHarvestConfig()).Harvest(context.Background(), 0)

	require.Equal(t, models.StateNoReviews, res.State)
	require.Empty(t, res.Records)
	require.Zero(t, loc.locates)
	require.Zero(t, page.clicks+page.scrolls)
}

func TestHarvestProbeFailureIsNotEmpty(t *testing.T) {
	page := newFakePage()
	loc := &fakeLocator{countErr: errors.New("selector engine unavailable"), locate: fixed(review("a"))}

	res := newTestHarvester(page, loc, quietHarvestConfig()).Harvest(context.Background(), 0)

	require.NotEqual(t, models.StateNoReviews, res.State)
	require.Equal(t, []string{"a"}, texts(res.Records))
}

func TestHarvestProbeFailureWithNothingRenderedStagnates(t *testing.T) {
	page := newFakePage()
	loc := &fakeLocator{countErr: errors.New("boom")}

	res := newTestHarvester(page, loc, quietHarvestConfig()).Harvest(context.Background(), 0)

	require.Equal(t, models.StateStagnant, res.State)
	require.Empty(t, res.Records)
}

func TestHarvestFlushPicksUpTail(t *testing.T) {
	page := newFakePage()
	// initial load plus three stagnant rounds see a and b; the flush sees c
	loc := &fakeLocator{count: 2, locate: func(call int) []models.RawReview {
		if call <= 4 {
			return []models.RawReview{review("a"), review("b")}
		}
		return []models.RawReview{review("a"), review("b"), review("c")}
	}}

	res := newTestHarvester(page, loc, quietHarvestConfig()).Harvest(context.Background(), 0)

	require.Equal(t, models.StateStagnant, res.State)
	require.Equal(t, []string{"a", "b", "c"}, texts(res.Records))
	// 3 loop rounds plus 3 flush clicks
	require.Equal(t, 6, page.clicks)
}

func TestHarvestKeyboardFallbackWhenNothingMoves(t *testing.T) {
	page := newFakePage()
	loc := &fakeLocator{count: 1, locate: fixed(review("a"))}
	cfg := quietHarvestConfig()
	cfg.StagnationRounds = 1

	newTestHarvester(page, loc, cfg).Harvest(context.Background(), 0)

	// Home on entry, then PageDown and End for the single round
	require.Equal(t, []string{browser.KeyHome, browser.KeyPageDown, browser.KeyEnd}, page.keys)
}

func TestHarvestClickSkipsScroll(t *testing.T) {
	page := newFakePage()
	page.clickResult = true
	loc := &fakeLocator{count: 1, locate: fixed(review("a"))}
	cfg := quietHarvestConfig()
	cfg.StagnationRounds = 2
	cfg.FlushScrolls = 0

	newTestHarvester(page, loc, cfg).Harvest(context.Background(), 0)

	require.Zero(t, page.scrolls)
	require.Equal(t, 2+cfg.FlushClicks, page.clicks)
}

func TestHarvestDecodesRating(t *testing.T) {
	page := newFakePage()
	r := review("a")
	r.Width = "45px"
	loc := &fakeLocator{count: 1, locate: fixed(r)}

	res := newTestHarvester(page, loc, quietHarvestConfig()).Harvest(context.Background(), 1)

	require.Len(t, res.Records, 1)
	require.NotNil(t, res.Records[0].Rating)
	require.Equal(t, "4.5", *res.Records[0].Rating)
	require.Nil(t, res.Records[0].LikesCount)
}

func TestHarvestFlushSurvivesExpiredContext(t *testing.T) {
	page := newFakePage()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the context ends during the first round; "tail" only renders later
	loc := &fakeLocator{count: 1, locate: func(call int) []models.RawReview {
		switch call {
		case 1:
			return []models.RawReview{review("a")}
		case 2:
			cancel()
			return []models.RawReview{review("a"), review("b")}
		default:
			return []models.RawReview{review("a"), review("b"), review("tail")}
		}
	}}
	cfg := quietHarvestConfig()

	res := newTestHarvester(page, loc, cfg).Harvest(ctx, 0)

	require.Equal(t, models.StateTimedOut, res.State)
	require.Equal(t, []string{"a", "b", "tail"}, texts(res.Records))
	require.Equal(t, cfg.FlushScrolls, page.scrolls)
	require.Equal(t, cfg.FlushClicks, page.clicks)
}

func TestHarvestLoadMoreExcludesReviewText(t *testing.T) {
	page := newFakePage()
	loc := &fakeLocator{count: 1, locate: fixed(review("покажите больше фото"))}
	cfg := quietHarvestConfig()
	cfg.StagnationRounds = 1

	newTestHarvester(page, loc, cfg).Harvest(context.Background(), 0)

	require.Equal(t, []any{loadMorePattern, reviewTextSelector}, page.clickArgs)
	require.Contains(t, clickMoreScript, "b.matches(textSel)")
}
