package twogis

import (
	"context"

	"review-harvester/browser"
	"review-harvester/models"
)

// ReviewLocator finds the reviews currently rendered on the page.
//
// Count is a cheap presence probe. It returns an error when the probe itself
// could not run, which callers must not confuse with a zero count. Locate is
// best effort: on any failure it returns nil, never an error.
type ReviewLocator interface {
	Count(ctx context.Context) (int, error)
	Locate(ctx context.Context) []models.RawReview
}

// markerSelectors is passed to extractScript.
type markerSelectors struct {
	Text   string `json:"text"`
	Date   string `json:"date"`
	Rating string `json:"rating"`
	Name   string `json:"name"`
	Stat   string `json:"stat"`
}

var defaultMarkers = markerSelectors{
	Text:   reviewTextSelector,
	Date:   reviewDateSelector,
	Rating: reviewRatingSelector,
	Name:   reviewerNameSelector,
	Stat:   reviewerStatSelector,
}

type scriptLocator struct {
	page    browser.Automation
	markers markerSelectors
}

// NewScriptLocator returns a ReviewLocator that runs the extraction scripts
// in page.
func NewScriptLocator(page browser.Automation) ReviewLocator {
	return &scriptLocator{page: page, markers: defaultMarkers}
}

func (l *scriptLocator) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.page.RunScript(ctx, countScript, &n, l.markers.Text); err != nil {
		return 0, err
	}
	return n, nil
}

func (l *scriptLocator) Locate(ctx context.Context) []models.RawReview {
	var items []models.RawReview
	if err := l.page.RunScript(ctx, extractScript, &items, l.markers); err != nil {
		return nil
	}
	return items
}
