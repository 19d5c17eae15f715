package twogis

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"review-harvester/models"
	"review-harvester/utils"
)

func newTestResolver(page *fakePage) *Resolver {
	return NewResolver(page, newTestNavigator(page), testSite, "998", utils.NewNopLogger())
}

func resultPage(ids ...string) string {
	html := "<html><body>"
	for _, id := range ids {
		html += `<a href="/tashkent/firm/` + id + `">card</a>`
	}
	return html + "</body></html>"
}

func urls(cands []models.CandidateURL) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.URL)
	}
	return out
}

func TestResolvePhoneAndName(t *testing.T) {
	page := newFakePage()
	page.pages[testSite.SearchURL("+998901234567", nil)] = resultPage("111")
	page.pages[testSite.SearchURL("998901234567", nil)] = resultPage("111")
	page.pages[testSite.SearchURL("Cafe X", nil)] = resultPage("222", "111")

	e := models.SourceEntity{RowIndex: 4, Name: "Cafe X", Phones: "901234567"}
	got := newTestResolver(page).Resolve(context.Background(), e, nil)

	wantSearches := []string{
		testSite.SearchURL("+998901234567", nil),
		testSite.SearchURL("998901234567", nil),
		testSite.SearchURL("901234567", nil),
		testSite.SearchURL("Cafe X", nil),
	}
	if diff := cmp.Diff(wantSearches, page.navigations); diff != "" {
		t.Errorf("searches (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{testSite.FirmURL("111"), testSite.FirmURL("222")}, urls(got)); diff != "" {
		t.Errorf("candidates (-want +got):\n%s", diff)
	}
	if got[0].Method != models.DiscoveredByPhone || got[1].Method != models.DiscoveredByName {
		t.Errorf("methods = %q, %q", got[0].Method, got[1].Method)
	}
}

func TestResolveIdentifierNeedsNoNetwork(t *testing.T) {
	page := newFakePage()
	e := models.SourceEntity{IDPrefix: "70000001"}

	got := newTestResolver(page).Resolve(context.Background(), e, nil)

	want := []string{testSite.FirmURL("70000001"), testSite.BranchURL("70000001")}
	if diff := cmp.Diff(want, urls(got)); diff != "" {
		t.Errorf("candidates (-want +got):\n%s", diff)
	}
	if len(page.navigations) != 0 {
		t.Errorf("unexpected navigation %v", page.navigations)
	}
}

func TestResolveFiltersSearchResultsByPrefix(t *testing.T) {
	page := newFakePage()
	page.pages[testSite.SearchURL("Cafe X", nil)] = resultPage("222", "333")

	e := models.SourceEntity{IDPrefix: "333", Name: "Cafe X"}
	got := newTestResolver(page).Resolve(context.Background(), e, nil)

	// identifier candidates come first; the name search keeps only 333,
	// which is already present
	want := []string{testSite.FirmURL("333"), testSite.BranchURL("333")}
	if diff := cmp.Diff(want, urls(got)); diff != "" {
		t.Errorf("candidates (-want +got):\n%s", diff)
	}
}

func TestResolveFailedSearchDegrades(t *testing.T) {
	page := newFakePage()
	nameSearch := testSite.SearchURL("Cafe X", nil)
	page.fail[nameSearch] = 10

	e := models.SourceEntity{Name: "Cafe X"}
	got := newTestResolver(page).Resolve(context.Background(), e, nil)

	if len(got) != 0 {
		t.Errorf("got %v; want no candidates", urls(got))
	}
}
