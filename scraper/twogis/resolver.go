package twogis

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"review-harvester/browser"
	"review-harvester/models"
	"review-harvester/services"
	"review-harvester/utils"
)

// maxResultLinks caps how many anchors of one result page are inspected.
const maxResultLinks = 120

// Resolver turns a source entity into an ordered list of candidate listing
// URLs.
type Resolver struct {
	page        browser.Automation
	nav         *Navigator
	site        Site
	countryCode string
	logger      *utils.Logger
}

func NewResolver(page browser.Automation, nav *Navigator, site Site, countryCode string, logger *utils.Logger) *Resolver {
	return &Resolver{page: page, nav: nav, site: site, countryCode: countryCode, logger: logger}
}

// Resolve runs the phone, identifier and name strategies and merges their
// output, first seen first. Phone and name results are filtered by the
// entity's identifier prefix; identifier-derived URLs are not.
func (r *Resolver) Resolve(ctx context.Context, e models.SourceEntity, ref *models.GeoPoint) []models.CandidateURL {
	var all []models.CandidateURL

	if e.Phones != "" {
		found := FilterByPrefix(r.byPhone(ctx, e.Phones, ref), e.IDPrefix)
		r.logger.Info("  Phone candidates (after prefix filter): %d", len(found))
		all = append(all, found...)
	}

	if e.IDPrefix != "" {
		all = append(all, r.byID(e.IDPrefix)...)
		r.logger.Info("  Added firm/branch candidates for id prefix %s", e.IDPrefix)
	}

	if e.Name != "" {
		found := FilterByPrefix(r.byName(ctx, e.Name, ref), e.IDPrefix)
		r.logger.Info("  Name candidates (after prefix filter): %d", len(found))
		all = append(all, found...)
	}

	return r.dedupe(all)
}

func (r *Resolver) byPhone(ctx context.Context, phones string, ref *models.GeoPoint) []models.CandidateURL {
	var out []models.CandidateURL
	for _, raw := range services.SplitPhones(phones) {
		for _, q := range services.PhoneVariants(raw, r.countryCode) {
			out = append(out, r.search(ctx, q, ref, models.DiscoveredByPhone)...)
		}
	}
	return r.dedupe(out)
}

func (r *Resolver) byID(prefix string) []models.CandidateURL {
	return []models.CandidateURL{
		{URL: r.site.FirmURL(prefix), Method: models.DiscoveredByID},
		{URL: r.site.BranchURL(prefix), Method: models.DiscoveredByID},
	}
}

func (r *Resolver) byName(ctx context.Context, name string, ref *models.GeoPoint) []models.CandidateURL {
	return r.search(ctx, name, ref, models.DiscoveredByName)
}

// search loads one result page and collects its listing links. A page that
// fails to load yields nothing.
func (r *Resolver) search(ctx context.Context, query string, ref *models.GeoPoint, method string) []models.CandidateURL {
	u := r.site.SearchURL(query, ref)
	r.logger.Info("    → Search by %s: %s → %s", method, query, u)

	if r.nav.Load(ctx, u, r.nav.cfg.SearchRetries, r.nav.cfg.BaseDelay) != models.OutcomeOK {
		return nil
	}
	html, err := r.page.PageSource(ctx)
	if err != nil {
		r.logger.Debug("[resolver] page source for %s: %v", u, err)
		return nil
	}

	links := CollectCandidateLinks(html, r.site)
	r.logger.Info("      cards found: %d", len(links))

	out := make([]models.CandidateURL, 0, len(links))
	for _, l := range links {
		out = append(out, models.CandidateURL{URL: l, Method: method})
	}
	return out
}

// dedupe drops repeats and anything outside the site's namespace.
func (r *Resolver) dedupe(in []models.CandidateURL) []models.CandidateURL {
	seen := make(map[string]struct{}, len(in))
	out := make([]models.CandidateURL, 0, len(in))
	for _, c := range in {
		if !r.site.InNamespace(c.URL) {
			continue
		}
		if _, dup := seen[c.URL]; dup {
			continue
		}
		seen[c.URL] = struct{}{}
		out = append(out, c)
	}
	return out
}

// CollectCandidateLinks extracts canonical listing URLs from a result
// page's markup, in document order.
func CollectCandidateLinks(html string, site Site) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	doc.Find(`a[href*="/firm/"], a[href*="/branch/"]`).EachWithBreak(func(i int, a *goquery.Selection) bool {
		if i >= maxResultLinks {
			return false
		}
		href, _ := a.Attr("href")
		card, ok := site.CanonicalCard(strings.TrimSpace(href))
		if !ok {
			return true
		}
		if _, dup := seen[card]; !dup {
			seen[card] = struct{}{}
			out = append(out, card)
		}
		return true
	})
	return out
}
