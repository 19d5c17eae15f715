package twogis

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"review-harvester/models"
)

var (
	// cardPathRegexp captures the listing path inside any site href
	cardPathRegexp = regexp.MustCompile(`(/(?:firm|branch)/\d+)`)
	// cardIDRegexp captures the numeric listing id
	cardIDRegexp = regexp.MustCompile(`/(?:firm|branch)/(\d+)`)
)

// Site holds the URL conventions of one locale of the directory site.
type Site struct {
	BaseDomain string
	CitySlug   string
}

// Root is the locale's home path; landing here means the listing is gone.
func (s Site) Root() string {
	return strings.TrimRight(s.BaseDomain, "/") + "/" + s.CitySlug
}

func (s Site) FirmURL(id string) string   { return s.Root() + "/firm/" + id }
func (s Site) BranchURL(id string) string { return s.Root() + "/branch/" + id }

// SearchURL builds a textual search, biased to loc when given.
func (s Site) SearchURL(query string, loc *models.GeoPoint) string {
	base := s.Root() + "/search/" + url.PathEscape(query)
	if loc == nil {
		return base
	}
	return fmt.Sprintf("%s?m=%s%%2C%s%%2F12", base,
		strconv.FormatFloat(loc.Lon, 'f', -1, 64),
		strconv.FormatFloat(loc.Lat, 'f', -1, 64))
}

// InNamespace reports whether u is a page of this locale.
func (s Site) InNamespace(u string) bool {
	return strings.HasPrefix(u, s.Root()+"/")
}

// IsHome reports whether u is the locale root.
func (s Site) IsHome(u string) bool {
	return strings.TrimRight(u, "/") == s.Root()
}

// CanonicalCard rewrites any href that mentions a listing into the
// canonical listing URL of this locale.
func (s Site) CanonicalCard(href string) (string, bool) {
	m := cardPathRegexp.FindStringSubmatch(href)
	if len(m) < 2 {
		return "", false
	}
	return s.Root() + m[1], true
}

// ListingID returns the numeric listing id in u, or "".
func ListingID(u string) string {
	m := cardIDRegexp.FindStringSubmatch(u)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// FilterByPrefix keeps the candidates whose listing id equals prefix. If
// nothing matches, the input is returned unchanged.
func FilterByPrefix(cands []models.CandidateURL, prefix string) []models.CandidateURL {
	if prefix == "" {
		return cands
	}
	var filtered []models.CandidateURL
	for _, c := range cands {
		if ListingID(c.URL) == prefix {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return cands
	}
	return filtered
}
