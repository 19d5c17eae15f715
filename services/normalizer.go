package services

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"review-harvester/models"
)

// DefaultPixelsPerStar is how many CSS pixels of star-bar width the site
// renders per rating unit. It is a property of the site's current markup,
// not of ratings in general; if the markup changes, ratings silently drift.
const DefaultPixelsPerStar = 10.0

var (
	// pxRegexp captures the magnitude in a CSS length like "45px"
	pxRegexp = regexp.MustCompile(`(?i)([\d.]+)\s*px`)
	// leadingNumberRegexp mimics JS parseFloat on a bare value
	leadingNumberRegexp = regexp.MustCompile(`^\s*([+-]?(?:\d+\.?\d*|\.\d+))`)
	// firstIntRegexp captures the first run of digits
	firstIntRegexp = regexp.MustCompile(`\d+`)
	// hintRegexp captures a number that may contain thousands spaces: "1 234"
	hintRegexp = regexp.MustCompile(`\d[\d\s]*`)
	// phoneSplitRegexp separates several numbers packed into one cell
	phoneSplitRegexp = regexp.MustCompile(`[;,/|]+|\s{2,}`)
	nonDigitRegexp   = regexp.MustCompile(`\D+`)
)

// Normalizer turns raw extracted review fields into canonical records.
type Normalizer struct {
	PixelsPerStar float64
}

// NewNormalizer creates a Normalizer. A non-positive scale falls back to
// DefaultPixelsPerStar.
func NewNormalizer(pixelsPerStar float64) *Normalizer {
	if pixelsPerStar <= 0 {
		pixelsPerStar = DefaultPixelsPerStar
	}
	return &Normalizer{PixelsPerStar: pixelsPerStar}
}

// Normalize builds a ReviewRecord from a raw item. It returns false when the
// item has no text after whitespace normalization.
func (n *Normalizer) Normalize(raw models.RawReview) (models.ReviewRecord, bool) {
	text := NormText(raw.Text)
	if text == "" {
		return models.ReviewRecord{}, false
	}
	date := NormText(raw.Date)

	rec := models.ReviewRecord{
		ID:                   IdentityKey(text, date),
		Text:                 text,
		Date:                 optional(date),
		ReviewerName:         optional(NormText(raw.Name)),
		ReviewerTotalReviews: ParseFirstInt(raw.ReviewCount),
	}
	if rating, ok := n.DecodeRating(raw.Width); ok {
		rec.Rating = &rating
	}
	return rec, true
}

// DecodeRating converts a star-bar width such as "45px" into a rating
// string rounded to one decimal ("4.5").
func (n *Normalizer) DecodeRating(width string) (string, bool) {
	width = strings.TrimSpace(width)
	if width == "" {
		return "", false
	}

	var numeric string
	if m := pxRegexp.FindStringSubmatch(width); len(m) == 2 {
		numeric = m[1]
	} else if m := leadingNumberRegexp.FindStringSubmatch(width); len(m) == 2 {
		numeric = m[1]
	} else {
		return "", false
	}

	px, err := strconv.ParseFloat(numeric, 64)
	if err != nil || math.IsInf(px, 0) || math.IsNaN(px) {
		return "", false
	}

	scale := n.PixelsPerStar
	if scale <= 0 {
		scale = DefaultPixelsPerStar
	}
	val := math.Round(px/scale*10) / 10
	return strconv.FormatFloat(val, 'f', -1, 64), true
}

// IdentityKey is the content hash used to deduplicate reviews across
// overlapping renders. Both inputs must already be normalized.
func IdentityKey(text, date string) string {
	sum := md5.Sum([]byte(text + "|" + date))
	return hex.EncodeToString(sum[:])
}

// NormText strips leading/trailing whitespace and collapses internal whitespace.
func NormText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

// ParseFirstInt returns the first integer found in s, or nil.
func ParseFirstInt(s string) *int {
	m := firstIntRegexp.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}

// ParseHint extracts a review count such as "Отзывы 1 234" → 1234.
func ParseHint(s string) (int, bool) {
	m := hintRegexp.FindString(NormText(s))
	if m == "" {
		return 0, false
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, m)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SplitPhones splits a raw phone cell into individual numbers.
func SplitPhones(raw string) []string {
	var out []string
	for _, p := range phoneSplitRegexp.Split(raw, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PhoneVariants derives the digit-only search variants for one number.
// With country code "998": "901234567" → "+998901234567", "998901234567",
// "901234567".
func PhoneVariants(raw, countryCode string) []string {
	d := nonDigitRegexp.ReplaceAllString(raw, "")

	var vs []string
	switch {
	case countryCode != "" && strings.HasPrefix(d, countryCode) && len(d) >= 12:
		vs = []string{"+" + d, d, d[len(d)-9:]}
	case len(d) == 9:
		vs = []string{"+" + countryCode + d, countryCode + d, d}
	default:
		vs = append(vs, d)
		if len(d) >= 7 {
			vs = append(vs, d[len(d)-7:])
		}
	}

	out := make([]string, 0, len(vs))
	seen := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		if v == "" || v == "+" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// IDPrefix returns the identifier part before the first underscore.
func IDPrefix(fullID string) string {
	s := strings.TrimSpace(fullID)
	if before, _, found := strings.Cut(s, "_"); found {
		return before
	}
	return s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
