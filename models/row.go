package models

import "strconv"

// OutputRow is one line of the output table: a review, or a placeholder for
// a card that produced none.
type OutputRow struct {
	SrcRowIndex   int
	FirmID        string
	OrgName       string
	ListingURL    string
	RatingValue   *string
	RatingReviews *int
	Review        ReviewRecord
	Error         string
}

// OutputColumns is the fixed column set, in order.
var OutputColumns = []string{
	"src_row_index", "firm_id", "org_name", "two_gis_url",
	"rating_value", "rating_reviews",
	"review_id", "review_date", "review_rating",
	"reviewer_name", "reviewer_total_reviews", "reviewer_profile_url",
	"review_text", "likes_count", "photos_count", "photos_urls",
	"owner_reply_text", "owner_reply_date", "review_link", "error",
}

// Record renders the row as strings aligned with OutputColumns. Absent
// values become empty cells.
func (r OutputRow) Record() []string {
	rv := r.Review
	return []string{
		strconv.Itoa(r.SrcRowIndex),
		r.FirmID,
		r.OrgName,
		r.ListingURL,
		str(r.RatingValue),
		num(r.RatingReviews),
		rv.ID,
		str(rv.Date),
		str(rv.Rating),
		str(rv.ReviewerName),
		num(rv.ReviewerTotalReviews),
		str(rv.ReviewerProfileURL),
		rv.Text,
		num(rv.LikesCount),
		num(rv.PhotosCount),
		str(rv.PhotosURLs),
		str(rv.OwnerReplyText),
		str(rv.OwnerReplyDate),
		str(rv.ReviewLink),
		r.Error,
	}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func num(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}
