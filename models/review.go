package models

// RawReview is one review item as returned by the page's structural locator,
// before any normalization. Width is the CSS width of the star bar.
type RawReview struct {
	Text        string `json:"text"`
	Date        string `json:"date"`
	Width       string `json:"width"`
	Name        string `json:"name"`
	ReviewCount string `json:"reviewCount"`
}

// ReviewRecord is a deduplicated review. Pointer fields are nil when the
// value is absent; the last group is never populated by the extractor but is
// carried so every row has the same schema.
type ReviewRecord struct {
	ID                   string
	Text                 string
	Date                 *string
	Rating               *string
	ReviewerName         *string
	ReviewerTotalReviews *int

	ReviewerProfileURL *string
	LikesCount         *int
	PhotosCount        *int
	PhotosURLs         *string
	OwnerReplyText     *string
	OwnerReplyDate     *string
	ReviewLink         *string
}
