package models

// CardSummary describes the outcome of harvesting one listing.
type CardSummary struct {
	SrcRowIndex int
	ListingURL  string
	Hint        int
	Collected   int
	State       TerminalState
	Empty       bool
	Incomplete  bool
}

// RunReport holds the computed summary over a whole run.
type RunReport struct {
	Entities         int
	EntitiesWithHits int
	Cards            int
	Rows             int
	Reviews          int
	EmptyCards       int
	IncompleteCards  int
	ByState          map[TerminalState]int
	TopCards         []CardSummary
}
