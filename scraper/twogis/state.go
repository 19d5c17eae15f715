package twogis

import (
	"review-harvester/models"
	"review-harvester/utils"
)

// RunState is everything that outlives a single entity: the listings
// already harvested and the per-card summaries for the final report.
type RunState struct {
	Visited   *utils.URLSet
	Processed int
	Rows      int
	Cards     []models.CardSummary
}

func NewRunState() *RunState {
	return &RunState{Visited: utils.NewURLSet()}
}

// EntityResult summarizes one source entity.
type EntityResult struct {
	Hits    int
	Reviews int
	Rows    int
}
