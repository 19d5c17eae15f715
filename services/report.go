package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"review-harvester/models"
	"review-harvester/utils"
)

type ReportService struct {
	logger *utils.Logger
}

func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger}
}

// Generate summarises card outcomes. entities is the number of processed
// input rows and rows the number of output rows emitted.
func (s *ReportService) Generate(cards []models.CardSummary, entities, rows int) *models.RunReport {
	report := &models.RunReport{
		Entities: entities,
		Rows:     rows,
		ByState:  make(map[models.TerminalState]int),
	}

	withHits := make(map[int]struct{})
	var harvested []models.CardSummary

	for _, c := range cards {
		report.Cards++
		report.ByState[c.State]++
		withHits[c.SrcRowIndex] = struct{}{}

		switch {
		case c.Empty:
			report.EmptyCards++
		case c.Incomplete:
			report.IncompleteCards++
		}
		if c.Collected > 0 {
			report.Reviews += c.Collected
			harvested = append(harvested, c)
		}
	}
	report.EntitiesWithHits = len(withHits)
	s.logger.Debug("[report] %d cards from %d entities, %d reviews", report.Cards, entities, report.Reviews)

	// Top 5 by harvested reviews
	sort.SliceStable(harvested, func(i, j int) bool {
		return harvested[i].Collected > harvested[j].Collected
	})
	if len(harvested) > 5 {
		report.TopCards = harvested[:5]
	} else {
		report.TopCards = harvested
	}

	return report
}

// Print renders the report to stdout.
func (s *ReportService) Print(r *models.RunReport) {
	s.Render(os.Stdout, r)
}

// Render writes the report to w.
func (s *ReportService) Render(w io.Writer, r *models.RunReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  REVIEW HARVEST SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Entities processed     : \033[1m%d\033[0m\n", r.Entities)
	fmt.Fprintf(w, "  Entities with cards    : \033[1m%d\033[0m\n", r.EntitiesWithHits)
	fmt.Fprintf(w, "  Cards harvested        : \033[1m%d\033[0m\n", r.Cards)
	fmt.Fprintf(w, "  Reviews collected      : \033[1;32m%d\033[0m\n", r.Reviews)
	fmt.Fprintf(w, "  Output rows            : \033[1m%d\033[0m\n", r.Rows)
	fmt.Fprintf(w, "  Empty cards            : \033[1;31m%d\033[0m\n", r.EmptyCards)
	fmt.Fprintf(w, "  Incomplete cards       : \033[1;33m%d\033[0m\n\n", r.IncompleteCards)

	states := make([]models.TerminalState, 0, len(r.ByState))
	for st := range r.ByState {
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })

	fmt.Fprintf(w, "\033[1;33m  Card outcomes\033[0m\n")
	outcomes := table.NewWriter()
	outcomes.SetOutputMirror(w)
	outcomes.AppendHeader(table.Row{"Stopped by", "Cards"})
	for _, st := range states {
		outcomes.AppendRow(table.Row{st.String(), r.ByState[st]})
	}
	outcomes.SetStyle(table.StyleRounded)
	outcomes.Render()
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Top cards by reviews\033[0m\n")
	if len(r.TopCards) == 0 {
		fmt.Fprintf(w, "  No reviews harvested\n")
	} else {
		top := table.NewWriter()
		top.SetOutputMirror(w)
		top.AppendHeader(table.Row{"#", "Listing", "Collected", "Expected"})
		for i, c := range r.TopCards {
			expected := "—"
			if c.Hint > 0 {
				expected = strconv.Itoa(c.Hint)
			}
			top.AppendRow(table.Row{i + 1, truncate(c.ListingURL, 48), c.Collected, expected})
		}
		top.SetStyle(table.StyleRounded)
		top.Render()
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
