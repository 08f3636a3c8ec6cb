package results

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	domainerrors "contestvote/contexts/contest-voting/ballot-engine/domain/errors"
)

// CheckVisibility withholds results while the contest runs unless live results
// are on, and after the end unless results after end are on. The contest
// owner always sees results.
func CheckVisibility(contest entities.Contest, view entities.ResultsView) error {
	viewer := strings.TrimSpace(view.ViewerAccountID)
	if viewer != "" && viewer == strings.TrimSpace(contest.OwnerAccountID) {
		return nil
	}
	ended := contest.EndedAt(resolveNow(view))
	if !ended && !contest.ShowLiveResults {
		return domainerrors.ErrResultsNotYetVisible
	}
	if ended && !contest.ShowResultsAfterEnd {
		return domainerrors.ErrResultsNotYetVisible
	}
	return nil
}

// Compose assembles per-category results into the contest document.
// TotalVoters counts distinct voters across categories; TotalBallots sums
// the categories' ballots.
func Compose(
	contest entities.Contest,
	categoryResults []entities.CategoryResult,
	view entities.ResultsView,
) (entities.ContestResult, error) {
	if err := CheckVisibility(contest, view); err != nil {
		return entities.ContestResult{}, err
	}
	now := resolveNow(view)

	categories := make([]entities.CategoryResult, 0, len(categoryResults))
	voters := make(map[string]struct{})
	totalBallots := 0
	for _, result := range categoryResults {
		if result.ContestID != "" && result.ContestID != contest.ContestID {
			return entities.ContestResult{}, fmt.Errorf("compose category %s: %w", result.CategoryID, domainerrors.ErrCategoryNotInContest)
		}
		totalBallots += result.TotalBallots
		for _, key := range result.VoterKeys {
			voters[key] = struct{}{}
		}
		categories = append(categories, result)
	}
	sort.SliceStable(categories, func(i, j int) bool {
		if categories[i].Order != categories[j].Order {
			return categories[i].Order < categories[j].Order
		}
		return categories[i].CategoryID < categories[j].CategoryID
	})

	return entities.ContestResult{
		ContestID:    contest.ContestID,
		Name:         contest.Name,
		EndsAt:       contest.EndsAt.UTC(),
		Ended:        contest.EndedAt(now),
		TotalBallots: totalBallots,
		TotalVoters:  len(voters),
		Categories:   categories,
		ComputedAt:   now,
	}, nil
}

func resolveNow(view entities.ResultsView) time.Time {
	if view.Now.IsZero() {
		return time.Now().UTC()
	}
	return view.Now.UTC()
}
