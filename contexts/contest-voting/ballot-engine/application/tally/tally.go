// Package tally turns the ballots of one category into ranked results.
//
// Compute is a pure function: given the same category, contestants and
// ballots it always returns the same CategoryResult. Scoring per method:
//
//	pick-one         score = ballots naming the contestant; % of ballots
//	multiple-choice  score = ballots selecting the contestant; % of ballots
//	rank             Borda, position i of a ranking of length L earns L-i; % of all points
//	rating           score = mean rating, abstentions excluded; % of the scale
//	head-to-head     score = wins; % = wins / (wins + losses)
//
// Entries are ordered by score descending, then display order ascending,
// then contestant id.
package tally

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	domainerrors "contestvote/contexts/contest-voting/ballot-engine/domain/errors"
)

type accumulator struct {
	contestant  entities.Contestant
	points      int
	votes       int
	ratingSum   int
	ratingCount int
	wins        int
	losses      int
}

func Compute(
	category entities.Category,
	contestants []entities.Contestant,
	ballots []entities.Ballot,
) (entities.CategoryResult, error) {
	category = category.Normalized()
	if !category.VotingMethod.Valid() {
		return entities.CategoryResult{}, fmt.Errorf("tally category %s: %w", category.CategoryID, domainerrors.ErrInvalidCategory)
	}

	accs := make(map[string]*accumulator, len(contestants))
	order := make([]*accumulator, 0, len(contestants))
	for _, contestant := range contestants {
		if _, dup := accs[contestant.ContestantID]; dup {
			continue
		}
		acc := &accumulator{contestant: contestant}
		accs[contestant.ContestantID] = acc
		order = append(order, acc)
	}

	total := 0
	voterKeys := make(map[string]struct{}, len(ballots))
	for _, ballot := range ballots {
		if ballot.CategoryID != "" && ballot.CategoryID != category.CategoryID {
			continue
		}
		if err := score(category.VotingMethod, ballot, accs); err != nil {
			return entities.CategoryResult{}, err
		}
		total++
		voterKeys[hashVoterKey(ballot.VoterKey())] = struct{}{}
	}

	entries := make([]entities.ContestantResult, 0, len(order))
	pointSum := 0
	for _, acc := range order {
		pointSum += acc.points
	}
	for _, acc := range order {
		entries = append(entries, entry(category, acc, total, pointSum))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].Order != entries[j].Order {
			return entries[i].Order < entries[j].Order
		}
		return entries[i].ContestantID < entries[j].ContestantID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	if total > 0 && len(entries) > 0 && entries[0].Score > 0 {
		top := entries[0].Score
		entries[0].IsWinner = true
		for i := range entries {
			if entries[i].Score == top {
				entries[i].SharedTop = true
			}
		}
	}

	keys := make([]string, 0, len(voterKeys))
	for key := range voterKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return entities.CategoryResult{
		CategoryID:   category.CategoryID,
		ContestID:    category.ContestID,
		Name:         category.Name,
		VotingMethod: category.VotingMethod,
		Order:        category.Order,
		RatingScale:  category.RatingScale,
		TotalBallots: total,
		Entries:      entries,
		VoterKeys:    keys,
	}, nil
}

// score folds one ballot into the accumulators. References to contestants
// outside the list are ignored.
func score(method entities.VotingMethod, ballot entities.Ballot, accs map[string]*accumulator) error {
	if ballot.Payload == nil {
		return fmt.Errorf("tally ballot %s: %w", ballot.BallotID, domainerrors.InvalidPayload(domainerrors.RuleMissingPayload))
	}
	if ballot.Payload.Method() != method {
		return fmt.Errorf("tally ballot %s: %w", ballot.BallotID, domainerrors.InvalidPayload(domainerrors.RuleMethodMismatch))
	}

	switch p := ballot.Payload.(type) {
	case entities.PickOnePayload:
		if acc, ok := accs[p.ContestantID]; ok {
			acc.votes++
		}
	case entities.MultipleChoicePayload:
		seen := make(map[string]bool, len(p.Selections))
		for _, id := range p.Selections {
			if acc, ok := accs[id]; ok && !seen[id] {
				seen[id] = true
				acc.votes++
			}
		}
	case entities.RankPayload:
		length := len(p.Ranking)
		for i, id := range p.Ranking {
			if acc, ok := accs[id]; ok {
				acc.points += length - i
				acc.votes++
			}
		}
	case entities.RatingPayload:
		for _, id := range p.ContestantIDs() {
			if acc, ok := accs[id]; ok {
				acc.ratingSum += p.Ratings[id]
				acc.ratingCount++
				acc.votes++
			}
		}
	case entities.HeadToHeadPayload:
		for _, matchup := range p.Matchups {
			if acc, ok := accs[matchup.WinnerID]; ok {
				acc.wins++
				acc.votes++
			}
			if acc, ok := accs[matchup.LoserID]; ok {
				acc.losses++
				acc.votes++
			}
		}
	default:
		return fmt.Errorf("tally ballot %s: %w", ballot.BallotID, domainerrors.InvalidPayload(domainerrors.RuleMethodMismatch))
	}
	return nil
}

func entry(category entities.Category, acc *accumulator, total int, pointSum int) entities.ContestantResult {
	out := entities.ContestantResult{
		ContestantID: acc.contestant.ContestantID,
		Name:         acc.contestant.Name,
		Order:        acc.contestant.Order,
		WriteIn:      acc.contestant.WriteIn,
		Votes:        acc.votes,
	}
	switch category.VotingMethod {
	case entities.VotingMethodPickOne, entities.VotingMethodMultipleChoice:
		out.Score = float64(acc.votes)
		out.Percentage = ratio(acc.votes, total)
	case entities.VotingMethodRank:
		out.Score = float64(acc.points)
		out.Percentage = ratio(acc.points, pointSum)
	case entities.VotingMethodRating:
		if acc.ratingCount > 0 {
			out.Score = float64(acc.ratingSum) / float64(acc.ratingCount)
			out.Percentage = out.Score * 100 / float64(category.RatingScale)
		}
	case entities.VotingMethodHeadToHead:
		out.Score = float64(acc.wins)
		out.Wins = acc.wins
		out.Losses = acc.losses
		out.Percentage = ratio(acc.wins, acc.wins+acc.losses)
	}
	return out
}

// ratio returns part/whole as a percentage, 0 when whole is 0.
func ratio(part int, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}

func hashVoterKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
