package tally

import (
	"testing"

	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	domainerrors "contestvote/contexts/contest-voting/ballot-engine/domain/errors"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contestants(categoryID string, ids ...string) []entities.Contestant {
	items := make([]entities.Contestant, 0, len(ids))
	for i, id := range ids {
		items = append(items, entities.Contestant{ContestantID: id, CategoryID: categoryID, Name: "Name " + id, Order: i})
	}
	return items
}

func ballot(id string, account string, payload entities.Payload) entities.Ballot {
	return entities.Ballot{BallotID: id, CategoryID: "cat-1", AccountID: account, Payload: payload}
}

func byID(result entities.CategoryResult) map[string]entities.ContestantResult {
	out := make(map[string]entities.ContestantResult, len(result.Entries))
	for _, entry := range result.Entries {
		out[entry.ContestantID] = entry
	}
	return out
}

func TestComputePickOne(t *testing.T) {
	category := entities.Category{CategoryID: "cat-1", ContestID: "contest-1", VotingMethod: entities.VotingMethodPickOne}
	ballots := []entities.Ballot{
		ballot("b1", "u1", entities.PickOnePayload{ContestantID: "A"}),
		ballot("b2", "u2", entities.PickOnePayload{ContestantID: "A"}),
		ballot("b3", "u3", entities.PickOnePayload{ContestantID: "A"}),
		ballot("b4", "u4", entities.PickOnePayload{ContestantID: "B"}),
		ballot("b5", "u5", entities.PickOnePayload{ContestantID: "B"}),
	}

	result, err := Compute(category, contestants("cat-1", "A", "B"), ballots)
	require.NoError(t, err)

	require.Len(t, result.Entries, 2)
	assert.Equal(t, 5, result.TotalBallots)
	assert.Equal(t, "A", result.Entries[0].ContestantID)
	assert.InDelta(t, 3, result.Entries[0].Score, 1e-9)
	assert.InDelta(t, 60, result.Entries[0].Percentage, 1e-9)
	assert.True(t, result.Entries[0].IsWinner)
	assert.Equal(t, 1, result.Entries[0].Rank)
	assert.InDelta(t, 40, result.Entries[1].Percentage, 1e-9)
	assert.False(t, result.Entries[1].IsWinner)
	assert.Len(t, result.VoterKeys, 5)
}

func TestComputeRankBordaWithOrderTieBreak(t *testing.T) {
	category := entities.Category{CategoryID: "cat-1", VotingMethod: entities.VotingMethodRank}
	ballots := []entities.Ballot{
		ballot("b1", "u1", entities.RankPayload{Ranking: []string{"A", "B", "C"}}),
		ballot("b2", "u2", entities.RankPayload{Ranking: []string{"B", "A", "C"}}),
	}

	result, err := Compute(category, contestants("cat-1", "A", "B", "C"), ballots)
	require.NoError(t, err)

	entries := byID(result)
	assert.InDelta(t, 5, entries["A"].Score, 1e-9)
	assert.InDelta(t, 5, entries["B"].Score, 1e-9)
	assert.InDelta(t, 2, entries["C"].Score, 1e-9)
	assert.InDelta(t, 500.0/12, entries["A"].Percentage, 1e-9)

	assert.Equal(t, []string{"A", "B", "C"}, []string{
		result.Entries[0].ContestantID, result.Entries[1].ContestantID, result.Entries[2].ContestantID,
	})
	assert.True(t, entries["A"].IsWinner)
	assert.False(t, entries["B"].IsWinner)
	assert.True(t, entries["A"].SharedTop)
	assert.True(t, entries["B"].SharedTop)
	assert.False(t, entries["C"].SharedTop)

	assert.Len(t, result.Winners(entities.WinnerPolicySingle), 1)
	assert.Len(t, result.Winners(entities.WinnerPolicyShared), 2)
}

func TestComputeRatingExcludesAbstentions(t *testing.T) {
	category := entities.Category{CategoryID: "cat-1", VotingMethod: entities.VotingMethodRating, RatingScale: 5}
	ballots := []entities.Ballot{
		ballot("b1", "u1", entities.RatingPayload{Ratings: map[string]int{"A": 5, "B": 3}}),
		ballot("b2", "u2", entities.RatingPayload{Ratings: map[string]int{"A": 3}}),
	}

	result, err := Compute(category, contestants("cat-1", "A", "B"), ballots)
	require.NoError(t, err)

	entries := byID(result)
	assert.InDelta(t, 4, entries["A"].Score, 1e-9)
	assert.InDelta(t, 80, entries["A"].Percentage, 1e-9)
	assert.InDelta(t, 3, entries["B"].Score, 1e-9)
	assert.InDelta(t, 60, entries["B"].Percentage, 1e-9)
	assert.Equal(t, 1, entries["B"].Votes)
	assert.Equal(t, 5, result.RatingScale)
}

func TestComputeHeadToHead(t *testing.T) {
	category := entities.Category{CategoryID: "cat-1", VotingMethod: entities.VotingMethodHeadToHead}
	ballots := []entities.Ballot{
		ballot("b1", "u1", entities.HeadToHeadPayload{Matchups: []entities.Matchup{
			{WinnerID: "A", LoserID: "B"},
			{WinnerID: "A", LoserID: "C"},
		}}),
	}

	result, err := Compute(category, contestants("cat-1", "A", "B", "C"), ballots)
	require.NoError(t, err)

	entries := byID(result)
	assert.Equal(t, 2, entries["A"].Wins)
	assert.Equal(t, 0, entries["A"].Losses)
	assert.InDelta(t, 100, entries["A"].Percentage, 1e-9)
	assert.Equal(t, 1, entries["B"].Losses)
	assert.InDelta(t, 0, entries["B"].Percentage, 1e-9)
	assert.Equal(t, "A", result.Entries[0].ContestantID)
}

func TestComputeHeadToHeadCountsEveryMatchup(t *testing.T) {
	category := entities.Category{CategoryID: "cat-1", VotingMethod: entities.VotingMethodHeadToHead}
	ballots := []entities.Ballot{
		ballot("b1", "u1", entities.HeadToHeadPayload{Matchups: []entities.Matchup{
			{WinnerID: "A", LoserID: "B"},
			{WinnerID: "B", LoserID: "A"},
			{WinnerID: "A", LoserID: "B"},
		}}),
	}

	result, err := Compute(category, contestants("cat-1", "A", "B"), ballots)
	require.NoError(t, err)

	entries := byID(result)
	assert.Equal(t, 2, entries["A"].Wins)
	assert.Equal(t, 1, entries["A"].Losses)
	assert.InDelta(t, 200.0/3, entries["A"].Percentage, 1e-9)
	assert.Equal(t, 1, entries["B"].Wins)
	assert.Equal(t, 2, entries["B"].Losses)
}

func TestComputeMultipleChoice(t *testing.T) {
	category := entities.Category{CategoryID: "cat-1", VotingMethod: entities.VotingMethodMultipleChoice}
	ballots := []entities.Ballot{
		ballot("b1", "u1", entities.MultipleChoicePayload{Selections: []string{"A", "B"}}),
		ballot("b2", "u2", entities.MultipleChoicePayload{Selections: []string{"B"}}),
	}

	result, err := Compute(category, contestants("cat-1", "A", "B"), ballots)
	require.NoError(t, err)

	entries := byID(result)
	assert.InDelta(t, 50, entries["A"].Percentage, 1e-9)
	assert.InDelta(t, 100, entries["B"].Percentage, 1e-9)
	assert.Equal(t, "B", result.Entries[0].ContestantID)
}

func TestComputeZeroBallots(t *testing.T) {
	category := entities.Category{CategoryID: "cat-1", VotingMethod: entities.VotingMethodRank}

	result, err := Compute(category, contestants("cat-1", "A", "B"), nil)
	require.NoError(t, err)

	assert.Zero(t, result.TotalBallots)
	require.Len(t, result.Entries, 2)
	for _, entry := range result.Entries {
		assert.Zero(t, entry.Score)
		assert.Zero(t, entry.Percentage)
		assert.False(t, entry.IsWinner)
		assert.False(t, entry.SharedTop)
	}
	assert.Empty(t, result.Winners(entities.WinnerPolicyShared))
}

func TestComputeIgnoresUnknownContestants(t *testing.T) {
	category := entities.Category{CategoryID: "cat-1", VotingMethod: entities.VotingMethodPickOne}
	ballots := []entities.Ballot{
		ballot("b1", "u1", entities.PickOnePayload{ContestantID: "ghost"}),
		ballot("b2", "u2", entities.PickOnePayload{ContestantID: "A"}),
	}

	result, err := Compute(category, contestants("cat-1", "A"), ballots)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalBallots)
	require.Len(t, result.Entries, 1)
	assert.InDelta(t, 50, result.Entries[0].Percentage, 1e-9)
}

func TestComputeRejectsMismatchedPayload(t *testing.T) {
	category := entities.Category{CategoryID: "cat-1", VotingMethod: entities.VotingMethodPickOne}
	_, err := Compute(category, contestants("cat-1", "A"), []entities.Ballot{
		ballot("b1", "u1", entities.RankPayload{Ranking: []string{"A"}}),
	})
	require.ErrorIs(t, err, domainerrors.ErrInvalidPayload)

	_, err = Compute(entities.Category{CategoryID: "cat-1", VotingMethod: "plurality"}, nil, nil)
	require.ErrorIs(t, err, domainerrors.ErrInvalidCategory)
}

func TestComputeIsDeterministic(t *testing.T) {
	category := entities.Category{CategoryID: "cat-1", VotingMethod: entities.VotingMethodRating, RatingScale: 10}
	ballots := []entities.Ballot{
		ballot("b1", "u1", entities.RatingPayload{Ratings: map[string]int{"A": 7, "B": 7, "C": 2}}),
		ballot("b2", "u2", entities.RatingPayload{Ratings: map[string]int{"C": 9, "A": 1}}),
		{BallotID: "b3", CategoryID: "cat-1", DeviceID: "dev-9", Payload: entities.RatingPayload{Ratings: map[string]int{"B": 4}}},
	}

	first, err := Compute(category, contestants("cat-1", "A", "B", "C"), ballots)
	require.NoError(t, err)
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		reversed := make([]entities.Ballot, len(ballots))
		for j := range ballots {
			reversed[len(ballots)-1-j] = ballots[j]
		}
		if i%2 == 0 {
			reversed = ballots
		}
		again, err := Compute(category, contestants("cat-1", "A", "B", "C"), reversed)
		require.NoError(t, err)
		againJSON, err := json.Marshal(again)
		require.NoError(t, err)
		assert.JSONEq(t, string(firstJSON), string(againJSON))
	}
}

func TestComputeCountsDistinctVoters(t *testing.T) {
	category := entities.Category{CategoryID: "cat-1", VotingMethod: entities.VotingMethodPickOne}
	ballots := []entities.Ballot{
		{BallotID: "b1", CategoryID: "cat-1", AccountID: "u1", Payload: entities.PickOnePayload{ContestantID: "A"}},
		{BallotID: "b2", CategoryID: "cat-1", Payload: entities.PickOnePayload{ContestantID: "A"}},
		{BallotID: "b3", CategoryID: "cat-1", Payload: entities.PickOnePayload{ContestantID: "A"}},
	}

	result, err := Compute(category, contestants("cat-1", "A"), ballots)
	require.NoError(t, err)
	assert.Len(t, result.VoterKeys, 3)
	assert.NotContains(t, result.VoterKeys, "account:u1")
}
