package entities

import (
	"errors"
	"testing"
	"time"

	domainerrors "contestvote/contexts/contest-voting/ballot-engine/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContestAcceptsVotesAtWindowBoundaries(t *testing.T) {
	starts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ends := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	contest := Contest{ContestID: "c1", IsPublic: true, StartsAt: &starts, EndsAt: ends}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "before start", now: starts.Add(-time.Second), want: false},
		{name: "at start", now: starts, want: true},
		{name: "inside", now: starts.Add(time.Hour), want: true},
		{name: "at end", now: ends, want: true},
		{name: "after end", now: ends.Add(time.Nanosecond), want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, contest.AcceptsVotesAt(tc.now))
		})
	}
}

func TestContestWithoutStartHasNoLowerBound(t *testing.T) {
	ends := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	contest := Contest{ContestID: "c1", IsPublic: true, EndsAt: ends}

	assert.True(t, contest.AcceptsVotesAt(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, contest.EndedAt(ends))
	assert.True(t, contest.EndedAt(ends.Add(time.Second)))
}

func TestContestValidate(t *testing.T) {
	ends := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	late := ends.Add(time.Hour)

	require.NoError(t, Contest{ContestID: "c1", IsPublic: true, EndsAt: ends}.Validate())
	require.NoError(t, Contest{ContestID: "c1", PasscodeHash: "hash", EndsAt: ends}.Validate())
	require.ErrorIs(t, Contest{ContestID: "c1", IsPublic: true}.Validate(), domainerrors.ErrInvalidContest)
	require.ErrorIs(t, Contest{ContestID: "c1", IsPublic: true, EndsAt: ends, StartsAt: &late}.Validate(), domainerrors.ErrInvalidContest)
	require.ErrorIs(t, Contest{ContestID: "c1", EndsAt: ends}.Validate(), domainerrors.ErrInvalidContest)
}

func TestContestRestrictedKindsOrder(t *testing.T) {
	contest := Contest{OneVotePerDevice: true, OneVotePerEmail: true, OneVotePerAccount: true}
	assert.Equal(t, []IdentityKind{IdentityKindAccount, IdentityKindEmail, IdentityKindDevice}, contest.RestrictedKinds())
	assert.Empty(t, Contest{}.RestrictedKinds())
}

func TestCategoryNormalizedDropsForeignParameters(t *testing.T) {
	category := Category{
		VotingMethod:  VotingMethodPickOne,
		MaxRankings:   3,
		MaxSelections: 2,
		RatingScale:   7,
	}.Normalized()
	assert.Zero(t, category.MaxRankings)
	assert.Zero(t, category.MaxSelections)
	assert.Zero(t, category.RatingScale)

	rating := Category{VotingMethod: VotingMethodRating}.Normalized()
	assert.Equal(t, DefaultRatingScale, rating.RatingScale)
}

func TestCategoryValidateRatingScaleRange(t *testing.T) {
	base := Category{CategoryID: "cat", ContestID: "c1", VotingMethod: VotingMethodRating}
	for _, scale := range []int{3, 5, 10} {
		base.RatingScale = scale
		require.NoError(t, base.Validate(), "scale %d", scale)
	}
	for _, scale := range []int{1, 2, 11} {
		base.RatingScale = scale
		require.ErrorIs(t, base.Validate(), domainerrors.ErrInvalidCategory, "scale %d", scale)
	}
	require.ErrorIs(t, Category{CategoryID: "cat", ContestID: "c1", VotingMethod: "approval"}.Validate(), domainerrors.ErrInvalidCategory)
}

func TestVoterNormalizedLowercasesEmail(t *testing.T) {
	voter := Voter{AccountID: " acc ", Email: "  Ada@Example.COM ", DeviceID: " dev "}.Normalized()
	assert.Equal(t, "acc", voter.AccountID)
	assert.Equal(t, "ada@example.com", voter.Email)
	assert.Equal(t, "dev", voter.Identity(IdentityKindDevice))
	assert.Equal(t, "", voter.Identity("unknown"))
}

func TestBallotVoterKeyPrefersStrongestIdentity(t *testing.T) {
	assert.Equal(t, "account:a1", Ballot{BallotID: "b", AccountID: "a1", Email: "x@y.z"}.VoterKey())
	assert.Equal(t, "email:x@y.z", Ballot{BallotID: "b", Email: "X@y.z", DeviceID: "d"}.VoterKey())
	assert.Equal(t, "device:d", Ballot{BallotID: "b", DeviceID: "d"}.VoterKey())
	assert.Equal(t, "ballot:b", Ballot{BallotID: "b"}.VoterKey())
}

func TestPayloadDocumentDecodesEachMethod(t *testing.T) {
	tests := []struct {
		name     string
		document PayloadDocument
		want     Payload
	}{
		{
			name:     "rank",
			document: PayloadDocument{Method: VotingMethodRank, Ranking: []string{" a ", "b"}},
			want:     RankPayload{Ranking: []string{"a", "b"}},
		},
		{
			name:     "pick-one",
			document: PayloadDocument{Method: VotingMethodPickOne, ContestantID: " a"},
			want:     PickOnePayload{ContestantID: "a"},
		},
		{
			name:     "multiple-choice",
			document: PayloadDocument{Method: VotingMethodMultipleChoice, Selections: []string{"a", "c"}},
			want:     MultipleChoicePayload{Selections: []string{"a", "c"}},
		},
		{
			name:     "rating",
			document: PayloadDocument{Method: VotingMethodRating, Ratings: map[string]int{"a": 4}},
			want:     RatingPayload{Ratings: map[string]int{"a": 4}},
		},
		{
			name:     "head-to-head",
			document: PayloadDocument{Method: VotingMethodHeadToHead, Matchups: []Matchup{{WinnerID: "a", LoserID: "b"}}},
			want:     HeadToHeadPayload{Matchups: []Matchup{{WinnerID: "a", LoserID: "b"}}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := tc.document.Payload()
			require.NoError(t, err)
			assert.Equal(t, tc.want, payload)
			assert.Equal(t, tc.document.Method, payload.Method())
		})
	}
}

func TestPayloadDocumentRejectsUnknownMethodAndForeignFields(t *testing.T) {
	_, err := PayloadDocument{Method: "approval"}.Payload()
	require.ErrorIs(t, err, domainerrors.ErrInvalidPayload)

	_, err = PayloadDocument{Method: VotingMethodPickOne, ContestantID: "a", Ranking: []string{"a"}}.Payload()
	require.ErrorIs(t, err, domainerrors.ErrInvalidPayload)
	rule, ok := domainerrors.PayloadRule(err)
	require.True(t, ok)
	assert.Equal(t, domainerrors.RuleConflictingPayloadBody, rule)
}

func TestDocumentFromPayloadRoundTrips(t *testing.T) {
	original := HeadToHeadPayload{Matchups: []Matchup{{WinnerID: "a", LoserID: "b"}, {WinnerID: "c", LoserID: "a"}}}
	document, err := DocumentFromPayload(original)
	require.NoError(t, err)
	decoded, err := document.Payload()
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	_, err = DocumentFromPayload(nil)
	require.True(t, errors.Is(err, domainerrors.ErrInvalidPayload))
}

func TestRatingPayloadContestantIDsAreSorted(t *testing.T) {
	payload := RatingPayload{Ratings: map[string]int{"c": 1, "a": 2, "b": 3}}
	assert.Equal(t, []string{"a", "b", "c"}, payload.ContestantIDs())
}

func TestRewriteContestantIDs(t *testing.T) {
	mapping := map[string]string{"ref-1": "id-9"}

	assert.Equal(t, RankPayload{Ranking: []string{"a", "id-9"}},
		RewriteContestantIDs(RankPayload{Ranking: []string{"a", "ref-1"}}, mapping))
	assert.Equal(t, PickOnePayload{ContestantID: "id-9"},
		RewriteContestantIDs(PickOnePayload{ContestantID: "ref-1"}, mapping))
	assert.Equal(t, RatingPayload{Ratings: map[string]int{"id-9": 3}},
		RewriteContestantIDs(RatingPayload{Ratings: map[string]int{"ref-1": 3}}, mapping))
	assert.Equal(t, HeadToHeadPayload{Matchups: []Matchup{{WinnerID: "id-9", LoserID: "a"}}},
		RewriteContestantIDs(HeadToHeadPayload{Matchups: []Matchup{{WinnerID: "ref-1", LoserID: "a"}}}, mapping))
}

func TestCategoryResultWinnersByPolicy(t *testing.T) {
	result := CategoryResult{Entries: []ContestantResult{
		{ContestantID: "a", IsWinner: true, SharedTop: true},
		{ContestantID: "b", SharedTop: true},
		{ContestantID: "c"},
	}}

	single := result.Winners(WinnerPolicySingle)
	require.Len(t, single, 1)
	assert.Equal(t, "a", single[0].ContestantID)

	shared := result.Winners(WinnerPolicyShared)
	require.Len(t, shared, 2)
	assert.Equal(t, "b", shared[1].ContestantID)

	assert.Empty(t, CategoryResult{Entries: []ContestantResult{{ContestantID: "a"}}}.Winners(WinnerPolicySingle))
}
