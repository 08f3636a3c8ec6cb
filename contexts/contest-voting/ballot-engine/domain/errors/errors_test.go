package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadErrorMatchesInvalidPayload(t *testing.T) {
	err := fmt.Errorf("admit: %w", InvalidPayload(RuleRankingExceedsMax))

	require.ErrorIs(t, err, ErrInvalidPayload)
	rule, ok := PayloadRule(err)
	require.True(t, ok)
	assert.Equal(t, RuleRankingExceedsMax, rule)
	assert.Contains(t, err.Error(), RuleRankingExceedsMax)

	_, ok = PayloadRule(ErrDuplicateVote)
	assert.False(t, ok)
}

func TestRejectionCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: ""},
		{err: ErrOutsideVotingWindow, want: "outside_voting_window"},
		{err: ErrInvalidPasscode, want: "invalid_passcode"},
		{err: ErrEmailDomainNotAllowed, want: "email_domain_not_allowed"},
		{err: ErrAccountRequired, want: "account_required"},
		{err: ErrEmailRequired, want: "email_required"},
		{err: ErrDeviceRequired, want: "device_required"},
		{err: ErrDuplicateVote, want: "duplicate_vote"},
		{err: ErrConflict, want: "duplicate_vote"},
		{err: InvalidPayload(RuleEmptySelection), want: "invalid_payload"},
		{err: ErrResultsNotYetVisible, want: "results_not_yet_visible"},
		{err: fmt.Errorf("lookup: %w", ErrContestNotFound), want: "contest_not_found"},
		{err: ErrIdempotencyConflict, want: "idempotency_conflict"},
		{err: errors.New("connection reset"), want: "internal_error"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, RejectionCode(tc.err), "%v", tc.err)
	}
}

func TestIsRejection(t *testing.T) {
	assert.True(t, IsRejection(ErrDuplicateVote))
	assert.False(t, IsRejection(nil))
	assert.False(t, IsRejection(errors.New("disk full")))
}
