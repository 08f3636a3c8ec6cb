package entities

import (
	"strings"
	"time"

	domainerrors "contestvote/contexts/contest-voting/ballot-engine/domain/errors"
)

type VotingMethod string

const (
	VotingMethodRank           VotingMethod = "rank"
	VotingMethodPickOne        VotingMethod = "pick-one"
	VotingMethodMultipleChoice VotingMethod = "multiple-choice"
	VotingMethodRating         VotingMethod = "rating"
	VotingMethodHeadToHead     VotingMethod = "head-to-head"
)

func (m VotingMethod) Valid() bool {
	switch m {
	case VotingMethodRank,
		VotingMethodPickOne,
		VotingMethodMultipleChoice,
		VotingMethodRating,
		VotingMethodHeadToHead:
		return true
	default:
		return false
	}
}

const (
	MinRatingScale     = 3
	MaxRatingScale     = 10
	DefaultRatingScale = 5
)

type Contest struct {
	ContestID           string
	OwnerAccountID      string
	Name                string
	IsPublic            bool
	PasscodeHash        string
	EmailDomain         string
	OneVotePerDevice    bool
	OneVotePerEmail     bool
	OneVotePerAccount   bool
	StartsAt            *time.Time
	EndsAt              time.Time
	ShowLiveResults     bool
	ShowResultsAfterEnd bool
	CreatedAt           time.Time
}

func (c Contest) Validate() error {
	if strings.TrimSpace(c.ContestID) == "" || c.EndsAt.IsZero() {
		return domainerrors.ErrInvalidContest
	}
	if c.StartsAt != nil && !c.StartsAt.Before(c.EndsAt) {
		return domainerrors.ErrInvalidContest
	}
	if !c.IsPublic && strings.TrimSpace(c.PasscodeHash) == "" {
		return domainerrors.ErrInvalidContest
	}
	return nil
}

// AcceptsVotesAt reports whether now falls inside [StartsAt, EndsAt]. A nil
// StartsAt has no lower bound.
func (c Contest) AcceptsVotesAt(now time.Time) bool {
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return false
	}
	return !now.After(c.EndsAt)
}

func (c Contest) EndedAt(now time.Time) bool {
	return now.After(c.EndsAt)
}

// RestrictedKinds lists the identity dimensions a voter must be novel on.
func (c Contest) RestrictedKinds() []IdentityKind {
	kinds := make([]IdentityKind, 0, 3)
	if c.OneVotePerAccount {
		kinds = append(kinds, IdentityKindAccount)
	}
	if c.OneVotePerEmail {
		kinds = append(kinds, IdentityKindEmail)
	}
	if c.OneVotePerDevice {
		kinds = append(kinds, IdentityKindDevice)
	}
	return kinds
}

type Category struct {
	CategoryID    string
	ContestID     string
	Name          string
	VotingMethod  VotingMethod
	MaxRankings   int
	MaxSelections int
	RatingScale   int
	AllowWriteIns bool
	Order         int
}

// Normalized zeroes parameters that do not belong to the category's method
// and defaults an unset rating scale.
func (c Category) Normalized() Category {
	out := c
	if out.VotingMethod != VotingMethodRank {
		out.MaxRankings = 0
	}
	if out.VotingMethod != VotingMethodMultipleChoice {
		out.MaxSelections = 0
	}
	if out.VotingMethod != VotingMethodRating {
		out.RatingScale = 0
	} else if out.RatingScale == 0 {
		out.RatingScale = DefaultRatingScale
	}
	if out.MaxRankings < 0 {
		out.MaxRankings = 0
	}
	if out.MaxSelections < 0 {
		out.MaxSelections = 0
	}
	return out
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.CategoryID) == "" || strings.TrimSpace(c.ContestID) == "" {
		return domainerrors.ErrInvalidCategory
	}
	if !c.VotingMethod.Valid() {
		return domainerrors.ErrInvalidCategory
	}
	normalized := c.Normalized()
	if normalized.VotingMethod == VotingMethodRating &&
		(normalized.RatingScale < MinRatingScale || normalized.RatingScale > MaxRatingScale) {
		return domainerrors.ErrInvalidCategory
	}
	return nil
}

type Contestant struct {
	ContestantID string
	CategoryID   string
	Name         string
	Order        int
	WriteIn      bool
	CreatedAt    time.Time
}

// WriteIn names a contestant the voter proposes at vote time. Ref is the
// placeholder id the ballot payload uses for it until the store assigns one.
type WriteIn struct {
	Ref  string
	Name string
}

const MaxWriteInNameLength = 120
