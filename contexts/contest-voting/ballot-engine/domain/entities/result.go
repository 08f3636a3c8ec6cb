package entities

import "time"

type WinnerPolicy string

const (
	// WinnerPolicySingle names the first entry in tie-break order.
	WinnerPolicySingle WinnerPolicy = "single"
	// WinnerPolicyShared names every entry tied on the top score.
	WinnerPolicyShared WinnerPolicy = "shared"
)

func (p WinnerPolicy) Valid() bool {
	return p == WinnerPolicySingle || p == WinnerPolicyShared
}

type ContestantResult struct {
	ContestantID string  `json:"contestant_id"`
	Name         string  `json:"name"`
	Order        int     `json:"order"`
	WriteIn      bool    `json:"write_in"`
	Rank         int     `json:"rank"`
	Score        float64 `json:"score"`
	Percentage   float64 `json:"percentage"`
	Votes        int     `json:"votes"`
	Wins         int     `json:"wins,omitempty"`
	Losses       int     `json:"losses,omitempty"`
	IsWinner     bool    `json:"is_winner"`
	SharedTop    bool    `json:"shared_top"`
}

// CategoryResult is the tally of one category. It carries no timestamps so
// repeated computation over the same ballots yields identical documents.
type CategoryResult struct {
	CategoryID   string             `json:"category_id"`
	ContestID    string             `json:"contest_id"`
	Name         string             `json:"name"`
	VotingMethod VotingMethod       `json:"voting_method"`
	Order        int                `json:"order"`
	RatingScale  int                `json:"rating_scale,omitempty"`
	TotalBallots int                `json:"total_ballots"`
	Entries      []ContestantResult `json:"entries"`
	// VoterKeys are sorted, distinct, hashed voter identities behind the
	// counted ballots.
	VoterKeys []string `json:"voter_keys,omitempty"`
}

func (r CategoryResult) Winners(policy WinnerPolicy) []ContestantResult {
	winners := make([]ContestantResult, 0, 1)
	for _, entry := range r.Entries {
		switch policy {
		case WinnerPolicyShared:
			if entry.SharedTop {
				winners = append(winners, entry)
			}
		default:
			if entry.IsWinner {
				return append(winners, entry)
			}
		}
	}
	return winners
}

type ContestResult struct {
	ContestID    string           `json:"contest_id"`
	Name         string           `json:"name"`
	EndsAt       time.Time        `json:"ends_at"`
	Ended        bool             `json:"ended"`
	TotalBallots int              `json:"total_ballots"`
	TotalVoters  int              `json:"total_voters"`
	Categories   []CategoryResult `json:"categories"`
	ComputedAt   time.Time        `json:"computed_at"`
}

// ResultsView describes who reads results and when.
type ResultsView struct {
	Now             time.Time
	ViewerAccountID string
}
