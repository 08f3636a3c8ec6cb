package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Rule    string `json:"rule,omitempty"`
}

type MatchupRequest struct {
	WinnerID string `json:"winner_id"`
	LoserID  string `json:"loser_id"`
}

type WriteInRequest struct {
	Ref  string `json:"ref"`
	Name string `json:"name"`
}

// SubmitVoteRequest carries exactly one method body selected by Method.
type SubmitVoteRequest struct {
	Method       string           `json:"method"`
	Ranking      []string         `json:"ranking,omitempty"`
	ContestantID string           `json:"contestant_id,omitempty"`
	Selections   []string         `json:"selections,omitempty"`
	Ratings      map[string]int   `json:"ratings,omitempty"`
	Matchups     []MatchupRequest `json:"matchups,omitempty"`
	WriteIns     []WriteInRequest `json:"write_ins,omitempty"`
	Passcode     string           `json:"passcode,omitempty"`
}

type SubmitVoteResponse struct {
	BallotID   string    `json:"ballot_id"`
	ContestID  string    `json:"contest_id"`
	CategoryID string    `json:"category_id"`
	Method     string    `json:"method"`
	CastAt     time.Time `json:"cast_at"`
	Replayed   bool      `json:"replayed"`
}

type ContestantResultResponse struct {
	ContestantID string  `json:"contestant_id"`
	Name         string  `json:"name"`
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

type CategoryResultResponse struct {
	CategoryID   string                     `json:"category_id"`
	ContestID    string                     `json:"contest_id"`
	Name         string                     `json:"name"`
	VotingMethod string                     `json:"voting_method"`
	RatingScale  int                        `json:"rating_scale,omitempty"`
	TotalBallots int                        `json:"total_ballots"`
	Entries      []ContestantResultResponse `json:"entries"`
	Winners      []string                   `json:"winners"`
}

type ContestResultResponse struct {
	ContestID    string                   `json:"contest_id"`
	Name         string                   `json:"name"`
	EndsAt       time.Time                `json:"ends_at"`
	Ended        bool                     `json:"ended"`
	TotalBallots int                      `json:"total_ballots"`
	TotalVoters  int                      `json:"total_voters"`
	Categories   []CategoryResultResponse `json:"categories"`
	ComputedAt   time.Time                `json:"computed_at"`
}
