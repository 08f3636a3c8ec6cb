package httpadapter

import (
	"context"
	"log/slog"

	"contestvote/contexts/contest-voting/ballot-engine/application/commands"
	"contestvote/contexts/contest-voting/ballot-engine/application/queries"
	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	httptransport "contestvote/contexts/contest-voting/ballot-engine/transport/http"
)

type Handler struct {
	Votes        commands.SubmitVoteUseCase
	Results      queries.ResultsUseCase
	WinnerPolicy entities.WinnerPolicy
	Logger       *slog.Logger
}

func (h Handler) SubmitVoteHandler(
	ctx context.Context,
	contestID string,
	categoryID string,
	voter entities.Voter,
	idempotencyKey string,
	req httptransport.SubmitVoteRequest,
) (httptransport.SubmitVoteResponse, error) {
	payload, err := payloadFromRequest(req)
	if err != nil {
		return httptransport.SubmitVoteResponse{}, err
	}
	writeIns := make([]entities.WriteIn, 0, len(req.WriteIns))
	for _, item := range req.WriteIns {
		writeIns = append(writeIns, entities.WriteIn{Ref: item.Ref, Name: item.Name})
	}

	result, err := h.Votes.SubmitVote(ctx, commands.SubmitVoteCommand{
		ContestID:      contestID,
		CategoryID:     categoryID,
		Payload:        payload,
		WriteIns:       writeIns,
		Passcode:       req.Passcode,
		Voter:          voter,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.SubmitVoteResponse{}, err
	}
	method := ""
	if result.Ballot.Payload != nil {
		method = string(result.Ballot.Payload.Method())
	}
	return httptransport.SubmitVoteResponse{
		BallotID:   result.Ballot.BallotID,
		ContestID:  result.Ballot.ContestID,
		CategoryID: result.Ballot.CategoryID,
		Method:     method,
		CastAt:     result.Ballot.CastAt,
		Replayed:   result.Replayed,
	}, nil
}

func (h Handler) CategoryResultHandler(
	ctx context.Context,
	categoryID string,
	view entities.ResultsView,
) (httptransport.CategoryResultResponse, error) {
	result, err := h.Results.GetVisibleCategoryResult(ctx, categoryID, view)
	if err != nil {
		return httptransport.CategoryResultResponse{}, err
	}
	return mapCategoryResult(result, h.resolvePolicy()), nil
}

// VisibleCategoryResult is the snapshot sent to a live subscriber when it
// connects.
func (h Handler) VisibleCategoryResult(
	ctx context.Context,
	categoryID string,
	view entities.ResultsView,
) (entities.CategoryResult, error) {
	return h.Results.GetVisibleCategoryResult(ctx, categoryID, view)
}

func (h Handler) ContestResultHandler(
	ctx context.Context,
	contestID string,
	view entities.ResultsView,
) (httptransport.ContestResultResponse, error) {
	result, err := h.Results.GetContestResult(ctx, contestID, view)
	if err != nil {
		return httptransport.ContestResultResponse{}, err
	}
	policy := h.resolvePolicy()
	categories := make([]httptransport.CategoryResultResponse, 0, len(result.Categories))
	for _, category := range result.Categories {
		categories = append(categories, mapCategoryResult(category, policy))
	}
	return httptransport.ContestResultResponse{
		ContestID:    result.ContestID,
		Name:         result.Name,
		EndsAt:       result.EndsAt,
		Ended:        result.Ended,
		TotalBallots: result.TotalBallots,
		TotalVoters:  result.TotalVoters,
		Categories:   categories,
		ComputedAt:   result.ComputedAt,
	}, nil
}

func (h Handler) resolvePolicy() entities.WinnerPolicy {
	if h.WinnerPolicy.Valid() {
		return h.WinnerPolicy
	}
	return entities.WinnerPolicySingle
}

func payloadFromRequest(req httptransport.SubmitVoteRequest) (entities.Payload, error) {
	matchups := make([]entities.Matchup, 0, len(req.Matchups))
	for _, item := range req.Matchups {
		matchups = append(matchups, entities.Matchup{WinnerID: item.WinnerID, LoserID: item.LoserID})
	}
	document := entities.PayloadDocument{
		Method:       entities.VotingMethod(req.Method),
		Ranking:      req.Ranking,
		ContestantID: req.ContestantID,
		Selections:   req.Selections,
		Ratings:      req.Ratings,
	}
	if len(matchups) > 0 {
		document.Matchups = matchups
	}
	return document.Payload()
}

func mapCategoryResult(result entities.CategoryResult, policy entities.WinnerPolicy) httptransport.CategoryResultResponse {
	entries := make([]httptransport.ContestantResultResponse, 0, len(result.Entries))
	for _, entry := range result.Entries {
		entries = append(entries, httptransport.ContestantResultResponse{
			ContestantID: entry.ContestantID,
			Name:         entry.Name,
			WriteIn:      entry.WriteIn,
			Rank:         entry.Rank,
			Score:        entry.Score,
			Percentage:   entry.Percentage,
			Votes:        entry.Votes,
			Wins:         entry.Wins,
			Losses:       entry.Losses,
			IsWinner:     entry.IsWinner,
			SharedTop:    entry.SharedTop,
		})
	}
	winners := make([]string, 0, 1)
	for _, winner := range result.Winners(policy) {
		winners = append(winners, winner.ContestantID)
	}
	return httptransport.CategoryResultResponse{
		CategoryID:   result.CategoryID,
		ContestID:    result.ContestID,
		Name:         result.Name,
		VotingMethod: string(result.VotingMethod),
		RatingScale:  result.RatingScale,
		TotalBallots: result.TotalBallots,
		Entries:      entries,
		Winners:      winners,
	}
}
