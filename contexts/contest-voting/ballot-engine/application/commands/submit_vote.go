package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "contestvote/contexts/contest-voting/ballot-engine/application"
	"contestvote/contexts/contest-voting/ballot-engine/application/ballots"
	"contestvote/contexts/contest-voting/ballot-engine/application/eligibility"
	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	domainerrors "contestvote/contexts/contest-voting/ballot-engine/domain/errors"
	"contestvote/contexts/contest-voting/ballot-engine/ports"

	json "github.com/goccy/go-json"
)

// SubmitVoteCommand is the write-model input for casting one ballot.
type SubmitVoteCommand struct {
	ContestID      string
	CategoryID     string
	Payload        entities.Payload
	WriteIns       []entities.WriteIn
	Passcode       string
	Voter          entities.Voter
	IdempotencyKey string
}

// SubmitVoteResult returns the stored ballot and whether it was replayed from
// an earlier request with the same idempotency key.
type SubmitVoteResult struct {
	Ballot   entities.Ballot
	Replayed bool
}

// SubmitVoteUseCase runs a submission through the eligibility guard and the
// ballot store. An idempotency key is optional; without one no replay record
// is kept.
type SubmitVoteUseCase struct {
	Contests       ports.ContestRepository
	Ballots        ports.BallotReader
	Idempotency    ports.IdempotencyStore
	Guard          eligibility.Guard
	Store          ballots.Store
	Clock          ports.Clock
	Metrics        ports.Metrics
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func (uc SubmitVoteUseCase) SubmitVote(ctx context.Context, cmd SubmitVoteCommand) (SubmitVoteResult, error) {
	result, err := uc.submitVote(ctx, cmd)
	metrics := application.ResolveMetrics(uc.Metrics)
	switch {
	case err != nil:
		metrics.ObserveVote(domainerrors.RejectionCode(err))
	case result.Replayed:
		metrics.ObserveVote("replayed")
	default:
		metrics.ObserveVote("accepted")
	}
	return result, err
}

func (uc SubmitVoteUseCase) submitVote(ctx context.Context, cmd SubmitVoteCommand) (SubmitVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	contestID := strings.TrimSpace(cmd.ContestID)
	categoryID := strings.TrimSpace(cmd.CategoryID)
	logger.Info("vote submission processing started",
		"event", "ballot_engine_submit_vote_started",
		"module", "contest-voting/ballot-engine",
		"layer", "application",
		"contest_id", contestID,
		"category_id", categoryID,
	)
	if contestID == "" || categoryID == "" {
		logger.Warn("vote submission validation failed",
			"event", "ballot_engine_submit_vote_validation_failed",
			"module", "contest-voting/ballot-engine",
			"layer", "application",
			"contest_id", contestID,
			"category_id", categoryID,
		)
		return SubmitVoteResult{}, domainerrors.ErrInvalidSubmission
	}

	now := application.ResolveNow(uc.Clock)
	var replay *ports.IdempotencyRecord
	if key := strings.TrimSpace(cmd.IdempotencyKey); key != "" && uc.Idempotency != nil {
		hash, err := hashSubmitVoteCommand(cmd)
		if err != nil {
			return SubmitVoteResult{}, err
		}
		replay = &ports.IdempotencyRecord{
			Key:         key,
			RequestHash: hash,
			ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
		}
		result, found, err := uc.replayed(ctx, *replay, now)
		if err != nil || found {
			return result, err
		}
	}

	contest, err := uc.Contests.GetContest(ctx, contestID)
	if err != nil {
		return SubmitVoteResult{}, err
	}
	category, err := uc.Contests.GetCategory(ctx, categoryID)
	if err != nil {
		return SubmitVoteResult{}, err
	}

	admission, err := uc.Guard.Admit(ctx, contest, category, eligibility.Submission{
		Payload:  cmd.Payload,
		WriteIns: cmd.WriteIns,
		Passcode: cmd.Passcode,
	}, cmd.Voter)
	if err != nil {
		return uc.resolveLostRace(ctx, replay, now, err)
	}

	ballot, err := uc.Store.Append(ctx, admission, replay)
	if err != nil {
		return uc.resolveLostRace(ctx, replay, now, err)
	}

	logger.Info("vote submitted",
		"event", "ballot_engine_submit_vote_completed",
		"module", "contest-voting/ballot-engine",
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"contest_id", ballot.ContestID,
		"category_id", ballot.CategoryID,
	)
	return SubmitVoteResult{Ballot: ballot}, nil
}

// replayed returns the ballot stored under the request's idempotency key. A
// live record with a different request hash is ErrIdempotencyConflict.
func (uc SubmitVoteUseCase) replayed(
	ctx context.Context,
	request ports.IdempotencyRecord,
	now time.Time,
) (SubmitVoteResult, bool, error) {
	logger := application.ResolveLogger(uc.Logger)
	record, found, err := uc.Idempotency.Get(ctx, request.Key, now)
	if err != nil {
		logger.Error("vote submission idempotency lookup failed",
			"event", "ballot_engine_submit_vote_idempotency_lookup_failed",
			"module", "contest-voting/ballot-engine",
			"layer", "application",
			"error", err.Error(),
		)
		return SubmitVoteResult{}, false, err
	}
	if !found {
		return SubmitVoteResult{}, false, nil
	}
	if record.RequestHash != request.RequestHash {
		logger.Warn("vote submission idempotency conflict",
			"event", "ballot_engine_submit_vote_idempotency_conflict",
			"module", "contest-voting/ballot-engine",
			"layer", "application",
			"ballot_id", record.BallotID,
		)
		return SubmitVoteResult{}, false, domainerrors.ErrIdempotencyConflict
	}
	ballot, err := uc.Ballots.GetBallot(ctx, record.BallotID)
	if err != nil {
		return SubmitVoteResult{}, false, err
	}
	logger.Info("vote submission replayed",
		"event", "ballot_engine_submit_vote_replayed",
		"module", "contest-voting/ballot-engine",
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"category_id", ballot.CategoryID,
	)
	return SubmitVoteResult{Ballot: ballot, Replayed: true}, true, nil
}

// resolveLostRace turns a rejection caused by a concurrent request with the
// same idempotency key into that request's replay. Other errors pass through.
func (uc SubmitVoteUseCase) resolveLostRace(
	ctx context.Context,
	replay *ports.IdempotencyRecord,
	now time.Time,
	cause error,
) (SubmitVoteResult, error) {
	keyTaken := errors.Is(cause, domainerrors.ErrIdempotencyKeyTaken)
	if replay == nil || !(keyTaken || errors.Is(cause, domainerrors.ErrDuplicateVote)) {
		return SubmitVoteResult{}, cause
	}
	result, found, err := uc.replayed(ctx, *replay, now)
	if err != nil {
		return SubmitVoteResult{}, err
	}
	if found {
		return result, nil
	}
	if keyTaken {
		return SubmitVoteResult{}, domainerrors.ErrIdempotencyConflict
	}
	return SubmitVoteResult{}, cause
}

func (uc SubmitVoteUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

// hashSubmitVoteCommand fingerprints the request for replay detection. The
// passcode is left out so it never reaches the idempotency table.
func hashSubmitVoteCommand(cmd SubmitVoteCommand) (string, error) {
	var document any
	if cmd.Payload != nil {
		payload, err := entities.DocumentFromPayload(cmd.Payload)
		if err != nil {
			return "", err
		}
		document = payload
	}
	writeIns := make([]map[string]string, 0, len(cmd.WriteIns))
	for _, writeIn := range cmd.WriteIns {
		writeIns = append(writeIns, map[string]string{
			"ref":  strings.TrimSpace(writeIn.Ref),
			"name": strings.TrimSpace(writeIn.Name),
		})
	}
	voter := cmd.Voter.Normalized()
	raw, err := json.Marshal(map[string]any{
		"op":          "submit_vote",
		"contest_id":  strings.TrimSpace(cmd.ContestID),
		"category_id": strings.TrimSpace(cmd.CategoryID),
		"payload":     document,
		"write_ins":   writeIns,
		"account_id":  voter.AccountID,
		"email":       voter.Email,
		"device_id":   voter.DeviceID,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
