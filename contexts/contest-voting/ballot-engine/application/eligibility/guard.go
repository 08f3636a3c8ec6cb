package eligibility

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "contestvote/contexts/contest-voting/ballot-engine/application"
	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	domainerrors "contestvote/contexts/contest-voting/ballot-engine/domain/errors"
	"contestvote/contexts/contest-voting/ballot-engine/ports"

	"github.com/gookit/validate"
)

// Submission is what the voter sends for one category.
type Submission struct {
	Payload  entities.Payload
	WriteIns []entities.WriteIn
	Passcode string
}

// Admission is the token handed unchanged to the ballot store. Payload is
// normalized; write-ins that alias an existing contestant are already
// resolved, so WriteIns holds only contestants still to be created.
type Admission struct {
	ContestID    string
	CategoryID   string
	Method       entities.VotingMethod
	Payload      entities.Payload
	Voter        entities.Voter
	IdentityKeys []entities.IdentityKey
	WriteIns     []entities.WriteIn
	AdmittedAt   time.Time
}

// Guard decides whether a submission is admissible. It only reads.
type Guard struct {
	Ballots     ports.BallotFinder
	Contestants ports.ContestantLister
	Clock       ports.Clock
	Logger      *slog.Logger
}

// Admit runs the eligibility checks in order and stops at the first failure:
// voting window, passcode, email domain, identity presence, duplicate
// identity, payload shape.
func (g Guard) Admit(
	ctx context.Context,
	contest entities.Contest,
	category entities.Category,
	submission Submission,
	voter entities.Voter,
) (Admission, error) {
	logger := application.ResolveLogger(g.Logger)
	now := application.ResolveNow(g.Clock)
	voter = voter.Normalized()
	category = category.Normalized()

	if strings.TrimSpace(category.ContestID) != strings.TrimSpace(contest.ContestID) {
		return Admission{}, domainerrors.ErrCategoryNotInContest
	}

	if !contest.AcceptsVotesAt(now) {
		return Admission{}, g.reject(logger, "outside_voting_window", contest, category, domainerrors.ErrOutsideVotingWindow)
	}
	if !contest.IsPublic && !CheckPasscode(contest.PasscodeHash, submission.Passcode) {
		return Admission{}, g.reject(logger, "invalid_passcode", contest, category, domainerrors.ErrInvalidPasscode)
	}
	if domain := normalizeDomain(contest.EmailDomain); domain != "" && !emailInDomain(voter.Email, domain) {
		return Admission{}, g.reject(logger, "email_domain_not_allowed", contest, category, domainerrors.ErrEmailDomainNotAllowed)
	}

	keys, err := identityKeys(contest, voter)
	if err != nil {
		return Admission{}, g.reject(logger, "identity_missing", contest, category, err)
	}
	for _, key := range keys {
		_, found, err := g.Ballots.FindBallotByIdentity(ctx, category.CategoryID, key)
		if err != nil {
			logger.Error("eligibility duplicate lookup failed",
				"event", "ballot_engine_eligibility_lookup_failed",
				"module", "contest-voting/ballot-engine",
				"layer", "application",
				"category_id", category.CategoryID,
				"identity_kind", string(key.Kind),
				"error", err.Error(),
			)
			return Admission{}, err
		}
		if found {
			return Admission{}, g.reject(logger, "duplicate_vote", contest, category, domainerrors.ErrDuplicateVote)
		}
	}

	contestants, err := g.Contestants.ListContestants(ctx, category.CategoryID)
	if err != nil {
		return Admission{}, err
	}
	payload, writeIns, err := normalizeSubmission(category, contestants, submission)
	if err != nil {
		return Admission{}, g.reject(logger, "invalid_payload", contest, category, err)
	}

	return Admission{
		ContestID:    contest.ContestID,
		CategoryID:   category.CategoryID,
		Method:       category.VotingMethod,
		Payload:      payload,
		Voter:        voter,
		IdentityKeys: keys,
		WriteIns:     writeIns,
		AdmittedAt:   now,
	}, nil
}

func (g Guard) reject(
	logger *slog.Logger,
	reason string,
	contest entities.Contest,
	category entities.Category,
	err error,
) error {
	attrs := []any{
		"event", "ballot_engine_eligibility_rejected",
		"module", "contest-voting/ballot-engine",
		"layer", "application",
		"reason", reason,
		"contest_id", contest.ContestID,
		"category_id", category.CategoryID,
	}
	if rule, ok := domainerrors.PayloadRule(err); ok {
		attrs = append(attrs, "rule", rule)
	}
	logger.Info("ballot rejected by eligibility guard", attrs...)
	return err
}

// identityKeys builds one claim per enabled restriction flag and fails when
// the voter lacks the identity that flag needs.
func identityKeys(contest entities.Contest, voter entities.Voter) ([]entities.IdentityKey, error) {
	kinds := contest.RestrictedKinds()
	keys := make([]entities.IdentityKey, 0, len(kinds))
	for _, kind := range kinds {
		value := voter.Identity(kind)
		switch kind {
		case entities.IdentityKindAccount:
			if value == "" {
				return nil, domainerrors.ErrAccountRequired
			}
		case entities.IdentityKindEmail:
			if value == "" || !validate.IsEmail(value) {
				return nil, domainerrors.ErrEmailRequired
			}
		case entities.IdentityKindDevice:
			if value == "" {
				return nil, domainerrors.ErrDeviceRequired
			}
		}
		keys = append(keys, entities.IdentityKey{Kind: kind, Value: value})
	}
	return keys, nil
}

func normalizeDomain(domain string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@")
}

// emailInDomain matches the host part exactly or as a subdomain, so
// "user@badexample.com" does not pass for "example.com".
func emailInDomain(email string, domain string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	host := strings.ToLower(email[at+1:])
	return host == domain || strings.HasSuffix(host, "."+domain)
}
