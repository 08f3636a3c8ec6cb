package errors

import "errors"

var (
	ErrOutsideVotingWindow   = errors.New("contest is not accepting votes at this time")
	ErrInvalidPasscode       = errors.New("invalid contest passcode")
	ErrEmailDomainNotAllowed = errors.New("email domain is not allowed for this contest")
	ErrAccountRequired       = errors.New("an authenticated account is required to vote")
	ErrEmailRequired         = errors.New("a valid email address is required to vote")
	ErrDeviceRequired        = errors.New("a device identifier is required to vote")
	ErrDuplicateVote         = errors.New("a vote has already been cast for this category")
	ErrInvalidPayload        = errors.New("invalid ballot payload")
	ErrResultsNotYetVisible  = errors.New("results are not visible yet")

	ErrInvalidSubmission    = errors.New("invalid vote submission")
	ErrInvalidContest       = errors.New("invalid contest configuration")
	ErrInvalidCategory      = errors.New("invalid category configuration")
	ErrContestNotFound      = errors.New("contest not found")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrCategoryNotInContest = errors.New("category does not belong to contest")
	ErrBallotNotFound       = errors.New("ballot not found")
	ErrConflict             = errors.New("ballot conflict")
	ErrIdempotencyConflict  = errors.New("idempotency key conflict")
	ErrIdempotencyKeyTaken  = errors.New("idempotency key already claimed")
)

// Rules carried by PayloadError.
const (
	RuleMissingPayload         = "ballot payload is missing"
	RuleMethodMismatch         = "payload does not match the category voting method"
	RuleEmptySelection         = "ballot selects no contestant"
	RuleDuplicateContestant    = "duplicate contestant in ballot"
	RuleRankingExceedsMax      = "ranking exceeds maxRankings"
	RuleSelectionsExceedMax    = "selections exceed maxSelections"
	RuleRatingOutOfRange       = "rating outside of the rating scale"
	RuleUnknownContestant      = "unknown contestant id"
	RuleSelfMatchup            = "head-to-head winner and loser are the same contestant"
	RuleWriteInsNotAllowed     = "write-ins are not allowed in this category"
	RuleInvalidWriteIn         = "invalid write-in contestant"
	RuleUnreferencedWriteIn    = "write-in contestant is not referenced by the ballot"
	RuleConflictingPayloadBody = "payload carries fields of another voting method"
)

// PayloadError reports which ballot shape rule was broken. It matches
// ErrInvalidPayload under errors.Is.
type PayloadError struct {
	Rule string
}

func (e *PayloadError) Error() string {
	return ErrInvalidPayload.Error() + ": " + e.Rule
}

func (e *PayloadError) Is(target error) bool {
	return target == ErrInvalidPayload
}

func InvalidPayload(rule string) error {
	return &PayloadError{Rule: rule}
}

// PayloadRule extracts the broken rule from err, if any.
func PayloadRule(err error) (string, bool) {
	var payloadErr *PayloadError
	if errors.As(err, &payloadErr) {
		return payloadErr.Rule, true
	}
	return "", false
}

// RejectionCode maps expected vote and results outcomes to stable codes.
// Infrastructure failures map to "internal_error".
func RejectionCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOutsideVotingWindow):
		return "outside_voting_window"
	case errors.Is(err, ErrInvalidPasscode):
		return "invalid_passcode"
	case errors.Is(err, ErrEmailDomainNotAllowed):
		return "email_domain_not_allowed"
	case errors.Is(err, ErrAccountRequired):
		return "account_required"
	case errors.Is(err, ErrEmailRequired):
		return "email_required"
	case errors.Is(err, ErrDeviceRequired):
		return "device_required"
	case errors.Is(err, ErrDuplicateVote), errors.Is(err, ErrConflict):
		return "duplicate_vote"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrResultsNotYetVisible):
		return "results_not_yet_visible"
	case errors.Is(err, ErrInvalidSubmission):
		return "invalid_submission"
	case errors.Is(err, ErrContestNotFound):
		return "contest_not_found"
	case errors.Is(err, ErrCategoryNotFound):
		return "category_not_found"
	case errors.Is(err, ErrCategoryNotInContest):
		return "category_not_in_contest"
	case errors.Is(err, ErrBallotNotFound):
		return "ballot_not_found"
	case errors.Is(err, ErrIdempotencyConflict), errors.Is(err, ErrIdempotencyKeyTaken):
		return "idempotency_conflict"
	default:
		return "internal_error"
	}
}

// IsRejection reports whether err is an expected, user-facing outcome rather
// than an infrastructure failure.
func IsRejection(err error) bool {
	code := RejectionCode(err)
	return code != "" && code != "internal_error"
}
