package entities

import (
	"strings"
	"time"
)

type IdentityKind string

const (
	IdentityKindAccount IdentityKind = "account"
	IdentityKindEmail   IdentityKind = "email"
	IdentityKindDevice  IdentityKind = "device"
)

// IdentityKey is the uniqueness claim a ballot makes within its category for
// one enabled restriction flag.
type IdentityKey struct {
	Kind  IdentityKind
	Value string
}

func (k IdentityKey) String() string {
	return string(k.Kind) + ":" + k.Value
}

// Voter carries caller-supplied identity. NetworkOrigin is recorded for abuse
// analysis only.
type Voter struct {
	AccountID     string
	Email         string
	DeviceID      string
	NetworkOrigin string
	UserAgent     string
}

func (v Voter) Normalized() Voter {
	return Voter{
		AccountID:     strings.TrimSpace(v.AccountID),
		Email:         NormalizeEmail(v.Email),
		DeviceID:      strings.TrimSpace(v.DeviceID),
		NetworkOrigin: strings.TrimSpace(v.NetworkOrigin),
		UserAgent:     strings.TrimSpace(v.UserAgent),
	}
}

func (v Voter) Identity(kind IdentityKind) string {
	switch kind {
	case IdentityKindAccount:
		return v.AccountID
	case IdentityKindEmail:
		return v.Email
	case IdentityKindDevice:
		return v.DeviceID
	default:
		return ""
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type Ballot struct {
	BallotID      string
	ContestID     string
	CategoryID    string
	AccountID     string
	Email         string
	DeviceID      string
	NetworkOrigin string
	UserAgent     string
	Payload       Payload
	CastAt        time.Time
}

func (b Ballot) Voter() Voter {
	return Voter{
		AccountID:     b.AccountID,
		Email:         b.Email,
		DeviceID:      b.DeviceID,
		NetworkOrigin: b.NetworkOrigin,
		UserAgent:     b.UserAgent,
	}
}

// VoterKey identifies the voter behind a ballot across categories, preferring
// the strongest identity available. Anonymous ballots count as their own voter.
func (b Ballot) VoterKey() string {
	switch {
	case strings.TrimSpace(b.AccountID) != "":
		return "account:" + strings.TrimSpace(b.AccountID)
	case strings.TrimSpace(b.Email) != "":
		return "email:" + NormalizeEmail(b.Email)
	case strings.TrimSpace(b.DeviceID) != "":
		return "device:" + strings.TrimSpace(b.DeviceID)
	default:
		return "ballot:" + b.BallotID
	}
}
