// Package ballotengine implements the ballot engine inside the contest-voting
// context.
//
// The module decides whether a ballot is admissible under a contest's
// restrictions, stores admitted ballots append-only with their identity
// claims, and tallies ballots into ranked, percentage-bearing results per
// category and per contest. Five voting methods are supported: rank,
// pick-one, multiple-choice, rating and head-to-head. Result changes are
// announced through an outbox-backed ballot.appended event that drives cache
// invalidation and live result pushes.
package ballotengine
