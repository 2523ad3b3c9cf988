// Package votecoordinator implements the vote-casting transaction
// inside the election-operations context.
//
// The module owns the one correctness-critical path of the system: each
// eligible voter casts at most one vote per election, votes are only
// accepted while an election is active and inside its time window, and
// the per-candidate tally moves in lockstep with the ballot ledger. It
// also owns the ranked result read path and the outbox-backed
// result-changed notifications that feed live dashboards. Business
// rules live in application/domain layers; storage and transport stay
// behind ports and adapters.
package votecoordinator
