package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "ballotbox/contexts/election-operations/vote-coordinator/application"
	"ballotbox/contexts/election-operations/vote-coordinator/domain/entities"
	domainerrors "ballotbox/contexts/election-operations/vote-coordinator/domain/errors"
	"ballotbox/contexts/election-operations/vote-coordinator/ports"
)

// CastVoteCommand is the write-model input for vote casting. VoterID is
// the already-authenticated identity supplied by the session layer; the
// coordinator performs no credential verification of its own.
type CastVoteCommand struct {
	VoterID     string
	ElectionID  string
	CandidateID string
}

// BallotUseCase orchestrates the vote-casting transaction: election
// activity validation, cross-election candidate guard, the atomic
// ledger append + tally increment, and the post-commit result-changed
// notification.
type BallotUseCase struct {
	Directory ports.ElectionDirectory
	Ledger    ports.BallotLedger
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// CastVote records at most one vote per (voter, election), for all
// time. Concurrent calls for the same pair race on the ledger's unique
// guard: exactly one commits, the rest fail with ErrAlreadyVoted. Any
// failure before commit leaves no partial state: a ballot row is never
// observable without its tally increment or vice versa.
func (uc BallotUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (entities.VoteReceipt, error) {
	logger := application.ResolveLogger(uc.Logger)

	voterID := strings.TrimSpace(cmd.VoterID)
	electionID := strings.TrimSpace(cmd.ElectionID)
	candidateID := strings.TrimSpace(cmd.CandidateID)

	logger.Info("vote cast processing started",
		"event", "ballot_cast_started",
		"module", "election-operations/vote-coordinator",
		"layer", "application",
		"voter_id", voterID,
		"election_id", electionID,
		"candidate_id", candidateID,
	)

	if voterID == "" || electionID == "" || candidateID == "" {
		logger.Warn("vote cast validation failed",
			"event", "ballot_cast_validation_failed",
			"module", "election-operations/vote-coordinator",
			"layer", "application",
			"voter_id", voterID,
			"election_id", electionID,
			"candidate_id", candidateID,
		)
		return entities.VoteReceipt{}, domainerrors.ErrInvalidBallotInput
	}

	election, err := uc.Directory.GetElection(ctx, electionID)
	if err != nil {
		return entities.VoteReceipt{}, err
	}

	now := uc.now()
	if !election.AcceptingVotesAt(now) {
		logger.Warn("vote rejected: election not accepting votes",
			"event", "ballot_cast_election_closed",
			"module", "election-operations/vote-coordinator",
			"layer", "application",
			"voter_id", voterID,
			"election_id", electionID,
			"active", election.Active,
			"starts_at", election.StartsAt.UTC().Format(time.RFC3339),
			"ends_at", election.EndsAt.UTC().Format(time.RFC3339),
		)
		return entities.VoteReceipt{}, domainerrors.ErrElectionNotActive
	}

	candidate, err := uc.Directory.GetCandidate(ctx, candidateID)
	if err != nil {
		return entities.VoteReceipt{}, err
	}
	if !strings.EqualFold(strings.TrimSpace(candidate.ElectionID), electionID) {
		logger.Warn("vote rejected: candidate from another election",
			"event", "ballot_cast_cross_election",
			"module", "election-operations/vote-coordinator",
			"layer", "application",
			"voter_id", voterID,
			"election_id", electionID,
			"candidate_id", candidateID,
			"candidate_election_id", candidate.ElectionID,
		)
		return entities.VoteReceipt{}, domainerrors.ErrCandidateNotInElection
	}

	ballotID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.VoteReceipt{}, err
	}

	// The unique (voter_id, election_id) guard inside RecordBallot is
	// the double-vote check. Reading HasVoted first would still race
	// with a concurrent cast from the same voter.
	ballot, tally, err := uc.Ledger.RecordBallot(ctx, entities.Ballot{
		BallotID:    ballotID,
		ElectionID:  electionID,
		CandidateID: candidateID,
		VoterID:     voterID,
		CastAt:      now,
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyVoted) {
			logger.Info("vote rejected: voter already voted",
				"event", "ballot_cast_duplicate",
				"module", "election-operations/vote-coordinator",
				"layer", "application",
				"voter_id", voterID,
				"election_id", electionID,
			)
		}
		return entities.VoteReceipt{}, err
	}

	// Post-commit notification. The vote stands regardless of outbox
	// outcome: the side channel is advisory and never rolls back a
	// committed ballot.
	if err := uc.appendResultChangedEvent(ctx, ballot, tally); err != nil {
		logger.Warn("result-changed notification append failed; vote stands",
			"event", "ballot_cast_notify_failed",
			"module", "election-operations/vote-coordinator",
			"layer", "application",
			"ballot_id", ballot.BallotID,
			"election_id", ballot.ElectionID,
			"error", err.Error(),
		)
	}

	logger.Info("vote recorded",
		"event", "ballot_cast_recorded",
		"module", "election-operations/vote-coordinator",
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"election_id", ballot.ElectionID,
		"candidate_id", ballot.CandidateID,
		"candidate_tally", tally,
	)
	return entities.VoteReceipt{
		BallotID:       ballot.BallotID,
		ElectionID:     ballot.ElectionID,
		CandidateID:    ballot.CandidateID,
		VoterID:        ballot.VoterID,
		CastAt:         ballot.CastAt,
		CandidateTally: tally,
	}, nil
}

// HasVoted reports whether the voter already holds a ballot in the
// election. Read-only convenience for voter-facing UI; CastVote does
// not depend on it.
func (uc BallotUseCase) HasVoted(ctx context.Context, voterID string, electionID string) (bool, error) {
	voterID = strings.TrimSpace(voterID)
	electionID = strings.TrimSpace(electionID)
	if voterID == "" || electionID == "" {
		return false, domainerrors.ErrInvalidBallotInput
	}
	return uc.Ledger.HasVoted(ctx, voterID, electionID)
}

func (uc BallotUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc BallotUseCase) appendResultChangedEvent(ctx context.Context, ballot entities.Ballot, tally int64) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newBallotEnvelope(eventID, "vote.recorded", ballot.ElectionID, ballot.CastAt, map[string]any{
		"ballot_id":       ballot.BallotID,
		"election_id":     ballot.ElectionID,
		"candidate_id":    ballot.CandidateID,
		"candidate_tally": tally,
		"occurred_at":     ballot.CastAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}
