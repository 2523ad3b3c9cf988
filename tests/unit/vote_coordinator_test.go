package unit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	votecoordinator "ballotbox/contexts/election-operations/vote-coordinator"
	"ballotbox/contexts/election-operations/vote-coordinator/adapters/memory"
	"ballotbox/contexts/election-operations/vote-coordinator/application/commands"
	"ballotbox/contexts/election-operations/vote-coordinator/domain/entities"
	domainerrors "ballotbox/contexts/election-operations/vote-coordinator/domain/errors"
	httptransport "ballotbox/contexts/election-operations/vote-coordinator/transport/http"
	"ballotbox/internal/shared/events"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func seedOpenElection(store *memory.Store, electionID string) {
	now := time.Now().UTC()
	store.SetElection(entities.Election{
		ElectionID: electionID,
		Title:      "General Election",
		Active:     true,
		StartsAt:   now.Add(-2 * time.Hour),
		EndsAt:     now.Add(2 * time.Hour),
		CreatedAt:  now.Add(-24 * time.Hour),
	})
}

func TestCastVoteRecordsBallotAndIncrementsTally(t *testing.T) {
	module := votecoordinator.NewInMemoryModule(nil, nil)
	seedOpenElection(module.Store, "election-1")
	module.Store.SetCandidate(entities.Candidate{
		CandidateID: "candidate-1",
		ElectionID:  "election-1",
		Name:        "Ada Okafor",
		Party:       "Unity",
	})

	receipt, err := module.Handler.CastVoteHandler(context.Background(), "voter-1", "election-1", httptransport.CastVoteRequest{
		CandidateID: "candidate-1",
	})
	if err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}
	if receipt.BallotID == "" {
		t.Fatalf("expected generated ballot id")
	}
	if receipt.CandidateTally != 1 {
		t.Fatalf("expected candidate tally 1, got %d", receipt.CandidateTally)
	}

	voted, err := module.Ballots.HasVoted(context.Background(), "voter-1", "election-1")
	if err != nil {
		t.Fatalf("has voted failed: %v", err)
	}
	if !voted {
		t.Fatalf("expected voter-1 to be marked as having voted")
	}
}

func TestCastVoteEmitsNotificationWithoutVoterIdentity(t *testing.T) {
	module := votecoordinator.NewInMemoryModule(nil, nil)
	seedOpenElection(module.Store, "election-1")
	module.Store.SetCandidate(entities.Candidate{
		CandidateID: "candidate-1",
		ElectionID:  "election-1",
		Name:        "Ada Okafor",
	})

	if _, err := module.Handler.CastVoteHandler(context.Background(), "voter-1", "election-1", httptransport.CastVoteRequest{
		CandidateID: "candidate-1",
	}); err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}

	pending, err := module.Store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending outbox failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending outbox row, got %d", len(pending))
	}

	var envelope struct {
		EventType string         `json:"event_type"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(pending[0].Payload, &envelope); err != nil {
		t.Fatalf("decode outbox envelope failed: %v", err)
	}
	if envelope.EventType != "vote.recorded" {
		t.Fatalf("expected vote.recorded event, got %s", envelope.EventType)
	}
	if envelope.Data["election_id"] != "election-1" || envelope.Data["candidate_id"] != "candidate-1" {
		t.Fatalf("unexpected event payload: %v", envelope.Data)
	}
	if _, present := envelope.Data["voter_id"]; present {
		t.Fatalf("event payload must not carry voter identity")
	}
}

func TestCastVoteRejectsSecondVoteInSameElection(t *testing.T) {
	module := votecoordinator.NewInMemoryModule(nil, nil)
	seedOpenElection(module.Store, "election-1")
	module.Store.SetCandidate(entities.Candidate{CandidateID: "candidate-1", ElectionID: "election-1"})
	module.Store.SetCandidate(entities.Candidate{CandidateID: "candidate-2", ElectionID: "election-1"})

	if _, err := module.Handler.CastVoteHandler(context.Background(), "voter-1", "election-1", httptransport.CastVoteRequest{
		CandidateID: "candidate-1",
	}); err != nil {
		t.Fatalf("first cast failed: %v", err)
	}

	// Second attempt is rejected even for a different candidate.
	_, err := module.Handler.CastVoteHandler(context.Background(), "voter-1", "election-1", httptransport.CastVoteRequest{
		CandidateID: "candidate-2",
	})
	if !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}

	tallies, err := module.Store.ElectionTally(context.Background(), "election-1")
	if err != nil {
		t.Fatalf("election tally failed: %v", err)
	}
	var total int64
	for _, tally := range tallies {
		total += tally.VoteCount
	}
	if total != 1 {
		t.Fatalf("expected total tally 1 after rejected duplicate, got %d", total)
	}
}

func TestCastVoteAllowsSameVoterAcrossElections(t *testing.T) {
	module := votecoordinator.NewInMemoryModule(nil, nil)
	seedOpenElection(module.Store, "election-1")
	seedOpenElection(module.Store, "election-2")
	module.Store.SetCandidate(entities.Candidate{CandidateID: "candidate-1", ElectionID: "election-1"})
	module.Store.SetCandidate(entities.Candidate{CandidateID: "candidate-2", ElectionID: "election-2"})

	if _, err := module.Handler.CastVoteHandler(context.Background(), "voter-1", "election-1", httptransport.CastVoteRequest{
		CandidateID: "candidate-1",
	}); err != nil {
		t.Fatalf("cast in election-1 failed: %v", err)
	}
	if _, err := module.Handler.CastVoteHandler(context.Background(), "voter-1", "election-2", httptransport.CastVoteRequest{
		CandidateID: "candidate-2",
	}); err != nil {
		t.Fatalf("cast in election-2 failed: %v", err)
	}
}

func TestCastVoteEnforcesElectionWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		election entities.Election
	}{
		{
			name: "before window opens",
			election: entities.Election{
				ElectionID: "election-1",
				Active:     true,
				StartsAt:   now.Add(time.Hour),
				EndsAt:     now.Add(3 * time.Hour),
			},
		},
		{
			name: "after window closes",
			election: entities.Election{
				ElectionID: "election-1",
				Active:     true,
				StartsAt:   now.Add(-3 * time.Hour),
				EndsAt:     now.Add(-time.Hour),
			},
		},
		{
			name: "paused inside window",
			election: entities.Election{
				ElectionID: "election-1",
				Active:     false,
				StartsAt:   now.Add(-time.Hour),
				EndsAt:     now.Add(time.Hour),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.NewStore(nil)
			store.SetElection(tc.election)
			store.SetCandidate(entities.Candidate{CandidateID: "candidate-1", ElectionID: "election-1"})
			useCase := commands.BallotUseCase{
				Directory: store,
				Ledger:    store,
				Outbox:    store,
				Clock:     fixedClock{now: now},
				IDGen:     store,
			}

			_, err := useCase.CastVote(context.Background(), commands.CastVoteCommand{
				VoterID:     "voter-1",
				ElectionID:  "election-1",
				CandidateID: "candidate-1",
			})
			if !errors.Is(err, domainerrors.ErrElectionNotActive) {
				t.Fatalf("expected ErrElectionNotActive, got %v", err)
			}
			voted, err := store.HasVoted(context.Background(), "voter-1", "election-1")
			if err != nil {
				t.Fatalf("has voted failed: %v", err)
			}
			if voted {
				t.Fatalf("rejected cast must leave no ballot")
			}
		})
	}
}

func TestCastVoteAcceptsAtWindowBoundaries(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore(nil)
	store.SetElection(entities.Election{
		ElectionID: "election-1",
		Active:     true,
		StartsAt:   now,
		EndsAt:     now.Add(time.Hour),
	})
	store.SetCandidate(entities.Candidate{CandidateID: "candidate-1", ElectionID: "election-1"})

	useCase := commands.BallotUseCase{
		Directory: store,
		Ledger:    store,
		Outbox:    store,
		Clock:     fixedClock{now: now},
		IDGen:     store,
	}
	if _, err := useCase.CastVote(context.Background(), commands.CastVoteCommand{
		VoterID:     "voter-1",
		ElectionID:  "election-1",
		CandidateID: "candidate-1",
	}); err != nil {
		t.Fatalf("cast at opening instant failed: %v", err)
	}

	useCase.Clock = fixedClock{now: now.Add(time.Hour)}
	if _, err := useCase.CastVote(context.Background(), commands.CastVoteCommand{
		VoterID:     "voter-2",
		ElectionID:  "election-1",
		CandidateID: "candidate-1",
	}); err != nil {
		t.Fatalf("cast at closing instant failed: %v", err)
	}
}

func TestCastVoteRejectsCandidateFromAnotherElection(t *testing.T) {
	module := votecoordinator.NewInMemoryModule(nil, nil)
	seedOpenElection(module.Store, "election-1")
	seedOpenElection(module.Store, "election-2")
	module.Store.SetCandidate(entities.Candidate{CandidateID: "candidate-2", ElectionID: "election-2"})

	_, err := module.Handler.CastVoteHandler(context.Background(), "voter-1", "election-1", httptransport.CastVoteRequest{
		CandidateID: "candidate-2",
	})
	if !errors.Is(err, domainerrors.ErrCandidateNotInElection) {
		t.Fatalf("expected ErrCandidateNotInElection, got %v", err)
	}
	voted, err := module.Store.HasVoted(context.Background(), "voter-1", "election-1")
	if err != nil {
		t.Fatalf("has voted failed: %v", err)
	}
	if voted {
		t.Fatalf("cross-election cast must not consume the voter's vote")
	}
}

func TestCastVoteUnknownReferences(t *testing.T) {
	module := votecoordinator.NewInMemoryModule(nil, nil)
	seedOpenElection(module.Store, "election-1")

	_, err := module.Handler.CastVoteHandler(context.Background(), "voter-1", "missing", httptransport.CastVoteRequest{
		CandidateID: "candidate-1",
	})
	if !errors.Is(err, domainerrors.ErrElectionNotFound) {
		t.Fatalf("expected ErrElectionNotFound, got %v", err)
	}

	_, err = module.Handler.CastVoteHandler(context.Background(), "voter-1", "election-1", httptransport.CastVoteRequest{
		CandidateID: "missing",
	})
	if !errors.Is(err, domainerrors.ErrCandidateNotFound) {
		t.Fatalf("expected ErrCandidateNotFound, got %v", err)
	}
}

func TestCastVoteValidatesInput(t *testing.T) {
	module := votecoordinator.NewInMemoryModule(nil, nil)
	seedOpenElection(module.Store, "election-1")
	module.Store.SetCandidate(entities.Candidate{CandidateID: "candidate-1", ElectionID: "election-1"})

	_, err := module.Handler.CastVoteHandler(context.Background(), "voter-1", "election-1", httptransport.CastVoteRequest{
		CandidateID: "   ",
	})
	if !errors.Is(err, domainerrors.ErrInvalidBallotInput) {
		t.Fatalf("expected ErrInvalidBallotInput for blank candidate, got %v", err)
	}
	_, err = module.Handler.CastVoteHandler(context.Background(), "", "election-1", httptransport.CastVoteRequest{
		CandidateID: "candidate-1",
	})
	if !errors.Is(err, domainerrors.ErrInvalidBallotInput) {
		t.Fatalf("expected ErrInvalidBallotInput for blank voter, got %v", err)
	}
}

func TestCastVoteTransientFailureThenRetrySucceeds(t *testing.T) {
	module := votecoordinator.NewInMemoryModule(nil, nil)
	seedOpenElection(module.Store, "election-1")
	module.Store.SetCandidate(entities.Candidate{CandidateID: "candidate-1", ElectionID: "election-1"})

	module.Store.SetRecordFailure(domainerrors.ErrStorageTransient)
	_, err := module.Handler.CastVoteHandler(context.Background(), "voter-1", "election-1", httptransport.CastVoteRequest{
		CandidateID: "candidate-1",
	})
	if !errors.Is(err, domainerrors.ErrStorageTransient) {
		t.Fatalf("expected ErrStorageTransient, got %v", err)
	}
	voted, err := module.Store.HasVoted(context.Background(), "voter-1", "election-1")
	if err != nil {
		t.Fatalf("has voted failed: %v", err)
	}
	if voted {
		t.Fatalf("failed cast must leave no ballot")
	}

	// The failure left no state, so the voter's retry must commit.
	module.Store.SetRecordFailure(nil)
	receipt, err := module.Handler.CastVoteHandler(context.Background(), "voter-1", "election-1", httptransport.CastVoteRequest{
		CandidateID: "candidate-1",
	})
	if err != nil {
		t.Fatalf("retry after transient failure failed: %v", err)
	}
	if receipt.CandidateTally != 1 {
		t.Fatalf("expected tally 1 after retry, got %d", receipt.CandidateTally)
	}
}

func TestSingleElectionVotingTimeline(t *testing.T) {
	opensAt := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	closesAt := opensAt.Add(10 * time.Hour)

	store := memory.NewStore(nil)
	store.SetElection(entities.Election{
		ElectionID: "election-1",
		Title:      "General Election",
		Active:     true,
		StartsAt:   opensAt,
		EndsAt:     closesAt,
	})
	store.SetCandidate(entities.Candidate{CandidateID: "candidate-1", ElectionID: "election-1"})
	store.SetCandidate(entities.Candidate{CandidateID: "candidate-2", ElectionID: "election-1"})

	useCase := commands.BallotUseCase{
		Directory: store,
		Ledger:    store,
		Outbox:    store,
		Clock:     fixedClock{now: opensAt.Add(5 * time.Hour)},
		IDGen:     store,
	}

	receipt, err := useCase.CastVote(context.Background(), commands.CastVoteCommand{
		VoterID: "voter-1", ElectionID: "election-1", CandidateID: "candidate-1",
	})
	if err != nil {
		t.Fatalf("mid-window cast failed: %v", err)
	}
	if receipt.CandidateTally != 1 {
		t.Fatalf("expected candidate-1 tally 1, got %d", receipt.CandidateTally)
	}

	useCase.Clock = fixedClock{now: opensAt.Add(6 * time.Hour)}
	if _, err := useCase.CastVote(context.Background(), commands.CastVoteCommand{
		VoterID: "voter-1", ElectionID: "election-1", CandidateID: "candidate-2",
	}); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted for second ballot, got %v", err)
	}
	candidate, err := store.GetCandidate(context.Background(), "candidate-2")
	if err != nil {
		t.Fatalf("get candidate failed: %v", err)
	}
	if candidate.VoteCount != 0 {
		t.Fatalf("rejected ballot must not move candidate-2 tally, got %d", candidate.VoteCount)
	}

	useCase.Clock = fixedClock{now: closesAt.Add(time.Hour)}
	if _, err := useCase.CastVote(context.Background(), commands.CastVoteCommand{
		VoterID: "voter-2", ElectionID: "election-1", CandidateID: "candidate-1",
	}); !errors.Is(err, domainerrors.ErrElectionNotActive) {
		t.Fatalf("expected ErrElectionNotActive after close, got %v", err)
	}
}

type brokenOutbox struct{}

func (brokenOutbox) AppendOutbox(context.Context, events.Envelope) error {
	return errors.New("outbox unavailable")
}

func TestCastVoteStandsWhenNotificationAppendFails(t *testing.T) {
	store := memory.NewStore(nil)
	seedOpenElection(store, "election-1")
	store.SetCandidate(entities.Candidate{CandidateID: "candidate-1", ElectionID: "election-1"})

	useCase := commands.BallotUseCase{
		Directory: store,
		Ledger:    store,
		Outbox:    brokenOutbox{},
		Clock:     store,
		IDGen:     store,
	}
	receipt, err := useCase.CastVote(context.Background(), commands.CastVoteCommand{
		VoterID:     "voter-1",
		ElectionID:  "election-1",
		CandidateID: "candidate-1",
	})
	if err != nil {
		t.Fatalf("cast must not fail on notification append error: %v", err)
	}
	if receipt.CandidateTally != 1 {
		t.Fatalf("expected committed tally 1, got %d", receipt.CandidateTally)
	}
}
