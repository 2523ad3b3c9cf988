package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"ballotbox/contexts/election-operations/vote-coordinator/domain/entities"
	domainerrors "ballotbox/contexts/election-operations/vote-coordinator/domain/errors"
	"ballotbox/contexts/election-operations/vote-coordinator/ports"
	"ballotbox/internal/shared/events"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store is the in-memory adapter used by tests and local wiring. One
// mutex guards ballots and tallies together, which gives RecordBallot
// the same atomicity the postgres transaction provides.
type Store struct {
	mu sync.RWMutex

	elections  map[string]entities.Election
	candidates map[string]entities.Candidate
	ballots    map[string]entities.Ballot
	byPair     map[string]string // voterID|electionID -> ballotID
	outbox     map[string]outboxRecord

	recordFailure error
}

func NewStore(seed []entities.Ballot) *Store {
	s := &Store{
		elections:  make(map[string]entities.Election),
		candidates: make(map[string]entities.Candidate),
		ballots:    make(map[string]entities.Ballot, len(seed)),
		byPair:     make(map[string]string, len(seed)),
		outbox:     make(map[string]outboxRecord),
	}
	for _, ballot := range seed {
		s.ballots[ballot.BallotID] = ballot
		s.byPair[pairKey(ballot.VoterID, ballot.ElectionID)] = ballot.BallotID
		candidate := s.candidates[ballot.CandidateID]
		candidate.CandidateID = ballot.CandidateID
		candidate.ElectionID = ballot.ElectionID
		candidate.VoteCount++
		s.candidates[ballot.CandidateID] = candidate
	}
	return s
}

func (s *Store) SetElection(election entities.Election) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elections[strings.TrimSpace(election.ElectionID)] = election
}

func (s *Store) SetCandidate(candidate entities.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates[strings.TrimSpace(candidate.CandidateID)] = candidate
}

// SetRecordFailure makes the next RecordBallot calls fail with the
// given error. Used to exercise infrastructure-failure paths.
func (s *Store) SetRecordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordFailure = err
}

func (s *Store) GetElection(_ context.Context, electionID string) (entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	election, ok := s.elections[strings.TrimSpace(electionID)]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	return election, nil
}

func (s *Store) GetCandidate(_ context.Context, candidateID string) (entities.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidate, ok := s.candidates[strings.TrimSpace(candidateID)]
	if !ok {
		return entities.Candidate{}, domainerrors.ErrCandidateNotFound
	}
	return candidate, nil
}

func (s *Store) ListElections(_ context.Context) ([]entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Election, 0, len(s.elections))
	for _, election := range s.elections {
		items = append(items, election)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ElectionID < items[j].ElectionID
	})
	return items, nil
}

func (s *Store) ListCandidatesByElection(_ context.Context, electionID string) ([]entities.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	electionID = strings.TrimSpace(electionID)
	items := make([]entities.Candidate, 0)
	for _, candidate := range s.candidates {
		if candidate.ElectionID == electionID {
			items = append(items, candidate)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CandidateID < items[j].CandidateID
	})
	return items, nil
}

func (s *Store) HasVoted(_ context.Context, voterID string, electionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byPair[pairKey(voterID, electionID)]
	return ok, nil
}

func (s *Store) RecordBallot(_ context.Context, ballot entities.Ballot) (entities.Ballot, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recordFailure != nil {
		return entities.Ballot{}, 0, s.recordFailure
	}

	key := pairKey(ballot.VoterID, ballot.ElectionID)
	if _, exists := s.byPair[key]; exists {
		return entities.Ballot{}, 0, domainerrors.ErrAlreadyVoted
	}

	candidateID := strings.TrimSpace(ballot.CandidateID)
	candidate, ok := s.candidates[candidateID]
	if !ok {
		return entities.Ballot{}, 0, domainerrors.ErrCandidateNotFound
	}

	stored := entities.Ballot{
		BallotID:    strings.TrimSpace(ballot.BallotID),
		ElectionID:  strings.TrimSpace(ballot.ElectionID),
		CandidateID: candidateID,
		VoterID:     strings.TrimSpace(ballot.VoterID),
		CastAt:      ballot.CastAt.UTC(),
	}
	if stored.CastAt.IsZero() {
		stored.CastAt = time.Now().UTC()
	}

	s.ballots[stored.BallotID] = stored
	s.byPair[key] = stored.BallotID
	candidate.VoteCount++
	s.candidates[candidateID] = candidate
	return stored, candidate.VoteCount, nil
}

func (s *Store) ListBallotsByVoter(_ context.Context, voterID string) ([]entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	voterID = strings.TrimSpace(voterID)
	items := make([]entities.Ballot, 0)
	for _, ballot := range s.ballots {
		if ballot.VoterID == voterID {
			items = append(items, ballot)
		}
	}
	sortBallotsByCast(items)
	return items, nil
}

func (s *Store) ListBallotsByElection(_ context.Context, electionID string) ([]entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	electionID = strings.TrimSpace(electionID)
	items := make([]entities.Ballot, 0)
	for _, ballot := range s.ballots {
		if ballot.ElectionID == electionID {
			items = append(items, ballot)
		}
	}
	sortBallotsByCast(items)
	return items, nil
}

func (s *Store) ElectionTally(ctx context.Context, electionID string) ([]entities.CandidateTally, error) {
	candidates, err := s.ListCandidatesByElection(ctx, electionID)
	if err != nil {
		return nil, err
	}
	items := make([]entities.CandidateTally, 0, len(candidates))
	for _, candidate := range candidates {
		items = append(items, entities.CandidateTally{
			CandidateID: candidate.CandidateID,
			Name:        candidate.Name,
			Party:       candidate.Party,
			VoteCount:   candidate.VoteCount,
		})
	}
	return items, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if _, ok := s.outbox[outboxID]; ok {
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrBallotNotFound
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func pairKey(voterID string, electionID string) string {
	return strings.TrimSpace(voterID) + "|" + strings.TrimSpace(electionID)
}

func sortBallotsByCast(items []entities.Ballot) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CastAt.Equal(items[j].CastAt) {
			return items[i].BallotID < items[j].BallotID
		}
		return items[i].CastAt.Before(items[j].CastAt)
	})
}

var _ ports.ElectionDirectory = (*Store)(nil)
var _ ports.BallotLedger = (*Store)(nil)
var _ ports.TallyReader = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
