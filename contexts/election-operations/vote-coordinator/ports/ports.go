package ports

import (
	"context"
	"time"

	"ballotbox/contexts/election-operations/vote-coordinator/domain/entities"
	"ballotbox/internal/shared/events"
)

// ElectionDirectory is the read-only lookup of election and candidate
// metadata. Rows are owned by election administration; the coordinator
// only reads them.
type ElectionDirectory interface {
	GetElection(ctx context.Context, electionID string) (entities.Election, error)
	GetCandidate(ctx context.Context, candidateID string) (entities.Candidate, error)
	ListElections(ctx context.Context) ([]entities.Election, error)
	ListCandidatesByElection(ctx context.Context, electionID string) ([]entities.Candidate, error)
}

// BallotLedger is the append-only store of accepted votes.
//
// RecordBallot appends the ballot and increments the candidate tally as
// one atomic unit: either both are committed or neither is. The store
// enforces uniqueness on (voter_id, election_id) itself. A prior
// HasVoted check is advisory only and never a substitute for the
// constraint, which is the sole double-vote guard under concurrent
// requests and across processes. A trapped constraint surfaces as
// domainerrors.ErrAlreadyVoted. The returned count is the candidate
// tally after the increment.
type BallotLedger interface {
	HasVoted(ctx context.Context, voterID string, electionID string) (bool, error)
	RecordBallot(ctx context.Context, ballot entities.Ballot) (entities.Ballot, int64, error)
	ListBallotsByVoter(ctx context.Context, voterID string) ([]entities.Ballot, error)
	ListBallotsByElection(ctx context.Context, electionID string) ([]entities.Ballot, error)
}

// TallyReader serves the result read path. It reflects committed
// tallies as of the query; it is not synchronized with in-flight casts.
type TallyReader interface {
	ElectionTally(ctx context.Context, electionID string) ([]entities.CandidateTally, error)
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope events.Envelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event events.Envelope) error
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, topic string, consumerGroup string, handler func(context.Context, events.Envelope) error) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
