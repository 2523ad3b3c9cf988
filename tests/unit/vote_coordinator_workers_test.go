package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"ballotbox/contexts/election-operations/vote-coordinator/adapters/memory"
	"ballotbox/contexts/election-operations/vote-coordinator/application/commands"
	"ballotbox/contexts/election-operations/vote-coordinator/application/workers"
	"ballotbox/contexts/election-operations/vote-coordinator/domain/entities"
	"ballotbox/internal/platform/metrics"
	"ballotbox/internal/shared/events"
)

type capturingPublisher struct {
	published []events.Envelope
	failures  int
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, event events.Envelope) error {
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, event)
	return nil
}

func castSeedVote(t *testing.T, store *memory.Store, voterID string) {
	t.Helper()
	useCase := commands.BallotUseCase{
		Directory: store,
		Ledger:    store,
		Outbox:    store,
		Clock:     store,
		IDGen:     store,
	}
	if _, err := useCase.CastVote(context.Background(), commands.CastVoteCommand{
		VoterID:     voterID,
		ElectionID:  "election-1",
		CandidateID: "candidate-1",
	}); err != nil {
		t.Fatalf("seed cast for %s failed: %v", voterID, err)
	}
}

func TestOutboxRelayPublishesPendingRowsOnce(t *testing.T) {
	store := memory.NewStore(nil)
	seedOpenElection(store, "election-1")
	store.SetCandidate(entities.Candidate{CandidateID: "candidate-1", ElectionID: "election-1"})
	castSeedVote(t, store, "voter-1")
	castSeedVote(t, store, "voter-2")

	publisher := &capturingPublisher{}
	relay := workers.OutboxRelay{
		Outbox:    store,
		Publisher: publisher,
		Clock:     fixedClock{now: time.Now().UTC()},
		BatchSize: 10,
	}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}
	if len(publisher.published) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(publisher.published))
	}
	for _, event := range publisher.published {
		if event.EventType != "vote.recorded" {
			t.Fatalf("expected vote.recorded events, got %s", event.EventType)
		}
	}

	// Published rows are marked and not replayed on the next cycle.
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("second relay run failed: %v", err)
	}
	if len(publisher.published) != 2 {
		t.Fatalf("expected no replays, got %d published events", len(publisher.published))
	}
}

func TestOutboxRelayRetriesAfterPublishFailure(t *testing.T) {
	store := memory.NewStore(nil)
	seedOpenElection(store, "election-1")
	store.SetCandidate(entities.Candidate{CandidateID: "candidate-1", ElectionID: "election-1"})
	castSeedVote(t, store, "voter-1")

	publisher := &capturingPublisher{failures: 1}
	relay := workers.OutboxRelay{
		Outbox:    store,
		Publisher: publisher,
		BatchSize: 10,
	}

	if err := relay.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected relay failure while broker is down")
	}
	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending outbox failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("failed publish must keep the row pending, got %d rows", len(pending))
	}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay retry failed: %v", err)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected 1 published event after retry, got %d", len(publisher.published))
	}
	pending, err = store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending outbox failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending rows after retry, got %d", len(pending))
	}
}

func TestOutboxRelayCountsRelayedEvents(t *testing.T) {
	store := memory.NewStore(nil)
	seedOpenElection(store, "election-1")
	store.SetCandidate(entities.Candidate{CandidateID: "candidate-1", ElectionID: "election-1"})
	castSeedVote(t, store, "voter-1")
	castSeedVote(t, store, "voter-2")

	registry := metrics.NewRegistry()
	publisher := &capturingPublisher{failures: 1}
	relay := workers.OutboxRelay{
		Outbox:    store,
		Publisher: publisher,
		BatchSize: 10,
		Relayed:   registry.EventsRelayed,
	}

	if err := relay.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected relay failure while broker is down")
	}
	if got := testutil.ToFloat64(registry.EventsRelayed); got != 0 {
		t.Fatalf("failed publish must not count as relayed, got %v", got)
	}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay retry failed: %v", err)
	}
	if got := testutil.ToFloat64(registry.EventsRelayed); got != 2 {
		t.Fatalf("expected 2 relayed events counted, got %v", got)
	}
}

func TestOutboxRelayNoopWithEmptyOutbox(t *testing.T) {
	store := memory.NewStore(nil)
	publisher := &capturingPublisher{}
	relay := workers.OutboxRelay{Outbox: store, Publisher: publisher}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay noop run failed: %v", err)
	}
	if len(publisher.published) != 0 {
		t.Fatalf("expected no publishes for empty outbox, got %d", len(publisher.published))
	}
}
