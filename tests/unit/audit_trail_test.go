package unit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	audittrail "ballotbox/contexts/election-operations/audit-trail"
	auditmemory "ballotbox/contexts/election-operations/audit-trail/adapters/memory"
	auditerrors "ballotbox/contexts/election-operations/audit-trail/domain/errors"
	"ballotbox/internal/shared/events"
)

type auditStubSubscriber struct {
	handlers map[string]func(context.Context, events.Envelope) error
}

func (s *auditStubSubscriber) Subscribe(
	_ context.Context,
	topic string,
	_ string,
	handler func(context.Context, events.Envelope) error,
) error {
	if s.handlers == nil {
		s.handlers = map[string]func(context.Context, events.Envelope) error{}
	}
	s.handlers[topic] = handler
	return nil
}

func voteRecordedEnvelope(eventID string, electionID string, candidateID string, occurredAt time.Time) events.Envelope {
	payload, _ := json.Marshal(map[string]any{
		"ballot_id":       "ballot-" + eventID,
		"election_id":     electionID,
		"candidate_id":    candidateID,
		"candidate_tally": 1,
	})
	return events.Envelope{
		EventID:    eventID,
		EventType:  "vote.recorded",
		OccurredAt: occurredAt,
		Data:       payload,
	}
}

func TestAuditConsumerRecordsVoteEvents(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sub := &auditStubSubscriber{}
	module := audittrail.NewInMemoryModule(nil, sub, nil)

	if err := module.Consumer.Start(context.Background()); err != nil {
		t.Fatalf("start audit consumer failed: %v", err)
	}
	handler := sub.handlers["vote.recorded"]
	if handler == nil {
		t.Fatalf("expected vote.recorded handler registration")
	}

	if err := handler(context.Background(), voteRecordedEnvelope("event-1", "election-1", "candidate-1", now)); err != nil {
		t.Fatalf("vote.recorded handler failed: %v", err)
	}

	entries, err := module.Trail.Trail(context.Background())
	if err != nil {
		t.Fatalf("audit trail failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.EventID != "event-1" || entry.ElectionID != "election-1" || entry.CandidateID != "candidate-1" {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
	if entry.Action != "vote_recorded" {
		t.Fatalf("expected vote_recorded action, got %s", entry.Action)
	}
	if !entry.RecordedAt.Equal(now) {
		t.Fatalf("expected recorded_at from event occurrence, got %s", entry.RecordedAt)
	}
}

func TestAuditConsumerDeduplicatesRedelivery(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sub := &auditStubSubscriber{}
	module := audittrail.NewInMemoryModule(nil, sub, nil)
	if err := module.Consumer.Start(context.Background()); err != nil {
		t.Fatalf("start audit consumer failed: %v", err)
	}
	handler := sub.handlers["vote.recorded"]

	envelope := voteRecordedEnvelope("event-1", "election-1", "candidate-1", now)
	if err := handler(context.Background(), envelope); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if err := handler(context.Background(), envelope); err != nil {
		t.Fatalf("redelivery must be acknowledged, got %v", err)
	}

	entries, err := module.Trail.Trail(context.Background())
	if err != nil {
		t.Fatalf("audit trail failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a single entry after redelivery, got %d", len(entries))
	}
}

func TestAuditConsumerRejectsConflictingPayloadForSameEvent(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sub := &auditStubSubscriber{}
	module := audittrail.NewInMemoryModule(nil, sub, nil)
	if err := module.Consumer.Start(context.Background()); err != nil {
		t.Fatalf("start audit consumer failed: %v", err)
	}
	handler := sub.handlers["vote.recorded"]

	if err := handler(context.Background(), voteRecordedEnvelope("event-1", "election-1", "candidate-1", now)); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	err := handler(context.Background(), voteRecordedEnvelope("event-1", "election-1", "candidate-2", now))
	if !errors.Is(err, auditerrors.ErrEventConflict) {
		t.Fatalf("expected ErrEventConflict for tampered payload, got %v", err)
	}
}

func TestAuditConsumerDisabledByFeatureFlag(t *testing.T) {
	sub := &auditStubSubscriber{}
	store := auditmemory.NewStore(nil)
	consumer := audittrail.NewModule(audittrail.Dependencies{
		Entries:    store,
		Dedup:      store,
		Subscriber: sub,
		Clock:      store,
		IDGen:      store,
		Disabled:   true,
	}).Consumer

	if err := consumer.Start(context.Background()); err != nil {
		t.Fatalf("disabled consumer start failed: %v", err)
	}
	if len(sub.handlers) != 0 {
		t.Fatalf("disabled consumer must not subscribe")
	}
}

func TestAuditTrailOrderingAndElectionFilter(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sub := &auditStubSubscriber{}
	module := audittrail.NewInMemoryModule(nil, sub, nil)
	if err := module.Consumer.Start(context.Background()); err != nil {
		t.Fatalf("start audit consumer failed: %v", err)
	}
	handler := sub.handlers["vote.recorded"]

	deliveries := []events.Envelope{
		voteRecordedEnvelope("event-2", "election-1", "candidate-1", now.Add(-time.Hour)),
		voteRecordedEnvelope("event-3", "election-2", "candidate-9", now),
		voteRecordedEnvelope("event-1", "election-1", "candidate-2", now.Add(-2*time.Hour)),
	}
	for _, envelope := range deliveries {
		if err := handler(context.Background(), envelope); err != nil {
			t.Fatalf("delivery %s failed: %v", envelope.EventID, err)
		}
	}

	resp, err := module.Handler.AuditTrailHandler(context.Background(), "")
	if err != nil {
		t.Fatalf("audit trail handler failed: %v", err)
	}
	if len(resp.Items) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(resp.Items))
	}
	wantOrder := []string{"event-1", "event-2", "event-3"}
	for i, want := range wantOrder {
		if resp.Items[i].EventID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, resp.Items[i].EventID)
		}
	}

	filtered, err := module.Handler.AuditTrailHandler(context.Background(), "election-1")
	if err != nil {
		t.Fatalf("filtered audit trail failed: %v", err)
	}
	if len(filtered.Items) != 2 {
		t.Fatalf("expected 2 entries for election-1, got %d", len(filtered.Items))
	}
	for _, item := range filtered.Items {
		if item.ElectionID != "election-1" {
			t.Fatalf("filter leaked entry for %s", item.ElectionID)
		}
	}
}
