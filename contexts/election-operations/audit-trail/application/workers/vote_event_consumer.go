package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "ballotbox/contexts/election-operations/audit-trail/application"
	"ballotbox/contexts/election-operations/audit-trail/domain/entities"
	"ballotbox/contexts/election-operations/audit-trail/ports"
	"ballotbox/internal/shared/events"
)

const (
	voteRecordedTopic = "vote.recorded"
	defaultConsumerCG = "audit-trail-vote-cg"
)

// VoteEventConsumer appends an audit entry for every vote.recorded
// event. Delivery from the relay is at-least-once, so entries are
// deduplicated by event id before writing.
type VoteEventConsumer struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Entries       ports.AuditRepository
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (c VoteEventConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("vote event consumer disabled by feature flag",
			"event", "audit_vote_consumer_disabled",
			"module", "election-operations/audit-trail",
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultConsumerCG
	}
	if err := c.Subscriber.Subscribe(ctx, voteRecordedTopic, group, c.handleVoteRecorded); err != nil {
		logger.Error("vote event consumer subscribe failed",
			"event", "audit_vote_consumer_subscribe_failed",
			"module", "election-operations/audit-trail",
			"layer", "worker",
			"topic", voteRecordedTopic,
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("vote event consumer subscription active",
		"event", "audit_vote_consumer_started",
		"module", "election-operations/audit-trail",
		"layer", "worker",
		"topic", voteRecordedTopic,
		"consumer_group", group,
	)
	return nil
}

func (c VoteEventConsumer) handleVoteRecorded(ctx context.Context, event events.Envelope) error {
	logger := application.ResolveLogger(c.Logger)

	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}
	ttl := c.DedupTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	seen, err := c.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), now.Add(ttl))
	if err != nil {
		return err
	}
	if seen {
		logger.Debug("vote event already processed",
			"event", "audit_vote_event_duplicate",
			"module", "election-operations/audit-trail",
			"layer", "worker",
			"event_id", event.EventID,
		)
		return nil
	}

	var payload struct {
		BallotID    string `json:"ballot_id"`
		ElectionID  string `json:"election_id"`
		CandidateID string `json:"candidate_id"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("vote event decode failed",
			"event", "audit_vote_event_decode_failed",
			"module", "election-operations/audit-trail",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}

	auditID, err := c.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	recordedAt := event.OccurredAt.UTC()
	if recordedAt.IsZero() {
		recordedAt = now
	}
	if err := c.Entries.SaveEntry(ctx, entities.AuditEntry{
		AuditID:     auditID,
		EventID:     strings.TrimSpace(event.EventID),
		ElectionID:  strings.TrimSpace(payload.ElectionID),
		CandidateID: strings.TrimSpace(payload.CandidateID),
		Action:      "vote_recorded",
		RecordedAt:  recordedAt,
	}); err != nil {
		return err
	}

	logger.Info("audit entry recorded",
		"event", "audit_entry_recorded",
		"module", "election-operations/audit-trail",
		"layer", "worker",
		"audit_id", auditID,
		"election_id", payload.ElectionID,
		"candidate_id", payload.CandidateID,
	)
	return nil
}

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
