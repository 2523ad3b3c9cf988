package ports

import (
	"context"
	"time"

	"ballotbox/contexts/election-operations/audit-trail/domain/entities"
	"ballotbox/internal/shared/events"
)

type AuditRepository interface {
	SaveEntry(ctx context.Context, entry entities.AuditEntry) error
	ListEntries(ctx context.Context) ([]entities.AuditEntry, error)
	ListEntriesByElection(ctx context.Context, electionID string) ([]entities.AuditEntry, error)
}

// EventDedupStore makes at-least-once bus delivery safe: ReserveEvent
// returns true when the event was already processed with the same
// payload, and ErrEventConflict when the same id arrives with a
// different payload.
type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
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
