package commands

import (
	"encoding/json"
	"time"

	"ballotbox/internal/shared/events"
)

// newBallotEnvelope builds the result-changed notification. Events are
// partitioned by election so dashboard consumers see per-election
// ordering. Voter identity is deliberately absent from the payload: the
// broadcast channel carries tally changes, not who voted.
func newBallotEnvelope(
	eventID string,
	eventType string,
	electionID string,
	occurredAt time.Time,
	data map[string]any,
) (events.Envelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return events.Envelope{}, err
	}
	return events.Envelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "vote-coordinator",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "election_id",
		PartitionKey:     electionID,
		Data:             payload,
	}, nil
}
