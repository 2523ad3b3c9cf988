package events

import (
	"encoding/json"
	"time"
)

// Envelope is the canonical event shape shared by every context.
// Producers write it to their outbox; the relay publishes it verbatim,
// so consumers can decode Data without knowing the producer's tables.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	SourceService    string          `json:"source_service"`
	OccurredAt       time.Time       `json:"occurred_at"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}
