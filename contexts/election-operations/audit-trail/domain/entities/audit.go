package entities

import "time"

// AuditEntry is one immutable line of the vote audit trail. EventID is
// the bus event that produced the entry and doubles as the dedup key.
// Voter identity is intentionally absent: the trail proves when tallies
// changed, not who changed them.
type AuditEntry struct {
	AuditID     string
	EventID     string
	ElectionID  string
	CandidateID string
	Action      string
	RecordedAt  time.Time
}
