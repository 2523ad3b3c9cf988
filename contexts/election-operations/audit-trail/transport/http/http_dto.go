package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AuditEntryItem struct {
	AuditID     string    `json:"audit_id"`
	EventID     string    `json:"event_id"`
	ElectionID  string    `json:"election_id"`
	CandidateID string    `json:"candidate_id"`
	Action      string    `json:"action"`
	RecordedAt  time.Time `json:"recorded_at"`
}

type AuditTrailResponse struct {
	Items []AuditEntryItem `json:"items"`
}
