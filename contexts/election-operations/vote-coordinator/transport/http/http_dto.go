package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CastVoteRequest struct {
	CandidateID string `json:"candidate_id"`
}

type VoteReceiptResponse struct {
	BallotID       string    `json:"ballot_id"`
	ElectionID     string    `json:"election_id"`
	CandidateID    string    `json:"candidate_id"`
	CastAt         time.Time `json:"cast_at"`
	CandidateTally int64     `json:"candidate_tally"`
}

type CandidateResultItem struct {
	CandidateID string  `json:"candidate_id"`
	Name        string  `json:"name"`
	Party       string  `json:"party"`
	VoteCount   int64   `json:"vote_count"`
	Percentage  float64 `json:"percentage"`
}

type ElectionResultsResponse struct {
	ElectionID string                `json:"election_id"`
	Title      string                `json:"title"`
	TotalVotes int64                 `json:"total_votes"`
	Closed     bool                  `json:"closed"`
	Items      []CandidateResultItem `json:"items"`
}

type ElectionSummaryItem struct {
	ElectionID string    `json:"election_id"`
	Title      string    `json:"title"`
	Active     bool      `json:"active"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	Open       bool      `json:"open"`
}

type ElectionListResponse struct {
	Items []ElectionSummaryItem `json:"items"`
}

type HistoryItem struct {
	BallotID      string    `json:"ballot_id"`
	ElectionID    string    `json:"election_id"`
	ElectionTitle string    `json:"election_title"`
	CandidateID   string    `json:"candidate_id"`
	CandidateName string    `json:"candidate_name"`
	Party         string    `json:"party"`
	CastAt        time.Time `json:"cast_at"`
}

type VoterHistoryResponse struct {
	VoterID string        `json:"voter_id"`
	Items   []HistoryItem `json:"items"`
}
