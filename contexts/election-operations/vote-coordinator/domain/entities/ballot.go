package entities

import "time"

// Election is the read-only election record owned by election
// administration. The coordinator never mutates it; the Active flag is
// the administrator pause override, independent of the time window.
type Election struct {
	ElectionID  string
	Title       string
	Description string
	Active      bool
	StartsAt    time.Time
	EndsAt      time.Time
	CreatedAt   time.Time
}

// AcceptingVotesAt reports whether the election takes ballots at the
// given instant. Both conditions are required: administrators can pause
// an election inside its window, and the flag alone does not extend the
// window.
func (e Election) AcceptingVotesAt(now time.Time) bool {
	if !e.Active {
		return false
	}
	now = now.UTC()
	return !now.Before(e.StartsAt.UTC()) && !now.After(e.EndsAt.UTC())
}

// Candidate belongs to exactly one election. VoteCount is the running
// tally and is the only candidate attribute the coordinator writes.
type Candidate struct {
	CandidateID string
	ElectionID  string
	Name        string
	Party       string
	ImageURL    string
	VoteCount   int64
}

// Ballot is one accepted vote. Rows are append-only: created exactly
// once per (voter, election), never updated, never deleted by the core.
type Ballot struct {
	BallotID    string
	ElectionID  string
	CandidateID string
	VoterID     string
	CastAt      time.Time
}

// VoteReceipt is returned to the voter after a committed cast.
type VoteReceipt struct {
	BallotID       string
	ElectionID     string
	CandidateID    string
	VoterID        string
	CastAt         time.Time
	CandidateTally int64
}

// CandidateTally pairs a candidate with its running count, enriched
// with display metadata for the result read path.
type CandidateTally struct {
	CandidateID string
	Name        string
	Party       string
	VoteCount   int64
}

type CandidateResult struct {
	CandidateID string
	Name        string
	Party       string
	VoteCount   int64
	Percentage  float64
}

type ElectionResults struct {
	ElectionID string
	Title      string
	TotalVotes int64
	Closed     bool
	Items      []CandidateResult
}

// HistoryEntry is one row of a voter's voting history: the ballot plus
// the election/candidate names dashboards display.
type HistoryEntry struct {
	BallotID      string
	ElectionID    string
	ElectionTitle string
	CandidateID   string
	CandidateName string
	Party         string
	CastAt        time.Time
}

// ElectionSummary is the listing shape for dashboards; Open is computed
// at query time from the flag and the window.
type ElectionSummary struct {
	ElectionID string
	Title      string
	Active     bool
	StartsAt   time.Time
	EndsAt     time.Time
	Open       bool
}
