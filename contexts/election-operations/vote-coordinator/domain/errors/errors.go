package errors

import "errors"

var (
	ErrInvalidBallotInput     = errors.New("invalid ballot input")
	ErrElectionNotFound       = errors.New("election not found")
	ErrElectionNotActive      = errors.New("election is not accepting votes")
	ErrCandidateNotFound      = errors.New("candidate not found")
	ErrCandidateNotInElection = errors.New("candidate does not belong to this election")
	ErrAlreadyVoted           = errors.New("voter has already voted in this election")
	ErrBallotNotFound         = errors.New("ballot not found")

	// ErrStorageTransient marks retryable infrastructure failures.
	// Retrying a cast after one is safe: the (voter, election) unique
	// guard turns a duplicate retry into ErrAlreadyVoted, never a
	// second recorded vote.
	ErrStorageTransient = errors.New("transient storage failure")
)
