package queries

import (
	"context"
	"sort"
	"strings"
	"time"

	"ballotbox/contexts/election-operations/vote-coordinator/domain/entities"
	domainerrors "ballotbox/contexts/election-operations/vote-coordinator/domain/errors"
	"ballotbox/contexts/election-operations/vote-coordinator/ports"
)

// ResultsUseCase is the read path over the tally store and the ballot
// ledger. Reads reflect committed state as of the query; they are not
// transactionally synchronized with in-flight casts.
type ResultsUseCase struct {
	Directory ports.ElectionDirectory
	Tallies   ports.TallyReader
	Ledger    ports.BallotLedger
	Clock     ports.Clock
}

// ElectionResults returns candidates ranked by vote count descending,
// ties broken by candidate id ascending, so repeated queries over the
// same state always produce the same order. Percentages are 0 across
// the board when the election has no votes.
func (uc ResultsUseCase) ElectionResults(ctx context.Context, electionID string) (entities.ElectionResults, error) {
	electionID = strings.TrimSpace(electionID)
	if electionID == "" {
		return entities.ElectionResults{}, domainerrors.ErrElectionNotFound
	}

	election, err := uc.Directory.GetElection(ctx, electionID)
	if err != nil {
		return entities.ElectionResults{}, err
	}
	tallies, err := uc.Tallies.ElectionTally(ctx, electionID)
	if err != nil {
		return entities.ElectionResults{}, err
	}

	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].VoteCount == tallies[j].VoteCount {
			return tallies[i].CandidateID < tallies[j].CandidateID
		}
		return tallies[i].VoteCount > tallies[j].VoteCount
	})

	var total int64
	for _, tally := range tallies {
		total += tally.VoteCount
	}

	items := make([]entities.CandidateResult, 0, len(tallies))
	for _, tally := range tallies {
		percentage := 0.0
		if total > 0 {
			percentage = float64(tally.VoteCount) / float64(total) * 100
		}
		items = append(items, entities.CandidateResult{
			CandidateID: tally.CandidateID,
			Name:        tally.Name,
			Party:       tally.Party,
			VoteCount:   tally.VoteCount,
			Percentage:  percentage,
		})
	}

	return entities.ElectionResults{
		ElectionID: election.ElectionID,
		Title:      election.Title,
		TotalVotes: total,
		Closed:     !election.AcceptingVotesAt(uc.now()),
		Items:      items,
	}, nil
}

// VoterHistory lists the ballots a voter has cast across elections,
// newest first, with election and candidate names resolved for display.
func (uc ResultsUseCase) VoterHistory(ctx context.Context, voterID string) ([]entities.HistoryEntry, error) {
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return nil, domainerrors.ErrInvalidBallotInput
	}

	ballots, err := uc.Ledger.ListBallotsByVoter(ctx, voterID)
	if err != nil {
		return nil, err
	}
	sort.Slice(ballots, func(i, j int) bool {
		return ballots[i].CastAt.After(ballots[j].CastAt)
	})

	entries := make([]entities.HistoryEntry, 0, len(ballots))
	for _, ballot := range ballots {
		entry := entities.HistoryEntry{
			BallotID:    ballot.BallotID,
			ElectionID:  ballot.ElectionID,
			CandidateID: ballot.CandidateID,
			CastAt:      ballot.CastAt,
		}
		if election, err := uc.Directory.GetElection(ctx, ballot.ElectionID); err == nil {
			entry.ElectionTitle = election.Title
		}
		if candidate, err := uc.Directory.GetCandidate(ctx, ballot.CandidateID); err == nil {
			entry.CandidateName = candidate.Name
			entry.Party = candidate.Party
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ListElections returns all elections with their computed open state,
// newest window first.
func (uc ResultsUseCase) ListElections(ctx context.Context) ([]entities.ElectionSummary, error) {
	elections, err := uc.Directory.ListElections(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(elections, func(i, j int) bool {
		if elections[i].StartsAt.Equal(elections[j].StartsAt) {
			return elections[i].ElectionID < elections[j].ElectionID
		}
		return elections[i].StartsAt.After(elections[j].StartsAt)
	})

	now := uc.now()
	items := make([]entities.ElectionSummary, 0, len(elections))
	for _, election := range elections {
		items = append(items, entities.ElectionSummary{
			ElectionID: election.ElectionID,
			Title:      election.Title,
			Active:     election.Active,
			StartsAt:   election.StartsAt,
			EndsAt:     election.EndsAt,
			Open:       election.AcceptingVotesAt(now),
		})
	}
	return items, nil
}

func (uc ResultsUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
