package httpadapter

import (
	"context"
	"log/slog"

	"ballotbox/contexts/election-operations/vote-coordinator/application/commands"
	"ballotbox/contexts/election-operations/vote-coordinator/application/queries"
	httptransport "ballotbox/contexts/election-operations/vote-coordinator/transport/http"
)

type Handler struct {
	Ballots commands.BallotUseCase
	Results queries.ResultsUseCase
	Logger  *slog.Logger
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	voterID string,
	electionID string,
	req httptransport.CastVoteRequest,
) (httptransport.VoteReceiptResponse, error) {
	receipt, err := h.Ballots.CastVote(ctx, commands.CastVoteCommand{
		VoterID:     voterID,
		ElectionID:  electionID,
		CandidateID: req.CandidateID,
	})
	if err != nil {
		return httptransport.VoteReceiptResponse{}, err
	}
	return httptransport.VoteReceiptResponse{
		BallotID:       receipt.BallotID,
		ElectionID:     receipt.ElectionID,
		CandidateID:    receipt.CandidateID,
		CastAt:         receipt.CastAt,
		CandidateTally: receipt.CandidateTally,
	}, nil
}

func (h Handler) ElectionResultsHandler(ctx context.Context, electionID string) (httptransport.ElectionResultsResponse, error) {
	results, err := h.Results.ElectionResults(ctx, electionID)
	if err != nil {
		return httptransport.ElectionResultsResponse{}, err
	}
	items := make([]httptransport.CandidateResultItem, 0, len(results.Items))
	for _, item := range results.Items {
		items = append(items, httptransport.CandidateResultItem{
			CandidateID: item.CandidateID,
			Name:        item.Name,
			Party:       item.Party,
			VoteCount:   item.VoteCount,
			Percentage:  item.Percentage,
		})
	}
	return httptransport.ElectionResultsResponse{
		ElectionID: results.ElectionID,
		Title:      results.Title,
		TotalVotes: results.TotalVotes,
		Closed:     results.Closed,
		Items:      items,
	}, nil
}

func (h Handler) ListElectionsHandler(ctx context.Context) (httptransport.ElectionListResponse, error) {
	elections, err := h.Results.ListElections(ctx)
	if err != nil {
		return httptransport.ElectionListResponse{}, err
	}
	items := make([]httptransport.ElectionSummaryItem, 0, len(elections))
	for _, election := range elections {
		items = append(items, httptransport.ElectionSummaryItem{
			ElectionID: election.ElectionID,
			Title:      election.Title,
			Active:     election.Active,
			StartsAt:   election.StartsAt,
			EndsAt:     election.EndsAt,
			Open:       election.Open,
		})
	}
	return httptransport.ElectionListResponse{Items: items}, nil
}

func (h Handler) VoterHistoryHandler(ctx context.Context, voterID string) (httptransport.VoterHistoryResponse, error) {
	entries, err := h.Results.VoterHistory(ctx, voterID)
	if err != nil {
		return httptransport.VoterHistoryResponse{}, err
	}
	items := make([]httptransport.HistoryItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, httptransport.HistoryItem{
			BallotID:      entry.BallotID,
			ElectionID:    entry.ElectionID,
			ElectionTitle: entry.ElectionTitle,
			CandidateID:   entry.CandidateID,
			CandidateName: entry.CandidateName,
			Party:         entry.Party,
			CastAt:        entry.CastAt,
		})
	}
	return httptransport.VoterHistoryResponse{
		VoterID: voterID,
		Items:   items,
	}, nil
}
