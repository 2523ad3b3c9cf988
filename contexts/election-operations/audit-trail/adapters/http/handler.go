package httpadapter

import (
	"context"
	"log/slog"
	"strings"

	"ballotbox/contexts/election-operations/audit-trail/application/queries"
	"ballotbox/contexts/election-operations/audit-trail/domain/entities"
	httptransport "ballotbox/contexts/election-operations/audit-trail/transport/http"
)

type Handler struct {
	Trail  queries.TrailUseCase
	Logger *slog.Logger
}

func (h Handler) AuditTrailHandler(ctx context.Context, electionID string) (httptransport.AuditTrailResponse, error) {
	var (
		entries []entities.AuditEntry
		err     error
	)
	if strings.TrimSpace(electionID) == "" {
		entries, err = h.Trail.Trail(ctx)
	} else {
		entries, err = h.Trail.TrailByElection(ctx, electionID)
	}
	if err != nil {
		return httptransport.AuditTrailResponse{}, err
	}

	items := make([]httptransport.AuditEntryItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, httptransport.AuditEntryItem{
			AuditID:     entry.AuditID,
			EventID:     entry.EventID,
			ElectionID:  entry.ElectionID,
			CandidateID: entry.CandidateID,
			Action:      entry.Action,
			RecordedAt:  entry.RecordedAt,
		})
	}
	return httptransport.AuditTrailResponse{Items: items}, nil
}
