package queries

import (
	"context"
	"sort"
	"strings"

	"ballotbox/contexts/election-operations/audit-trail/domain/entities"
	"ballotbox/contexts/election-operations/audit-trail/ports"
)

type TrailUseCase struct {
	Entries ports.AuditRepository
}

// Trail returns the full audit trail, oldest first.
func (uc TrailUseCase) Trail(ctx context.Context) ([]entities.AuditEntry, error) {
	entries, err := uc.Entries.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

// TrailByElection filters the trail down to one election, oldest first.
func (uc TrailUseCase) TrailByElection(ctx context.Context, electionID string) ([]entities.AuditEntry, error) {
	entries, err := uc.Entries.ListEntriesByElection(ctx, strings.TrimSpace(electionID))
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

func sortEntries(entries []entities.AuditEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RecordedAt.Equal(entries[j].RecordedAt) {
			return entries[i].AuditID < entries[j].AuditID
		}
		return entries[i].RecordedAt.Before(entries[j].RecordedAt)
	})
}
