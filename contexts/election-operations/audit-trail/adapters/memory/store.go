package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ballotbox/contexts/election-operations/audit-trail/domain/entities"
	domainerrors "ballotbox/contexts/election-operations/audit-trail/domain/errors"
	"ballotbox/contexts/election-operations/audit-trail/ports"

	"github.com/google/uuid"
)

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

type Store struct {
	mu sync.RWMutex

	entries    map[string]entities.AuditEntry
	eventDedup map[string]dedupRecord
}

func NewStore(seed []entities.AuditEntry) *Store {
	entries := make(map[string]entities.AuditEntry, len(seed))
	for _, entry := range seed {
		entries[entry.AuditID] = entry
	}
	return &Store{
		entries:    entries,
		eventDedup: make(map[string]dedupRecord),
	}
}

func (s *Store) SaveEntry(_ context.Context, entry entities.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[strings.TrimSpace(entry.AuditID)] = entry
	return nil
}

func (s *Store) ListEntries(_ context.Context) ([]entities.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.AuditEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		items = append(items, entry)
	}
	sortEntriesByRecorded(items)
	return items, nil
}

func (s *Store) ListEntriesByElection(_ context.Context, electionID string) ([]entities.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	electionID = strings.TrimSpace(electionID)
	items := make([]entities.AuditEntry, 0)
	for _, entry := range s.entries {
		if entry.ElectionID == electionID {
			items = append(items, entry)
		}
	}
	sortEntriesByRecorded(items)
	return items, nil
}

func (s *Store) ReserveEvent(
	_ context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(eventID)
	existing, ok := s.eventDedup[key]
	if ok {
		if !existing.expiresAt.IsZero() && time.Now().UTC().After(existing.expiresAt.UTC()) {
			delete(s.eventDedup, key)
		} else {
			if existing.payloadHash != strings.TrimSpace(payloadHash) {
				return false, domainerrors.ErrEventConflict
			}
			return true, nil
		}
	}

	s.eventDedup[key] = dedupRecord{
		payloadHash: strings.TrimSpace(payloadHash),
		expiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func sortEntriesByRecorded(items []entities.AuditEntry) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].RecordedAt.Equal(items[j].RecordedAt) {
			return items[i].AuditID < items[j].AuditID
		}
		return items[i].RecordedAt.Before(items[j].RecordedAt)
	})
}

var _ ports.AuditRepository = (*Store)(nil)
var _ ports.EventDedupStore = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
