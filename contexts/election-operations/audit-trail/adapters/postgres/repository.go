package postgresadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ballotbox/contexts/election-operations/audit-trail/domain/entities"
	domainerrors "ballotbox/contexts/election-operations/audit-trail/domain/errors"
	"ballotbox/contexts/election-operations/audit-trail/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&auditModel{}, &eventDedupModel{})
}

func (r *Repository) SaveEntry(ctx context.Context, entry entities.AuditEntry) error {
	row := auditModelFromEntity(entry)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("audit_repo_save_entry_failed", create.Error,
			"audit_id", row.ID,
			"event_id", row.EventID,
		)
	}
	return nil
}

func (r *Repository) ListEntries(ctx context.Context) ([]entities.AuditEntry, error) {
	var rows []auditModel
	if err := r.db.WithContext(ctx).
		Order("recorded_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("audit_repo_list_entries_failed", err)
	}
	return toAuditEntities(rows), nil
}

func (r *Repository) ListEntriesByElection(ctx context.Context, electionID string) ([]entities.AuditEntry, error) {
	var rows []auditModel
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Order("recorded_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("audit_repo_list_entries_by_election_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	return toAuditEntities(rows), nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return false, r.logError("audit_repo_reserve_event_failed", create.Error,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if create.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Select("payload_hash").
		Where("event_id = ?", row.EventID).
		First(&existing).Error; err != nil {
		return false, r.logError("audit_repo_reserve_event_load_existing_failed", err,
			"event_id", row.EventID,
		)
	}
	if existing.PayloadHash != row.PayloadHash {
		return false, domainerrors.ErrEventConflict
	}
	return true, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "election-operations/audit-trail",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("audit repository operation failed", fields...)
	return err
}

type auditModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	EventID     string    `gorm:"column:event_id;uniqueIndex"`
	ElectionID  string    `gorm:"column:election_id;index"`
	CandidateID string    `gorm:"column:candidate_id"`
	Action      string    `gorm:"column:action"`
	RecordedAt  time.Time `gorm:"column:recorded_at"`
}

func (auditModel) TableName() string {
	return "audits"
}

func auditModelFromEntity(entry entities.AuditEntry) auditModel {
	row := auditModel{
		ID:          strings.TrimSpace(entry.AuditID),
		EventID:     strings.TrimSpace(entry.EventID),
		ElectionID:  strings.TrimSpace(entry.ElectionID),
		CandidateID: strings.TrimSpace(entry.CandidateID),
		Action:      strings.TrimSpace(entry.Action),
		RecordedAt:  entry.RecordedAt.UTC(),
	}
	if row.RecordedAt.IsZero() {
		row.RecordedAt = time.Now().UTC()
	}
	return row
}

func (m auditModel) toEntity() entities.AuditEntry {
	return entities.AuditEntry{
		AuditID:     m.ID,
		EventID:     m.EventID,
		ElectionID:  m.ElectionID,
		CandidateID: m.CandidateID,
		Action:      m.Action,
		RecordedAt:  m.RecordedAt.UTC(),
	}
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "audit_event_dedup"
}

func toAuditEntities(rows []auditModel) []entities.AuditEntry {
	items := make([]entities.AuditEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

var _ ports.AuditRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
