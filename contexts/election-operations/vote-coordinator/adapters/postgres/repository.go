package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ballotbox/contexts/election-operations/vote-coordinator/domain/entities"
	domainerrors "ballotbox/contexts/election-operations/vote-coordinator/domain/errors"
	"ballotbox/contexts/election-operations/vote-coordinator/ports"
	"ballotbox/internal/shared/events"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
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

// AutoMigrate creates the coordinator's tables, including the composite
// unique index on (voter_id, election_id) that enforces one vote per
// voter per election at the storage layer.
func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&electionModel{},
		&candidateModel{},
		&ballotModel{},
		&outboxModel{},
	)
}

func (r *Repository) GetElection(ctx context.Context, electionID string) (entities.Election, error) {
	var row electionModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(electionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Election{}, domainerrors.ErrElectionNotFound
		}
		return entities.Election{}, r.logError("ballot_repo_get_election_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) GetCandidate(ctx context.Context, candidateID string) (entities.Candidate, error) {
	var row candidateModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(candidateID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Candidate{}, domainerrors.ErrCandidateNotFound
		}
		return entities.Candidate{}, r.logError("ballot_repo_get_candidate_failed", err,
			"candidate_id", strings.TrimSpace(candidateID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListElections(ctx context.Context) ([]entities.Election, error) {
	var rows []electionModel
	if err := r.db.WithContext(ctx).
		Order("starts_at DESC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_elections_failed", err)
	}
	items := make([]entities.Election, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListCandidatesByElection(ctx context.Context, electionID string) ([]entities.Candidate, error) {
	var rows []candidateModel
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_candidates_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	items := make([]entities.Candidate, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) HasVoted(ctx context.Context, voterID string, electionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ballotModel{}).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Count(&count).
		Error
	if err != nil {
		return false, r.logError("ballot_repo_has_voted_failed", err,
			"voter_id", strings.TrimSpace(voterID),
			"election_id", strings.TrimSpace(electionID),
		)
	}
	return count > 0, nil
}

// RecordBallot appends the ballot row and increments the candidate
// tally inside one database transaction. The unique index on
// (voter_id, election_id) is what rejects a concurrent duplicate, not
// any prior existence check; a trapped index surfaces as
// ErrAlreadyVoted and leaves no partial state.
func (r *Repository) RecordBallot(ctx context.Context, ballot entities.Ballot) (entities.Ballot, int64, error) {
	row := ballotModelFromEntity(ballot)
	var tally int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		update := tx.Model(&candidateModel{}).
			Where("id = ?", row.CandidateID).
			UpdateColumn("vote_count", gorm.Expr("vote_count + 1"))
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return domainerrors.ErrCandidateNotFound
		}

		var candidate candidateModel
		if err := tx.Where("id = ?", row.CandidateID).First(&candidate).Error; err != nil {
			return err
		}
		tally = candidate.VoteCount
		return nil
	})
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return entities.Ballot{}, 0, domainerrors.ErrAlreadyVoted
		case errors.Is(err, domainerrors.ErrCandidateNotFound):
			return entities.Ballot{}, 0, err
		case isTransientFailure(err):
			return entities.Ballot{}, 0, fmt.Errorf("%w: %v", domainerrors.ErrStorageTransient, err)
		default:
			return entities.Ballot{}, 0, r.logError("ballot_repo_record_ballot_failed", err,
				"ballot_id", strings.TrimSpace(ballot.BallotID),
				"voter_id", strings.TrimSpace(ballot.VoterID),
				"election_id", strings.TrimSpace(ballot.ElectionID),
			)
		}
	}
	return row.toEntity(), tally, nil
}

func (r *Repository) ListBallotsByVoter(ctx context.Context, voterID string) ([]entities.Ballot, error) {
	var rows []ballotModel
	if err := r.db.WithContext(ctx).
		Where("voter_id = ?", strings.TrimSpace(voterID)).
		Order("cast_at DESC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_ballots_by_voter_failed", err,
			"voter_id", strings.TrimSpace(voterID),
		)
	}
	return toBallotEntities(rows), nil
}

func (r *Repository) ListBallotsByElection(ctx context.Context, electionID string) ([]entities.Ballot, error) {
	var rows []ballotModel
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Order("cast_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_ballots_by_election_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	return toBallotEntities(rows), nil
}

func (r *Repository) ElectionTally(ctx context.Context, electionID string) ([]entities.CandidateTally, error) {
	candidates, err := r.ListCandidatesByElection(ctx, electionID)
	if err != nil {
		return nil, err
	}
	items := make([]entities.CandidateTally, 0, len(candidates))
	for _, candidate := range candidates {
		items = append(items, entities.CandidateTally{
			CandidateID: candidate.CandidateID,
			Name:        candidate.Name,
			Party:       candidate.Party,
			VoteCount:   candidate.VoteCount,
		})
	}
	return items, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope events.Envelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("ballot_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ballot_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("ballot_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrBallotNotFound
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "election-operations/vote-coordinator",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ballot repository operation failed", fields...)
	return err
}

type electionModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Title       string    `gorm:"column:title"`
	Description string    `gorm:"column:description"`
	Active      bool      `gorm:"column:active"`
	StartsAt    time.Time `gorm:"column:starts_at"`
	EndsAt      time.Time `gorm:"column:ends_at"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (electionModel) TableName() string {
	return "elections"
}

func (m electionModel) toEntity() entities.Election {
	return entities.Election{
		ElectionID:  m.ID,
		Title:       m.Title,
		Description: m.Description,
		Active:      m.Active,
		StartsAt:    m.StartsAt.UTC(),
		EndsAt:      m.EndsAt.UTC(),
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

type candidateModel struct {
	ID         string `gorm:"column:id;primaryKey"`
	ElectionID string `gorm:"column:election_id;index"`
	Name       string `gorm:"column:name"`
	Party      string `gorm:"column:party"`
	ImageURL   string `gorm:"column:image_url"`
	VoteCount  int64  `gorm:"column:vote_count"`
}

func (candidateModel) TableName() string {
	return "candidates"
}

func (m candidateModel) toEntity() entities.Candidate {
	return entities.Candidate{
		CandidateID: m.ID,
		ElectionID:  m.ElectionID,
		Name:        m.Name,
		Party:       m.Party,
		ImageURL:    m.ImageURL,
		VoteCount:   m.VoteCount,
	}
}

type ballotModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	ElectionID  string    `gorm:"column:election_id;uniqueIndex:uq_votes_voter_election"`
	CandidateID string    `gorm:"column:candidate_id;index"`
	VoterID     string    `gorm:"column:voter_id;uniqueIndex:uq_votes_voter_election"`
	CastAt      time.Time `gorm:"column:cast_at"`
}

func (ballotModel) TableName() string {
	return "votes"
}

func ballotModelFromEntity(ballot entities.Ballot) ballotModel {
	row := ballotModel{
		ID:          strings.TrimSpace(ballot.BallotID),
		ElectionID:  strings.TrimSpace(ballot.ElectionID),
		CandidateID: strings.TrimSpace(ballot.CandidateID),
		VoterID:     strings.TrimSpace(ballot.VoterID),
		CastAt:      ballot.CastAt.UTC(),
	}
	if row.CastAt.IsZero() {
		row.CastAt = time.Now().UTC()
	}
	return row
}

func (m ballotModel) toEntity() entities.Ballot {
	return entities.Ballot{
		BallotID:    m.ID,
		ElectionID:  m.ElectionID,
		CandidateID: m.CandidateID,
		VoterID:     m.VoterID,
		CastAt:      m.CastAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "ballot_outbox"
}

func toBallotEntities(rows []ballotModel) []entities.Ballot {
	items := make([]entities.Ballot, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

// isUniqueViolation covers postgres (pgconn 23505 or gorm's translated
// sentinel) and the sqlite test backend, which reports constraint
// failures by message.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isTransientFailure marks failures a caller may retry: serialization
// aborts, deadlocks, admin shutdown, and connection-class errors.
func isTransientFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "57P01":
		return true
	}
	return strings.HasPrefix(pgErr.Code, "08")
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.ElectionDirectory = (*Repository)(nil)
var _ ports.BallotLedger = (*Repository)(nil)
var _ ports.TallyReader = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
