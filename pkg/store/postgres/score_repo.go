package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sortedhq/sorted/pkg/model"
)

type ScoreRepository struct {
	db *gorm.DB
}

func NewScoreRepository(db *gorm.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// Current returns the tenant's snapshot, or nil when the score has
// never been calculated.
func (r *ScoreRepository) Current(ctx context.Context, tenantID uuid.UUID) (*model.PeaceOfMindScore, error) {
	var score model.PeaceOfMindScore
	err := r.db.WithContext(ctx).
		First(&score, "tenant_id = ?", tenantID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &score, nil
}

func (r *ScoreRepository) Save(ctx context.Context, score *model.PeaceOfMindScore) error {
	return r.db.WithContext(ctx).Save(score).Error
}

func (r *ScoreRepository) AppendAudit(ctx context.Context, entry *model.ScoreAuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *ScoreRepository) ListAudit(ctx context.Context, tenantID uuid.UUID, limit int) ([]model.ScoreAuditLog, error) {
	var logs []model.ScoreAuditLog
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("calculated_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (r *ScoreRepository) AuditSince(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]model.ScoreAuditLog, error) {
	var logs []model.ScoreAuditLog
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND calculated_at >= ?", tenantID, since).
		Order("calculated_at ASC").
		Find(&logs).Error
	return logs, err
}
