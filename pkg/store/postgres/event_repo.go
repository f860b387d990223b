package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sortedhq/sorted/pkg/model"
)

type BusinessEventRepository struct {
	db *gorm.DB
}

func NewBusinessEventRepository(db *gorm.DB) *BusinessEventRepository {
	return &BusinessEventRepository{db: db}
}

// Append is the only write path; business events are immutable once
// created.
func (r *BusinessEventRepository) Append(ctx context.Context, event *model.BusinessEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// TodayResolved returns today's completed actions for the Sorted view.
// Events drop out of this view after midnight but remain in the log.
func (r *BusinessEventRepository) TodayResolved(ctx context.Context, tenantID uuid.UUID, now time.Time) ([]model.BusinessEvent, error) {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var events []model.BusinessEvent
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND created_at >= ?",
			tenantID, model.EventStatusCompleted, todayStart).
		Order("created_at DESC").
		Find(&events).Error
	return events, err
}

func (r *BusinessEventRepository) CoverAcceptedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]model.BusinessEvent, error) {
	var events []model.BusinessEvent
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND event_type = ? AND created_at >= ?",
			tenantID, model.EventCoverAccepted, since).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}

func (r *BusinessEventRepository) List(ctx context.Context, tenantID uuid.UUID, eventType *model.BusinessEventType, limit, offset int) ([]model.BusinessEvent, int64, error) {
	var events []model.BusinessEvent
	var total int64

	query := r.db.WithContext(ctx).Model(&model.BusinessEvent{}).Where("tenant_id = ?", tenantID)
	if eventType != nil {
		query = query.Where("event_type = ?", *eventType)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	return events, total, err
}
