package postgres

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sortedhq/sorted/pkg/model"
)

type LeadRepository struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

func (r *LeadRepository) Create(ctx context.Context, lead *model.Lead) error {
	return r.db.WithContext(ctx).Create(lead).Error
}

func (r *LeadRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Lead, error) {
	var lead model.Lead
	err := r.db.WithContext(ctx).
		First(&lead, "tenant_id = ? AND id = ?", tenantID, id).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *LeadRepository) Save(ctx context.Context, lead *model.Lead) error {
	return r.db.WithContext(ctx).Save(lead).Error
}

// List returns leads in dashboard order: sort priority ascending,
// newest first within the same priority. Priority is derived, so the
// sort happens here rather than in SQL.
func (r *LeadRepository) List(ctx context.Context, tenantID uuid.UUID, status *model.LeadStatus, now time.Time) ([]model.Lead, error) {
	var leads []model.Lead
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if err := query.Find(&leads).Error; err != nil {
		return nil, err
	}
	sort.SliceStable(leads, func(i, j int) bool {
		pi, pj := leads[i].SortPriority(now), leads[j].SortPriority(now)
		if pi != pj {
			return pi < pj
		}
		return leads[i].CreatedAt.After(leads[j].CreatedAt)
	})
	return leads, nil
}

// ExistsForClient reports whether a lead is already linked to the
// given client record.
func (r *LeadRepository) ExistsForClient(ctx context.Context, tenantID, clientID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Lead{}).
		Where("tenant_id = ? AND client_id = ?", tenantID, clientID).
		Count(&count).Error
	return count > 0, err
}

func (r *LeadRepository) AppendHistory(ctx context.Context, entry *model.LeadHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *LeadRepository) ListHistory(ctx context.Context, leadID uuid.UUID) ([]model.LeadHistory, error) {
	var history []model.LeadHistory
	err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at DESC").
		Find(&history).Error
	return history, err
}

func (r *LeadRepository) AddNote(ctx context.Context, note *model.LeadNote) error {
	return r.db.WithContext(ctx).Create(note).Error
}
