package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sortedhq/sorted/pkg/model"
)

type ComplianceRepository struct {
	db *gorm.DB
}

func NewComplianceRepository(db *gorm.DB) *ComplianceRepository {
	return &ComplianceRepository{db: db}
}

// Tenant scoping goes through the category: items have no tenant
// column of their own.
func (r *ComplianceRepository) tenantItems(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.ComplianceItem{}).
		Joins("JOIN compliance_categories ON compliance_categories.id = compliance_items.category_id").
		Where("compliance_categories.tenant_id = ?", tenantID)
}

type ItemFilter struct {
	Status   *model.ItemStatus
	ItemType *model.ItemType
	Category string
}

func (r *ComplianceRepository) ListItems(ctx context.Context, tenantID uuid.UUID, filter ItemFilter) ([]model.ComplianceItem, error) {
	var items []model.ComplianceItem
	query := r.tenantItems(ctx, tenantID).Preload("Category")
	if filter.Status != nil {
		query = query.Where("compliance_items.status = ?", *filter.Status)
	}
	if filter.ItemType != nil {
		query = query.Where("compliance_items.item_type = ?", *filter.ItemType)
	}
	if filter.Category != "" {
		query = query.Where("compliance_categories.name = ?", filter.Category)
	}
	err := query.Order("compliance_items.next_due_date ASC NULLS LAST").Find(&items).Error
	return items, err
}

func (r *ComplianceRepository) ItemsForTenant(ctx context.Context, tenantID uuid.UUID) ([]model.ComplianceItem, error) {
	return r.ListItems(ctx, tenantID, ItemFilter{})
}

func (r *ComplianceRepository) GetItem(ctx context.Context, tenantID, itemID uuid.UUID) (*model.ComplianceItem, error) {
	var item model.ComplianceItem
	err := r.tenantItems(ctx, tenantID).
		Preload("Category").
		Where("compliance_items.id = ?", itemID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *ComplianceRepository) CreateItem(ctx context.Context, item *model.ComplianceItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *ComplianceRepository) SaveItem(ctx context.Context, item *model.ComplianceItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *ComplianceRepository) DeleteItem(ctx context.Context, tenantID, itemID uuid.UUID) error {
	item, err := r.GetItem(ctx, tenantID, itemID)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(item).Error
}

func (r *ComplianceRepository) UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status model.ItemStatus) error {
	return r.db.WithContext(ctx).Model(&model.ComplianceItem{}).
		Where("id = ?", itemID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()}).Error
}

func (r *ComplianceRepository) ItemsWithStatus(ctx context.Context, tenantID uuid.UUID, status model.ItemStatus) ([]model.ComplianceItem, error) {
	return r.ListItems(ctx, tenantID, ItemFilter{Status: &status})
}

func (r *ComplianceRepository) OverdueCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.tenantItems(ctx, tenantID).
		Where("compliance_items.status = ?", model.StatusOverdue).
		Count(&count).Error
	return count, err
}

func (r *ComplianceRepository) DueSoonBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) ([]model.ComplianceItem, error) {
	var items []model.ComplianceItem
	err := r.tenantItems(ctx, tenantID).
		Preload("Category").
		Where("compliance_items.status = ? AND compliance_items.next_due_date <= ?", model.StatusDueSoon, cutoff.Format("2006-01-02")).
		Order("compliance_items.next_due_date ASC").
		Find(&items).Error
	return items, err
}

func (r *ComplianceRepository) ItemsDueBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]model.ComplianceItem, error) {
	var items []model.ComplianceItem
	err := r.tenantItems(ctx, tenantID).
		Preload("Category").
		Where("compliance_items.next_due_date >= ? AND compliance_items.next_due_date <= ?",
			from.Format("2006-01-02"), to.Format("2006-01-02")).
		Order("compliance_items.next_due_date ASC").
		Find(&items).Error
	return items, err
}

func (r *ComplianceRepository) GetOrCreateCategory(ctx context.Context, tenantID uuid.UUID, name string, maxScore int) (*model.ComplianceCategory, error) {
	var category model.ComplianceCategory
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND name = ?", tenantID, name).
		First(&category).Error
	if err == nil {
		return &category, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	category = model.ComplianceCategory{TenantID: tenantID, Name: name, MaxScore: maxScore}
	if err := r.db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *ComplianceRepository) ListCategories(ctx context.Context, tenantID uuid.UUID) ([]model.ComplianceCategory, error) {
	var categories []model.ComplianceCategory
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Find(&categories).Error
	return categories, err
}

func (r *ComplianceRepository) OpenIncidents(ctx context.Context, tenantID uuid.UUID) ([]model.IncidentReport, error) {
	var incidents []model.IncidentReport
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ?", tenantID,
			[]model.IncidentStatus{model.IncidentOpen, model.IncidentInvestigating}).
		Order("created_at ASC").
		Find(&incidents).Error
	return incidents, err
}

func (r *ComplianceRepository) CreateIncident(ctx context.Context, incident *model.IncidentReport) error {
	return r.db.WithContext(ctx).Create(incident).Error
}

func (r *ComplianceRepository) UpdateIncidentStatus(ctx context.Context, tenantID, id uuid.UUID, status model.IncidentStatus) error {
	result := r.db.WithContext(ctx).Model(&model.IncidentReport{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ComplianceRepository) ListIncidents(ctx context.Context, tenantID uuid.UUID) ([]model.IncidentReport, error) {
	var incidents []model.IncidentReport
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&incidents).Error
	return incidents, err
}

func (r *ComplianceRepository) ListAccidents(ctx context.Context, tenantID uuid.UUID, status string, riddorOnly bool) ([]model.AccidentReport, error) {
	var accidents []model.AccidentReport
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if riddorOnly {
		query = query.Where("riddor_reportable = ?", true)
	}
	err := query.Order("date DESC").Find(&accidents).Error
	return accidents, err
}

func (r *ComplianceRepository) CreateAccident(ctx context.Context, accident *model.AccidentReport) error {
	return r.db.WithContext(ctx).Create(accident).Error
}

func (r *ComplianceRepository) GetAccident(ctx context.Context, tenantID, id uuid.UUID) (*model.AccidentReport, error) {
	var accident model.AccidentReport
	err := r.db.WithContext(ctx).
		First(&accident, "tenant_id = ? AND id = ?", tenantID, id).Error
	if err != nil {
		return nil, err
	}
	return &accident, nil
}

func (r *ComplianceRepository) SaveAccident(ctx context.Context, accident *model.AccidentReport) error {
	return r.db.WithContext(ctx).Save(accident).Error
}

func (r *ComplianceRepository) DeleteAccident(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&model.AccidentReport{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
