package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sortedhq/sorted/pkg/model"
)

type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Create(ctx context.Context, client *model.Client) error {
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *ClientRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Client, error) {
	var client model.Client
	err := r.db.WithContext(ctx).First(&client, "tenant_id = ? AND id = ?", tenantID, id).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *ClientRepository) List(ctx context.Context, tenantID uuid.UUID) ([]model.Client, error) {
	var clients []model.Client
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Find(&clients).Error
	return clients, err
}

// GetOrCreateByEmail finds a client by email or creates it from the
// given template. Returns whether a new record was created.
func (r *ClientRepository) GetOrCreateByEmail(ctx context.Context, tenantID uuid.UUID, email string, template model.Client) (*model.Client, bool, error) {
	var client model.Client
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND email = ?", tenantID, email).
		First(&client).Error
	if err == nil {
		return &client, false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, false, err
	}
	template.TenantID = tenantID
	template.Email = email
	if err := r.db.WithContext(ctx).Create(&template).Error; err != nil {
		return nil, false, err
	}
	return &template, true, nil
}

// VIPClients returns clients above a lifetime-value floor, biggest
// spenders first.
func (r *ClientRepository) VIPClients(ctx context.Context, tenantID uuid.UUID, minPence int64, limit int) ([]model.Client, error) {
	var clients []model.Client
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND lifetime_value_pence > ?", tenantID, minPence).
		Order("lifetime_value_pence DESC").
		Limit(limit).
		Find(&clients).Error
	return clients, err
}

// AtRiskClients returns clients with no booking since the cutoff,
// ordered by lifetime value so the most valuable lapsed clients
// surface first.
func (r *ClientRepository) AtRiskClients(ctx context.Context, tenantID uuid.UUID, since time.Time, limit int) ([]model.Client, error) {
	var clients []model.Client
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("id NOT IN (?)",
			r.db.Model(&model.Booking{}).
				Select("client_id").
				Where("tenant_id = ? AND client_id IS NOT NULL AND start_time >= ?", tenantID, since)).
		Order("lifetime_value_pence DESC").
		Limit(limit).
		Find(&clients).Error
	return clients, err
}
