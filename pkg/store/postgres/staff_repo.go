package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sortedhq/sorted/pkg/model"
)

type StaffRepository struct {
	db *gorm.DB
}

func NewStaffRepository(db *gorm.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

func (r *StaffRepository) Create(ctx context.Context, staff *model.Staff) error {
	return r.db.WithContext(ctx).Create(staff).Error
}

func (r *StaffRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Staff, error) {
	var staff model.Staff
	err := r.db.WithContext(ctx).
		Preload("Services").
		First(&staff, "tenant_id = ? AND id = ?", tenantID, id).Error
	if err != nil {
		return nil, err
	}
	return &staff, nil
}

func (r *StaffRepository) List(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]model.Staff, error) {
	var staff []model.Staff
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	err := query.Order("name ASC").Find(&staff).Error
	return staff, err
}

// ActiveStaff returns active staff ordered by name, excluding the
// given IDs and optionally restricted to those qualified for a service.
func (r *StaffRepository) ActiveStaff(ctx context.Context, tenantID uuid.UUID, excludeIDs []uuid.UUID, serviceID *uuid.UUID) ([]model.Staff, error) {
	var staff []model.Staff
	query := r.db.WithContext(ctx).Model(&model.Staff{}).
		Where("staff.tenant_id = ? AND staff.active = ?", tenantID, true)
	if len(excludeIDs) > 0 {
		query = query.Where("staff.id NOT IN ?", excludeIDs)
	}
	if serviceID != nil {
		query = query.
			Joins("JOIN staff_services ON staff_services.staff_id = staff.id").
			Where("staff_services.service_id = ?", *serviceID)
	}
	err := query.Order("staff.name ASC").Find(&staff).Error
	return staff, err
}

func (r *StaffRepository) CreateLeaveRequest(ctx context.Context, leave *model.LeaveRequest) error {
	return r.db.WithContext(ctx).Create(leave).Error
}

func (r *StaffRepository) UpdateLeaveStatus(ctx context.Context, tenantID, id uuid.UUID, status model.LeaveStatus) error {
	result := r.db.WithContext(ctx).Model(&model.LeaveRequest{}).
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

// SickOverlapping returns sick leave that overlaps the window,
// approved or still only requested: a sick member of staff is a
// today-problem either way.
func (r *StaffRepository) SickOverlapping(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]model.LeaveRequest, error) {
	var leave []model.LeaveRequest
	err := r.db.WithContext(ctx).
		Preload("Staff").
		Where("tenant_id = ? AND leave_type = ? AND start_at < ? AND end_at > ? AND status IN ?",
			tenantID, model.LeaveSick, to, from,
			[]model.LeaveStatus{model.LeaveApproved, model.LeaveRequested}).
		Order("start_at ASC").
		Find(&leave).Error
	return leave, err
}

func (r *StaffRepository) PendingWithin(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]model.LeaveRequest, error) {
	var leave []model.LeaveRequest
	err := r.db.WithContext(ctx).
		Preload("Staff").
		Where("tenant_id = ? AND status = ? AND start_at < ? AND end_at > ?",
			tenantID, model.LeaveRequested, to, from).
		Order("start_at ASC").
		Find(&leave).Error
	return leave, err
}

func (r *StaffRepository) AbsencesOn(ctx context.Context, tenantID uuid.UUID, date time.Time) ([]model.AbsenceRecord, error) {
	var absences []model.AbsenceRecord
	err := r.db.WithContext(ctx).
		Preload("Staff").
		Where("tenant_id = ? AND date = ?", tenantID, date.Format("2006-01-02")).
		Find(&absences).Error
	return absences, err
}

func (r *StaffRepository) ApprovedLeaveOn(ctx context.Context, tenantID uuid.UUID, date time.Time) ([]model.LeaveRequest, error) {
	var leave []model.LeaveRequest
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	err := r.db.WithContext(ctx).
		Preload("Staff").
		Where("tenant_id = ? AND status = ? AND start_at < ? AND end_at > ?",
			tenantID, model.LeaveApproved, dayEnd, dayStart).
		Find(&leave).Error
	return leave, err
}

// GetOrCreateAbsence records a same-day absence exactly once. The
// second "Jordan is sick" of the day is a no-op.
func (r *StaffRepository) GetOrCreateAbsence(ctx context.Context, record *model.AbsenceRecord) (bool, error) {
	var existing model.AbsenceRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND staff_id = ? AND date = ? AND record_type = ?",
			record.TenantID, record.StaffID, record.Date.Format("2006-01-02"), record.RecordType).
		First(&existing).Error
	if err == nil {
		*record = existing
		return false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return false, err
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return false, err
	}
	return true, nil
}
