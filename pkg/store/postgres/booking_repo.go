package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sortedhq/sorted/pkg/model"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *BookingRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.WithContext(ctx).
		Preload("Client").
		Preload("Service").
		Preload("Staff").
		First(&booking, "tenant_id = ? AND id = ?", tenantID, id).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *BookingRepository) List(ctx context.Context, tenantID uuid.UUID, status *model.BookingStatus, from, to *time.Time, limit, offset int) ([]model.Booking, int64, error) {
	var bookings []model.Booking
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Booking{}).Where("tenant_id = ?", tenantID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if from != nil {
		query = query.Where("start_time >= ?", *from)
	}
	if to != nil {
		query = query.Where("start_time < ?", *to)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Client").
		Preload("Service").
		Preload("Staff").
		Order("start_time ASC").
		Limit(limit).
		Offset(offset).
		Find(&bookings).Error

	return bookings, total, err
}

func (r *BookingRepository) Update(ctx context.Context, tenantID, id uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).Model(&model.Booking{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(updates).Error
}

// CancelledBetween returns bookings whose cancellation landed in the
// window, by update time rather than start time.
func (r *BookingRepository) CancelledBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.WithContext(ctx).
		Preload("Client").
		Preload("Service").
		Preload("Staff").
		Where("tenant_id = ? AND status = ? AND updated_at >= ? AND updated_at < ?",
			tenantID, model.BookingCancelled, from, to).
		Order("updated_at ASC").
		Find(&bookings).Error
	return bookings, err
}

func (r *BookingRepository) UnassignedBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.WithContext(ctx).
		Preload("Client").
		Preload("Service").
		Where("tenant_id = ? AND staff_id IS NULL AND status IN ? AND start_time >= ? AND start_time < ?",
			tenantID, []model.BookingStatus{model.BookingConfirmed, model.BookingPending}, from, to).
		Order("start_time ASC").
		Find(&bookings).Error
	return bookings, err
}

// UnpaidBetween excludes zero-price services: a free consultation with
// no payment is not a missing deposit.
func (r *BookingRepository) UnpaidBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.WithContext(ctx).
		Preload("Client").
		Preload("Service").
		Joins("JOIN services ON services.id = bookings.service_id AND services.price_pence > 0").
		Where("bookings.tenant_id = ? AND bookings.payment_status = ? AND bookings.status IN ? AND bookings.start_time >= ? AND bookings.start_time < ?",
			tenantID, model.PaymentPending, []model.BookingStatus{model.BookingConfirmed, model.BookingPending}, from, to).
		Order("bookings.start_time ASC").
		Find(&bookings).Error
	return bookings, err
}

// BookingsForClient returns a client's bookings in the given statuses
// with services preloaded, oldest first.
func (r *BookingRepository) BookingsForClient(ctx context.Context, tenantID, clientID uuid.UUID, statuses []model.BookingStatus) ([]model.Booking, error) {
	var bookings []model.Booking
	query := r.db.WithContext(ctx).
		Preload("Service").
		Where("tenant_id = ? AND client_id = ?", tenantID, clientID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	err := query.Order("start_time ASC").Find(&bookings).Error
	return bookings, err
}

// UnassignedCountFrom counts bookings from the given day onwards that
// still have nobody assigned.
func (r *BookingRepository) UnassignedCountFrom(ctx context.Context, tenantID uuid.UUID, from time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Booking{}).
		Where("tenant_id = ? AND staff_id IS NULL AND start_time >= ?", tenantID, from).
		Count(&count).Error
	return count, err
}

func (r *BookingRepository) QualifiedStaffNames(ctx context.Context, tenantID, serviceID uuid.UUID, limit int) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&model.Staff{}).
		Joins("JOIN staff_services ON staff_services.staff_id = staff.id").
		Where("staff.tenant_id = ? AND staff.active = ? AND staff_services.service_id = ?", tenantID, true, serviceID).
		Order("staff.name ASC").
		Limit(limit).
		Pluck("staff.name", &names).Error
	return names, err
}

func (r *BookingRepository) ActiveStaffNamesExcept(ctx context.Context, tenantID, excludeStaffID uuid.UUID, limit int) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&model.Staff{}).
		Where("tenant_id = ? AND active = ? AND id <> ?", tenantID, true, excludeStaffID).
		Order("name ASC").
		Limit(limit).
		Pluck("name", &names).Error
	return names, err
}
