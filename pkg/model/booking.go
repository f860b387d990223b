package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingNoShow    BookingStatus = "no_show"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type Client struct {
	ID                 uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID           uuid.UUID `gorm:"type:uuid;not null;index"`
	Tenant             *Tenant   `gorm:"foreignKey:TenantID"`
	Name               string    `gorm:"not null"`
	Email              string
	Phone              string
	LifetimeValuePence int64 `gorm:"default:0"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DeletedAt          gorm.DeletedAt `gorm:"index"`
}

type Service struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID        uuid.UUID `gorm:"type:uuid;not null;index"`
	Tenant          *Tenant   `gorm:"foreignKey:TenantID"`
	Name            string    `gorm:"not null"`
	DurationMinutes int       `gorm:"default:60"`
	PricePence      int64     `gorm:"default:0"`
	Active          bool      `gorm:"default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Staff is a bookable team member. Services lists what they are
// qualified to deliver; cover suggestions only ever propose staff
// linked to the booking's service.
type Staff struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Tenant    *Tenant   `gorm:"foreignKey:TenantID"`
	Name      string    `gorm:"not null"`
	Email     string
	Role      string    `gorm:"type:varchar(50);default:'staff'"`
	Active    bool      `gorm:"default:true"`
	Services  []Service `gorm:"many2many:staff_services"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (Staff) TableName() string {
	return "staff"
}

type Booking struct {
	ID            uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID      uuid.UUID     `gorm:"type:uuid;not null;index"`
	Tenant        *Tenant       `gorm:"foreignKey:TenantID"`
	ClientID      *uuid.UUID    `gorm:"type:uuid"`
	Client        *Client       `gorm:"foreignKey:ClientID"`
	ServiceID     uuid.UUID     `gorm:"type:uuid;not null"`
	Service       *Service      `gorm:"foreignKey:ServiceID"`
	StaffID       *uuid.UUID    `gorm:"type:uuid"`
	Staff         *Staff        `gorm:"foreignKey:StaffID"`
	StartTime     time.Time     `gorm:"not null;index"`
	EndTime       time.Time     `gorm:"not null"`
	Status        BookingStatus `gorm:"type:varchar(20);default:'pending';index"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);default:'pending'"`
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time `gorm:"index"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

// ClientName tolerates bookings whose client record was removed.
func (b *Booking) ClientName() string {
	if b.Client != nil && b.Client.Name != "" {
		return b.Client.Name
	}
	return "Unknown client"
}
