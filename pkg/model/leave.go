package model

import (
	"time"

	"github.com/google/uuid"
)

type LeaveType string

const (
	LeaveSick   LeaveType = "SICK"
	LeaveAnnual LeaveType = "ANNUAL"
	LeaveUnpaid LeaveType = "UNPAID"
	LeaveOther  LeaveType = "OTHER"
)

type LeaveStatus string

const (
	LeaveRequested LeaveStatus = "REQUESTED"
	LeaveApproved  LeaveStatus = "APPROVED"
	LeaveDeclined  LeaveStatus = "DECLINED"
	LeaveCancelled LeaveStatus = "CANCELLED"
)

type LeaveRequest struct {
	ID        uuid.UUID   `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  uuid.UUID   `gorm:"type:uuid;not null;index"`
	StaffID   uuid.UUID   `gorm:"type:uuid;not null;index"`
	Staff     *Staff      `gorm:"foreignKey:StaffID"`
	LeaveType LeaveType   `gorm:"type:varchar(20);not null"`
	Status    LeaveStatus `gorm:"type:varchar(20);default:'REQUESTED';index"`
	StartAt   time.Time   `gorm:"not null"`
	EndAt     time.Time   `gorm:"not null"`
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t LeaveType) Display() string {
	switch t {
	case LeaveSick:
		return "Sick leave"
	case LeaveAnnual:
		return "Annual leave"
	case LeaveUnpaid:
		return "Unpaid leave"
	default:
		return "Leave"
	}
}

// AbsenceRecord is a same-day absence logged after the fact, typically
// via the command bar ("Jordan is sick today").
type AbsenceRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID     uuid.UUID `gorm:"type:uuid;not null;index"`
	StaffID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Staff        *Staff    `gorm:"foreignKey:StaffID"`
	Date         time.Time `gorm:"type:date;not null;index"`
	RecordType   string    `gorm:"type:varchar(20);default:'ABSENCE'"`
	Reason       string
	IsAuthorised bool `gorm:"default:false"`
	CreatedAt    time.Time
}
