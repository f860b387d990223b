package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tenant is one isolated business account. Every domain row carries a
// tenant foreign key and every query filters on it.
type Tenant struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name         string    `gorm:"uniqueIndex;not null"`
	BusinessType string    `gorm:"type:varchar(50);default:'salon'"`
	ContactEmail string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}
