package model

import (
	"time"

	"github.com/google/uuid"
)

type ScoreTrigger string

const (
	TriggerManual     ScoreTrigger = "manual"
	TriggerItemChange ScoreTrigger = "item_change"
	TriggerScheduled  ScoreTrigger = "scheduled"
	TriggerSeed       ScoreTrigger = "seed"
)

func (t ScoreTrigger) Display() string {
	switch t {
	case TriggerManual:
		return "Manual recalculation"
	case TriggerItemChange:
		return "Item changed"
	case TriggerScheduled:
		return "Scheduled"
	case TriggerSeed:
		return "Initial seed"
	default:
		return string(t)
	}
}

// PeaceOfMindScore is the single current compliance snapshot per tenant,
// recomputed wholesale on every trigger rather than maintained
// incrementally.
type PeaceOfMindScore struct {
	ID                 uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Tenant             *Tenant   `gorm:"foreignKey:TenantID"`
	Score              int       `gorm:"default:0"`
	PreviousScore      int       `gorm:"default:0"`
	TotalItems         int       `gorm:"default:0"`
	CompliantCount     int       `gorm:"default:0"`
	DueSoonCount       int       `gorm:"default:0"`
	OverdueCount       int       `gorm:"default:0"`
	MissingCount       int       `gorm:"default:0"`
	LegalItems         int       `gorm:"default:0"`
	BestPracticeItems  int       `gorm:"default:0"`
	LastCalculatedAt   time.Time
}

func (s *PeaceOfMindScore) ScoreChange() int {
	return s.Score - s.PreviousScore
}

func (s *PeaceOfMindScore) Colour() string {
	switch {
	case s.Score >= 80:
		return "green"
	case s.Score >= 60:
		return "amber"
	default:
		return "red"
	}
}

func (s *PeaceOfMindScore) Interpretation() string {
	switch {
	case s.Score >= 80:
		return "Compliant"
	case s.Score >= 60:
		return "Attention Needed"
	default:
		return "Action Required"
	}
}

// ScoreAuditLog is an immutable history row appended on every
// recalculation.
type ScoreAuditLog struct {
	ID             uuid.UUID    `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID       uuid.UUID    `gorm:"type:uuid;not null;index"`
	Score          int          `gorm:"not null"`
	PreviousScore  int          `gorm:"not null"`
	TotalItems     int
	CompliantCount int
	DueSoonCount   int
	OverdueCount   int
	Trigger        ScoreTrigger `gorm:"type:varchar(20);default:'item_change'"`
	CalculatedAt   time.Time    `gorm:"index"`
}
