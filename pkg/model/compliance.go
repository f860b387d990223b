package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ItemType string

const (
	ItemLegal        ItemType = "LEGAL"
	ItemBestPractice ItemType = "BEST_PRACTICE"
)

func (t ItemType) Display() string {
	if t == ItemLegal {
		return "Legal requirement"
	}
	return "Best practice"
}

type ItemStatus string

const (
	StatusCompliant ItemStatus = "COMPLIANT"
	StatusDueSoon   ItemStatus = "DUE_SOON"
	StatusOverdue   ItemStatus = "OVERDUE"
)

type FrequencyType string

const (
	FrequencyWeekly    FrequencyType = "weekly"
	FrequencyMonthly   FrequencyType = "monthly"
	FrequencyQuarterly FrequencyType = "quarterly"
	FrequencyAnnual    FrequencyType = "annual"
	FrequencyFiveYear  FrequencyType = "5_year"
	FrequencyAdHoc     FrequencyType = "ad_hoc"
)

type ComplianceCategory struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Tenant    *Tenant   `gorm:"foreignKey:TenantID"`
	Name      string    `gorm:"not null"`
	MaxScore  int       `gorm:"default:10"`
	Items     []ComplianceItem `gorm:"foreignKey:CategoryID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ComplianceItem is a single regulatory obligation. Status is stored
// denormalized for cheap filtering but is always rewritten from the
// dates during recalculation, so the two never disagree for long.
type ComplianceItem struct {
	ID                uuid.UUID           `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CategoryID        uuid.UUID           `gorm:"type:uuid;not null;index"`
	Category          *ComplianceCategory `gorm:"foreignKey:CategoryID"`
	Title             string              `gorm:"not null"`
	Description       string
	ItemType          ItemType      `gorm:"type:varchar(20);default:'BEST_PRACTICE';index"`
	FrequencyType     FrequencyType `gorm:"type:varchar(20);default:'annual'"`
	Status            ItemStatus    `gorm:"type:varchar(20);default:'DUE_SOON';index"`
	DueDate           *time.Time    `gorm:"type:date"`
	NextDueDate       *time.Time    `gorm:"type:date"`
	ExpiryDate        *time.Time    `gorm:"type:date"`
	ReminderDays      int           `gorm:"default:30"`
	Weight            int           `gorm:"default:1"`
	EvidenceRequired  bool          `gorm:"default:false"`
	DocumentURL       string
	LastCompletedDate *time.Time `gorm:"type:date"`
	CompletedAt       *time.Time
	CompletedBy       string
	RegulatoryRef     string
	LegalReference    string
	PlainEnglishWhy   string
	PrimaryAction     string
	Notes             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

// EffectiveDueDate is the date the status derivation runs against:
// expiry wins over the rolling next-due date.
func (i *ComplianceItem) EffectiveDueDate() *time.Time {
	if i.ExpiryDate != nil {
		return i.ExpiryDate
	}
	if i.NextDueDate != nil {
		return i.NextDueDate
	}
	return i.DueDate
}

// ComputeNextDue advances the due date from a completion date per the
// recurrence rule. Ad-hoc items have no next occurrence.
func (i *ComplianceItem) ComputeNextDue(completed time.Time) *time.Time {
	var next time.Time
	switch i.FrequencyType {
	case FrequencyWeekly:
		next = completed.AddDate(0, 0, 7)
	case FrequencyMonthly:
		next = completed.AddDate(0, 1, 0)
	case FrequencyQuarterly:
		next = completed.AddDate(0, 3, 0)
	case FrequencyAnnual:
		next = completed.AddDate(1, 0, 0)
	case FrequencyFiveYear:
		next = completed.AddDate(5, 0, 0)
	default:
		return nil
	}
	return &next
}

// Missing means the obligation has never been evidenced at all:
// overdue with no completion on record and nothing uploaded. Tracked
// for prioritised display; scoring treats it as plain overdue.
func (i *ComplianceItem) Missing() bool {
	return i.Status == StatusOverdue && i.LastCompletedDate == nil && i.DocumentURL == ""
}

type IncidentStatus string

const (
	IncidentOpen          IncidentStatus = "OPEN"
	IncidentInvestigating IncidentStatus = "INVESTIGATING"
	IncidentResolved      IncidentStatus = "RESOLVED"
	IncidentClosed        IncidentStatus = "CLOSED"
)

type IncidentSeverity string

const (
	IncidentSeverityLow    IncidentSeverity = "LOW"
	IncidentSeverityMedium IncidentSeverity = "MEDIUM"
	IncidentSeverityHigh   IncidentSeverity = "HIGH"
)

func (s IncidentSeverity) Display() string {
	switch s {
	case IncidentSeverityHigh:
		return "High"
	case IncidentSeverityMedium:
		return "Medium"
	default:
		return "Low"
	}
}

type IncidentReport struct {
	ID           uuid.UUID        `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID     uuid.UUID        `gorm:"type:uuid;not null;index"`
	Tenant       *Tenant          `gorm:"foreignKey:TenantID"`
	Title        string           `gorm:"not null"`
	Description  string
	Severity     IncidentSeverity `gorm:"type:varchar(20);default:'LOW'"`
	Status       IncidentStatus   `gorm:"type:varchar(20);default:'OPEN';index"`
	Location     string
	IncidentDate time.Time
	ReportedBy   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccidentReport is the statutory accident-book entry (BI 510), with
// RIDDOR reporting fields.
type AccidentReport struct {
	ID                     uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID               uuid.UUID `gorm:"type:uuid;not null;index"`
	Tenant                 *Tenant   `gorm:"foreignKey:TenantID"`
	Date                   time.Time `gorm:"type:date;not null"`
	Time                   string
	Location               string
	PersonInvolved         string
	PersonRole             string
	Description            string
	Severity               string `gorm:"type:varchar(20);default:'MINOR'"`
	Status                 string `gorm:"type:varchar(20);default:'OPEN';index"`
	RiddorReportable       bool   `gorm:"default:false"`
	HSEReference           string
	RiddorReportedDate     *time.Time `gorm:"type:date"`
	FollowUpRequired       bool       `gorm:"default:false"`
	FollowUpNotes          string
	FollowUpCompleted      bool       `gorm:"default:false"`
	FollowUpCompletedDate  *time.Time `gorm:"type:date"`
	DocumentURL            string
	ReportedBy             string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
