package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type LeadStatus string

const (
	LeadNew       LeadStatus = "NEW"
	LeadContacted LeadStatus = "CONTACTED"
	LeadQualified LeadStatus = "QUALIFIED"
	LeadConverted LeadStatus = "CONVERTED"
	LeadLost      LeadStatus = "LOST"
)

type LeadSource string

const (
	SourceBooking  LeadSource = "booking"
	SourceWebsite  LeadSource = "website"
	SourceReferral LeadSource = "referral"
	SourceSocial   LeadSource = "social"
	SourceManual   LeadSource = "manual"
	SourceOther    LeadSource = "other"
)

// Lead is a CRM prospect. Score and priority are derived at read time
// from status and follow-up date; nothing is persisted for them.
type Lead struct {
	ID               uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID         uuid.UUID      `gorm:"type:uuid;not null;index"`
	Tenant           *Tenant        `gorm:"foreignKey:TenantID"`
	Name             string         `gorm:"not null"`
	Email            string
	Phone            string
	Source           LeadSource     `gorm:"type:varchar(30);default:'manual'"`
	Status           LeadStatus     `gorm:"type:varchar(20);default:'NEW';index"`
	ValuePence       int64          `gorm:"default:0"`
	Notes            string
	Tags             pq.StringArray `gorm:"type:text[]"`
	FollowUpDate     *time.Time     `gorm:"type:date"`
	LastContactDate  *time.Time     `gorm:"type:date"`
	MarketingConsent bool           `gorm:"default:false"`
	ClientID         *uuid.UUID     `gorm:"type:uuid"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ClientScore is a pure function of status.
func (l *Lead) ClientScore() int {
	switch l.Status {
	case LeadConverted:
		return 100
	case LeadQualified:
		return 70
	case LeadContacted:
		return 40
	case LeadNew:
		return 10
	default:
		return 0
	}
}

func (l *Lead) ScoreLabel() string {
	s := l.ClientScore()
	switch {
	case s >= 70:
		return "High"
	case s >= 30:
		return "Medium"
	default:
		return "Low"
	}
}

// ActionRequired names the next deterministic step for this lead, or
// "" when the lead is settled.
func (l *Lead) ActionRequired(today time.Time) string {
	switch l.Status {
	case LeadConverted, LeadLost:
		return ""
	case LeadNew:
		return "Contact"
	case LeadQualified:
		return "Convert"
	}
	// CONTACTED
	if l.FollowUpDate != nil {
		due := dateOnly(*l.FollowUpDate)
		today = dateOnly(today)
		if due.Before(today) {
			return "Follow up overdue"
		}
		if due.Equal(today) {
			return "Follow up today"
		}
	}
	return "Follow up"
}

// SortPriority orders leads for display: lower is more important.
// Overdue follow-ups always come first, then today's, then by status.
func (l *Lead) SortPriority(today time.Time) int {
	today = dateOnly(today)
	if l.FollowUpDate != nil {
		due := dateOnly(*l.FollowUpDate)
		if due.Before(today) {
			return 0
		}
		if due.Equal(today) {
			return 1
		}
	}
	switch l.Status {
	case LeadQualified:
		return 2
	case LeadNew:
		return 3
	case LeadContacted:
		return 4
	case LeadConverted:
		return 8
	case LeadLost:
		return 9
	default:
		return 5
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

type LeadNote struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	LeadID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Lead      *Lead     `gorm:"foreignKey:LeadID"`
	Text      string    `gorm:"not null"`
	CreatedBy string
	CreatedAt time.Time
}

type LeadHistory struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	LeadID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Lead      *Lead     `gorm:"foreignKey:LeadID"`
	Action    string    `gorm:"not null"`
	Detail    string
	CreatedAt time.Time
}
