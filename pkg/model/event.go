package model

import (
	"time"

	"github.com/google/uuid"
)

type BusinessEventType string

const (
	EventStaffSick           BusinessEventType = "STAFF_SICK"
	EventCoverRequested      BusinessEventType = "COVER_REQUESTED"
	EventCoverAccepted       BusinessEventType = "COVER_ACCEPTED"
	EventCoverDeclined       BusinessEventType = "COVER_DECLINED"
	EventBookingAssigned     BusinessEventType = "BOOKING_ASSIGNED"
	EventBookingCancelled    BusinessEventType = "BOOKING_CANCELLED"
	EventBookingRescheduled  BusinessEventType = "BOOKING_RESCHEDULED"
	EventPaymentRequested    BusinessEventType = "PAYMENT_REQUESTED"
	EventPaymentMarked       BusinessEventType = "PAYMENT_MARKED"
	EventComplianceCompleted BusinessEventType = "COMPLIANCE_COMPLETED"
	EventIncidentResolved    BusinessEventType = "INCIDENT_RESOLVED"
	EventLeaveApproved       BusinessEventType = "LEAVE_APPROVED"
	EventLeaveDeclined       BusinessEventType = "LEAVE_DECLINED"
	EventOwnerOverride       BusinessEventType = "OWNER_OVERRIDE"
	EventAssistantCommand    BusinessEventType = "ASSISTANT_COMMAND"
	EventReminderDigest      BusinessEventType = "REMINDER_DIGEST"
)

var validBusinessEventTypes = map[BusinessEventType]struct{}{
	EventStaffSick: {}, EventCoverRequested: {}, EventCoverAccepted: {},
	EventCoverDeclined: {}, EventBookingAssigned: {}, EventBookingCancelled: {},
	EventBookingRescheduled: {}, EventPaymentRequested: {}, EventPaymentMarked: {},
	EventComplianceCompleted: {}, EventIncidentResolved: {}, EventLeaveApproved: {},
	EventLeaveDeclined: {}, EventOwnerOverride: {}, EventAssistantCommand: {},
	EventReminderDigest: {},
}

func (t BusinessEventType) Valid() bool {
	_, ok := validBusinessEventTypes[t]
	return ok
}

type BusinessEventStatus string

const (
	EventStatusPending   BusinessEventStatus = "PENDING"
	EventStatusCompleted BusinessEventStatus = "COMPLETED"
	EventStatusFailed    BusinessEventStatus = "FAILED"
)

// BusinessEvent is the append-only audit log of confirmed dashboard
// actions. Every click generates one; no silent state mutation. Rows
// are never updated or deleted. The cover rotation reads the last
// seven days of COVER_ACCEPTED payloads to decide who is next.
type BusinessEvent struct {
	ID               uuid.UUID           `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID         uuid.UUID           `gorm:"type:uuid;not null;index"`
	EventType        BusinessEventType   `gorm:"type:varchar(50);not null;index:idx_events_type_created"`
	Status           BusinessEventStatus `gorm:"type:varchar(20);default:'COMPLETED'"`
	SourceEventType  string              `gorm:"type:varchar(50)"`
	SourceEntityType string              `gorm:"type:varchar(50);index:idx_events_source"`
	SourceEntityID   string              `gorm:"type:varchar(64);index:idx_events_source"`
	ActionLabel      string              `gorm:"not null"`
	ActionDetail     string
	PerformedBy      string
	Payload          JSONB     `gorm:"type:jsonb;default:'{}'"`
	CreatedAt        time.Time `gorm:"index:idx_events_type_created"`
}
