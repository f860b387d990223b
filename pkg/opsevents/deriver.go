// Package opsevents derives dashboard items from deltas against
// expected state. No scoring and no inference: every event is a
// deterministic function of the current data.
package opsevents

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sortedhq/sorted/pkg/config"
	"github.com/sortedhq/sorted/pkg/metrics"
	"github.com/sortedhq/sorted/pkg/model"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

const (
	EventStaffSick         = "staff_sick"
	EventBookingCancelled  = "booking_cancelled"
	EventBookingUnassigned = "booking_unassigned"
	EventDepositMissing    = "deposit_missing"
	EventLeavePending      = "leave_pending"
	EventComplianceExpiry  = "compliance_expiry"
	EventIncidentOpen      = "incident_open"
)

// categoryOrder ranks events by operational priority: today's blockers
// first, then revenue risks, then rota conflicts, compliance always
// last.
var categoryOrder = map[string]int{
	EventStaffSick:         0,
	EventBookingUnassigned: 1,
	EventIncidentOpen:      2,
	EventDepositMissing:    3,
	EventBookingCancelled:  4,
	EventLeavePending:      5,
	EventComplianceExpiry:  6,
}

// Action is a concrete next step attached to an event. Every action
// carries the reason it is being suggested.
type Action struct {
	Label  string `json:"label"`
	Reason string `json:"reason"`
	Link   string `json:"link"`
	Rank   int    `json:"rank"`
}

type Event struct {
	EventType  string     `json:"event_type"`
	Severity   Severity   `json:"severity"`
	Summary    string     `json:"summary"`
	Detail     string     `json:"detail"`
	Actions    []Action   `json:"actions"`
	EntityType string     `json:"entity_type"`
	EntityID   string     `json:"entity_id,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// State summarises the dashboard: "sorted" when nothing needs
// attention, "active" otherwise.
type State struct {
	State   string `json:"state"`
	Message string `json:"message"`
}

type BookingSource interface {
	CancelledBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]model.Booking, error)
	UnassignedBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]model.Booking, error)
	UnpaidBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]model.Booking, error)
	QualifiedStaffNames(ctx context.Context, tenantID, serviceID uuid.UUID, limit int) ([]string, error)
	ActiveStaffNamesExcept(ctx context.Context, tenantID, excludeStaffID uuid.UUID, limit int) ([]string, error)
}

type LeaveSource interface {
	SickOverlapping(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]model.LeaveRequest, error)
	PendingWithin(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]model.LeaveRequest, error)
}

type ComplianceSource interface {
	ItemsWithStatus(ctx context.Context, tenantID uuid.UUID, status model.ItemStatus) ([]model.ComplianceItem, error)
	DueSoonBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) ([]model.ComplianceItem, error)
	OpenIncidents(ctx context.Context, tenantID uuid.UUID) ([]model.IncidentReport, error)
}

type Deriver struct {
	bookings   BookingSource
	leave      LeaveSource
	compliance ComplianceSource
	modules    config.ModulesConfig
	dashboard  config.DashboardConfig
	logger     *zap.Logger
	now        func() time.Time
}

func NewDeriver(bookings BookingSource, leave LeaveSource, compliance ComplianceSource, modules config.ModulesConfig, dashboard config.DashboardConfig, logger *zap.Logger) *Deriver {
	return &Deriver{
		bookings:   bookings,
		leave:      leave,
		compliance: compliance,
		modules:    modules,
		dashboard:  dashboard,
		logger:     logger,
		now:        time.Now,
	}
}

func (d *Deriver) WithClock(now func() time.Time) *Deriver {
	d.now = now
	return d
}

// Events derives the current operational events for a tenant, sorted
// by category priority. Disabled modules contribute nothing.
func (d *Deriver) Events(ctx context.Context, tenantID uuid.UUID) ([]Event, error) {
	now := d.now().UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	todayEnd := todayStart.AddDate(0, 0, 1)
	tomorrowEnd := todayStart.AddDate(0, 0, 2)

	events := []Event{}

	if d.modules.Bookings {
		bookingEvents, err := d.bookingEvents(ctx, tenantID, todayStart, todayEnd, tomorrowEnd)
		if err != nil {
			return nil, fmt.Errorf("derive booking events: %w", err)
		}
		events = append(events, bookingEvents...)
	}

	if d.modules.Staff {
		leaveEvents, err := d.leaveEvents(ctx, tenantID, todayStart, todayEnd)
		if err != nil {
			return nil, fmt.Errorf("derive leave events: %w", err)
		}
		events = append(events, leaveEvents...)
	}

	if d.modules.Compliance {
		complianceEvents, err := d.complianceEvents(ctx, tenantID, todayStart)
		if err != nil {
			return nil, fmt.Errorf("derive compliance events: %w", err)
		}
		events = append(events, complianceEvents...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return categoryRank(events[i].EventType) < categoryRank(events[j].EventType)
	})

	for _, e := range events {
		metrics.OperationalEventsTotal.WithLabelValues(tenantID.String(), e.EventType).Inc()
	}

	return events, nil
}

func categoryRank(eventType string) int {
	if rank, ok := categoryOrder[eventType]; ok {
		return rank
	}
	return 99
}

// DashboardState reports whether anything needs the owner's attention.
func DashboardState(events []Event) State {
	if len(events) == 0 {
		return State{State: "sorted", Message: "No active issues. Sorted."}
	}
	total := len(events)
	plural, verb := "s", ""
	if total == 1 {
		plural, verb = "", "s"
	}
	return State{
		State:   "active",
		Message: fmt.Sprintf("%d issue%s need%s attention.", total, plural, verb),
	}
}

func (d *Deriver) bookingEvents(ctx context.Context, tenantID uuid.UUID, todayStart, todayEnd, tomorrowEnd time.Time) ([]Event, error) {
	var events []Event

	cancelled, err := d.bookings.CancelledBetween(ctx, tenantID, todayStart, todayEnd)
	if err != nil {
		return nil, err
	}
	for i := range cancelled {
		b := &cancelled[i]
		clientName := b.ClientName()
		events = append(events, Event{
			EventType: EventBookingCancelled,
			Severity:  SeverityWarning,
			Summary:   fmt.Sprintf("Booking cancelled: %s", clientName),
			Detail:    fmt.Sprintf("%s, %s at %s", clientName, serviceName(b), b.StartTime.Format("15:04")),
			Actions: []Action{
				{Label: "Review slot", Reason: "Slot now available for rebooking", Link: "/bookings", Rank: 1},
			},
			EntityType: "booking",
			EntityID:   b.ID.String(),
			Timestamp:  b.UpdatedAt,
		})
	}

	unassigned, err := d.bookings.UnassignedBetween(ctx, tenantID, todayStart, tomorrowEnd)
	if err != nil {
		return nil, err
	}
	for i := range unassigned {
		b := &unassigned[i]
		clientName := b.ClientName()
		isToday := b.StartTime.Before(todayEnd)
		severity, when := SeverityHigh, "tomorrow"
		if isToday {
			severity, when = SeverityCritical, "today"
		}

		names, err := d.bookings.QualifiedStaffNames(ctx, tenantID, b.ServiceID, 3)
		if err != nil {
			return nil, err
		}
		var actions []Action
		for i, name := range names {
			actions = append(actions, Action{
				Label:  fmt.Sprintf("Assign %s", name),
				Reason: fmt.Sprintf("Available for %s", serviceName(b)),
				Link:   "/bookings",
				Rank:   i + 1,
			})
		}
		if len(actions) == 0 {
			actions = append(actions, Action{
				Label:  "No staff available, reschedule or cancel",
				Reason: "No active staff linked to this service",
				Link:   "/bookings",
				Rank:   1,
			})
		}

		events = append(events, Event{
			EventType:  EventBookingUnassigned,
			Severity:   severity,
			Summary:    fmt.Sprintf("Unassigned booking %s: %s", when, clientName),
			Detail:     fmt.Sprintf("%s, %s at %s (%s)", clientName, serviceName(b), b.StartTime.Format("15:04"), when),
			Actions:    actions,
			EntityType: "booking",
			EntityID:   b.ID.String(),
			Timestamp:  b.CreatedAt,
		})
	}

	unpaid, err := d.bookings.UnpaidBetween(ctx, tenantID, todayStart, todayEnd)
	if err != nil {
		return nil, err
	}
	for i := range unpaid {
		b := &unpaid[i]
		clientName := b.ClientName()
		price := int64(0)
		if b.Service != nil {
			price = b.Service.PricePence
		}
		events = append(events, Event{
			EventType: EventDepositMissing,
			Severity:  SeverityHigh,
			Summary:   fmt.Sprintf("No payment: %s (%s)", clientName, Sterling(price)),
			Detail:    fmt.Sprintf("%s, %s at %s. No deposit or payment recorded.", clientName, serviceName(b), b.StartTime.Format("15:04")),
			Actions: []Action{
				{Label: "Request payment", Reason: fmt.Sprintf("%s outstanding", Sterling(price)), Link: "/bookings", Rank: 1},
				{Label: "Mark as paid", Reason: "If payment received offline", Link: "/bookings", Rank: 2},
				{Label: "Cancel booking", Reason: "If client unresponsive", Link: "/bookings", Rank: 3},
			},
			EntityType: "booking",
			EntityID:   b.ID.String(),
			Timestamp:  b.CreatedAt,
		})
	}

	return events, nil
}

func (d *Deriver) leaveEvents(ctx context.Context, tenantID uuid.UUID, todayStart, todayEnd time.Time) ([]Event, error) {
	var events []Event

	sick, err := d.leave.SickOverlapping(ctx, tenantID, todayStart, todayEnd)
	if err != nil {
		return nil, err
	}
	for i := range sick {
		lv := &sick[i]
		staffName := staffName(lv)

		names, err := d.bookings.ActiveStaffNamesExcept(ctx, tenantID, lv.StaffID, 3)
		if err != nil {
			return nil, err
		}
		var actions []Action
		for i, name := range names {
			tier := i + 1
			actions = append(actions, Action{
				Label:  fmt.Sprintf("Request cover from %s", name),
				Reason: fmt.Sprintf("Tier %d, next available", tier),
				Link:   "/staff",
				Rank:   tier,
			})
		}
		actions = append(actions, Action{
			Label:  "Owner cover",
			Reason: "If no staff available",
			Link:   "/staff",
			Rank:   len(actions) + 1,
		})

		events = append(events, Event{
			EventType:  EventStaffSick,
			Severity:   SeverityCritical,
			Summary:    fmt.Sprintf("%s marked sick today", staffName),
			Detail:     fmt.Sprintf("%s, sick leave from %s to %s", staffName, lv.StartAt.Format("02 Jan"), lv.EndAt.Format("02 Jan")),
			Actions:    actions,
			EntityType: "leave_request",
			EntityID:   lv.ID.String(),
			Timestamp:  lv.CreatedAt,
		})
	}

	horizon := d.dashboard.LeaveHorizonDays
	if horizon <= 0 {
		horizon = 7
	}
	pending, err := d.leave.PendingWithin(ctx, tenantID, todayStart, todayStart.AddDate(0, 0, horizon))
	if err != nil {
		return nil, err
	}
	for i := range pending {
		lv := &pending[i]
		// Sick leave already underway is covered by the sick deriver.
		if lv.LeaveType == model.LeaveSick && lv.StartAt.Before(todayEnd) {
			continue
		}
		name := staffName(lv)
		events = append(events, Event{
			EventType: EventLeavePending,
			Severity:  SeverityWarning,
			Summary:   fmt.Sprintf("Leave request pending: %s", name),
			Detail: fmt.Sprintf("%s, %s %s to %s", name, lv.LeaveType.Display(),
				lv.StartAt.Format("02 Jan"), lv.EndAt.Format("02 Jan")),
			Actions: []Action{
				{Label: "Approve", Reason: "If cover arranged", Link: "/staff", Rank: 1},
				{Label: "Decline", Reason: "If no cover available", Link: "/staff", Rank: 2},
			},
			EntityType: "leave_request",
			EntityID:   lv.ID.String(),
			Timestamp:  lv.CreatedAt,
		})
	}

	return events, nil
}

func (d *Deriver) complianceEvents(ctx context.Context, tenantID uuid.UUID, todayStart time.Time) ([]Event, error) {
	var events []Event

	overdue, err := d.compliance.ItemsWithStatus(ctx, tenantID, model.StatusOverdue)
	if err != nil {
		return nil, err
	}
	for i := range overdue {
		item := &overdue[i]
		severity := SeverityHigh
		if item.ItemType == model.ItemLegal {
			severity = SeverityCritical
		}
		events = append(events, Event{
			EventType: EventComplianceExpiry,
			Severity:  severity,
			Summary:   fmt.Sprintf("Overdue: %s", item.Title),
			Detail: fmt.Sprintf("%s, %s. Due: %s", item.ItemType.Display(),
				categoryName(item), dueDisplay(item)),
			Actions: []Action{
				{Label: "Complete now", Reason: fmt.Sprintf("%s, overdue", item.ItemType.Display()), Link: "/compliance", Rank: 1},
			},
			EntityType: "compliance_item",
			EntityID:   item.ID.String(),
			Timestamp:  item.UpdatedAt,
		})
	}

	lookahead := d.dashboard.ComplianceLookaheadDays
	if lookahead <= 0 {
		lookahead = 14
	}
	dueSoon, err := d.compliance.DueSoonBefore(ctx, tenantID, todayStart.AddDate(0, 0, lookahead))
	if err != nil {
		return nil, err
	}
	for i := range dueSoon {
		item := &dueSoon[i]
		daysUntil := 0
		if item.NextDueDate != nil {
			daysUntil = int(item.NextDueDate.Sub(todayStart).Hours() / 24)
		}
		severity := SeverityHigh
		if daysUntil > 7 {
			severity = SeverityWarning
		}
		plural := "s"
		if daysUntil == 1 {
			plural = ""
		}
		events = append(events, Event{
			EventType: EventComplianceExpiry,
			Severity:  severity,
			Summary:   fmt.Sprintf("Due in %d day%s: %s", daysUntil, plural, item.Title),
			Detail: fmt.Sprintf("%s, %s. Due: %s", item.ItemType.Display(),
				categoryName(item), dueDisplay(item)),
			Actions: []Action{
				{Label: "Schedule completion", Reason: fmt.Sprintf("%d days remaining", daysUntil), Link: "/compliance", Rank: 1},
			},
			EntityType: "compliance_item",
			EntityID:   item.ID.String(),
			Timestamp:  item.UpdatedAt,
		})
	}

	incidents, err := d.compliance.OpenIncidents(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for i := range incidents {
		inc := &incidents[i]
		severity := SeverityWarning
		if inc.Severity == model.IncidentSeverityHigh {
			severity = SeverityCritical
		}
		events = append(events, Event{
			EventType: EventIncidentOpen,
			Severity:  severity,
			Summary:   fmt.Sprintf("Open incident: %s", inc.Title),
			Detail: fmt.Sprintf("%s, %s. Reported %s", inc.Severity.Display(),
				inc.Location, inc.IncidentDate.Format("02 Jan")),
			Actions: []Action{
				{Label: "Investigate", Reason: fmt.Sprintf("%s severity", inc.Severity.Display()), Link: "/compliance", Rank: 1},
				{Label: "Resolve", Reason: "If investigation complete", Link: "/compliance", Rank: 2},
			},
			EntityType: "incident",
			EntityID:   inc.ID.String(),
			Timestamp:  inc.CreatedAt,
		})
	}

	return events, nil
}

// Sterling renders pence as a pound amount, always with two decimal
// places.
func Sterling(pence int64) string {
	return fmt.Sprintf("£%d.%02d", pence/100, pence%100)
}

func serviceName(b *model.Booking) string {
	if b.Service != nil {
		return b.Service.Name
	}
	return "Unknown service"
}

func staffName(lv *model.LeaveRequest) string {
	if lv.Staff != nil {
		return lv.Staff.Name
	}
	return "Unknown staff"
}

func categoryName(item *model.ComplianceItem) string {
	if item.Category != nil {
		return item.Category.Name
	}
	return "Uncategorised"
}

func dueDisplay(item *model.ComplianceItem) string {
	if item.NextDueDate != nil {
		return item.NextDueDate.Format("2006-01-02")
	}
	if item.DueDate != nil {
		return item.DueDate.Format("2006-01-02")
	}
	return "unknown"
}
