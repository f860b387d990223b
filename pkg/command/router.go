package command

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sortedhq/sorted/pkg/metrics"
	"github.com/sortedhq/sorted/pkg/model"
)

const (
	ActionMarkSick          = "mark_sick"
	ActionWhoOff            = "who_off"
	ActionShowIssues        = "show_issues"
	ActionShowVIP           = "show_vip"
	ActionShowAtRisk        = "show_at_risk"
	ActionExportVIP         = "export_vip"
	ActionShowUnassigned    = "show_unassigned"
	ActionShowBookings      = "show_bookings"
	ActionComplianceOverdue = "compliance_overdue"
	ActionComplianceStatus  = "compliance_status"
)

// vipThresholdPence is the lifetime-value floor for the VIP filter.
const vipThresholdPence = 2000

// atRiskDays is how long without a booking before a client counts as
// at risk of churning.
const atRiskDays = 90

// Response is the command bar's answer: a human-readable message plus
// optional structured data and a page to navigate to.
type Response struct {
	Success     bool        `json:"success"`
	Message     string      `json:"message"`
	Action      string      `json:"action,omitempty"`
	Navigate    string      `json:"navigate,omitempty"`
	Data        interface{} `json:"data,omitempty"`
	Suggestions []string    `json:"suggestions,omitempty"`
}

type Suggestion struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

var suggestions = []Suggestion{
	{Text: "Jordan is sick today", Category: "Staff"},
	{Text: "Who is off today", Category: "Staff"},
	{Text: "Show today's issues", Category: "Dashboard"},
	{Text: "Show VIP clients", Category: "Clients"},
	{Text: "Show at-risk clients", Category: "Clients"},
	{Text: "Export VIP clients", Category: "Clients"},
	{Text: "Add new lead John Smith £120", Category: "CRM"},
	{Text: "Show today's bookings", Category: "Bookings"},
	{Text: "Show unassigned bookings", Category: "Bookings"},
	{Text: "Show compliance status", Category: "Compliance"},
	{Text: "Show overdue compliance", Category: "Compliance"},
}

type StaffDirectory interface {
	List(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]model.Staff, error)
	AbsencesOn(ctx context.Context, tenantID uuid.UUID, date time.Time) ([]model.AbsenceRecord, error)
	ApprovedLeaveOn(ctx context.Context, tenantID uuid.UUID, date time.Time) ([]model.LeaveRequest, error)
	GetOrCreateAbsence(ctx context.Context, record *model.AbsenceRecord) (bool, error)
}

type ClientReader interface {
	VIPClients(ctx context.Context, tenantID uuid.UUID, minPence int64, limit int) ([]model.Client, error)
	AtRiskClients(ctx context.Context, tenantID uuid.UUID, since time.Time, limit int) ([]model.Client, error)
}

type LeadWriter interface {
	Create(ctx context.Context, lead *model.Lead) error
	AppendHistory(ctx context.Context, entry *model.LeadHistory) error
}

type BookingCounter interface {
	UnassignedCountFrom(ctx context.Context, tenantID uuid.UUID, from time.Time) (int64, error)
}

type ComplianceCounter interface {
	OverdueCount(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// Router executes command bar text against live data. Classification
// reuses the same feature dispatch as the parser: the most specific
// phrase wins regardless of table order.
type Router struct {
	staff      StaffDirectory
	clients    ClientReader
	leads      LeadWriter
	bookings   BookingCounter
	compliance ComplianceCounter
	logger     *zap.Logger
	now        func() time.Time
}

func NewRouter(staff StaffDirectory, clients ClientReader, leads LeadWriter, bookings BookingCounter, compliance ComplianceCounter, logger *zap.Logger) *Router {
	return &Router{
		staff:      staff,
		clients:    clients,
		leads:      leads,
		bookings:   bookings,
		compliance: compliance,
		logger:     logger,
		now:        time.Now,
	}
}

func (r *Router) WithClock(now func() time.Time) *Router {
	r.now = now
	return r
}

type commandRule struct {
	action  string
	phrases []string
}

var commandRules = []commandRule{
	{ActionMarkSick, []string{"sick", "off sick", "called in sick", "unwell", "ill today"}},
	{ActionWhoOff, []string{"who is off", "whos off", "staff off"}},
	{ActionShowIssues, []string{"todays issues", "show issues", "sorted issues", "show sorted"}},
	{ActionAddLead, []string{"add new lead", "add lead", "new lead"}},
	{ActionExportVIP, []string{"export vip", "export vip clients", "export clients"}},
	{ActionShowVIP, []string{"vip client", "vip clients", "vip customers", "show vip"}},
	{ActionShowAtRisk, []string{"at risk", "no booking"}},
	{ActionShowUnassigned, []string{"unassigned booking", "unassigned bookings", "show unassigned"}},
	{ActionShowBookings, []string{"todays booking", "todays bookings", "show booking", "show bookings", "show today"}},
	{ActionComplianceOverdue, []string{"overdue compliance", "show overdue"}},
	{ActionComplianceStatus, []string{"compliance status", "compliance overview", "show compliance", "health and safety"}},
}

func classifyCommand(text string) string {
	normalized := normalize(text)

	best := ""
	bestWords, bestLen := 0, 0
	for _, cr := range commandRules {
		for _, phrase := range cr.phrases {
			if !containsPhrase(normalized, phrase) {
				continue
			}
			words := len(strings.Fields(phrase))
			if words > bestWords || (words == bestWords && len(phrase) > bestLen) {
				best, bestWords, bestLen = cr.action, words, len(phrase)
			}
		}
	}
	return best
}

// Execute runs a command bar entry and returns the outcome. Unmatched
// text gets a not-recognised response with example commands.
func (r *Router) Execute(ctx context.Context, tenantID uuid.UUID, text string) Response {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Response{Success: false, Message: "Type a command"}
	}

	action := classifyCommand(trimmed)
	if action == "" {
		metrics.CommandsTotal.WithLabelValues("unmatched").Inc()
		return Response{
			Success: false,
			Message: "Command not recognised",
			Suggestions: []string{
				"Jordan is sick today",
				"Show VIP clients",
				"Show today's issues",
				"Add new lead John Smith £120",
			},
		}
	}

	metrics.CommandsTotal.WithLabelValues(action).Inc()

	var resp Response
	switch action {
	case ActionMarkSick:
		resp = r.markSick(ctx, tenantID, trimmed)
	case ActionWhoOff:
		resp = r.whoOff(ctx, tenantID)
	case ActionShowIssues:
		resp = Response{Success: true, Message: "Showing today's issues", Action: ActionShowIssues, Navigate: "/dashboard"}
	case ActionAddLead:
		resp = r.addLead(ctx, tenantID, trimmed)
	case ActionExportVIP:
		resp = Response{Success: true, Message: "Exporting VIP clients...", Action: ActionExportVIP, Navigate: "/clients?export=vip"}
	case ActionShowVIP:
		resp = r.showVIP(ctx, tenantID)
	case ActionShowAtRisk:
		resp = r.showAtRisk(ctx, tenantID)
	case ActionShowUnassigned:
		resp = r.showUnassigned(ctx, tenantID)
	case ActionShowBookings:
		resp = Response{Success: true, Message: "Showing today's bookings", Action: ActionShowBookings, Navigate: "/bookings"}
	case ActionComplianceOverdue:
		resp = r.complianceOverdue(ctx, tenantID)
	case ActionComplianceStatus:
		resp = Response{Success: true, Message: "Showing compliance status", Action: ActionComplianceStatus, Navigate: "/compliance"}
	}

	r.logger.Info("command executed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("action", action),
		zap.Bool("success", resp.Success),
	)
	return resp
}

// Suggestions returns the command dropdown entries, optionally
// filtered by substring, capped at eight.
func Suggestions(query string) []Suggestion {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return suggestions
	}
	var filtered []Suggestion
	for _, s := range suggestions {
		if strings.Contains(strings.ToLower(s.Text), q) {
			filtered = append(filtered, s)
			if len(filtered) == 8 {
				break
			}
		}
	}
	return filtered
}

func (r *Router) markSick(ctx context.Context, tenantID uuid.UUID, text string) Response {
	staff, err := r.resolveStaff(ctx, tenantID, text)
	if err != nil {
		return r.failure("look up staff", err)
	}
	if staff == nil {
		return Response{Success: false, Message: `Could not find staff member. Try: "Jordan is sick today"`}
	}

	today := dateOf(r.now())
	record := &model.AbsenceRecord{
		TenantID:     tenantID,
		StaffID:      staff.ID,
		Date:         today,
		RecordType:   "ABSENCE",
		Reason:       "Sick, logged via command bar",
		IsAuthorised: true,
	}
	created, err := r.staff.GetOrCreateAbsence(ctx, record)
	if err != nil {
		return r.failure("record absence", err)
	}

	message := fmt.Sprintf("%s marked sick today", staff.Name)
	if !created {
		message = fmt.Sprintf("%s was already marked sick today", staff.Name)
	}
	return Response{Success: true, Message: message, Action: ActionMarkSick, Navigate: "/staff"}
}

func (r *Router) whoOff(ctx context.Context, tenantID uuid.UUID) Response {
	today := dateOf(r.now())

	var offNames []string
	absences, err := r.staff.AbsencesOn(ctx, tenantID, today)
	if err != nil {
		return r.failure("load absences", err)
	}
	for _, a := range absences {
		if a.Staff != nil {
			offNames = append(offNames, fmt.Sprintf("%s (sick/absent)", a.Staff.Name))
		}
	}

	leave, err := r.staff.ApprovedLeaveOn(ctx, tenantID, today)
	if err != nil {
		return r.failure("load leave", err)
	}
	for _, lv := range leave {
		if lv.Staff != nil {
			offNames = append(offNames, fmt.Sprintf("%s (leave)", lv.Staff.Name))
		}
	}

	if len(offNames) == 0 {
		return Response{Success: true, Message: "No staff off today", Action: ActionWhoOff, Data: []string{}}
	}
	return Response{
		Success: true,
		Message: fmt.Sprintf("%d staff off today: %s", len(offNames), strings.Join(offNames, ", ")),
		Action:  ActionWhoOff,
		Data:    offNames,
	}
}

func (r *Router) addLead(ctx context.Context, tenantID uuid.UUID, text string) Response {
	name := leadNameFromCommand(text)
	if name == "" {
		return Response{Success: false, Message: `Could not parse lead name. Try: "Add new lead John Smith £120"`}
	}

	value := extractPence(text)
	lead := &model.Lead{
		TenantID:   tenantID,
		Name:       name,
		Source:     model.SourceManual,
		Status:     model.LeadNew,
		ValuePence: value,
		Notes:      "Created via command bar",
	}
	if err := r.leads.Create(ctx, lead); err != nil {
		return r.failure("create lead", err)
	}
	if err := r.leads.AppendHistory(ctx, &model.LeadHistory{
		LeadID: lead.ID,
		Action: "Lead created",
		Detail: fmt.Sprintf("Via command bar: %q", text),
	}); err != nil {
		return r.failure("record lead history", err)
	}

	message := fmt.Sprintf("Lead added: %s", name)
	if value > 0 {
		message += fmt.Sprintf(" (£%d)", value/100)
	}
	return Response{Success: true, Message: message, Action: ActionAddLead, Navigate: "/clients"}
}

func (r *Router) showVIP(ctx context.Context, tenantID uuid.UUID) Response {
	vips, err := r.clients.VIPClients(ctx, tenantID, vipThresholdPence, 20)
	if err != nil {
		return r.failure("load VIP clients", err)
	}
	data := make([]map[string]interface{}, 0, len(vips))
	for _, c := range vips {
		data = append(data, map[string]interface{}{
			"name":                 c.Name,
			"email":                c.Email,
			"lifetime_value_pence": c.LifetimeValuePence,
		})
	}
	return Response{
		Success:  true,
		Message:  fmt.Sprintf("%d VIP clients found", len(data)),
		Action:   ActionShowVIP,
		Data:     data,
		Navigate: "/clients",
	}
}

func (r *Router) showAtRisk(ctx context.Context, tenantID uuid.UUID) Response {
	cutoff := r.now().AddDate(0, 0, -atRiskDays)
	atRisk, err := r.clients.AtRiskClients(ctx, tenantID, cutoff, 20)
	if err != nil {
		return r.failure("load at-risk clients", err)
	}
	data := make([]map[string]interface{}, 0, len(atRisk))
	for _, c := range atRisk {
		data = append(data, map[string]interface{}{
			"name":                 c.Name,
			"email":                c.Email,
			"lifetime_value_pence": c.LifetimeValuePence,
		})
	}
	return Response{
		Success: true,
		Message: fmt.Sprintf("%d at-risk clients (no booking in %d days)", len(data), atRiskDays),
		Action:  ActionShowAtRisk,
		Data:    data,
	}
}

func (r *Router) showUnassigned(ctx context.Context, tenantID uuid.UUID) Response {
	count, err := r.bookings.UnassignedCountFrom(ctx, tenantID, dateOf(r.now()))
	if err != nil {
		return r.failure("count unassigned bookings", err)
	}
	return Response{
		Success:  true,
		Message:  fmt.Sprintf("%d unassigned booking(s)", count),
		Action:   ActionShowUnassigned,
		Navigate: "/bookings",
	}
}

func (r *Router) complianceOverdue(ctx context.Context, tenantID uuid.UUID) Response {
	count, err := r.compliance.OverdueCount(ctx, tenantID)
	if err != nil {
		return r.failure("count overdue items", err)
	}
	return Response{
		Success:  true,
		Message:  fmt.Sprintf("%d overdue compliance item(s)", count),
		Action:   ActionComplianceOverdue,
		Navigate: "/compliance",
	}
}

// resolveStaff finds the active staff member whose full name or first
// name (two letters minimum) appears in the text.
func (r *Router) resolveStaff(ctx context.Context, tenantID uuid.UUID, text string) (*model.Staff, error) {
	roster, err := r.staff.List(ctx, tenantID, true)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(text)
	for i := range roster {
		full := strings.ToLower(roster[i].Name)
		if full != "" && strings.Contains(lower, full) {
			return &roster[i], nil
		}
	}
	normalized := normalize(text)
	for i := range roster {
		first := strings.ToLower(strings.Fields(roster[i].Name)[0])
		if len(first) >= 2 && containsPhrase(normalized, first) {
			return &roster[i], nil
		}
	}
	return nil, nil
}

func (r *Router) failure(what string, err error) Response {
	r.logger.Error("command failed", zap.String("step", what), zap.Error(err))
	return Response{Success: false, Message: fmt.Sprintf("Error: could not %s", what)}
}

var valuePattern = regexp.MustCompile(`[£$]\s*(\d+(?:\.\d{1,2})?)`)

func extractPence(text string) int64 {
	m := poundPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	var pounds float64
	if _, err := fmt.Sscanf(m[1], "%f", &pounds); err != nil {
		return 0
	}
	return int64(pounds*100 + 0.5)
}

// leadNameFromCommand extracts the lead's name from phrasing like
// "Add new lead John Smith £120": the words after the marker, value
// stripped, capped at four.
func leadNameFromCommand(text string) string {
	lower := strings.ToLower(text)
	for _, marker := range []string{"add new lead ", "add lead ", "new lead ", "lead "} {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		rest := text[idx+len(marker):]
		rest = valuePattern.ReplaceAllString(rest, "")
		words := strings.Fields(rest)
		if len(words) > 4 {
			words = words[:4]
		}
		if len(words) > 0 {
			return strings.Join(words, " ")
		}
	}
	return ""
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
