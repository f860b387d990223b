// Package command maps free text from the global command bar to a
// fixed taxonomy of structured intents. Matching is deterministic
// substring work against a dispatch table, with no learning and no
// fuzzy scoring; the owner always confirms before anything executes.
package command

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sortedhq/sorted/pkg/metrics"
	"github.com/sortedhq/sorted/pkg/model"
)

const (
	ActionLogSick            = "log_sick"
	ActionRequestCover       = "request_cover"
	ActionAssignBooking      = "assign_booking"
	ActionCancelBooking      = "cancel_booking"
	ActionRescheduleBooking  = "reschedule_booking"
	ActionRequestPayment     = "request_payment"
	ActionMarkPaid           = "mark_paid"
	ActionApproveLeave       = "approve_leave"
	ActionDeclineLeave       = "decline_leave"
	ActionCompleteCompliance = "complete_compliance"
	ActionResolveIncident    = "resolve_incident"
	ActionAddLead            = "add_lead"
)

// rule binds an intent to the phrases that signal it. Dispatch is
// keyed on the extracted phrase features, not the position of the rule
// in this table: the most specific matching phrase wins wherever its
// rule sits, so reordering the table never changes behaviour.
type rule struct {
	action      string
	eventType   model.BusinessEventType
	description string
	phrases     []string
}

var rules = []rule{
	{
		action:      ActionLogSick,
		eventType:   model.EventStaffSick,
		description: "Mark staff member as sick",
		phrases:     []string{"sick", "off sick", "called in sick", "unwell", "ill"},
	},
	{
		action:      ActionRequestCover,
		eventType:   model.EventCoverRequested,
		description: "Request cover from another staff member",
		phrases:     []string{"cover", "ask to cover", "request cover", "fill in"},
	},
	{
		action:      ActionAssignBooking,
		eventType:   model.EventBookingAssigned,
		description: "Assign a booking to a staff member",
		phrases:     []string{"assign", "assign to", "give to"},
	},
	{
		action:      ActionCancelBooking,
		eventType:   model.EventBookingCancelled,
		description: "Cancel a booking",
		phrases:     []string{"cancel booking", "cancel appointment"},
	},
	{
		action:      ActionRescheduleBooking,
		eventType:   model.EventBookingRescheduled,
		description: "Reschedule a booking",
		phrases:     []string{"reschedule", "move booking", "move appointment"},
	},
	{
		action:      ActionRequestPayment,
		eventType:   model.EventPaymentRequested,
		description: "Send a payment request to a client",
		phrases:     []string{"request payment", "chase payment", "send payment request", "deposit"},
	},
	{
		action:      ActionMarkPaid,
		eventType:   model.EventPaymentMarked,
		description: "Mark a booking as paid",
		phrases:     []string{"mark as paid", "mark paid", "payment received"},
	},
	{
		action:      ActionApproveLeave,
		eventType:   model.EventLeaveApproved,
		description: "Approve a leave request",
		phrases:     []string{"approve leave", "approve holiday", "approve time off"},
	},
	{
		action:      ActionDeclineLeave,
		eventType:   model.EventLeaveDeclined,
		description: "Decline a leave request",
		phrases:     []string{"decline leave", "reject leave", "deny leave"},
	},
	{
		action:      ActionCompleteCompliance,
		eventType:   model.EventComplianceCompleted,
		description: "Mark a compliance item as completed",
		phrases:     []string{"complete compliance", "mark compliant", "compliance done"},
	},
	{
		action:      ActionResolveIncident,
		eventType:   model.EventIncidentResolved,
		description: "Resolve an open incident",
		phrases:     []string{"resolve incident", "close incident"},
	},
	{
		action:      ActionAddLead,
		eventType:   model.EventAssistantCommand,
		description: "Create a new CRM lead",
		phrases:     []string{"add lead", "new lead", "add new lead", "add prospect"},
	},
}

type Entities struct {
	StaffName  string `json:"staff_name,omitempty"`
	ClientName string `json:"client_name,omitempty"`
	LeadName   string `json:"lead_name,omitempty"`
	ValuePence int64  `json:"value_pence,omitempty"`
}

type Intent struct {
	EventType     model.BusinessEventType `json:"event_type"`
	Action        string                  `json:"action"`
	Description   string                  `json:"description"`
	Entities      Entities                `json:"entities"`
	Confidence    string                  `json:"confidence"`
	MatchedPhrase string                  `json:"matched_phrase"`
	OriginalText  string                  `json:"original_text"`
}

type Result struct {
	Parsed              bool     `json:"parsed"`
	Intent              *Intent  `json:"intent,omitempty"`
	ConfirmationMessage string   `json:"confirmation_message,omitempty"`
	Message             string   `json:"message,omitempty"`
	Suggestions         []string `json:"suggestions,omitempty"`
}

const unmatchedMessage = `Could not understand that command. Try something like: "Chloe is off sick" or "Assign Sam to the 11:00 booking".`

var unmatchedSuggestions = []string{
	"<name> is off sick",
	"Assign <name> to the 11:00 booking",
	"Request payment from <client>",
	"Approve leave for <name>",
	"Add new lead called <name>",
}

var poundPattern = regexp.MustCompile(`£\s*(\d+(?:\.\d{1,2})?)`)

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse classifies text against the dispatch table. staffNames and
// clientNames are live rosters used for entity extraction only; they
// never influence which intent matches.
func (p *Parser) Parse(text string, staffNames, clientNames []string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{Parsed: false, Message: unmatchedMessage, Suggestions: unmatchedSuggestions}
	}

	matched, phrase := classify(trimmed)
	if matched == nil {
		metrics.CommandsTotal.WithLabelValues("unmatched").Inc()
		return Result{Parsed: false, Message: unmatchedMessage, Suggestions: unmatchedSuggestions}
	}

	entities := extractEntities(trimmed, matched.action, staffNames, clientNames)
	metrics.CommandsTotal.WithLabelValues(matched.action).Inc()

	return Result{
		Parsed: true,
		Intent: &Intent{
			EventType:     matched.eventType,
			Action:        matched.action,
			Description:   matched.description,
			Entities:      entities,
			Confidence:    "keyword_match",
			MatchedPhrase: phrase,
			OriginalText:  trimmed,
		},
		ConfirmationMessage: confirmation(matched, entities),
	}
}

// classify returns the rule owning the most specific phrase present in
// the text. Specificity is the phrase's word count; ties break on
// phrase text then action name so the result is stable however the
// table is ordered.
func classify(text string) (*rule, string) {
	normalized := normalize(text)

	type match struct {
		rule   *rule
		phrase string
		words  int
	}
	var matches []match
	for i := range rules {
		for _, phrase := range rules[i].phrases {
			if containsPhrase(normalized, phrase) {
				matches = append(matches, match{
					rule:   &rules[i],
					phrase: phrase,
					words:  len(strings.Fields(phrase)),
				})
			}
		}
	}
	if len(matches) == 0 {
		return nil, ""
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].words != matches[j].words {
			return matches[i].words > matches[j].words
		}
		if len(matches[i].phrase) != len(matches[j].phrase) {
			return len(matches[i].phrase) > len(matches[j].phrase)
		}
		if matches[i].phrase != matches[j].phrase {
			return matches[i].phrase < matches[j].phrase
		}
		return matches[i].rule.action < matches[j].rule.action
	})
	return matches[0].rule, matches[0].phrase
}

// normalize lowercases, drops apostrophes ("today's" and "todays"
// normalize alike) and turns remaining punctuation into word breaks.
func normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r == '\'' || r == '’':
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '£', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return " " + strings.Join(strings.Fields(b.String()), " ") + " "
}

func containsPhrase(normalized, phrase string) bool {
	return strings.Contains(normalized, " "+phrase+" ")
}

func extractEntities(text, action string, staffNames, clientNames []string) Entities {
	var entities Entities
	lower := strings.ToLower(text)

	for _, name := range staffNames {
		first := strings.ToLower(strings.Fields(name)[0])
		if strings.Contains(lower, strings.ToLower(name)) || containsPhrase(normalize(text), first) {
			entities.StaffName = name
			break
		}
	}

	for _, name := range clientNames {
		if name != "" && strings.Contains(lower, strings.ToLower(name)) {
			entities.ClientName = name
			break
		}
	}

	if m := poundPattern.FindStringSubmatch(text); m != nil {
		if pounds, err := strconv.ParseFloat(m[1], 64); err == nil {
			entities.ValuePence = int64(pounds*100 + 0.5)
		}
	}

	if action == ActionAddLead {
		entities.LeadName = nameAfterMarker(text)
	}

	return entities
}

// nameAfterMarker pulls a lead name out of phrasing like "add new lead
// called John Smith worth £500": up to four words after a marker word,
// stopping at value or connective words.
func nameAfterMarker(text string) string {
	words := strings.Fields(text)
	markers := map[string]bool{"called": true, "named": true, "for": true, "lead": true, "prospect": true}
	stops := map[string]bool{"worth": true, "at": true, "with": true, "on": true, "valued": true}

	start := -1
	for i, w := range words {
		if markers[strings.ToLower(strings.Trim(w, ",.!?"))] {
			start = i + 1
		}
	}
	if start < 0 || start >= len(words) {
		return ""
	}

	var name []string
	for _, w := range words[start:] {
		clean := strings.Trim(w, ",.!?")
		if clean == "" || strings.HasPrefix(clean, "£") || stops[strings.ToLower(clean)] || len(name) == 4 {
			break
		}
		name = append(name, clean)
	}
	return strings.Join(name, " ")
}

func confirmation(r *rule, e Entities) string {
	staff, client := e.StaffName, e.ClientName
	switch r.action {
	case ActionLogSick:
		if staff != "" {
			return fmt.Sprintf("Mark %s as sick today?", staff)
		}
		return "Mark staff member as sick today?"
	case ActionRequestCover:
		if staff != "" {
			return fmt.Sprintf("Request cover from %s?", staff)
		}
		return "Request cover?"
	case ActionAssignBooking:
		if staff != "" {
			return fmt.Sprintf("Assign %s to this booking?", staff)
		}
		return "Assign staff to booking?"
	case ActionCancelBooking:
		if client != "" {
			return fmt.Sprintf("Cancel booking for %s?", client)
		}
		return "Cancel this booking?"
	case ActionRescheduleBooking:
		if client != "" {
			return fmt.Sprintf("Reschedule booking for %s?", client)
		}
		return "Reschedule this booking?"
	case ActionRequestPayment:
		if client != "" {
			return fmt.Sprintf("Send payment request to %s?", client)
		}
		return "Send payment request?"
	case ActionMarkPaid:
		if client != "" {
			return fmt.Sprintf("Mark payment as received for %s?", client)
		}
		return "Mark as paid?"
	case ActionApproveLeave:
		if staff != "" {
			return fmt.Sprintf("Approve leave for %s?", staff)
		}
		return "Approve this leave request?"
	case ActionDeclineLeave:
		if staff != "" {
			return fmt.Sprintf("Decline leave for %s?", staff)
		}
		return "Decline this leave request?"
	case ActionCompleteCompliance:
		return "Mark compliance item as completed?"
	case ActionResolveIncident:
		return "Resolve this incident?"
	case ActionAddLead:
		if e.LeadName != "" {
			return fmt.Sprintf("Create lead '%s'?", e.LeadName)
		}
		return "Create this lead?"
	}
	return fmt.Sprintf("Execute: %s?", r.description)
}
