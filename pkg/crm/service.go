// Package crm manages sales leads: creation, inline edits, the
// contact/convert/follow-up lifecycle, and import from booking
// history. Every change appends a LeadHistory row.
package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sortedhq/sorted/pkg/model"
)

const followUpInterval = 7 // days

type LeadStore interface {
	Create(ctx context.Context, lead *model.Lead) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Lead, error)
	Save(ctx context.Context, lead *model.Lead) error
	List(ctx context.Context, tenantID uuid.UUID, status *model.LeadStatus, now time.Time) ([]model.Lead, error)
	ExistsForClient(ctx context.Context, tenantID, clientID uuid.UUID) (bool, error)
	AppendHistory(ctx context.Context, entry *model.LeadHistory) error
	ListHistory(ctx context.Context, leadID uuid.UUID) ([]model.LeadHistory, error)
	AddNote(ctx context.Context, note *model.LeadNote) error
}

type ClientStore interface {
	List(ctx context.Context, tenantID uuid.UUID) ([]model.Client, error)
	GetOrCreateByEmail(ctx context.Context, tenantID uuid.UUID, email string, template model.Client) (*model.Client, bool, error)
}

type BookingReader interface {
	BookingsForClient(ctx context.Context, tenantID, clientID uuid.UUID, statuses []model.BookingStatus) ([]model.Booking, error)
}

type Service struct {
	leads    LeadStore
	clients  ClientStore
	bookings BookingReader
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(leads LeadStore, clients ClientStore, bookings BookingReader, logger *zap.Logger) *Service {
	return &Service{leads: leads, clients: clients, bookings: bookings, logger: logger, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateLeadInput struct {
	Name             string
	Email            string
	Phone            string
	Source           model.LeadSource
	Status           model.LeadStatus
	ValuePence       int64
	Notes            string
	FollowUpDate     *time.Time
	MarketingConsent bool
}

func (s *Service) CreateLead(ctx context.Context, tenantID uuid.UUID, input CreateLeadInput) (*model.Lead, error) {
	if input.Source == "" {
		input.Source = model.SourceManual
	}
	if input.Status == "" {
		input.Status = model.LeadNew
	}
	lead := &model.Lead{
		TenantID:         tenantID,
		Name:             input.Name,
		Email:            input.Email,
		Phone:            input.Phone,
		Source:           input.Source,
		Status:           input.Status,
		ValuePence:       input.ValuePence,
		Notes:            input.Notes,
		FollowUpDate:     input.FollowUpDate,
		MarketingConsent: input.MarketingConsent,
	}
	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}
	s.logHistory(ctx, lead.ID, "Lead created", fmt.Sprintf("Source: %s", lead.Source))
	return lead, nil
}

// UpdateLeadInput carries an inline edit. Nil fields are untouched.
type UpdateLeadInput struct {
	Status           *model.LeadStatus
	Name             *string
	Email            *string
	Phone            *string
	ValuePence       *int64
	Source           *model.LeadSource
	Notes            *string
	Tags             []string
	FollowUpDate     **time.Time
	LastContactDate  **time.Time
	MarketingConsent *bool
}

// UpdateLead applies any subset of fields and logs what changed in a
// single history entry.
func (s *Service) UpdateLead(ctx context.Context, tenantID, leadID uuid.UUID, input UpdateLeadInput) (*model.Lead, error) {
	lead, err := s.leads.GetByID(ctx, tenantID, leadID)
	if err != nil {
		return nil, err
	}

	var changes []string
	if input.Status != nil && *input.Status != lead.Status {
		changes = append(changes, fmt.Sprintf("Status: %s to %s", lead.Status, *input.Status))
		lead.Status = *input.Status
	}
	if input.Name != nil && *input.Name != lead.Name {
		lead.Name = *input.Name
		changes = append(changes, "Name updated")
	}
	if input.Email != nil && *input.Email != lead.Email {
		lead.Email = *input.Email
		changes = append(changes, "Email updated")
	}
	if input.Phone != nil && *input.Phone != lead.Phone {
		lead.Phone = *input.Phone
		changes = append(changes, "Phone updated")
	}
	if input.ValuePence != nil && *input.ValuePence != lead.ValuePence {
		lead.ValuePence = *input.ValuePence
		changes = append(changes, fmt.Sprintf("Value updated to £%d.%02d", lead.ValuePence/100, lead.ValuePence%100))
	}
	if input.Source != nil && *input.Source != lead.Source {
		lead.Source = *input.Source
		changes = append(changes, "Source updated")
	}
	if input.Notes != nil && *input.Notes != lead.Notes {
		lead.Notes = *input.Notes
		changes = append(changes, "Notes updated")
	}
	if input.Tags != nil {
		lead.Tags = input.Tags
		changes = append(changes, "Tags updated")
	}
	if input.FollowUpDate != nil {
		lead.FollowUpDate = *input.FollowUpDate
		if lead.FollowUpDate != nil {
			changes = append(changes, fmt.Sprintf("Follow-up date set to %s", lead.FollowUpDate.Format("2006-01-02")))
		} else {
			changes = append(changes, "Follow-up date set to none")
		}
	}
	if input.LastContactDate != nil {
		lead.LastContactDate = *input.LastContactDate
		changes = append(changes, "Last contact date updated")
	}
	if input.MarketingConsent != nil && *input.MarketingConsent != lead.MarketingConsent {
		lead.MarketingConsent = *input.MarketingConsent
		if lead.MarketingConsent {
			changes = append(changes, "Marketing consent given")
		} else {
			changes = append(changes, "Marketing consent withdrawn")
		}
	}

	if err := s.leads.Save(ctx, lead); err != nil {
		return nil, fmt.Errorf("save lead: %w", err)
	}
	if len(changes) > 0 {
		s.logHistory(ctx, lead.ID, "Updated", strings.Join(changes, "; "))
	}
	return lead, nil
}

// Contact moves a lead to CONTACTED and schedules the next follow-up
// a week out.
func (s *Service) Contact(ctx context.Context, tenantID, leadID uuid.UUID) (*model.Lead, error) {
	lead, err := s.leads.GetByID(ctx, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	today := dateOnly(s.now())
	followUp := today.AddDate(0, 0, followUpInterval)

	lead.Status = model.LeadContacted
	lead.LastContactDate = &today
	lead.FollowUpDate = &followUp
	if err := s.leads.Save(ctx, lead); err != nil {
		return nil, fmt.Errorf("save lead: %w", err)
	}
	s.logHistory(ctx, lead.ID, "Contacted", fmt.Sprintf("Follow-up set for %s", followUp.Format("2006-01-02")))
	return lead, nil
}

// Convert marks the lead CONVERTED and links it to a client record,
// creating one when none exists for the lead's email.
func (s *Service) Convert(ctx context.Context, tenantID, leadID uuid.UUID) (*model.Lead, error) {
	lead, err := s.leads.GetByID(ctx, tenantID, leadID)
	if err != nil {
		return nil, err
	}

	lead.Status = model.LeadConverted
	if err := s.leads.Save(ctx, lead); err != nil {
		return nil, fmt.Errorf("save lead: %w", err)
	}
	s.logHistory(ctx, lead.ID, "Converted to client", "")

	if lead.ClientID == nil {
		email := lead.Email
		if email == "" {
			email = fmt.Sprintf("lead-%s@placeholder.local", lead.ID)
		}
		client, created, err := s.clients.GetOrCreateByEmail(ctx, tenantID, email, model.Client{
			Name:  lead.Name,
			Phone: lead.Phone,
		})
		if err != nil {
			return nil, fmt.Errorf("link client record: %w", err)
		}
		lead.ClientID = &client.ID
		if err := s.leads.Save(ctx, lead); err != nil {
			return nil, fmt.Errorf("save lead: %w", err)
		}
		if created {
			s.logHistory(ctx, lead.ID, "Client record created", fmt.Sprintf("Client %s", client.ID))
		}
	}
	return lead, nil
}

// FollowUpDone records a completed follow-up and reschedules the next
// one a week out.
func (s *Service) FollowUpDone(ctx context.Context, tenantID, leadID uuid.UUID) (*model.Lead, error) {
	lead, err := s.leads.GetByID(ctx, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	today := dateOnly(s.now())
	followUp := today.AddDate(0, 0, followUpInterval)

	lead.LastContactDate = &today
	lead.FollowUpDate = &followUp
	if err := s.leads.Save(ctx, lead); err != nil {
		return nil, fmt.Errorf("save lead: %w", err)
	}
	s.logHistory(ctx, lead.ID, "Follow-up completed", fmt.Sprintf("Next follow-up: %s", followUp.Format("2006-01-02")))
	return lead, nil
}

// QuickAdd creates a lead from free text: first line or segment is
// the name, the rest becomes notes.
func (s *Service) QuickAdd(ctx context.Context, tenantID uuid.UUID, text string) (*model.Lead, error) {
	name, notes := splitQuickAdd(text)
	if name == "" {
		return nil, fmt.Errorf("lead name is required")
	}
	lead := &model.Lead{
		TenantID: tenantID,
		Name:     name,
		Notes:    notes,
		Source:   model.SourceManual,
		Status:   model.LeadNew,
	}
	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}
	s.logHistory(ctx, lead.ID, "Quick-added", fmt.Sprintf("From: %q", text))
	return lead, nil
}

func splitQuickAdd(text string) (name, notes string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}

	if idx := strings.Index(text, "\n"); idx >= 0 {
		name, notes = text[:idx], strings.TrimSpace(text[idx+1:])
	} else {
		name = text
	}

	if notes == "" {
		if idx := strings.Index(name, " - "); idx >= 0 {
			name, notes = name[:idx], name[idx+3:]
		}
	}
	name = strings.TrimSpace(name)
	if len(name) >= 7 && strings.EqualFold(name[:7], "client ") {
		name = name[7:]
	}
	if notes == "" {
		if idx := strings.Index(name, ": "); idx >= 0 {
			name, notes = name[:idx], name[idx+2:]
		}
	}
	return strings.TrimSpace(name), strings.TrimSpace(notes)
}

// AddNote appends a note and mirrors it into history, truncated.
func (s *Service) AddNote(ctx context.Context, tenantID, leadID uuid.UUID, text, createdBy string) (*model.LeadNote, error) {
	lead, err := s.leads.GetByID(ctx, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	note := &model.LeadNote{LeadID: lead.ID, Text: text, CreatedBy: createdBy}
	if err := s.leads.AddNote(ctx, note); err != nil {
		return nil, fmt.Errorf("add note: %w", err)
	}
	summary := text
	if len(summary) > 100 {
		summary = summary[:100]
	}
	s.logHistory(ctx, lead.ID, "Note added", summary)
	return note, nil
}

// SyncFromBookings imports booking clients with no linked lead:
// completed bookings make a CONVERTED lead, confirmed ones QUALIFIED,
// anything else NEW. Returns the number of leads created.
func (s *Service) SyncFromBookings(ctx context.Context, tenantID uuid.UUID) (int, error) {
	clients, err := s.clients.List(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("list clients: %w", err)
	}

	created := 0
	for i := range clients {
		client := &clients[i]
		exists, err := s.leads.ExistsForClient(ctx, tenantID, client.ID)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		bookings, err := s.bookings.BookingsForClient(ctx, tenantID, client.ID,
			[]model.BookingStatus{model.BookingConfirmed, model.BookingCompleted})
		if err != nil {
			return created, err
		}

		var totalPence int64
		status := model.LeadNew
		for j := range bookings {
			if bookings[j].Service != nil {
				totalPence += bookings[j].Service.PricePence
			}
			switch bookings[j].Status {
			case model.BookingCompleted:
				status = model.LeadConverted
			case model.BookingConfirmed:
				if status != model.LeadConverted {
					status = model.LeadQualified
				}
			}
		}

		lead := &model.Lead{
			TenantID:   tenantID,
			Name:       client.Name,
			Email:      client.Email,
			Phone:      client.Phone,
			Source:     model.SourceBooking,
			Status:     status,
			ValuePence: totalPence,
			Notes:      fmt.Sprintf("Auto-imported from bookings. %d booking(s).", len(bookings)),
			ClientID:   &client.ID,
		}
		if err := s.leads.Create(ctx, lead); err != nil {
			return created, fmt.Errorf("create synced lead: %w", err)
		}
		s.logHistory(ctx, lead.ID, "Synced from bookings",
			fmt.Sprintf("%d booking(s), £%d.%02d", len(bookings), totalPence/100, totalPence%100))
		created++
	}

	s.logger.Info("leads synced from bookings",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("created", created),
	)
	return created, nil
}

func (s *Service) ListLeads(ctx context.Context, tenantID uuid.UUID, status *model.LeadStatus) ([]model.Lead, error) {
	return s.leads.List(ctx, tenantID, status, s.now())
}

func (s *Service) Lead(ctx context.Context, tenantID, leadID uuid.UUID) (*model.Lead, error) {
	return s.leads.GetByID(ctx, tenantID, leadID)
}

func (s *Service) History(ctx context.Context, tenantID, leadID uuid.UUID) ([]model.LeadHistory, error) {
	if _, err := s.leads.GetByID(ctx, tenantID, leadID); err != nil {
		return nil, err
	}
	return s.leads.ListHistory(ctx, leadID)
}

// History appends are best effort; a failed audit row never fails the
// action it describes.
func (s *Service) logHistory(ctx context.Context, leadID uuid.UUID, action, detail string) {
	err := s.leads.AppendHistory(ctx, &model.LeadHistory{LeadID: leadID, Action: action, Detail: detail})
	if err != nil {
		s.logger.Warn("lead history append failed",
			zap.String("lead_id", leadID.String()),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
