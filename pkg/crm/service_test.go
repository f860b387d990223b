package crm

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sortedhq/sorted/pkg/model"
)

var crmDay = time.Date(2025, 6, 16, 14, 0, 0, 0, time.UTC)

type fakeLeadStore struct {
	leads   map[uuid.UUID]*model.Lead
	history []model.LeadHistory
	notes   []model.LeadNote
}

func newFakeLeadStore() *fakeLeadStore {
	return &fakeLeadStore{leads: make(map[uuid.UUID]*model.Lead)}
}

func (f *fakeLeadStore) Create(ctx context.Context, lead *model.Lead) error {
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	lead.CreatedAt = crmDay
	copied := *lead
	f.leads[lead.ID] = &copied
	return nil
}

func (f *fakeLeadStore) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *lead
	return &copied, nil
}

func (f *fakeLeadStore) Save(ctx context.Context, lead *model.Lead) error {
	copied := *lead
	f.leads[lead.ID] = &copied
	return nil
}

func (f *fakeLeadStore) List(ctx context.Context, tenantID uuid.UUID, status *model.LeadStatus, now time.Time) ([]model.Lead, error) {
	var out []model.Lead
	for _, lead := range f.leads {
		if status == nil || lead.Status == *status {
			out = append(out, *lead)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortPriority(now) < out[j].SortPriority(now)
	})
	return out, nil
}

func (f *fakeLeadStore) ExistsForClient(ctx context.Context, tenantID, clientID uuid.UUID) (bool, error) {
	for _, lead := range f.leads {
		if lead.ClientID != nil && *lead.ClientID == clientID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLeadStore) AppendHistory(ctx context.Context, entry *model.LeadHistory) error {
	f.history = append(f.history, *entry)
	return nil
}

func (f *fakeLeadStore) ListHistory(ctx context.Context, leadID uuid.UUID) ([]model.LeadHistory, error) {
	var out []model.LeadHistory
	for _, h := range f.history {
		if h.LeadID == leadID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeLeadStore) AddNote(ctx context.Context, note *model.LeadNote) error {
	note.ID = uuid.New()
	f.notes = append(f.notes, *note)
	return nil
}

type fakeClientStore struct {
	clients []model.Client
}

func (f *fakeClientStore) List(ctx context.Context, tenantID uuid.UUID) ([]model.Client, error) {
	return f.clients, nil
}

func (f *fakeClientStore) GetOrCreateByEmail(ctx context.Context, tenantID uuid.UUID, email string, template model.Client) (*model.Client, bool, error) {
	for i := range f.clients {
		if f.clients[i].Email == email {
			return &f.clients[i], false, nil
		}
	}
	template.ID = uuid.New()
	template.Email = email
	f.clients = append(f.clients, template)
	return &template, true, nil
}

type fakeBookingReader struct {
	byClient map[uuid.UUID][]model.Booking
}

func (f *fakeBookingReader) BookingsForClient(ctx context.Context, tenantID, clientID uuid.UUID, statuses []model.BookingStatus) ([]model.Booking, error) {
	return f.byClient[clientID], nil
}

func newService(leads *fakeLeadStore, clients *fakeClientStore, bookings *fakeBookingReader) *Service {
	if clients == nil {
		clients = &fakeClientStore{}
	}
	if bookings == nil {
		bookings = &fakeBookingReader{}
	}
	return NewService(leads, clients, bookings, zap.NewNop()).
		WithClock(func() time.Time { return crmDay })
}

func TestCreateLeadDefaultsAndHistory(t *testing.T) {
	leads := newFakeLeadStore()
	s := newService(leads, nil, nil)

	lead, err := s.CreateLead(context.Background(), uuid.New(), CreateLeadInput{Name: "John Smith"})
	require.NoError(t, err)

	assert.Equal(t, model.SourceManual, lead.Source)
	assert.Equal(t, model.LeadNew, lead.Status)
	require.Len(t, leads.history, 1)
	assert.Equal(t, "Lead created", leads.history[0].Action)
	assert.Equal(t, "Source: manual", leads.history[0].Detail)
}

func TestUpdateLeadLogsChanges(t *testing.T) {
	leads := newFakeLeadStore()
	s := newService(leads, nil, nil)
	tenantID := uuid.New()

	lead, err := s.CreateLead(context.Background(), tenantID, CreateLeadInput{Name: "John Smith"})
	require.NoError(t, err)

	newStatus := model.LeadQualified
	newValue := int64(45000)
	updated, err := s.UpdateLead(context.Background(), tenantID, lead.ID, UpdateLeadInput{
		Status:     &newStatus,
		ValuePence: &newValue,
	})
	require.NoError(t, err)

	assert.Equal(t, model.LeadQualified, updated.Status)
	assert.Equal(t, int64(45000), updated.ValuePence)
	require.Len(t, leads.history, 2)
	assert.Equal(t, "Updated", leads.history[1].Action)
	assert.Equal(t, "Status: NEW to QUALIFIED; Value updated to £450.00", leads.history[1].Detail)
}

func TestUpdateLeadNoChangesNoHistory(t *testing.T) {
	leads := newFakeLeadStore()
	s := newService(leads, nil, nil)
	tenantID := uuid.New()

	lead, err := s.CreateLead(context.Background(), tenantID, CreateLeadInput{Name: "John Smith"})
	require.NoError(t, err)

	same := lead.Name
	_, err = s.UpdateLead(context.Background(), tenantID, lead.ID, UpdateLeadInput{Name: &same})
	require.NoError(t, err)
	assert.Len(t, leads.history, 1)
}

func TestContactSetsFollowUpWeekOut(t *testing.T) {
	leads := newFakeLeadStore()
	s := newService(leads, nil, nil)
	tenantID := uuid.New()

	lead, err := s.CreateLead(context.Background(), tenantID, CreateLeadInput{Name: "John Smith"})
	require.NoError(t, err)

	contacted, err := s.Contact(context.Background(), tenantID, lead.ID)
	require.NoError(t, err)

	assert.Equal(t, model.LeadContacted, contacted.Status)
	require.NotNil(t, contacted.FollowUpDate)
	assert.Equal(t, time.Date(2025, 6, 23, 0, 0, 0, 0, time.UTC), *contacted.FollowUpDate)
	require.NotNil(t, contacted.LastContactDate)
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), *contacted.LastContactDate)
}

func TestConvertCreatesAndLinksClient(t *testing.T) {
	leads := newFakeLeadStore()
	clients := &fakeClientStore{}
	s := newService(leads, clients, nil)
	tenantID := uuid.New()

	lead, err := s.CreateLead(context.Background(), tenantID, CreateLeadInput{
		Name: "John Smith", Email: "john@example.com",
	})
	require.NoError(t, err)

	converted, err := s.Convert(context.Background(), tenantID, lead.ID)
	require.NoError(t, err)

	assert.Equal(t, model.LeadConverted, converted.Status)
	require.NotNil(t, converted.ClientID)
	require.Len(t, clients.clients, 1)
	assert.Equal(t, "John Smith", clients.clients[0].Name)
	assert.Equal(t, "john@example.com", clients.clients[0].Email)

	actions := historyActions(leads.history)
	assert.Contains(t, actions, "Converted to client")
	assert.Contains(t, actions, "Client record created")
}

func TestConvertWithoutEmailUsesPlaceholder(t *testing.T) {
	leads := newFakeLeadStore()
	clients := &fakeClientStore{}
	s := newService(leads, clients, nil)
	tenantID := uuid.New()

	lead, err := s.CreateLead(context.Background(), tenantID, CreateLeadInput{Name: "Walk In"})
	require.NoError(t, err)

	_, err = s.Convert(context.Background(), tenantID, lead.ID)
	require.NoError(t, err)

	require.Len(t, clients.clients, 1)
	assert.Contains(t, clients.clients[0].Email, "@placeholder.local")
}

func TestQuickAddParsing(t *testing.T) {
	tests := []struct {
		text      string
		wantName  string
		wantNotes string
	}{
		{"John Smith", "John Smith", ""},
		{"John Smith\nwants a quote for Friday", "John Smith", "wants a quote for Friday"},
		{"John Smith - interested in massages", "John Smith", "interested in massages"},
		{"Client John: wants quote", "John", "wants quote"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			name, notes := splitQuickAdd(tt.text)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantNotes, notes)
		})
	}
}

func TestSyncFromBookings(t *testing.T) {
	leads := newFakeLeadStore()
	completed := model.Client{ID: uuid.New(), Name: "Sarah Mills", Email: "sarah@example.com"}
	confirmedOnly := model.Client{ID: uuid.New(), Name: "Tom Hart"}
	alreadyLinked := model.Client{ID: uuid.New(), Name: "Lily Shaw"}
	clients := &fakeClientStore{clients: []model.Client{completed, confirmedOnly, alreadyLinked}}

	service := model.Service{Name: "Massage", PricePence: 6500}
	bookings := &fakeBookingReader{byClient: map[uuid.UUID][]model.Booking{
		completed.ID: {
			{Status: model.BookingCompleted, Service: &service},
			{Status: model.BookingConfirmed, Service: &service},
		},
		confirmedOnly.ID: {
			{Status: model.BookingConfirmed, Service: &service},
		},
	}}

	s := newService(leads, clients, bookings)
	tenantID := uuid.New()

	// Pre-link one client so sync skips it.
	linked := &model.Lead{TenantID: tenantID, Name: "Lily Shaw", ClientID: &alreadyLinked.ID}
	require.NoError(t, leads.Create(context.Background(), linked))

	created, err := s.SyncFromBookings(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	byName := map[string]*model.Lead{}
	for _, lead := range leads.leads {
		byName[lead.Name] = lead
	}
	require.Contains(t, byName, "Sarah Mills")
	assert.Equal(t, model.LeadConverted, byName["Sarah Mills"].Status)
	assert.Equal(t, int64(13000), byName["Sarah Mills"].ValuePence)
	assert.Equal(t, model.SourceBooking, byName["Sarah Mills"].Source)

	require.Contains(t, byName, "Tom Hart")
	assert.Equal(t, model.LeadQualified, byName["Tom Hart"].Status)
}

func TestListLeadsOrdersByPriority(t *testing.T) {
	leads := newFakeLeadStore()
	s := newService(leads, nil, nil)
	tenantID := uuid.New()

	overdueFollowUp := crmDay.AddDate(0, 0, -2)
	_, err := s.CreateLead(context.Background(), tenantID, CreateLeadInput{Name: "Converted", Status: model.LeadConverted})
	require.NoError(t, err)
	_, err = s.CreateLead(context.Background(), tenantID, CreateLeadInput{Name: "Fresh", Status: model.LeadNew})
	require.NoError(t, err)
	_, err = s.CreateLead(context.Background(), tenantID, CreateLeadInput{
		Name: "Overdue", Status: model.LeadContacted, FollowUpDate: &overdueFollowUp,
	})
	require.NoError(t, err)

	listed, err := s.ListLeads(context.Background(), tenantID, nil)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, "Overdue", listed[0].Name)
	assert.Equal(t, "Fresh", listed[1].Name)
	assert.Equal(t, "Converted", listed[2].Name)
}

func historyActions(history []model.LeadHistory) []string {
	var actions []string
	for _, h := range history {
		actions = append(actions, h.Action)
	}
	return actions
}
