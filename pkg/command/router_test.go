package command

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sortedhq/sorted/pkg/model"
)

var commandDay = time.Date(2025, 6, 16, 11, 0, 0, 0, time.UTC)

type fakeStaffDirectory struct {
	roster        []model.Staff
	absences      []model.AbsenceRecord
	approvedLeave []model.LeaveRequest
	created       []model.AbsenceRecord
	alreadyExists bool
}

func (f *fakeStaffDirectory) List(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]model.Staff, error) {
	return f.roster, nil
}

func (f *fakeStaffDirectory) AbsencesOn(ctx context.Context, tenantID uuid.UUID, date time.Time) ([]model.AbsenceRecord, error) {
	return f.absences, nil
}

func (f *fakeStaffDirectory) ApprovedLeaveOn(ctx context.Context, tenantID uuid.UUID, date time.Time) ([]model.LeaveRequest, error) {
	return f.approvedLeave, nil
}

func (f *fakeStaffDirectory) GetOrCreateAbsence(ctx context.Context, record *model.AbsenceRecord) (bool, error) {
	if f.alreadyExists {
		return false, nil
	}
	f.created = append(f.created, *record)
	return true, nil
}

type fakeClientReader struct {
	vips   []model.Client
	atRisk []model.Client
}

func (f *fakeClientReader) VIPClients(ctx context.Context, tenantID uuid.UUID, minPence int64, limit int) ([]model.Client, error) {
	return f.vips, nil
}

func (f *fakeClientReader) AtRiskClients(ctx context.Context, tenantID uuid.UUID, since time.Time, limit int) ([]model.Client, error) {
	return f.atRisk, nil
}

type fakeLeadWriter struct {
	leads   []model.Lead
	history []model.LeadHistory
}

func (f *fakeLeadWriter) Create(ctx context.Context, lead *model.Lead) error {
	lead.ID = uuid.New()
	f.leads = append(f.leads, *lead)
	return nil
}

func (f *fakeLeadWriter) AppendHistory(ctx context.Context, entry *model.LeadHistory) error {
	f.history = append(f.history, *entry)
	return nil
}

type fakeBookingCounter struct{ unassigned int64 }

func (f *fakeBookingCounter) UnassignedCountFrom(ctx context.Context, tenantID uuid.UUID, from time.Time) (int64, error) {
	return f.unassigned, nil
}

type fakeComplianceCounter struct{ overdue int64 }

func (f *fakeComplianceCounter) OverdueCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return f.overdue, nil
}

type routerFixture struct {
	router  *Router
	staff   *fakeStaffDirectory
	clients *fakeClientReader
	leads   *fakeLeadWriter
}

func newRouterFixture() *routerFixture {
	staff := &fakeStaffDirectory{roster: []model.Staff{
		{ID: uuid.New(), Name: "Jordan Reed", Active: true},
		{ID: uuid.New(), Name: "Chloe Barnes", Active: true},
	}}
	clients := &fakeClientReader{}
	leads := &fakeLeadWriter{}
	router := NewRouter(staff, clients, leads,
		&fakeBookingCounter{unassigned: 2},
		&fakeComplianceCounter{overdue: 3},
		zap.NewNop(),
	).WithClock(func() time.Time { return commandDay })
	return &routerFixture{router: router, staff: staff, clients: clients, leads: leads}
}

func TestExecuteMarkSick(t *testing.T) {
	f := newRouterFixture()

	resp := f.router.Execute(context.Background(), uuid.New(), "Jordan is sick today")
	assert.True(t, resp.Success)
	assert.Equal(t, ActionMarkSick, resp.Action)
	assert.Equal(t, "Jordan Reed marked sick today", resp.Message)
	assert.Equal(t, "/staff", resp.Navigate)

	require.Len(t, f.staff.created, 1)
	record := f.staff.created[0]
	assert.Equal(t, "ABSENCE", record.RecordType)
	assert.True(t, record.IsAuthorised)
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), record.Date)
}

func TestExecuteMarkSickIdempotentMessage(t *testing.T) {
	f := newRouterFixture()
	f.staff.alreadyExists = true

	resp := f.router.Execute(context.Background(), uuid.New(), "Jordan is sick today")
	assert.True(t, resp.Success)
	assert.Equal(t, "Jordan Reed was already marked sick today", resp.Message)
}

func TestExecuteMarkSickUnknownStaff(t *testing.T) {
	f := newRouterFixture()

	resp := f.router.Execute(context.Background(), uuid.New(), "Zeb is sick today")
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "Could not find staff member")
}

func TestExecuteWhoOff(t *testing.T) {
	f := newRouterFixture()
	f.staff.absences = []model.AbsenceRecord{{Staff: &model.Staff{Name: "Jordan Reed"}}}
	f.staff.approvedLeave = []model.LeaveRequest{{Staff: &model.Staff{Name: "Chloe Barnes"}}}

	resp := f.router.Execute(context.Background(), uuid.New(), "who is off today")
	assert.True(t, resp.Success)
	assert.Equal(t, ActionWhoOff, resp.Action)
	assert.Equal(t, "2 staff off today: Jordan Reed (sick/absent), Chloe Barnes (leave)", resp.Message)
}

func TestExecuteWhoOffNobody(t *testing.T) {
	f := newRouterFixture()

	resp := f.router.Execute(context.Background(), uuid.New(), "who is off today")
	assert.True(t, resp.Success)
	assert.Equal(t, "No staff off today", resp.Message)
}

func TestExecuteAddLead(t *testing.T) {
	f := newRouterFixture()

	resp := f.router.Execute(context.Background(), uuid.New(), "Add new lead John Smith £120")
	assert.True(t, resp.Success)
	assert.Equal(t, ActionAddLead, resp.Action)
	assert.Equal(t, "Lead added: John Smith (£120)", resp.Message)

	require.Len(t, f.leads.leads, 1)
	lead := f.leads.leads[0]
	assert.Equal(t, "John Smith", lead.Name)
	assert.Equal(t, int64(12000), lead.ValuePence)
	assert.Equal(t, model.LeadNew, lead.Status)
	assert.Equal(t, model.SourceManual, lead.Source)

	require.Len(t, f.leads.history, 1)
	assert.Equal(t, "Lead created", f.leads.history[0].Action)
}

func TestExecuteAddLeadWithoutName(t *testing.T) {
	f := newRouterFixture()

	resp := f.router.Execute(context.Background(), uuid.New(), "add new lead £50")
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "Could not parse lead name")
	assert.Empty(t, f.leads.leads)
}

func TestExecuteShowVIP(t *testing.T) {
	f := newRouterFixture()
	f.clients.vips = []model.Client{
		{Name: "Sarah Mills", Email: "sarah@example.com", LifetimeValuePence: 45000},
	}

	resp := f.router.Execute(context.Background(), uuid.New(), "Show VIP clients")
	assert.True(t, resp.Success)
	assert.Equal(t, ActionShowVIP, resp.Action)
	assert.Equal(t, "1 VIP clients found", resp.Message)
}

func TestExecuteShowAtRisk(t *testing.T) {
	f := newRouterFixture()
	f.clients.atRisk = []model.Client{{Name: "Tom Hart"}, {Name: "Lily Shaw"}}

	resp := f.router.Execute(context.Background(), uuid.New(), "show at-risk clients")
	assert.True(t, resp.Success)
	assert.Equal(t, "2 at-risk clients (no booking in 90 days)", resp.Message)
}

func TestExecuteCounts(t *testing.T) {
	f := newRouterFixture()

	unassigned := f.router.Execute(context.Background(), uuid.New(), "show unassigned bookings")
	assert.Equal(t, "2 unassigned booking(s)", unassigned.Message)

	overdue := f.router.Execute(context.Background(), uuid.New(), "show overdue compliance")
	assert.Equal(t, "3 overdue compliance item(s)", overdue.Message)
}

func TestExecuteNavigationCommands(t *testing.T) {
	f := newRouterFixture()
	tests := []struct {
		text     string
		action   string
		navigate string
	}{
		{"Show today's issues", ActionShowIssues, "/dashboard"},
		{"Show today's bookings", ActionShowBookings, "/bookings"},
		{"Show compliance status", ActionComplianceStatus, "/compliance"},
		{"Export VIP clients", ActionExportVIP, "/clients?export=vip"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			resp := f.router.Execute(context.Background(), uuid.New(), tt.text)
			assert.True(t, resp.Success)
			assert.Equal(t, tt.action, resp.Action)
			assert.Equal(t, tt.navigate, resp.Navigate)
		})
	}
}

func TestExecuteUnrecognised(t *testing.T) {
	f := newRouterFixture()

	resp := f.router.Execute(context.Background(), uuid.New(), "sing me a song")
	assert.False(t, resp.Success)
	assert.Equal(t, "Command not recognised", resp.Message)
	assert.NotEmpty(t, resp.Suggestions)
}

func TestSuggestionsFilter(t *testing.T) {
	all := Suggestions("")
	assert.Len(t, all, 11)

	vip := Suggestions("vip")
	require.Len(t, vip, 2)
	assert.Equal(t, "Show VIP clients", vip[0].Text)
	assert.Equal(t, "Export VIP clients", vip[1].Text)

	none := Suggestions("zzz")
	assert.Empty(t, none)
}
