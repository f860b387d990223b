package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sortedhq/sorted/pkg/config"
	"github.com/sortedhq/sorted/pkg/model"
)

var digestDay = time.Date(2025, 6, 16, 6, 0, 0, 0, time.UTC)

type fakeTenantSource struct {
	tenants []model.Tenant
}

func (f *fakeTenantSource) List(ctx context.Context) ([]model.Tenant, error) {
	return f.tenants, nil
}

type fakeRecalculator struct {
	calls  []uuid.UUID
	failOn map[uuid.UUID]bool
}

func (f *fakeRecalculator) Recalculate(ctx context.Context, tenantID uuid.UUID, trigger model.ScoreTrigger) (*model.PeaceOfMindScore, error) {
	if trigger != model.TriggerScheduled {
		return nil, errors.New("unexpected trigger")
	}
	if f.failOn[tenantID] {
		return nil, errors.New("recalculation failed")
	}
	f.calls = append(f.calls, tenantID)
	return &model.PeaceOfMindScore{TenantID: tenantID, Score: 72}, nil
}

type fakeItemSource struct {
	overdue map[uuid.UUID][]model.ComplianceItem
	dueSoon map[uuid.UUID][]model.ComplianceItem
}

func (f *fakeItemSource) ItemsWithStatus(ctx context.Context, tenantID uuid.UUID, status model.ItemStatus) ([]model.ComplianceItem, error) {
	return f.overdue[tenantID], nil
}

func (f *fakeItemSource) DueSoonBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) ([]model.ComplianceItem, error) {
	return f.dueSoon[tenantID], nil
}

type fakeEventSink struct {
	events []model.BusinessEvent
}

func (f *fakeEventSink) Append(ctx context.Context, event *model.BusinessEvent) error {
	f.events = append(f.events, *event)
	return nil
}

func newRunner(tenants *fakeTenantSource, calc *fakeRecalculator, items *fakeItemSource, sink *fakeEventSink) *Runner {
	return NewRunner(tenants, calc, items, sink,
		config.DigestConfig{Interval: time.Hour},
		config.DashboardConfig{ComplianceLookaheadDays: 14},
		zap.NewNop(),
	).WithClock(func() time.Time { return digestDay })
}

func TestRunOnceLogsDigestForOutstandingItems(t *testing.T) {
	tenantID := uuid.New()
	tenants := &fakeTenantSource{tenants: []model.Tenant{{ID: tenantID, Name: "Shear Genius"}}}
	calc := &fakeRecalculator{}
	items := &fakeItemSource{
		overdue: map[uuid.UUID][]model.ComplianceItem{tenantID: {
			{Title: "Fire risk assessment", ItemType: model.ItemLegal, Status: model.StatusOverdue},
			{Title: "Team handbook review", ItemType: model.ItemBestPractice, Status: model.StatusOverdue},
		}},
		dueSoon: map[uuid.UUID][]model.ComplianceItem{tenantID: {
			{Title: "PAT testing", ItemType: model.ItemLegal, Status: model.StatusDueSoon},
		}},
	}
	sink := &fakeEventSink{}

	newRunner(tenants, calc, items, sink).RunOnce(context.Background())

	require.Len(t, calc.calls, 1)
	require.Len(t, sink.events, 1)

	event := sink.events[0]
	assert.Equal(t, model.EventReminderDigest, event.EventType)
	assert.Equal(t, "2 overdue (1 legal), 1 due soon", event.ActionDetail)
	assert.Equal(t, 2, event.Payload["overdue"])
	assert.Equal(t, 1, event.Payload["overdue_legal"])
	assert.Equal(t, 72, event.Payload["score"])
}

func TestRunOnceSkipsDigestWhenNothingOutstanding(t *testing.T) {
	tenantID := uuid.New()
	tenants := &fakeTenantSource{tenants: []model.Tenant{{ID: tenantID}}}
	calc := &fakeRecalculator{}
	sink := &fakeEventSink{}

	newRunner(tenants, calc, &fakeItemSource{}, sink).RunOnce(context.Background())

	// The recalculation still ran; only the digest event is skipped.
	assert.Len(t, calc.calls, 1)
	assert.Empty(t, sink.events)
}

func TestRunOnceContinuesPastFailingTenant(t *testing.T) {
	broken := uuid.New()
	healthy := uuid.New()
	tenants := &fakeTenantSource{tenants: []model.Tenant{{ID: broken}, {ID: healthy}}}
	calc := &fakeRecalculator{failOn: map[uuid.UUID]bool{broken: true}}
	items := &fakeItemSource{
		overdue: map[uuid.UUID][]model.ComplianceItem{healthy: {
			{Title: "Gas safety certificate", ItemType: model.ItemLegal, Status: model.StatusOverdue},
		}},
	}
	sink := &fakeEventSink{}

	newRunner(tenants, calc, items, sink).RunOnce(context.Background())

	require.Len(t, calc.calls, 1)
	assert.Equal(t, healthy, calc.calls[0])
	assert.Len(t, sink.events, 1)
}
