package score

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

type fakeItemStore struct {
	items   []model.ComplianceItem
	updated map[uuid.UUID]model.ItemStatus
}

func (f *fakeItemStore) ItemsForTenant(ctx context.Context, tenantID uuid.UUID) ([]model.ComplianceItem, error) {
	out := make([]model.ComplianceItem, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeItemStore) UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status model.ItemStatus) error {
	if f.updated == nil {
		f.updated = make(map[uuid.UUID]model.ItemStatus)
	}
	f.updated[itemID] = status
	for i := range f.items {
		if f.items[i].ID == itemID {
			f.items[i].Status = status
		}
	}
	return nil
}

type fakeScoreStore struct {
	current *model.PeaceOfMindScore
	audit   []model.ScoreAuditLog
}

func (f *fakeScoreStore) Current(ctx context.Context, tenantID uuid.UUID) (*model.PeaceOfMindScore, error) {
	return f.current, nil
}

func (f *fakeScoreStore) Save(ctx context.Context, score *model.PeaceOfMindScore) error {
	f.current = score
	return nil
}

func (f *fakeScoreStore) AppendAudit(ctx context.Context, entry *model.ScoreAuditLog) error {
	f.audit = append(f.audit, *entry)
	return nil
}

var testDay = time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)

func datePtr(t time.Time) *time.Time { return &t }

func newItem(category uuid.UUID, weight int, due *time.Time, status model.ItemStatus) model.ComplianceItem {
	return model.ComplianceItem{
		ID:           uuid.New(),
		CategoryID:   category,
		Category:     &model.ComplianceCategory{ID: category, MaxScore: 10},
		Title:        "Test obligation",
		ItemType:     model.ItemLegal,
		Weight:       weight,
		ReminderDays: 30,
		NextDueDate:  due,
		Status:       status,
	}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name string
		item model.ComplianceItem
		want model.ItemStatus
	}{
		{
			name: "past due date is overdue",
			item: model.ComplianceItem{NextDueDate: datePtr(testDay.AddDate(0, 0, -1)), ReminderDays: 30},
			want: model.StatusOverdue,
		},
		{
			name: "due today is due soon",
			item: model.ComplianceItem{NextDueDate: datePtr(testDay), ReminderDays: 30},
			want: model.StatusDueSoon,
		},
		{
			name: "inside reminder window is due soon",
			item: model.ComplianceItem{NextDueDate: datePtr(testDay.AddDate(0, 0, 14)), ReminderDays: 30},
			want: model.StatusDueSoon,
		},
		{
			name: "beyond reminder window is compliant",
			item: model.ComplianceItem{NextDueDate: datePtr(testDay.AddDate(0, 0, 45)), ReminderDays: 30},
			want: model.StatusCompliant,
		},
		{
			name: "expiry date wins over next due",
			item: model.ComplianceItem{
				ExpiryDate:   datePtr(testDay.AddDate(0, 0, -2)),
				NextDueDate:  datePtr(testDay.AddDate(0, 0, 60)),
				ReminderDays: 30,
			},
			want: model.StatusOverdue,
		},
		{
			name: "no dates and never completed is due soon",
			item: model.ComplianceItem{},
			want: model.StatusDueSoon,
		},
		{
			name: "no dates but completed before is compliant",
			item: model.ComplianceItem{LastCompletedDate: datePtr(testDay.AddDate(0, -1, 0))},
			want: model.StatusCompliant,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(&tt.item, testDay))
		})
	}
}

func TestRecalculateEmptyRegisterScoresFull(t *testing.T) {
	items := &fakeItemStore{}
	scores := &fakeScoreStore{}
	calc := NewCalculator(items, scores, zap.NewNop()).WithClock(func() time.Time { return testDay })

	snapshot, err := calc.Recalculate(context.Background(), uuid.New(), model.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 100, snapshot.Score)
	assert.Equal(t, 0, snapshot.TotalItems)
	assert.Equal(t, "green", snapshot.Colour())
	assert.Equal(t, "Compliant", snapshot.Interpretation())
}

func TestRecalculateWeightedScore(t *testing.T) {
	category := uuid.New()
	items := &fakeItemStore{items: []model.ComplianceItem{
		newItem(category, 2, datePtr(testDay.AddDate(0, 2, 0)), model.StatusCompliant),
		newItem(category, 1, datePtr(testDay.AddDate(0, 0, 10)), model.StatusDueSoon),
		newItem(category, 1, datePtr(testDay.AddDate(0, 0, -5)), model.StatusOverdue),
	}}
	scores := &fakeScoreStore{}
	calc := NewCalculator(items, scores, zap.NewNop()).WithClock(func() time.Time { return testDay })

	snapshot, err := calc.Recalculate(context.Background(), uuid.New(), model.TriggerItemChange)
	require.NoError(t, err)

	// achieved 2 + 0.5 + 0 of 4 total weight
	assert.Equal(t, 63, snapshot.Score)
	assert.Equal(t, 3, snapshot.TotalItems)
	assert.Equal(t, 1, snapshot.CompliantCount)
	assert.Equal(t, 1, snapshot.DueSoonCount)
	assert.Equal(t, 1, snapshot.OverdueCount)
	assert.Equal(t, "amber", snapshot.Colour())
	assert.Equal(t, "Attention Needed", snapshot.Interpretation())
}

func TestRecalculateRewritesStaleStatuses(t *testing.T) {
	category := uuid.New()
	stale := newItem(category, 1, datePtr(testDay.AddDate(0, 0, -10)), model.StatusCompliant)
	items := &fakeItemStore{items: []model.ComplianceItem{stale}}
	scores := &fakeScoreStore{}
	calc := NewCalculator(items, scores, zap.NewNop()).WithClock(func() time.Time { return testDay })

	snapshot, err := calc.Recalculate(context.Background(), uuid.New(), model.TriggerScheduled)
	require.NoError(t, err)

	assert.Equal(t, model.StatusOverdue, items.updated[stale.ID])
	assert.Equal(t, 0, snapshot.Score)
	assert.Equal(t, 1, snapshot.OverdueCount)
	assert.Equal(t, "red", snapshot.Colour())
	assert.Equal(t, "Action Required", snapshot.Interpretation())
}

func TestRecalculateKeepsPreviousScoreAndAuditTrail(t *testing.T) {
	category := uuid.New()
	tenantID := uuid.New()
	items := &fakeItemStore{items: []model.ComplianceItem{
		newItem(category, 1, datePtr(testDay.AddDate(0, 2, 0)), model.StatusCompliant),
	}}
	scores := &fakeScoreStore{}
	calc := NewCalculator(items, scores, zap.NewNop()).WithClock(func() time.Time { return testDay })

	first, err := calc.Recalculate(context.Background(), tenantID, model.TriggerSeed)
	require.NoError(t, err)
	assert.Equal(t, 0, first.PreviousScore)
	assert.Equal(t, 100, first.Score)

	// Push the only item overdue and recalculate again.
	items.items[0].NextDueDate = datePtr(testDay.AddDate(0, 0, -1))
	second, err := calc.Recalculate(context.Background(), tenantID, model.TriggerItemChange)
	require.NoError(t, err)

	assert.Equal(t, 100, second.PreviousScore)
	assert.Equal(t, 0, second.Score)
	assert.Equal(t, -100, second.ScoreChange())

	require.Len(t, scores.audit, 2)
	assert.Equal(t, model.TriggerSeed, scores.audit[0].Trigger)
	assert.Equal(t, model.TriggerItemChange, scores.audit[1].Trigger)
	assert.Equal(t, 100, scores.audit[1].PreviousScore)
}

func TestRecalculateIsIdempotent(t *testing.T) {
	category := uuid.New()
	tenantID := uuid.New()
	items := &fakeItemStore{items: []model.ComplianceItem{
		newItem(category, 1, datePtr(testDay.AddDate(0, 0, 10)), model.StatusDueSoon),
		newItem(category, 1, datePtr(testDay.AddDate(0, 3, 0)), model.StatusCompliant),
	}}
	scores := &fakeScoreStore{}
	calc := NewCalculator(items, scores, zap.NewNop()).WithClock(func() time.Time { return testDay })

	first, err := calc.Recalculate(context.Background(), tenantID, model.TriggerManual)
	require.NoError(t, err)
	second, err := calc.Recalculate(context.Background(), tenantID, model.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Score, second.PreviousScore)
	assert.Zero(t, second.ScoreChange())
}

// Completing an overdue legal item rolls its dates forward per the
// recurrence rule and the next recalculation never lowers the score.
func TestCompletionRollsForwardAndNeverLowersScore(t *testing.T) {
	category := uuid.New()
	tenantID := uuid.New()
	cert := newItem(category, 1, datePtr(testDay.AddDate(0, 0, -10)), model.StatusOverdue)
	cert.FrequencyType = model.FrequencyAnnual
	cert.ExpiryDate = datePtr(testDay.AddDate(0, 0, -10))
	items := &fakeItemStore{items: []model.ComplianceItem{cert}}
	scores := &fakeScoreStore{}
	calc := NewCalculator(items, scores, zap.NewNop()).WithClock(func() time.Time { return testDay })

	before, err := calc.Recalculate(context.Background(), tenantID, model.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 0, before.Score)
	assert.Equal(t, 1, before.OverdueCount)

	// Mark the item complete: completion recorded today, both the next
	// due date and the expiry roll forward one year.
	item := &items.items[0]
	today := time.Date(testDay.Year(), testDay.Month(), testDay.Day(), 0, 0, 0, 0, time.UTC)
	item.LastCompletedDate = &today
	next := item.ComputeNextDue(today)
	require.NotNil(t, next)
	assert.Equal(t, today.AddDate(1, 0, 0), *next)
	item.NextDueDate = next
	item.ExpiryDate = next
	item.Status = DeriveStatus(item, testDay)
	assert.Equal(t, model.StatusCompliant, item.Status)

	after, err := calc.Recalculate(context.Background(), tenantID, model.TriggerItemChange)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, after.Score, before.Score)
	assert.Equal(t, 100, after.Score)
	assert.Equal(t, 1, after.CompliantCount)
	assert.Zero(t, after.OverdueCount)
}

func TestRecalculateCountsMissingAndLegalItems(t *testing.T) {
	category := uuid.New()
	missing := newItem(category, 1, datePtr(testDay.AddDate(0, 0, -30)), model.StatusOverdue)
	evidenced := newItem(category, 1, datePtr(testDay.AddDate(0, 0, -30)), model.StatusOverdue)
	evidenced.DocumentURL = "https://docs.example.com/cert.pdf"
	bp := newItem(category, 1, datePtr(testDay.AddDate(0, 6, 0)), model.StatusCompliant)
	bp.ItemType = model.ItemBestPractice

	items := &fakeItemStore{items: []model.ComplianceItem{missing, evidenced, bp}}
	scores := &fakeScoreStore{}
	calc := NewCalculator(items, scores, zap.NewNop()).WithClock(func() time.Time { return testDay })

	snapshot, err := calc.Recalculate(context.Background(), uuid.New(), model.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 1, snapshot.MissingCount)
	assert.Equal(t, 2, snapshot.LegalItems)
	assert.Equal(t, 1, snapshot.BestPracticeItems)
}
