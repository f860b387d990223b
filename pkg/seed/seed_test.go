package seed

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

var seedDay = time.Date(2025, 6, 16, 9, 30, 0, 0, time.UTC)

type fakeComplianceStore struct {
	categories map[string]*model.ComplianceCategory
	items      []*model.ComplianceItem
	saves      int
}

func newFakeComplianceStore() *fakeComplianceStore {
	return &fakeComplianceStore{categories: map[string]*model.ComplianceCategory{}}
}

func (f *fakeComplianceStore) GetOrCreateCategory(ctx context.Context, tenantID uuid.UUID, name string, maxScore int) (*model.ComplianceCategory, error) {
	if cat, ok := f.categories[name]; ok {
		return cat, nil
	}
	cat := &model.ComplianceCategory{ID: uuid.New(), TenantID: tenantID, Name: name, MaxScore: maxScore}
	f.categories[name] = cat
	return cat, nil
}

func (f *fakeComplianceStore) ItemsForTenant(ctx context.Context, tenantID uuid.UUID) ([]model.ComplianceItem, error) {
	out := make([]model.ComplianceItem, 0, len(f.items))
	for _, item := range f.items {
		out = append(out, *item)
	}
	return out, nil
}

func (f *fakeComplianceStore) CreateItem(ctx context.Context, item *model.ComplianceItem) error {
	item.ID = uuid.New()
	f.items = append(f.items, item)
	return nil
}

func (f *fakeComplianceStore) SaveItem(ctx context.Context, item *model.ComplianceItem) error {
	f.saves++
	for i := range f.items {
		if f.items[i].ID == item.ID {
			f.items[i] = item
			return nil
		}
	}
	f.items = append(f.items, item)
	return nil
}

type fakeRecalculator struct {
	calls    int
	triggers []model.ScoreTrigger
}

func (f *fakeRecalculator) Recalculate(ctx context.Context, tenantID uuid.UUID, trigger model.ScoreTrigger) (*model.PeaceOfMindScore, error) {
	f.calls++
	f.triggers = append(f.triggers, trigger)
	return &model.PeaceOfMindScore{TenantID: tenantID, Score: 64}, nil
}

func newSeeder(store *fakeComplianceStore, calc *fakeRecalculator) *Seeder {
	return NewSeeder(store, calc, zap.NewNop()).WithClock(func() time.Time { return seedDay })
}

func TestRunCreatesFullBaseline(t *testing.T) {
	store := newFakeComplianceStore()
	calc := &fakeRecalculator{}

	created, err := newSeeder(store, calc).Run(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, 19, created)
	assert.Len(t, store.categories, 7)
	require.Len(t, store.items, 19)

	// Everything starts DUE_SOON, 30 days out.
	wantDue := time.Date(2025, 7, 16, 0, 0, 0, 0, time.UTC)
	for _, item := range store.items {
		assert.Equal(t, model.StatusDueSoon, item.Status)
		require.NotNil(t, item.NextDueDate, item.Title)
		assert.Equal(t, wantDue, *item.NextDueDate, item.Title)
		assert.NotEmpty(t, item.LegalReference, item.Title)
		assert.NotEmpty(t, item.PlainEnglishWhy, item.Title)
	}

	require.Len(t, calc.triggers, 1)
	assert.Equal(t, model.TriggerSeed, calc.triggers[0])
}

func TestRunIsIdempotent(t *testing.T) {
	store := newFakeComplianceStore()
	calc := &fakeRecalculator{}
	seeder := newSeeder(store, calc)
	tenantID := uuid.New()

	_, err := seeder.Run(context.Background(), tenantID)
	require.NoError(t, err)

	created, err := seeder.Run(context.Background(), tenantID)
	require.NoError(t, err)

	assert.Equal(t, 0, created)
	assert.Len(t, store.items, 19)
	// Second pass refreshed every existing item and ran one more recalculation.
	assert.Equal(t, 19, store.saves)
	assert.Equal(t, 2, calc.calls)
}

func TestRunRefreshesGuidanceOnExistingItems(t *testing.T) {
	store := newFakeComplianceStore()
	calc := &fakeRecalculator{}
	tenantID := uuid.New()

	category, err := store.GetOrCreateCategory(context.Background(), tenantID, "Gas Safety", 10)
	require.NoError(t, err)
	completed := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	stale := &model.ComplianceItem{
		CategoryID:        category.ID,
		Title:             "Gas Safety Certificate (CP12)",
		Status:            model.StatusCompliant,
		LastCompletedDate: &completed,
		PlainEnglishWhy:   "old wording",
	}
	require.NoError(t, store.CreateItem(context.Background(), stale))

	created, err := newSeeder(store, calc).Run(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, 18, created)

	var refreshed *model.ComplianceItem
	for _, item := range store.items {
		if item.Title == "Gas Safety Certificate (CP12)" {
			refreshed = item
		}
	}
	require.NotNil(t, refreshed)
	assert.NotEqual(t, "old wording", refreshed.PlainEnglishWhy)
	assert.Contains(t, refreshed.LegalReference, "Gas Safety")
	// Refreshing guidance text never touches completion state.
	assert.Equal(t, model.StatusCompliant, refreshed.Status)
	assert.Equal(t, &completed, refreshed.LastCompletedDate)
}
