package score

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sortedhq/sorted/pkg/model"
)

func TestBreakdownByCategoryScoresEachCategory(t *testing.T) {
	fire := &model.ComplianceCategory{ID: uuid.New(), Name: "Fire Safety", MaxScore: 10}
	gas := &model.ComplianceCategory{ID: uuid.New(), Name: "Gas", MaxScore: 5}

	items := []model.ComplianceItem{
		{CategoryID: fire.ID, Category: fire, Status: model.StatusCompliant, Weight: 1},
		{CategoryID: fire.ID, Category: fire, Status: model.StatusOverdue, Weight: 1},
		{CategoryID: gas.ID, Category: gas, Status: model.StatusDueSoon, Weight: 2},
	}

	breakdown := BreakdownByCategory(items)
	require.Len(t, breakdown, 2)

	assert.Equal(t, "Fire Safety", breakdown[0].Name)
	assert.Equal(t, 50, breakdown[0].Percent)
	assert.Equal(t, 2, breakdown[0].Total)
	assert.Equal(t, 1, breakdown[0].Compliant)
	assert.Equal(t, 1, breakdown[0].Overdue)

	assert.Equal(t, "Gas", breakdown[1].Name)
	assert.Equal(t, 50, breakdown[1].Percent)
	assert.Equal(t, 5, breakdown[1].MaxScore)
}

func TestBreakdownEmptyItems(t *testing.T) {
	assert.Empty(t, BreakdownByCategory(nil))
}

func TestPrioritiesOrdersLegalOverdueFirst(t *testing.T) {
	day := func(offset int) *time.Time {
		d := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
		return &d
	}

	items := []model.ComplianceItem{
		{Title: "Due soon", Status: model.StatusDueSoon, ItemType: model.ItemLegal, NextDueDate: day(5)},
		{Title: "Overdue BP", Status: model.StatusOverdue, ItemType: model.ItemBestPractice, NextDueDate: day(-3)},
		{Title: "Overdue legal new", Status: model.StatusOverdue, ItemType: model.ItemLegal, NextDueDate: day(-1)},
		{Title: "Overdue legal old", Status: model.StatusOverdue, ItemType: model.ItemLegal, NextDueDate: day(-10)},
		{Title: "Fine", Status: model.StatusCompliant, ItemType: model.ItemLegal, NextDueDate: day(200)},
	}

	ordered := Priorities(items, 0)
	require.Len(t, ordered, 4)
	assert.Equal(t, "Overdue legal old", ordered[0].Title)
	assert.Equal(t, "Overdue legal new", ordered[1].Title)
	assert.Equal(t, "Overdue BP", ordered[2].Title)
	assert.Equal(t, "Due soon", ordered[3].Title)
}

func TestPrioritiesRespectsLimit(t *testing.T) {
	items := []model.ComplianceItem{
		{Status: model.StatusOverdue, ItemType: model.ItemLegal},
		{Status: model.StatusOverdue, ItemType: model.ItemLegal},
		{Status: model.StatusDueSoon, ItemType: model.ItemBestPractice},
	}
	assert.Len(t, Priorities(items, 2), 2)
}
