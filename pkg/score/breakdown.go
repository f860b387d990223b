package score

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/sortedhq/sorted/pkg/model"
)

// CategoryBreakdown is one category's contribution to the overall
// score, computed from stored item statuses.
type CategoryBreakdown struct {
	CategoryID uuid.UUID `json:"category_id"`
	Name       string    `json:"name"`
	MaxScore   int       `json:"max_score"`
	Total      int       `json:"total_items"`
	Compliant  int       `json:"compliant"`
	DueSoon    int       `json:"due_soon"`
	Overdue    int       `json:"overdue"`
	Percent    int       `json:"percent"`
}

// BreakdownByCategory groups items by category and scores each with
// the same weighting rules as the overall calculation. Categories come
// back in name order.
func BreakdownByCategory(items []model.ComplianceItem) []CategoryBreakdown {
	byCategory := make(map[uuid.UUID]*CategoryBreakdown)
	achieved := make(map[uuid.UUID]float64)
	totals := make(map[uuid.UUID]float64)

	for i := range items {
		item := &items[i]
		entry := byCategory[item.CategoryID]
		if entry == nil {
			entry = &CategoryBreakdown{CategoryID: item.CategoryID, MaxScore: 10}
			if item.Category != nil {
				entry.Name = item.Category.Name
				entry.MaxScore = item.Category.MaxScore
			}
			byCategory[item.CategoryID] = entry
		}

		entry.Total++
		switch item.Status {
		case model.StatusCompliant:
			entry.Compliant++
		case model.StatusDueSoon:
			entry.DueSoon++
		case model.StatusOverdue:
			entry.Overdue++
		}

		weight := item.Weight
		if weight <= 0 {
			weight = 1
		}
		totals[item.CategoryID] += float64(weight)
		achieved[item.CategoryID] += achievedWeight(item.Status, weight)
	}

	breakdown := make([]CategoryBreakdown, 0, len(byCategory))
	for id, entry := range byCategory {
		if totals[id] > 0 {
			entry.Percent = int(math.Round(achieved[id] / totals[id] * 100))
		}
		breakdown = append(breakdown, *entry)
	}
	sort.Slice(breakdown, func(i, j int) bool {
		return breakdown[i].Name < breakdown[j].Name
	})
	return breakdown
}

// Priorities orders actionable items for display: overdue legal
// obligations first, then overdue best practice, then due soon, oldest
// due date first within each band.
func Priorities(items []model.ComplianceItem, limit int) []model.ComplianceItem {
	actionable := make([]model.ComplianceItem, 0, len(items))
	for i := range items {
		if items[i].Status == model.StatusOverdue || items[i].Status == model.StatusDueSoon {
			actionable = append(actionable, items[i])
		}
	}
	sort.SliceStable(actionable, func(i, j int) bool {
		ri, rj := priorityRank(&actionable[i]), priorityRank(&actionable[j])
		if ri != rj {
			return ri < rj
		}
		di, dj := actionable[i].EffectiveDueDate(), actionable[j].EffectiveDueDate()
		if di == nil || dj == nil {
			return dj == nil && di != nil
		}
		return di.Before(*dj)
	})
	if limit > 0 && len(actionable) > limit {
		actionable = actionable[:limit]
	}
	return actionable
}

func priorityRank(item *model.ComplianceItem) int {
	switch {
	case item.Status == model.StatusOverdue && item.ItemType == model.ItemLegal:
		return 0
	case item.Status == model.StatusOverdue:
		return 1
	default:
		return 2
	}
}
