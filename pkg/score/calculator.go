// Package score derives the Peace of Mind compliance score: a 0-100
// weighted percentage over a tenant's compliance items, recomputed
// wholesale on every trigger with an immutable audit trail.
package score

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sortedhq/sorted/pkg/metrics"
	"github.com/sortedhq/sorted/pkg/model"
)

type ItemStore interface {
	ItemsForTenant(ctx context.Context, tenantID uuid.UUID) ([]model.ComplianceItem, error)
	UpdateItemStatus(ctx context.Context, itemID uuid.UUID, status model.ItemStatus) error
}

type ScoreStore interface {
	Current(ctx context.Context, tenantID uuid.UUID) (*model.PeaceOfMindScore, error)
	Save(ctx context.Context, score *model.PeaceOfMindScore) error
	AppendAudit(ctx context.Context, entry *model.ScoreAuditLog) error
}

type Calculator struct {
	items  ItemStore
	scores ScoreStore
	logger *zap.Logger
	now    func() time.Time
}

func NewCalculator(items ItemStore, scores ScoreStore, logger *zap.Logger) *Calculator {
	return &Calculator{items: items, scores: scores, logger: logger, now: time.Now}
}

// WithClock fixes the calculator's notion of now. Tests use this to
// pin status derivation to a known day.
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// DeriveStatus computes the status an item should have on the given
// day. OVERDUE once the effective due date has passed, DUE_SOON inside
// the item's reminder window, COMPLIANT otherwise. Items with no date
// at all are compliant only if they have ever been completed.
func DeriveStatus(item *model.ComplianceItem, today time.Time) model.ItemStatus {
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	due := item.EffectiveDueDate()
	if due == nil {
		if item.LastCompletedDate != nil {
			return model.StatusCompliant
		}
		return model.StatusDueSoon
	}
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	if dueDay.Before(today) {
		return model.StatusOverdue
	}
	reminderDays := item.ReminderDays
	if reminderDays <= 0 {
		reminderDays = 30
	}
	if !dueDay.After(today.AddDate(0, 0, reminderDays)) {
		return model.StatusDueSoon
	}
	return model.StatusCompliant
}

// achievedWeight is the item's contribution to its category score:
// full weight when compliant, half when due soon, nothing when
// overdue.
func achievedWeight(status model.ItemStatus, weight int) float64 {
	switch status {
	case model.StatusCompliant:
		return float64(weight)
	case model.StatusDueSoon:
		return float64(weight) / 2
	default:
		return 0
	}
}

// Recalculate rederives every item status from its dates, recomputes
// the weighted score across categories, saves the new snapshot, and
// appends one audit row. One call, one audit row, regardless of how
// many items changed.
func (c *Calculator) Recalculate(ctx context.Context, tenantID uuid.UUID, trigger model.ScoreTrigger) (*model.PeaceOfMindScore, error) {
	items, err := c.items.ItemsForTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load compliance items: %w", err)
	}

	now := c.now().UTC()
	today := now

	type categoryTotals struct {
		achieved float64
		total    float64
		maxScore int
	}
	categories := make(map[uuid.UUID]*categoryTotals)

	snapshot := &model.PeaceOfMindScore{TenantID: tenantID}

	for i := range items {
		item := &items[i]
		derived := DeriveStatus(item, today)
		if derived != item.Status {
			if err := c.items.UpdateItemStatus(ctx, item.ID, derived); err != nil {
				return nil, fmt.Errorf("update item status: %w", err)
			}
			item.Status = derived
		}

		snapshot.TotalItems++
		switch item.Status {
		case model.StatusCompliant:
			snapshot.CompliantCount++
		case model.StatusDueSoon:
			snapshot.DueSoonCount++
		case model.StatusOverdue:
			snapshot.OverdueCount++
		}
		if item.Missing() {
			snapshot.MissingCount++
		}
		if item.ItemType == model.ItemLegal {
			snapshot.LegalItems++
		} else {
			snapshot.BestPracticeItems++
		}

		totals := categories[item.CategoryID]
		if totals == nil {
			totals = &categoryTotals{maxScore: 10}
			if item.Category != nil {
				totals.maxScore = item.Category.MaxScore
			}
			categories[item.CategoryID] = totals
		}
		weight := item.Weight
		if weight <= 0 {
			weight = 1
		}
		totals.total += float64(weight)
		totals.achieved += achievedWeight(item.Status, weight)
	}

	// Overall score: mean of category percentages weighted by each
	// category's max score. An empty register scores 100; there is
	// nothing outstanding.
	var weightedSum, weightTotal float64
	for _, totals := range categories {
		if totals.total == 0 {
			continue
		}
		pct := totals.achieved / totals.total * 100
		weightedSum += pct * float64(totals.maxScore)
		weightTotal += float64(totals.maxScore)
	}
	overall := 100
	if weightTotal > 0 {
		overall = int(math.Round(weightedSum / weightTotal))
	}

	current, err := c.scores.Current(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load current score: %w", err)
	}
	previous := 0
	if current != nil {
		previous = current.Score
		snapshot.ID = current.ID
	}

	snapshot.Score = overall
	snapshot.PreviousScore = previous
	snapshot.LastCalculatedAt = now

	if err := c.scores.Save(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("save score: %w", err)
	}

	audit := &model.ScoreAuditLog{
		TenantID:       tenantID,
		Score:          snapshot.Score,
		PreviousScore:  previous,
		TotalItems:     snapshot.TotalItems,
		CompliantCount: snapshot.CompliantCount,
		DueSoonCount:   snapshot.DueSoonCount,
		OverdueCount:   snapshot.OverdueCount,
		Trigger:        trigger,
		CalculatedAt:   now,
	}
	if err := c.scores.AppendAudit(ctx, audit); err != nil {
		return nil, fmt.Errorf("append audit log: %w", err)
	}

	metrics.RecalculationsTotal.WithLabelValues(tenantID.String(), string(trigger)).Inc()
	metrics.ComplianceScore.WithLabelValues(tenantID.String()).Set(float64(snapshot.Score))

	c.logger.Info("score recalculated",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("score", snapshot.Score),
		zap.Int("previous_score", previous),
		zap.String("trigger", string(trigger)),
	)

	return snapshot, nil
}
