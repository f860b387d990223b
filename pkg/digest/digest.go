// Package digest runs the scheduled per-tenant pass: a fresh score
// recalculation plus a reminder digest of outstanding legal items,
// logged to the business event log. There is no email delivery; the
// digest event is the record.
package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sortedhq/sorted/pkg/config"
	"github.com/sortedhq/sorted/pkg/metrics"
	"github.com/sortedhq/sorted/pkg/model"
)

type TenantSource interface {
	List(ctx context.Context) ([]model.Tenant, error)
}

type Recalculator interface {
	Recalculate(ctx context.Context, tenantID uuid.UUID, trigger model.ScoreTrigger) (*model.PeaceOfMindScore, error)
}

type ItemSource interface {
	ItemsWithStatus(ctx context.Context, tenantID uuid.UUID, status model.ItemStatus) ([]model.ComplianceItem, error)
	DueSoonBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) ([]model.ComplianceItem, error)
}

type EventSink interface {
	Append(ctx context.Context, event *model.BusinessEvent) error
}

type Runner struct {
	tenants    TenantSource
	calculator Recalculator
	items      ItemSource
	events     EventSink
	cfg        config.DigestConfig
	dashboard  config.DashboardConfig
	logger     *zap.Logger
	now        func() time.Time
}

func NewRunner(tenants TenantSource, calculator Recalculator, items ItemSource, events EventSink, cfg config.DigestConfig, dashboard config.DashboardConfig, logger *zap.Logger) *Runner {
	return &Runner{
		tenants:    tenants,
		calculator: calculator,
		items:      items,
		events:     events,
		cfg:        cfg,
		dashboard:  dashboard,
		logger:     logger,
		now:        time.Now,
	}
}

func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Run ticks until the context is cancelled. One failing tenant never
// stops the pass for the others.
func (r *Runner) Run(ctx context.Context) {
	interval := r.cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("digest runner started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("digest runner stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce processes every tenant and reports how many passed.
func (r *Runner) RunOnce(ctx context.Context) {
	tenants, err := r.tenants.List(ctx)
	if err != nil {
		r.logger.Error("failed to list tenants for digest", zap.Error(err))
		metrics.DigestRunsTotal.WithLabelValues("error").Inc()
		return
	}

	failed := 0
	for i := range tenants {
		if err := r.runTenant(ctx, tenants[i].ID); err != nil {
			failed++
			r.logger.Error("digest failed for tenant",
				zap.String("tenant_id", tenants[i].ID.String()),
				zap.Error(err),
			)
		}
	}

	outcome := "ok"
	if failed > 0 {
		outcome = "partial"
	}
	metrics.DigestRunsTotal.WithLabelValues(outcome).Inc()
	r.logger.Info("digest pass complete",
		zap.Int("tenants", len(tenants)),
		zap.Int("failed", failed),
	)
}

func (r *Runner) runTenant(ctx context.Context, tenantID uuid.UUID) error {
	snapshot, err := r.calculator.Recalculate(ctx, tenantID, model.TriggerScheduled)
	if err != nil {
		return fmt.Errorf("scheduled recalculation: %w", err)
	}

	overdue, err := r.items.ItemsWithStatus(ctx, tenantID, model.StatusOverdue)
	if err != nil {
		return fmt.Errorf("list overdue items: %w", err)
	}
	lookahead := r.dashboard.ComplianceLookaheadDays
	if lookahead <= 0 {
		lookahead = 14
	}
	cutoff := r.now().UTC().AddDate(0, 0, lookahead)
	dueSoon, err := r.items.DueSoonBefore(ctx, tenantID, cutoff)
	if err != nil {
		return fmt.Errorf("list due-soon items: %w", err)
	}

	overdueLegal := 0
	titles := make([]string, 0, len(overdue))
	for i := range overdue {
		if overdue[i].ItemType == model.ItemLegal {
			overdueLegal++
		}
		titles = append(titles, overdue[i].Title)
	}
	if len(titles) > 5 {
		titles = titles[:5]
	}

	if len(overdue) == 0 && len(dueSoon) == 0 {
		return nil
	}

	event := &model.BusinessEvent{
		TenantID:    tenantID,
		EventType:   model.EventReminderDigest,
		Status:      model.EventStatusCompleted,
		ActionLabel: "Reminder digest",
		ActionDetail: fmt.Sprintf("%d overdue (%d legal), %d due soon",
			len(overdue), overdueLegal, len(dueSoon)),
		Payload: model.JSONB{
			"score":         snapshot.Score,
			"overdue":       len(overdue),
			"overdue_legal": overdueLegal,
			"due_soon":      len(dueSoon),
			"top_overdue":   titles,
		},
	}
	if err := r.events.Append(ctx, event); err != nil {
		return fmt.Errorf("append digest event: %w", err)
	}
	return nil
}
