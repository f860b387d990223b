// Package cover suggests who can stand in for absent staff. Every
// candidate carries the reason it was suggested and nothing is ever
// auto-assigned; the owner always confirms.
package cover

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sortedhq/sorted/pkg/config"
	"github.com/sortedhq/sorted/pkg/metrics"
	"github.com/sortedhq/sorted/pkg/model"
)

type Strategy string

const (
	// StrategyRotation prefers staff who have not covered in the
	// rotation window, read from accepted cover events.
	StrategyRotation Strategy = "rotation"
	// StrategyTiered orders by tenure, oldest record first.
	StrategyTiered Strategy = "tiered"
)

type Candidate struct {
	StaffID uuid.UUID `json:"staff_id"`
	Name    string    `json:"name"`
	Reason  string    `json:"reason"`
	Rank    int       `json:"rank"`
}

type StaffSource interface {
	ActiveStaff(ctx context.Context, tenantID uuid.UUID, excludeIDs []uuid.UUID, serviceID *uuid.UUID) ([]model.Staff, error)
}

type CoverLog interface {
	CoverAcceptedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]model.BusinessEvent, error)
}

type Rotator struct {
	staff StaffSource
	log   CoverLog
	cfg   config.RotationConfig
	now   func() time.Time
}

func NewRotator(staff StaffSource, log CoverLog, cfg config.RotationConfig) *Rotator {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 7
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 3
	}
	return &Rotator{staff: staff, log: log, cfg: cfg, now: time.Now}
}

func (r *Rotator) WithClock(now func() time.Time) *Rotator {
	r.now = now
	return r
}

// Candidates returns an ordered list of cover suggestions for the
// absent staff member, optionally restricted to those qualified for a
// service.
func (r *Rotator) Candidates(ctx context.Context, tenantID, absentStaffID uuid.UUID, serviceID *uuid.UUID, strategy Strategy) ([]Candidate, error) {
	return r.candidates(ctx, tenantID, []uuid.UUID{absentStaffID}, serviceID, strategy, r.cfg.MaxCandidates)
}

// NextCandidate returns the next suggestion after declines, skipping
// everyone who has already said no. Returns nil when the pool is
// exhausted.
func (r *Rotator) NextCandidate(ctx context.Context, tenantID, absentStaffID uuid.UUID, declined []uuid.UUID, serviceID *uuid.UUID, strategy Strategy) (*Candidate, error) {
	exclude := append([]uuid.UUID{absentStaffID}, declined...)
	candidates, err := r.candidates(ctx, tenantID, exclude, serviceID, strategy, 1)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
}

func (r *Rotator) candidates(ctx context.Context, tenantID uuid.UUID, exclude []uuid.UUID, serviceID *uuid.UUID, strategy Strategy, limit int) ([]Candidate, error) {
	pool, err := r.staff.ActiveStaff(ctx, tenantID, exclude, serviceID)
	if err != nil {
		return nil, fmt.Errorf("load cover pool: %w", err)
	}

	var result []Candidate
	switch strategy {
	case StrategyTiered:
		result = tieredCandidates(pool, limit)
	default:
		strategy = StrategyRotation
		result, err = r.rotationCandidates(ctx, tenantID, pool, limit)
		if err != nil {
			return nil, err
		}
	}

	metrics.CoverSuggestionsTotal.WithLabelValues(string(strategy)).Add(float64(len(result)))
	return result, nil
}

// rotationCandidates prefers staff with no accepted cover inside the
// window, in name order; recently covered staff fill remaining slots.
func (r *Rotator) rotationCandidates(ctx context.Context, tenantID uuid.UUID, pool []model.Staff, limit int) ([]Candidate, error) {
	since := r.now().AddDate(0, 0, -r.cfg.WindowDays)
	accepted, err := r.log.CoverAcceptedSince(ctx, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("load recent covers: %w", err)
	}

	recentlyCovered := make(map[uuid.UUID]struct{})
	for _, event := range accepted {
		raw, ok := event.Payload["cover_staff_id"].(string)
		if !ok {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		recentlyCovered[id] = struct{}{}
	}

	sort.Slice(pool, func(i, j int) bool { return pool[i].Name < pool[j].Name })

	var candidates []Candidate
	rank := 1
	for _, staff := range pool {
		if _, covered := recentlyCovered[staff.ID]; covered || rank > limit {
			continue
		}
		candidates = append(candidates, Candidate{
			StaffID: staff.ID,
			Name:    staff.Name,
			Reason:  "Next in 7-day rotation and available",
			Rank:    rank,
		})
		rank++
	}
	for _, staff := range pool {
		if _, covered := recentlyCovered[staff.ID]; !covered || rank > limit {
			continue
		}
		candidates = append(candidates, Candidate{
			StaffID: staff.ID,
			Name:    staff.Name,
			Reason:  "Available (covered recently, last 7 days)",
			Rank:    rank,
		})
		rank++
	}
	return candidates, nil
}

// tieredCandidates orders by record age as a seniority proxy until an
// explicit tier field exists.
func tieredCandidates(pool []model.Staff, limit int) []Candidate {
	sort.Slice(pool, func(i, j int) bool {
		if !pool[i].CreatedAt.Equal(pool[j].CreatedAt) {
			return pool[i].CreatedAt.Before(pool[j].CreatedAt)
		}
		return pool[i].ID.String() < pool[j].ID.String()
	})

	var candidates []Candidate
	for i, staff := range pool {
		if i >= limit {
			break
		}
		candidates = append(candidates, Candidate{
			StaffID: staff.ID,
			Name:    staff.Name,
			Reason:  fmt.Sprintf("Tier %d, seniority order", i+1),
			Rank:    i + 1,
		})
	}
	return candidates
}
