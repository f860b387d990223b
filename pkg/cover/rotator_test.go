package cover

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sortedhq/sorted/pkg/config"
	"github.com/sortedhq/sorted/pkg/model"
)

var rotaDay = time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)

type fakeStaffSource struct {
	staff []model.Staff
}

func (f *fakeStaffSource) ActiveStaff(ctx context.Context, tenantID uuid.UUID, excludeIDs []uuid.UUID, serviceID *uuid.UUID) ([]model.Staff, error) {
	excluded := make(map[uuid.UUID]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}
	var out []model.Staff
	for _, s := range f.staff {
		if _, skip := excluded[s.ID]; skip {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

type fakeCoverLog struct {
	accepted []model.BusinessEvent
}

func (f *fakeCoverLog) CoverAcceptedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]model.BusinessEvent, error) {
	return f.accepted, nil
}

func coverAcceptedEvent(staffID uuid.UUID) model.BusinessEvent {
	return model.BusinessEvent{
		EventType: model.EventCoverAccepted,
		Payload:   model.JSONB{"cover_staff_id": staffID.String()},
	}
}

func rotator(staff []model.Staff, log *fakeCoverLog) *Rotator {
	return NewRotator(&fakeStaffSource{staff: staff}, log,
		config.RotationConfig{WindowDays: 7, MaxCandidates: 3},
	).WithClock(func() time.Time { return rotaDay })
}

func namedStaff(name string) model.Staff {
	return model.Staff{ID: uuid.New(), Name: name, Active: true}
}

func TestRotationPrefersStaffWhoHaveNotCoveredRecently(t *testing.T) {
	amy, ben, cara := namedStaff("Amy"), namedStaff("Ben"), namedStaff("Cara")
	absent := namedStaff("Dev")

	r := rotator([]model.Staff{cara, amy, ben, absent},
		&fakeCoverLog{accepted: []model.BusinessEvent{coverAcceptedEvent(amy.ID)}})

	candidates, err := r.Candidates(context.Background(), uuid.New(), absent.ID, nil, StrategyRotation)
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	// Ben and Cara have not covered in the window, so they lead in
	// name order; Amy fills the last slot.
	assert.Equal(t, "Ben", candidates[0].Name)
	assert.Equal(t, "Next in 7-day rotation and available", candidates[0].Reason)
	assert.Equal(t, 1, candidates[0].Rank)
	assert.Equal(t, "Cara", candidates[1].Name)
	assert.Equal(t, "Amy", candidates[2].Name)
	assert.Equal(t, "Available (covered recently, last 7 days)", candidates[2].Reason)
	assert.Equal(t, 3, candidates[2].Rank)
}

func TestRotationIsFairOverConsecutiveAbsences(t *testing.T) {
	amy, ben, cara := namedStaff("Amy"), namedStaff("Ben"), namedStaff("Cara")
	absent := namedStaff("Dev")
	log := &fakeCoverLog{}
	r := rotator([]model.Staff{amy, ben, cara, absent}, log)
	tenantID := uuid.New()

	// Each day the top suggestion accepts; over three days every
	// member of the pool covers exactly once.
	var covered []string
	for i := 0; i < 3; i++ {
		candidates, err := r.Candidates(context.Background(), tenantID, absent.ID, nil, StrategyRotation)
		require.NoError(t, err)
		require.NotEmpty(t, candidates)
		top := candidates[0]
		covered = append(covered, top.Name)
		log.accepted = append(log.accepted, coverAcceptedEvent(top.StaffID))
	}

	assert.Equal(t, []string{"Amy", "Ben", "Cara"}, covered)
}

func TestRotationExcludesAbsentStaff(t *testing.T) {
	amy, absent := namedStaff("Amy"), namedStaff("Ben")
	r := rotator([]model.Staff{amy, absent}, &fakeCoverLog{})

	candidates, err := r.Candidates(context.Background(), uuid.New(), absent.ID, nil, StrategyRotation)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Amy", candidates[0].Name)
}

func TestTieredOrdersBySeniority(t *testing.T) {
	oldest := namedStaff("Zara")
	oldest.CreatedAt = rotaDay.AddDate(-3, 0, 0)
	middle := namedStaff("Amy")
	middle.CreatedAt = rotaDay.AddDate(-1, 0, 0)
	newest := namedStaff("Ben")
	newest.CreatedAt = rotaDay.AddDate(0, -1, 0)
	absent := namedStaff("Dev")

	r := rotator([]model.Staff{newest, oldest, middle, absent}, &fakeCoverLog{})

	candidates, err := r.Candidates(context.Background(), uuid.New(), absent.ID, nil, StrategyTiered)
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	assert.Equal(t, "Zara", candidates[0].Name)
	assert.Equal(t, "Tier 1, seniority order", candidates[0].Reason)
	assert.Equal(t, "Amy", candidates[1].Name)
	assert.Equal(t, "Ben", candidates[2].Name)
	assert.Equal(t, "Tier 3, seniority order", candidates[2].Reason)
}

func TestNextCandidateSkipsDeclined(t *testing.T) {
	amy, ben, cara := namedStaff("Amy"), namedStaff("Ben"), namedStaff("Cara")
	absent := namedStaff("Dev")
	r := rotator([]model.Staff{amy, ben, cara, absent}, &fakeCoverLog{})

	next, err := r.NextCandidate(context.Background(), uuid.New(), absent.ID,
		[]uuid.UUID{amy.ID, ben.ID}, nil, StrategyRotation)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "Cara", next.Name)
	assert.Equal(t, 1, next.Rank)
}

func TestNextCandidateNilWhenPoolExhausted(t *testing.T) {
	amy, absent := namedStaff("Amy"), namedStaff("Ben")
	r := rotator([]model.Staff{amy, absent}, &fakeCoverLog{})

	next, err := r.NextCandidate(context.Background(), uuid.New(), absent.ID,
		[]uuid.UUID{amy.ID}, nil, StrategyRotation)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestRotationIgnoresMalformedPayloads(t *testing.T) {
	amy, absent := namedStaff("Amy"), namedStaff("Ben")
	log := &fakeCoverLog{accepted: []model.BusinessEvent{
		{EventType: model.EventCoverAccepted, Payload: model.JSONB{"cover_staff_id": 42}},
		{EventType: model.EventCoverAccepted, Payload: model.JSONB{"cover_staff_id": "not-a-uuid"}},
		{EventType: model.EventCoverAccepted, Payload: model.JSONB{}},
	}}
	r := rotator([]model.Staff{amy, absent}, log)

	candidates, err := r.Candidates(context.Background(), uuid.New(), absent.ID, nil, StrategyRotation)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Next in 7-day rotation and available", candidates[0].Reason)
}
