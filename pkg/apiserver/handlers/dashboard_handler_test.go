package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sortedhq/sorted/pkg/apiserver/middleware"
	"github.com/sortedhq/sorted/pkg/opsevents"
)

type fakeEventSource struct {
	events []opsevents.Event
	calls  int
}

func (f *fakeEventSource) Events(ctx context.Context, tenantID uuid.UUID) ([]opsevents.Event, error) {
	f.calls++
	out := make([]opsevents.Event, len(f.events))
	copy(out, f.events)
	return out, nil
}

func dashboardRouter(source *fakeEventSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Tenant())
	handler := NewDashboardHandler(source, zap.NewNop())
	r.GET("/dashboard/events", handler.Events)
	r.GET("/dashboard/state", handler.State)
	return r
}

func getDashboard(t *testing.T, router *gin.Engine, path string, tenantID uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Tenant-ID", tenantID.String())
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)
	return recorder
}

// The feed is recomputed from current records on every request. A
// record change between two reads must show up in the second read;
// nothing is memoised between requests.
func TestEventsDerivedFreshPerRequest(t *testing.T) {
	source := &fakeEventSource{events: []opsevents.Event{{
		EventType: "booking_unassigned",
		Severity:  opsevents.SeverityCritical,
		Summary:   "Unassigned booking today: Sarah Mills",
		Timestamp: time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC),
	}}}
	router := dashboardRouter(source)
	tenantID := uuid.New()

	var first struct {
		Count int `json:"count"`
		State struct {
			State string `json:"state"`
		} `json:"state"`
	}
	recorder := getDashboard(t, router, "/dashboard/events", tenantID)
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &first))
	assert.Equal(t, 1, first.Count)
	assert.Equal(t, "active", first.State.State)

	// The booking gets assigned; the derived feed is now empty.
	source.events = nil

	var second struct {
		Count int `json:"count"`
		State struct {
			State   string `json:"state"`
			Message string `json:"message"`
		} `json:"state"`
	}
	recorder = getDashboard(t, router, "/dashboard/events", tenantID)
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &second))
	assert.Equal(t, 0, second.Count)
	assert.Equal(t, "sorted", second.State.State)
	assert.Equal(t, "No active issues. Sorted.", second.State.Message)

	assert.Equal(t, 2, source.calls)
}

func TestStateDerivesPerRequest(t *testing.T) {
	source := &fakeEventSource{}
	router := dashboardRouter(source)
	tenantID := uuid.New()

	getDashboard(t, router, "/dashboard/state", tenantID)
	getDashboard(t, router, "/dashboard/state", tenantID)

	assert.Equal(t, 2, source.calls)
}
