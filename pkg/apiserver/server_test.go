package apiserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sortedhq/sorted/pkg/auth"
	"github.com/sortedhq/sorted/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour},
	}
}

func bearerToken(t *testing.T, cfg *config.Config, tenantID uuid.UUID) string {
	t.Helper()
	token, err := auth.NewTokenManager(cfg.Auth).Issue(tenantID, "owner@example.com", "owner")
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthEndpoint(t *testing.T) {
	server := NewServer(nil, nil, testConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestAPIAuthRequired(t *testing.T) {
	server := NewServer(nil, nil, testConfig(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/events", nil)
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	var response struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "missing authorization", response.Error)
}

func TestAPIRejectsForgedToken(t *testing.T) {
	server := NewServer(nil, nil, testConfig(), zap.NewNop())

	forged := &config.Config{Auth: config.AuthConfig{JWTSecret: "other-secret", TokenTTL: time.Hour}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/events", nil)
	req.Header.Set("Authorization", bearerToken(t, forged, uuid.New()))
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

// A valid token carries the tenant claim, so a bare request still
// resolves a tenant and passes the tenant gate.
func TestTenantResolvedFromTokenClaim(t *testing.T) {
	cfg := testConfig()
	server := NewServer(nil, nil, cfg, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/command/suggestions", nil)
	req.Header.Set("Authorization", bearerToken(t, cfg, uuid.New()))
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestTenantHeaderBeatsClaim(t *testing.T) {
	cfg := testConfig()
	server := NewServer(nil, nil, cfg, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/command/suggestions", nil)
	req.Header.Set("Authorization", bearerToken(t, cfg, uuid.New()))
	req.Header.Set("X-Tenant-ID", uuid.New().String())
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

// Tenant resolution fails closed: a malformed tenant header is a 400,
// never a fall-through to some default tenant.
func TestMalformedTenantRejected(t *testing.T) {
	cfg := testConfig()
	server := NewServer(nil, nil, cfg, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/command/suggestions", nil)
	req.Header.Set("Authorization", bearerToken(t, cfg, uuid.New()))
	req.Header.Set("X-Tenant-ID", "not-a-uuid")
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	require.Equal(t, http.StatusBadRequest, recorder.Code)

	var response struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "invalid tenant id", response.Error)
}

func TestCommandSuggestionsFiltered(t *testing.T) {
	cfg := testConfig()
	server := NewServer(nil, nil, cfg, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/command/suggestions?q=vip", nil)
	req.Header.Set("Authorization", bearerToken(t, cfg, uuid.New()))
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Suggestions []struct {
			Text     string `json:"text"`
			Category string `json:"category"`
		} `json:"suggestions"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, 2, response.Count)
	for _, s := range response.Suggestions {
		assert.Equal(t, "Clients", s.Category)
	}
}
