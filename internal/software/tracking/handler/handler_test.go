package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"haultrack/internal/domain/geo"
	"haultrack/internal/domain/user"
	"haultrack/internal/general/jwt"
	"haultrack/internal/general/logger"
	"haultrack/internal/general/websocket"
	"haultrack/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	locations map[string]*geo.CurrentLocation
}

func (store *fakeStore) UpsertCurrentLocation(_ context.Context, _ string, _, _ float64) error {
	return nil
}

func (store *fakeStore) GetCurrent(_ context.Context, userID string) (*geo.CurrentLocation, error) {
	loc, ok := store.locations[userID]
	if !ok {
		return nil, errors.New("no rows")
	}
	return loc, nil
}

func (store *fakeStore) MarkOffline(_ context.Context, _ string) error { return nil }

type nilAuth struct{}

func (nilAuth) Resolve(_ context.Context, _ string) *ports.Identity { return nil }

func newTestHandler(t *testing.T) (*httptest.Server, *jwt.Manager) {
	t.Helper()

	log := logger.New("test")
	mgr := jwt.NewManager("test-secret", time.Hour)
	store := &fakeStore{locations: map[string]*geo.CurrentLocation{
		"driver-1": {UserID: "driver-1", Latitude: 52.52, Longitude: 13.405, IsOnline: true, UpdatedAt: time.Now().UTC()},
	}}
	socket := websocket.NewTrackingSocket(log, nilAuth{}, store, websocket.NewGroupRegistry(log), nil)

	mux := http.NewServeMux()
	NewTrackingHTTPHandler(store, log, mgr, socket).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, mgr
}

func getLocation(t *testing.T, srv *httptest.Server, driverID, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/drivers/"+driverID+"/location", nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestGetLocation_DispatcherReadsAnyDriver(t *testing.T) {
	srv, mgr := newTestHandler(t)

	token, _, err := mgr.IssueUserToken("dispatcher-1", user.RoleDispatcher)
	require.NoError(t, err)

	resp := getLocation(t, srv, "driver-1", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "driver-1", body["user_id"])
	assert.Equal(t, 52.52, body["latitude"])
	assert.Equal(t, true, body["is_online"])
}

func TestGetLocation_DriverReadsOwnOnly(t *testing.T) {
	srv, mgr := newTestHandler(t)

	own, _, err := mgr.IssueUserToken("driver-1", user.RoleDriver)
	require.NoError(t, err)
	resp := getLocation(t, srv, "driver-1", own)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	other, _, err := mgr.IssueUserToken("driver-2", user.RoleDriver)
	require.NoError(t, err)
	resp = getLocation(t, srv, "driver-1", other)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGetLocation_Unauthenticated(t *testing.T) {
	srv, _ := newTestHandler(t)
	resp := getLocation(t, srv, "driver-1", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetLocation_UnknownDriver(t *testing.T) {
	srv, mgr := newTestHandler(t)

	token, _, err := mgr.IssueUserToken("admin-1", user.RoleAdmin)
	require.NoError(t, err)

	resp := getLocation(t, srv, "ghost", token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestHandler(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateToken(t *testing.T) {
	srv, mgr := newTestHandler(t)

	resp, err := http.Post(srv.URL+"/tokens", "application/json",
		strings.NewReader(`{"user_id":"user-1","role":"DRIVER"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token)

	// minted token round-trips through the manager
	_, claims, err := mgr.ParseAndValidate(body.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, user.RoleDriver, claims.Role)
}

func TestCreateToken_Validation(t *testing.T) {
	srv, _ := newTestHandler(t)

	resp, err := http.Post(srv.URL+"/tokens", "application/json", strings.NewReader(`{"role":"DRIVER"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/tokens", "application/json", strings.NewReader(`{"user_id":"u1","role":"WIZARD"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
