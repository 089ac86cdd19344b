package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"haultrack/internal/domain/geo"
	"haultrack/internal/domain/user"
	"haultrack/internal/general/jwt"
	"haultrack/internal/general/logger"
	"haultrack/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUOW struct{}

func (fakeUOW) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeLocationRepo struct {
	mu       sync.Mutex
	failNext bool
	byUser   map[string]*geo.CurrentLocation
	offline  []string
}

func newFakeLocationRepo() *fakeLocationRepo {
	return &fakeLocationRepo{byUser: make(map[string]*geo.CurrentLocation)}
}

func (repo *fakeLocationRepo) Upsert(_ context.Context, loc *geo.CurrentLocation) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.failNext {
		repo.failNext = false
		return errors.New("db down")
	}
	cp := *loc
	repo.byUser[loc.UserID] = &cp
	return nil
}

func (repo *fakeLocationRepo) GetByUserID(_ context.Context, userID string) (*geo.CurrentLocation, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	loc, ok := repo.byUser[userID]
	if !ok {
		return nil, errors.New("no rows")
	}
	cp := *loc
	return &cp, nil
}

func (repo *fakeLocationRepo) SetOffline(_ context.Context, userID string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.offline = append(repo.offline, userID)
	if loc, ok := repo.byUser[userID]; ok {
		loc.IsOnline = false
	}
	return nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	records []*geo.LocationHistory
}

func (repo *fakeHistoryRepo) Archive(_ context.Context, record *geo.LocationHistory) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.records = append(repo.records, record)
	return nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*geo.CurrentLocation
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*geo.CurrentLocation)}
}

func (cache *fakeCache) Put(_ context.Context, loc *geo.CurrentLocation) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cp := *loc
	cache.entries[loc.UserID] = &cp
	return nil
}

func (cache *fakeCache) Get(_ context.Context, userID string) (*geo.CurrentLocation, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	loc, ok := cache.entries[userID]
	if !ok {
		return nil, errors.New("cache miss")
	}
	cp := *loc
	return &cp, nil
}

func (cache *fakeCache) Drop(_ context.Context, userID string) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	delete(cache.entries, userID)
	return nil
}

type fakeUserRepo struct {
	users map[string]*user.User
}

func (repo *fakeUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := repo.users[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return u, nil
}

func newStore(t *testing.T) (ports.LocationStore, *fakeLocationRepo, *fakeHistoryRepo, *fakeCache) {
	t.Helper()
	locations := newFakeLocationRepo()
	history := &fakeHistoryRepo{}
	cache := newFakeCache()
	store := NewTrackingService(logger.New("test"), fakeUOW{}, &fakeUserRepo{}, locations, history, cache)
	return store, locations, history, cache
}

func TestUpsertCurrentLocation(t *testing.T) {
	store, locations, history, cache := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertCurrentLocation(ctx, "user-1", 52.52, 13.405))

	loc, err := locations.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 52.52, loc.Latitude)
	assert.Equal(t, 13.405, loc.Longitude)
	assert.True(t, loc.IsOnline)

	// each accepted write appends one history row
	require.Len(t, history.records, 1)
	assert.Equal(t, "user-1", history.records[0].UserID)

	// write-through cache is refreshed
	cached, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 52.52, cached.Latitude)
}

func TestUpsertCurrentLocation_SecondWriteOverwrites(t *testing.T) {
	store, locations, history, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertCurrentLocation(ctx, "user-1", 1, 2))
	require.NoError(t, store.UpsertCurrentLocation(ctx, "user-1", 3, 4))

	loc, err := locations.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3.0, loc.Latitude)
	assert.Len(t, history.records, 2, "history keeps every accepted write")
}

func TestUpsertCurrentLocation_InvalidCoordinates(t *testing.T) {
	store, _, history, _ := newStore(t)

	err := store.UpsertCurrentLocation(context.Background(), "user-1", 91, 0)
	assert.ErrorIs(t, err, geo.ErrInvalidLatitude)
	assert.Empty(t, history.records)
}

func TestUpsertCurrentLocation_StoreError(t *testing.T) {
	store, locations, _, cache := newStore(t)
	locations.failNext = true

	err := store.UpsertCurrentLocation(context.Background(), "user-1", 1, 2)
	require.Error(t, err)

	_, err = cache.Get(context.Background(), "user-1")
	assert.Error(t, err, "failed write must not populate the cache")
}

func TestGetCurrent_CacheFirst(t *testing.T) {
	store, locations, _, cache := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertCurrentLocation(ctx, "user-1", 1, 2))

	// mutate the durable row behind the cache's back; the cached value wins
	locations.byUser["user-1"].Latitude = 99
	loc, err := store.GetCurrent(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, loc.Latitude)

	// on a cache miss the durable row is served and the cache refilled
	require.NoError(t, cache.Drop(ctx, "user-1"))
	loc, err = store.GetCurrent(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 99.0, loc.Latitude)

	cached, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 99.0, cached.Latitude)
}

func TestGetCurrent_Unknown(t *testing.T) {
	store, _, _, _ := newStore(t)
	_, err := store.GetCurrent(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestMarkOffline(t *testing.T) {
	store, locations, _, cache := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertCurrentLocation(ctx, "user-1", 1, 2))
	require.NoError(t, store.MarkOffline(ctx, "user-1"))

	loc, err := locations.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, loc.IsOnline)

	_, err = cache.Get(ctx, "user-1")
	assert.Error(t, err, "cached position is dropped on offline")
}

func TestMarkOffline_UnknownUser(t *testing.T) {
	store, _, _, _ := newStore(t)
	assert.NoError(t, store.MarkOffline(context.Background(), "ghost"), "missing row is not an error")
}

// ----- authenticator -----

func newAuthenticator(users map[string]*user.User) (ports.TokenAuthenticator, *jwt.Manager) {
	mgr := jwt.NewManager("test-secret", time.Hour)
	auth := NewTokenAuthenticator(logger.New("test"), mgr, fakeUOW{}, &fakeUserRepo{users: users})
	return auth, mgr
}

func TestResolve(t *testing.T) {
	driver, err := user.NewUser("user-1", "driver@example.com", user.RoleDriver)
	require.NoError(t, err)

	auth, mgr := newAuthenticator(map[string]*user.User{"user-1": driver})

	token, _, err := mgr.IssueUserToken("user-1", user.RoleDriver)
	require.NoError(t, err)

	identity := auth.Resolve(context.Background(), token)
	require.NotNil(t, identity)
	assert.Equal(t, "user-1", identity.UserID)
	assert.Equal(t, "driver@example.com", identity.Email)
	assert.Equal(t, user.RoleDriver, identity.Role)
}

func TestResolve_Anonymous(t *testing.T) {
	auth, mgr := newAuthenticator(nil)

	assert.Nil(t, auth.Resolve(context.Background(), ""), "missing token")
	assert.Nil(t, auth.Resolve(context.Background(), "garbage"), "undecodable token")

	// valid token for a subject the users table does not know
	token, _, err := mgr.IssueUserToken("ghost", user.RoleDriver)
	require.NoError(t, err)
	assert.Nil(t, auth.Resolve(context.Background(), token), "unknown subject")
}

func TestResolve_InactiveUser(t *testing.T) {
	banned, err := user.NewUser("user-2", "banned@example.com", user.RoleDriver)
	require.NoError(t, err)
	banned.Status = user.StatusBanned

	auth, mgr := newAuthenticator(map[string]*user.User{"user-2": banned})

	token, _, err := mgr.IssueUserToken("user-2", user.RoleDriver)
	require.NoError(t, err)
	assert.Nil(t, auth.Resolve(context.Background(), token))
}

func TestResolve_WrongSecret(t *testing.T) {
	driver, err := user.NewUser("user-1", "driver@example.com", user.RoleDriver)
	require.NoError(t, err)

	auth, _ := newAuthenticator(map[string]*user.User{"user-1": driver})

	foreign := jwt.NewManager("other-secret", time.Hour)
	token, _, err := foreign.IssueUserToken("user-1", user.RoleDriver)
	require.NoError(t, err)

	assert.Nil(t, auth.Resolve(context.Background(), token))
}
