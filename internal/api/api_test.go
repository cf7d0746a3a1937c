package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	backend "license-backend/internal/api"
	"license-backend/internal/database"
	"license-backend/internal/events"
	"license-backend/internal/licensing"
	"license-backend/internal/store"
	"license-backend/pkg/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T, create ...any) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	for _, c := range create {
		require.NoError(t, db.Create(c).Error)
	}

	return db
}

type stubChecker struct {
	calls  int
	status licensing.Status
	err    error
}

func (c *stubChecker) Check(ctx context.Context) (licensing.Status, error) {
	c.calls++
	if c.err != nil {
		return licensing.Status{}, c.err
	}
	return c.status, nil
}

type testService struct {
	router  *chi.Mux
	checker *stubChecker
	queue   *events.InMemoryQueue
	db      *gorm.DB
}

func newTestService(t *testing.T, create ...any) *testService {
	checker := &stubChecker{status: licensing.Status{
		Success:   true,
		Activated: true,
		Data:      &licensing.LicenseData{Type: "premium", Features: []string{"sales"}},
		Source:    licensing.SourceRemote,
	}}

	db := createDB(t, create...)
	queue := events.NewInMemoryQueue()
	cache := licensing.NewCache(checker, store.NewMemoryStore(), licensing.CacheConfig{})

	service := backend.NewLicenseService(cache, db, queue)
	router := chi.NewRouter()
	service.AddRoutes(router)

	return &testService{router: router, checker: checker, queue: queue, db: db}
}

func (s *testService) request(t *testing.T, method, target string, expectedCode int, response any) {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, expectedCode, rec.Code, "unexpected response: %s", rec.Body.String())
	if response != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), response))
	}
}

func TestGetStatus(t *testing.T) {
	service := newTestService(t)

	var status licensing.Status
	service.request(t, http.MethodGet, "/license/status", http.StatusOK, &status)

	assert.True(t, status.Activated)
	assert.Equal(t, licensing.SourceRemote, status.Source)
	assert.Equal(t, 1, service.checker.calls)

	// The authoritative check is audited and its transition published.
	var records []database.CheckRecord
	require.NoError(t, service.db.Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, string(licensing.SourceRemote), records[0].Source)

	select {
	case event := <-service.queue.Events():
		var payload events.StatusChangePayload
		require.NoError(t, json.Unmarshal(event.Payload(), &payload))
		assert.True(t, payload.Activated)
	default:
		t.Fatal("expected a status change event")
	}

	// A second request is served from cache: no network call, no new audit
	// row, no event.
	service.request(t, http.MethodGet, "/license/status", http.StatusOK, &status)
	assert.Equal(t, licensing.SourceSessionCache, status.Source)
	assert.Equal(t, 1, service.checker.calls)

	require.NoError(t, service.db.Find(&records).Error)
	assert.Len(t, records, 1)

	select {
	case <-service.queue.Events():
		t.Fatal("cache hits must not publish events")
	default:
	}
}

func TestGetStatusForce(t *testing.T) {
	service := newTestService(t)

	var status licensing.Status
	service.request(t, http.MethodGet, "/license/status", http.StatusOK, &status)
	service.request(t, http.MethodGet, "/license/status?force=true", http.StatusOK, &status)

	assert.Equal(t, licensing.SourceRemote, status.Source)
	assert.Equal(t, 2, service.checker.calls)
}

func TestGetStatusUnavailable(t *testing.T) {
	service := newTestService(t)
	service.checker.err = licensing.ErrCheckUnavailable

	service.request(t, http.MethodGet, "/license/status", http.StatusServiceUnavailable, nil)

	var records []database.CheckRecord
	require.NoError(t, service.db.Find(&records).Error)
	require.Len(t, records, 1)
	assert.NotEmpty(t, records[0].Error)
}

func TestRefresh(t *testing.T) {
	service := newTestService(t)

	var status licensing.Status
	service.request(t, http.MethodGet, "/license/status", http.StatusOK, &status)
	service.request(t, http.MethodPost, "/license/refresh", http.StatusOK, &status)

	assert.Equal(t, licensing.SourceRemote, status.Source)
	assert.Equal(t, 2, service.checker.calls)
}

func TestDeactivationPublishesEvent(t *testing.T) {
	service := newTestService(t)

	var status licensing.Status
	service.request(t, http.MethodGet, "/license/status", http.StatusOK, &status)
	<-service.queue.Events()

	service.checker.status = licensing.Status{
		Success: true,
		Data:    &licensing.LicenseData{Type: "premium"},
		Message: "license deactivated",
		Source:  licensing.SourceRemote,
	}
	service.request(t, http.MethodPost, "/license/refresh", http.StatusOK, &status)
	assert.False(t, status.Activated)

	select {
	case event := <-service.queue.Events():
		var payload events.StatusChangePayload
		require.NoError(t, json.Unmarshal(event.Payload(), &payload))
		assert.False(t, payload.Activated)
		assert.Equal(t, "license deactivated", payload.Message)
	default:
		t.Fatal("expected a deactivation event")
	}

	// Repeating the same state is not a transition.
	service.request(t, http.MethodPost, "/license/refresh", http.StatusOK, &status)
	select {
	case <-service.queue.Events():
		t.Fatal("unchanged state must not publish events")
	default:
	}
}

func TestClearCache(t *testing.T) {
	service := newTestService(t)

	var status licensing.Status
	service.request(t, http.MethodGet, "/license/status", http.StatusOK, &status)

	service.request(t, http.MethodDelete, "/license/cache", http.StatusOK, nil)

	var stats licensing.Stats
	service.request(t, http.MethodGet, "/license/cache/stats", http.StatusOK, &stats)
	assert.False(t, stats.HasCachedData)

	service.request(t, http.MethodDelete, "/license/cache", http.StatusOK, nil)
}

func TestGetCacheStats(t *testing.T) {
	service := newTestService(t)

	var stats licensing.Stats
	service.request(t, http.MethodGet, "/license/cache/stats", http.StatusOK, &stats)
	assert.False(t, stats.HasCachedData)
	assert.Nil(t, stats.CacheAgeMs)

	var status licensing.Status
	service.request(t, http.MethodGet, "/license/status", http.StatusOK, &status)

	service.request(t, http.MethodGet, "/license/cache/stats", http.StatusOK, &stats)
	assert.True(t, stats.HasCachedData)
	require.NotNil(t, stats.CacheAgeMs)
	assert.False(t, stats.IsExpired)
	assert.True(t, stats.IsSessionValid)
}

func TestGetStartup(t *testing.T) {
	service := newTestService(t)

	var response models.StartupResponse
	service.request(t, http.MethodGet, "/license/startup", http.StatusOK, &response)
	assert.True(t, response.IsStartup)

	service.request(t, http.MethodGet, "/license/startup", http.StatusOK, &response)
	assert.False(t, response.IsStartup)
}

func TestGetHistory(t *testing.T) {
	now := time.Now().UTC()
	service := newTestService(t,
		&database.CheckRecord{Id: uuid.New(), Timestamp: now.Add(-2 * time.Hour), Activated: true, Source: "remote"},
		&database.CheckRecord{Id: uuid.New(), Timestamp: now.Add(-time.Hour), Activated: true, Source: "session_cache", Offline: true},
		&database.CheckRecord{Id: uuid.New(), Timestamp: now, Activated: false, Source: "remote", Error: "license check failed"},
	)

	var response models.HistoryResponse
	service.request(t, http.MethodGet, "/license/history", http.StatusOK, &response)
	require.Len(t, response.Checks, 3)
	assert.False(t, response.Checks[0].Activated, "newest first")
	assert.Equal(t, "license check failed", response.Checks[0].Error)

	service.request(t, http.MethodGet, "/license/history?limit=2", http.StatusOK, &response)
	assert.Len(t, response.Checks, 2)
}

func TestHealth(t *testing.T) {
	service := newTestService(t)
	service.request(t, http.MethodGet, "/health", http.StatusOK, nil)
}
