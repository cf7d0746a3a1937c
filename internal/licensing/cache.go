package licensing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"license-backend/internal/store"
)

const (
	DefaultCacheTTL   = 30 * time.Minute
	DefaultSessionTTL = 24 * time.Hour

	statusKey       = "license:status"
	cachedAtKey     = "license:cached_at"
	sessionStartKey = "license:session_started_at"
	startupSeenKey  = "license:startup_seen"
)

// Checker is the authoritative source for license status. Implementations
// return an error only when they could not determine the status at all; a
// completed check that reports an inactive license is a Status with
// Success=false, not an error.
type Checker interface {
	Check(ctx context.Context) (Status, error)
}

type CacheConfig struct {
	CacheTTL   time.Duration    // zero = DefaultCacheTTL
	SessionTTL time.Duration    // zero = DefaultSessionTTL
	Now        func() time.Time // zero = time.Now, injectable for tests
}

// Cache answers license status checks from ephemeral session storage when a
// recent snapshot exists, and degrades to a stale snapshot when the
// authoritative check fails. Stored entries are a convenience, never a source
// of truth: anything malformed is silently discarded.
type Cache struct {
	checker    Checker
	store      store.Store
	now        func() time.Time
	cacheTTL   time.Duration
	sessionTTL time.Duration

	startupLock sync.Mutex
	startupSeen bool
}

func NewCache(checker Checker, st store.Store, cfg CacheConfig) *Cache {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache{
		checker:    checker,
		store:      st,
		now:        cfg.Now,
		cacheTTL:   cfg.CacheTTL,
		sessionTTL: cfg.SessionTTL,
	}
}

type cacheEntry struct {
	status         Status
	cachedAt       time.Time
	sessionStarted time.Time
}

// CheckStatus returns the current license status. Unless force is set, a
// fresh cached snapshot is served without touching the network. When the
// authoritative check fails, any session-valid snapshot (fresh or stale) is
// served with Offline set; the checker's error is surfaced only when the
// cache is empty.
func (c *Cache) CheckStatus(ctx context.Context, force bool) (Status, error) {
	// Read even when forced: tryRead evicts corrupt and session-expired
	// entries, so a forced check after session expiry starts a new session
	// instead of writing into the dead one.
	entry, ok := c.tryRead(ctx)
	if !force && ok && c.isFresh(entry) {
		return fromCache(entry, false), nil
	}

	status, err := c.checker.Check(ctx)
	if err != nil {
		if ok {
			slog.Warn("license check unavailable, serving cached status", "cached_at", entry.cachedAt, "error", err)
			return fromCache(entry, true), nil
		}
		return Status{}, fmt.Errorf("license check failed: %w", err)
	}

	// Failed checks never overwrite a valid cache entry.
	if status.Success {
		c.write(ctx, status)
	}

	return status, nil
}

// RefreshCache always performs the authoritative check and rewrites the cache
// on success.
func (c *Cache) RefreshCache(ctx context.Context) (Status, error) {
	return c.CheckStatus(ctx, true)
}

// ClearCache removes the cached snapshot, both timestamps and the startup
// marker. Idempotent.
func (c *Cache) ClearCache(ctx context.Context) error {
	if err := c.store.Delete(ctx, statusKey, cachedAtKey, sessionStartKey, startupSeenKey); err != nil {
		return fmt.Errorf("clearing license cache: %w", err)
	}
	return nil
}

type Stats struct {
	HasCachedData  bool   `json:"has_cached_data"`
	CacheAgeMs     *int64 `json:"cache_age_ms"`
	SessionAgeMs   *int64 `json:"session_age_ms"`
	IsExpired      bool   `json:"is_expired"`
	IsSessionValid bool   `json:"is_session_valid"`
}

// CacheStats reports on whatever is currently stored, without evicting
// anything: an entry past its TTL is still reported, with IsExpired set, so
// diagnostics can distinguish "expired" from "absent". Storage errors and
// corrupt values degrade to the empty report.
func (c *Cache) CacheStats(ctx context.Context) Stats {
	stats := Stats{IsExpired: true}

	if _, err := c.store.Get(ctx, statusKey); err != nil {
		return stats
	}
	cachedAt, err := c.readTime(ctx, cachedAtKey)
	if err != nil {
		return stats
	}
	sessionStarted, err := c.readTime(ctx, sessionStartKey)
	if err != nil {
		return stats
	}

	now := c.now()
	cacheAge := now.Sub(cachedAt).Milliseconds()
	sessionAge := now.Sub(sessionStarted).Milliseconds()

	stats.HasCachedData = true
	stats.CacheAgeMs = &cacheAge
	stats.SessionAgeMs = &sessionAge
	stats.IsExpired = now.Sub(cachedAt) > c.cacheTTL
	stats.IsSessionValid = now.Sub(sessionStarted) <= c.sessionTTL
	return stats
}

// IsAppStartup returns true on the first call within a session and false
// afterwards. Callers use it to force one authoritative check per launch. The
// in-process guard keeps the answer false even if ClearCache removed the
// stored marker in the meantime.
func (c *Cache) IsAppStartup(ctx context.Context) bool {
	c.startupLock.Lock()
	defer c.startupLock.Unlock()

	if c.startupSeen {
		return false
	}
	c.startupSeen = true

	_, err := c.store.Get(ctx, startupSeenKey)
	if err == nil {
		return false
	}
	if !errors.Is(err, store.ErrNotFound) {
		// Marker state unknown; assume a previous launch set it.
		slog.Warn("failed to read startup marker", "error", err)
		return false
	}
	if err := c.store.Set(ctx, startupSeenKey, []byte("1")); err != nil {
		slog.Warn("failed to persist startup marker", "error", err)
	}
	return true
}

// tryRead loads the stored entry, evicting it on corruption or session
// expiry. It applies only the session check; TTL freshness is the caller's
// concern so the offline fallback can serve stale entries.
func (c *Cache) tryRead(ctx context.Context) (cacheEntry, bool) {
	raw, err := c.store.Get(ctx, statusKey)
	if err != nil {
		return cacheEntry{}, false
	}

	var status Status
	if err := json.Unmarshal(raw, &status); err != nil {
		slog.Warn("corrupt cached license status, discarding", "error", err)
		c.evict(ctx)
		return cacheEntry{}, false
	}

	cachedAt, err := c.readTime(ctx, cachedAtKey)
	if err != nil {
		slog.Warn("corrupt license cache timestamp, discarding", "error", err)
		c.evict(ctx)
		return cacheEntry{}, false
	}
	sessionStarted, err := c.readTime(ctx, sessionStartKey)
	if err != nil {
		slog.Warn("corrupt license session timestamp, discarding", "error", err)
		c.evict(ctx)
		return cacheEntry{}, false
	}

	if c.now().Sub(sessionStarted) > c.sessionTTL {
		slog.Info("license cache session expired, discarding entry")
		c.evict(ctx)
		return cacheEntry{}, false
	}

	return cacheEntry{status: status, cachedAt: cachedAt, sessionStarted: sessionStarted}, true
}

func (c *Cache) isFresh(entry cacheEntry) bool {
	return c.now().Sub(entry.cachedAt) <= c.cacheTTL
}

// write caches a successful status. Failures are logged and swallowed: the
// check result is still valid even if caching it failed.
func (c *Cache) write(ctx context.Context, status Status) {
	raw, err := json.Marshal(status)
	if err != nil {
		slog.Error("failed to serialize license status for caching", "error", err)
		return
	}

	now := c.now()
	if err := c.store.Set(ctx, statusKey, raw); err != nil {
		slog.Warn("failed to cache license status", "error", err)
		return
	}
	if err := c.store.Set(ctx, cachedAtKey, formatTime(now)); err != nil {
		slog.Warn("failed to write license cache timestamp", "error", err)
	}

	// sessionStartedAt is written once per session and only reset by an
	// explicit clear or session expiry. A transient read error is not
	// "absent": overwriting here would restart a live session.
	if _, err := c.store.Get(ctx, sessionStartKey); errors.Is(err, store.ErrNotFound) {
		if err := c.store.Set(ctx, sessionStartKey, formatTime(now)); err != nil {
			slog.Warn("failed to write license session timestamp", "error", err)
		}
	} else if err != nil {
		slog.Warn("failed to read license session timestamp", "error", err)
	}
}

// evict removes the cache entry and its session marker, leaving the startup
// marker in place.
func (c *Cache) evict(ctx context.Context) {
	if err := c.store.Delete(ctx, statusKey, cachedAtKey, sessionStartKey); err != nil {
		slog.Warn("failed to evict license cache entry", "error", err)
	}
}

func (c *Cache) readTime(ctx context.Context, key string) (time.Time, error) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		return time.Time{}, err
	}
	millis, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed timestamp for %s: %w", key, err)
	}
	return time.UnixMilli(millis), nil
}

func formatTime(t time.Time) []byte {
	return []byte(strconv.FormatInt(t.UnixMilli(), 10))
}

func fromCache(entry cacheEntry, offline bool) Status {
	status := entry.status
	status.Source = SourceSessionCache
	status.Offline = offline
	return status
}
