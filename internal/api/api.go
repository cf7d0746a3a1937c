package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"license-backend/internal/database"
	"license-backend/internal/events"
	"license-backend/internal/licensing"
	"license-backend/pkg/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultHistoryLimit = 50

// LicenseService is the HTTP surface the POS frontend talks to. It wraps the
// license cache, records authoritative checks in the audit trail, and
// publishes activation transitions.
type LicenseService struct {
	cache     *licensing.Cache
	db        *gorm.DB
	publisher events.Publisher
}

func NewLicenseService(cache *licensing.Cache, db *gorm.DB, publisher events.Publisher) *LicenseService {
	return &LicenseService{cache: cache, db: db, publisher: publisher}
}

func (s *LicenseService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/license", func(r chi.Router) {
		r.Get("/status", RestHandler(s.GetStatus))
		r.Post("/refresh", RestHandler(s.Refresh))
		r.Delete("/cache", RestHandler(s.ClearCache))
		r.Get("/cache/stats", RestHandler(s.GetCacheStats))
		r.Get("/startup", RestHandler(s.GetStartup))
		r.Get("/history", RestHandler(s.GetHistory))
	})
}

func (s *LicenseService) GetStatus(r *http.Request) (any, error) {
	query, err := ParseRequestQueryParams[models.StatusQuery](r)
	if err != nil {
		return nil, err
	}

	return s.checkStatus(r.Context(), query.Force)
}

func (s *LicenseService) Refresh(r *http.Request) (any, error) {
	return s.checkStatus(r.Context(), true)
}

func (s *LicenseService) checkStatus(ctx context.Context, force bool) (any, error) {
	status, err := s.cache.CheckStatus(ctx, force)
	if err != nil {
		database.SaveCheckRecord(ctx, s.db, licensing.Status{Source: licensing.SourceRemote}, err)
		return nil, CodedErrorf(http.StatusServiceUnavailable, "%s", err.Error())
	}

	// Cache hits are not audited; only contact with an authoritative source
	// (or a failed attempt that fell back) is.
	if status.Source != licensing.SourceSessionCache {
		database.SaveCheckRecord(ctx, s.db, status, nil)
		s.recordTransition(ctx, status)
	} else if status.Offline {
		database.SaveCheckRecord(ctx, s.db, status, nil)
	}

	return status, nil
}

// recordTransition upserts the activation record and publishes an event when
// the activation state flipped or expiry moved.
func (s *LicenseService) recordTransition(ctx context.Context, status licensing.Status) {
	if !status.Success {
		return
	}

	previous, err := database.UpsertActivationRecord(ctx, s.db, status)
	if err != nil {
		slog.Error("error recording activation state", "error", err)
		return
	}

	if previous != nil && previous.Activated == status.Activated && equalExpiry(previous.ExpiresAt, status) {
		return
	}

	payload := events.StatusChangePayload{
		EventId:   uuid.New(),
		Timestamp: time.Now().UTC(),
		Activated: status.Activated,
		Source:    string(status.Source),
		Message:   status.Message,
	}
	if status.Data != nil {
		payload.ExpiresAt = status.Data.ExpiresAt
	}

	if err := s.publisher.PublishStatusChange(ctx, payload); err != nil {
		slog.Error("error publishing license status change", "error", err)
	}
}

func equalExpiry(previous *time.Time, status licensing.Status) bool {
	var current *time.Time
	if status.Data != nil {
		current = status.Data.ExpiresAt
	}
	if previous == nil || current == nil {
		return previous == nil && current == nil
	}
	return previous.Equal(*current)
}

func (s *LicenseService) ClearCache(r *http.Request) (any, error) {
	if err := s.cache.ClearCache(r.Context()); err != nil {
		slog.Error("error clearing license cache", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to clear license cache")
	}
	return nil, nil
}

func (s *LicenseService) GetCacheStats(r *http.Request) (any, error) {
	return s.cache.CacheStats(r.Context()), nil
}

func (s *LicenseService) GetStartup(r *http.Request) (any, error) {
	return models.StartupResponse{IsStartup: s.cache.IsAppStartup(r.Context())}, nil
}

func (s *LicenseService) GetHistory(r *http.Request) (any, error) {
	query, err := ParseRequestQueryParams[models.HistoryQuery](r)
	if err != nil {
		return nil, err
	}
	if query.Limit <= 0 {
		query.Limit = defaultHistoryLimit
	}

	records, err := database.RecentChecks(r.Context(), s.db, query.Limit)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, CodedErrorf(http.StatusRequestTimeout, "request canceled")
		}
		slog.Error("error querying check history", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving check history")
	}

	response := models.HistoryResponse{Checks: make([]models.CheckHistoryEntry, 0, len(records))}
	for _, record := range records {
		response.Checks = append(response.Checks, models.CheckHistoryEntry{
			Id:        record.Id,
			Timestamp: record.Timestamp,
			Activated: record.Activated,
			Source:    record.Source,
			Offline:   record.Offline,
			Error:     record.Error,
		})
	}
	return response, nil
}
