package database

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"license-backend/internal/licensing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SaveCheckRecord appends an audit row. Audit failures are logged and
// swallowed so diagnostics never interfere with the check path.
func SaveCheckRecord(ctx context.Context, db *gorm.DB, status licensing.Status, checkErr error) {
	record := CheckRecord{
		Id:        uuid.New(),
		Timestamp: time.Now().UTC(),
		Activated: status.Activated,
		Source:    string(status.Source),
		Offline:   status.Offline,
	}
	if checkErr != nil {
		record.Error = checkErr.Error()
	}

	if err := db.WithContext(ctx).Create(&record).Error; err != nil {
		slog.Error("error saving license check record", "error", err)
	}
}

// UpsertActivationRecord replaces the stored payload with the latest one and
// returns the previous row, if any, so callers can detect transitions.
func UpsertActivationRecord(ctx context.Context, db *gorm.DB, status licensing.Status) (*ActivationRecord, error) {
	var previous ActivationRecord
	err := db.WithContext(ctx).First(&previous, "id = ?", 1).Error
	hadPrevious := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	record := ActivationRecord{Id: 1, Activated: status.Activated}
	if status.Data != nil {
		features, err := json.Marshal(status.Data.Features)
		if err != nil {
			return nil, err
		}
		record.Type = status.Data.Type
		record.Features = features
		record.ActivatedAt = status.Data.ActivatedAt
		record.ExpiresAt = status.Data.ExpiresAt
		record.Signature = status.Data.Signature
	}

	if err := db.WithContext(ctx).Save(&record).Error; err != nil {
		return nil, err
	}

	if !hadPrevious {
		return nil, nil
	}
	return &previous, nil
}

// RecentChecks returns the newest audit rows, most recent first.
func RecentChecks(ctx context.Context, db *gorm.DB, limit int) ([]CheckRecord, error) {
	var records []CheckRecord
	if err := db.WithContext(ctx).Order("timestamp DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
