package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CheckRecord is one authoritative license check (or failed attempt). Cache
// hits are not recorded; the audit trail tracks contact with the sources of
// truth only.
type CheckRecord struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Timestamp time.Time `gorm:"index;not null"`
	Activated bool
	Source    string `gorm:"size:20;not null"`
	Offline   bool
	Error     string
}

// ActivationRecord is the last license payload seen for this install. A
// single row, upserted on every successful authoritative check; used to
// detect activation transitions for event publishing.
type ActivationRecord struct {
	Id int `gorm:"primaryKey"`

	Type        string `gorm:"size:20;not null"`
	Features    datatypes.JSON
	Activated   bool
	ActivatedAt time.Time
	ExpiresAt   *time.Time
	Signature   string

	UpdatedAt time.Time
}
