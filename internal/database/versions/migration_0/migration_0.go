package migration_0

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CheckRecord struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Timestamp time.Time `gorm:"index;not null"`
	Activated bool
	Source    string `gorm:"size:20;not null"`
	Offline   bool
	Error     string
}

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

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&CheckRecord{}, &ActivationRecord{}); err != nil {
		return fmt.Errorf("error creating audit tables: %w", err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&CheckRecord{}, &ActivationRecord{}); err != nil {
		return fmt.Errorf("error dropping audit tables: %w", err)
	}

	return nil
}
