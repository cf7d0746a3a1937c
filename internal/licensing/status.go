package licensing

import (
	"errors"
	"time"
)

var (
	ErrCheckUnavailable = errors.New("license check unavailable")
	ErrLicenseNotFound  = errors.New("license not found")
	ErrInvalidLicense   = errors.New("invalid license")
	ErrExpiredLicense   = errors.New("expired license")
)

// Source records where a status snapshot came from. Remote and local fallback
// are set by the checkers; session cache is set only by the cache layer, which
// is also the only layer allowed to mark a snapshot as offline.
type Source string

const (
	SourceRemote        Source = "remote"
	SourceLocalFallback Source = "local_fallback"
	SourceSessionCache  Source = "session_cache"
)

type LicenseData struct {
	Type        string     `json:"type"`
	Features    []string   `json:"features"`
	ActivatedAt time.Time  `json:"activated_at"`
	ExpiresAt   *time.Time `json:"expires_at"` // nil = never expires
	Signature   string     `json:"signature,omitempty"`
}

// Status is an immutable snapshot of the activation state. Success reports
// whether the check itself completed; Activated whether a license is active.
type Status struct {
	Success   bool         `json:"success"`
	Activated bool         `json:"activated"`
	Data      *LicenseData `json:"license,omitempty"`
	Message   string       `json:"message,omitempty"`
	Source    Source       `json:"source"`
	Offline   bool         `json:"offline"`
}

func (d *LicenseData) Expired(now time.Time) bool {
	return d != nil && d.ExpiresAt != nil && d.ExpiresAt.Before(now)
}
