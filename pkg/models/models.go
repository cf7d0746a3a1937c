package models

import (
	"time"

	"github.com/google/uuid"
)

type StatusQuery struct {
	Force bool `schema:"force"`
}

type HistoryQuery struct {
	Limit int `schema:"limit"`
}

type StartupResponse struct {
	IsStartup bool `json:"is_startup"`
}

type CheckHistoryEntry struct {
	Id        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Activated bool      `json:"activated"`
	Source    string    `json:"source"`
	Offline   bool      `json:"offline"`
	Error     string    `json:"error,omitempty"`
}

type HistoryResponse struct {
	Checks []CheckHistoryEntry `json:"checks"`
}
