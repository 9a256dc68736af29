package repository

import (
	"time"

	"parkscan/internal/model"
)

// SessionRepository defines the interface for scan session journal operations.
type SessionRepository interface {
	// Create operations
	Insert(s *model.Session) error

	// Update operations
	Finish(id string, outcome model.Outcome, attempts int, endedAt time.Time) error
	SetDispatchStatus(id string, status model.DispatchStatus) error

	// Read operations
	GetByID(id string) (*model.Session, error)
	GetRecent(limit int) ([]model.Session, error)
	GetStats() (*model.SessionStats, error)

	// Delete operations
	DeleteBefore(t time.Time) (int64, error)
}
