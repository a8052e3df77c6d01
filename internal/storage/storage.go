package storage

import (
	"context"
	"time"

	"github.com/sedaguven/davon-library-system/internal/models"
)

// Storage is the local journal of circulation commands issued by this client
type Storage interface {
	// RecordAction appends one executed command and its outcome
	RecordAction(ctx context.Context, event models.ActionEvent) error

	// LastActions returns the most recent events, newest first.
	// userID 0 returns events of every user.
	LastActions(ctx context.Context, userID int64, limit int) ([]models.ActionEvent, error)

	// ActionStats counts events recorded at or after since, grouped by action
	// and outcome, ordered by count descending
	ActionStats(ctx context.Context, since time.Time) ([]models.ActionStat, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
