package stubs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sedaguven/davon-library-system/internal/models"
)

// MockDB is an in-memory implementation of the Storage interface for testing
type MockDB struct {
	mu     sync.RWMutex
	events []models.ActionEvent
}

// NewMockDB creates a new mock journal
func NewMockDB() *MockDB {
	return &MockDB{
		events: make([]models.ActionEvent, 0),
	}
}

// Initialize does nothing for mock DB
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// RecordAction appends an event
func (m *MockDB) RecordAction(ctx context.Context, event models.ActionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	m.events = append(m.events, event)
	return nil
}

// LastActions returns the last N events, newest first
func (m *MockDB) LastActions(ctx context.Context, userID int64, limit int) ([]models.ActionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]models.ActionEvent, 0, len(m.events))
	for _, e := range m.events {
		if userID != 0 && e.UserID != userID {
			continue
		}
		events = append(events, e)
	}

	// Sort events by time descending
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].At.After(events[j].At)
	})

	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return events, nil
}

// ActionStats counts events since the given time by action and outcome
func (m *MockDB) ActionStats(ctx context.Context, since time.Time) ([]models.ActionStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type key struct{ action, outcome string }
	counts := make(map[key]int)
	for _, e := range m.events {
		if e.At.Before(since) {
			continue
		}
		counts[key{e.Action, e.Outcome}]++
	}

	stats := make([]models.ActionStat, 0, len(counts))
	for k, n := range counts {
		stats = append(stats, models.ActionStat{Action: k.action, Outcome: k.outcome, Count: n})
	}

	// Sort by count descending, then by action and outcome
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		if stats[i].Action != stats[j].Action {
			return stats[i].Action < stats[j].Action
		}
		return stats[i].Outcome < stats[j].Outcome
	})
	return stats, nil
}

// Close does nothing for mock DB
func (m *MockDB) Close() error {
	return nil
}
