package ch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clickhouseTC "github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"github.com/sedaguven/davon-library-system/internal/models"
	"github.com/sedaguven/davon-library-system/internal/storage"
)

var _ storage.Storage = (*ClickHouseDB)(nil)

// createSchema creates the journal table directly (goose doesn't work well with ClickHouse in tests)
func createSchema(ctx context.Context, db *ClickHouseDB) error {
	_ = db.conn.Exec(ctx, "DROP TABLE IF EXISTS action_journal")

	return db.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS action_journal (
			at DateTime64(3, 'UTC'),
			user_id Int64,
			book_id Int64,
			action LowCardinality(String),
			outcome LowCardinality(String),
			detail String
		) ENGINE = MergeTree()
		ORDER BY (user_id, at)
	`)
}

// setupTestDB creates a test ClickHouse instance using testcontainers
func setupTestDB(t *testing.T) (*ClickHouseDB, func()) {
	if testing.Short() {
		t.Skip("skipping ClickHouse integration test in short mode")
	}
	ctx := context.Background()

	clickhouseContainer, err := clickhouseTC.Run(ctx,
		"clickhouse/clickhouse-server:24.3.3.102-alpine",
		clickhouseTC.WithUsername("default"),
		clickhouseTC.WithPassword(""),
		clickhouseTC.WithDatabase("default"),
	)
	require.NoError(t, err, "Failed to start ClickHouse container")

	host, err := clickhouseContainer.Host(ctx)
	require.NoError(t, err)

	port, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)

	db, err := NewClickHouseDB(host, port.Int(), "default", "default", "", false)
	require.NoError(t, err, "Failed to connect to ClickHouse")

	require.NoError(t, createSchema(ctx, db), "Failed to create schema")

	cleanup := func() {
		db.Close()
		clickhouseContainer.Terminate(ctx)
	}

	return db, cleanup
}

func TestClickHouseDB_RecordAction(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Millisecond)

	err := db.RecordAction(ctx, models.ActionEvent{
		At:      at,
		UserID:  7,
		BookID:  2,
		Action:  "reserve",
		Outcome: "duplicate_reservation",
		Detail:  "POST /library/reserve: http 409",
	})
	require.NoError(t, err)

	events, err := db.LastActions(ctx, 7, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(2), events[0].BookID)
	assert.Equal(t, "duplicate_reservation", events[0].Outcome)
	assert.Equal(t, "POST /library/reserve: http 409", events[0].Detail)
	assert.WithinDuration(t, at, events[0].At, time.Millisecond)
}

func TestClickHouseDB_LastActions(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := db.RecordAction(ctx, models.ActionEvent{
			At:      base.Add(time.Duration(i) * time.Hour),
			UserID:  int64(1 + i%2),
			BookID:  int64(i),
			Action:  "borrow",
			Outcome: "borrow_succeeded",
		})
		require.NoError(t, err)
	}

	events, err := db.LastActions(ctx, 0, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(4), events[0].BookID)
	for i := 0; i < len(events)-1; i++ {
		assert.False(t, events[i].At.Before(events[i+1].At))
	}

	events, err = db.LastActions(ctx, 2, 10)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestClickHouseDB_ActionStats(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()

	record := func(at time.Time, action, outcome string) {
		require.NoError(t, db.RecordAction(ctx, models.ActionEvent{At: at, UserID: 1, Action: action, Outcome: outcome}))
	}
	record(now, "borrow", "borrow_succeeded")
	record(now, "borrow", "borrow_succeeded")
	record(now, "reserve", "reserve_succeeded")
	record(now.Add(-72*time.Hour), "borrow", "borrow_failed")

	stats, err := db.ActionStats(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, models.ActionStat{Action: "borrow", Outcome: "borrow_succeeded", Count: 2}, stats[0])
	assert.Equal(t, models.ActionStat{Action: "reserve", Outcome: "reserve_succeeded", Count: 1}, stats[1])
}
