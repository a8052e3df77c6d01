package ch

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/sedaguven/davon-library-system/internal/models"
)

type ClickHouseDB struct {
	conn clickhouse.Conn
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool) (*ClickHouseDB, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
		DialTimeout: 10 * time.Second,
	}

	if useTLS {
		options.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Initialize is a no-op, the journal table is managed via migrations
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	return nil
}

// RecordAction appends one command event to the journal
func (db *ClickHouseDB) RecordAction(ctx context.Context, event models.ActionEvent) error {
	at := event.At
	if at.IsZero() {
		at = time.Now()
	}
	err := db.conn.Exec(ctx,
		`INSERT INTO action_journal (at, user_id, book_id, action, outcome, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		at.UTC(), event.UserID, event.BookID, event.Action, event.Outcome, event.Detail)
	if err != nil {
		return fmt.Errorf("failed to record action: %w", err)
	}
	return nil
}

// LastActions returns the last N events, newest first
func (db *ClickHouseDB) LastActions(ctx context.Context, userID int64, limit int) ([]models.ActionEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT at, user_id, book_id, action, outcome, detail FROM action_journal`
	args := []any{}
	if userID != 0 {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get last actions: %w", err)
	}
	defer rows.Close()

	var events []models.ActionEvent
	for rows.Next() {
		var e models.ActionEvent
		if err := rows.Scan(&e.At, &e.UserID, &e.BookID, &e.Action, &e.Outcome, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate actions: %w", err)
	}
	return events, nil
}

// ActionStats counts events since the given time grouped by action and outcome
func (db *ClickHouseDB) ActionStats(ctx context.Context, since time.Time) ([]models.ActionStat, error) {
	rows, err := db.conn.Query(ctx, `
		SELECT action, outcome, count() AS n
		FROM action_journal
		WHERE at >= ?
		GROUP BY action, outcome
		ORDER BY n DESC, action, outcome`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get action stats: %w", err)
	}
	defer rows.Close()

	var stats []models.ActionStat
	for rows.Next() {
		var (
			stat  models.ActionStat
			count uint64
		)
		if err := rows.Scan(&stat.Action, &stat.Outcome, &count); err != nil {
			return nil, fmt.Errorf("failed to scan action stat: %w", err)
		}
		stat.Count = int(count)
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate action stats: %w", err)
	}
	return stats, nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
