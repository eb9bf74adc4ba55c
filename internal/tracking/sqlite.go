// SPDX-License-Identifier: MIT

package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EventStore persists telemetry events and enforces retention. Implementations
// must tolerate being called with events of any variant.
type EventStore interface {
	Persist(ctx context.Context, ev Event) error
	Purge(ctx context.Context, policy RetentionPolicy) (int64, error)
}

// RetentionPolicy holds per-category retention windows.
type RetentionPolicy struct {
	Interactions  time.Duration
	SessionEvents time.Duration
	Navigations   time.Duration
	Metrics       time.Duration
}

// DefaultRetention mirrors the product retention windows.
func DefaultRetention() RetentionPolicy {
	return RetentionPolicy{
		Interactions:  90 * 24 * time.Hour,
		SessionEvents: 60 * 24 * time.Hour,
		Navigations:   30 * 24 * time.Hour,
		Metrics:       7 * 24 * time.Hour,
	}
}

// SQLiteStore writes telemetry rows into the shared SQLite database. The
// tables are independent of the registration schema and are created lazily.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore prepares the telemetry tables on the given handle.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tracking_interactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			phone_number TEXT NOT NULL,
			type TEXT NOT NULL,
			current_state TEXT NOT NULL,
			previous_state TEXT,
			input TEXT,
			response TEXT,
			processing_ms INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_interactions_created
			ON tracking_interactions(created_at)`,
		`CREATE TABLE IF NOT EXISTS tracking_session_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			phone_number TEXT NOT NULL,
			type TEXT NOT NULL,
			store_ms INTEGER NOT NULL DEFAULT 0,
			network_code TEXT,
			service_code TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_session_events_created
			ON tracking_session_events(created_at)`,
		`CREATE TABLE IF NOT EXISTS tracking_navigations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			phone_number TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			type TEXT NOT NULL,
			input TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_navigations_created
			ON tracking_navigations(created_at)`,
		`CREATE TABLE IF NOT EXISTS tracking_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			phone_number TEXT,
			name TEXT NOT NULL,
			value REAL NOT NULL,
			context TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_metrics_created
			ON tracking_metrics(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("tracking: migrate: %w", err)
		}
	}
	return nil
}

// Persist writes one event. Unknown variants are dropped without error; the
// queue must never jam on a type the store does not understand.
func (s *SQLiteStore) Persist(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case Interaction:
		_, err := s.db.ExecContext(ctx, `INSERT INTO tracking_interactions
			(session_id, phone_number, type, current_state, previous_state, input, response, processing_ms, error_message, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.SessionID, e.PhoneNumber, string(e.Type), e.CurrentState, e.PreviousState,
			e.Input, e.Response, e.ProcessingMs, e.ErrorMessage, e.At)
		return err
	case SessionEvent:
		_, err := s.db.ExecContext(ctx, `INSERT INTO tracking_session_events
			(session_id, phone_number, type, store_ms, network_code, service_code, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.SessionID, e.PhoneNumber, string(e.Type), e.StoreMs, e.NetworkCode, e.ServiceCode, e.At)
		return err
	case Navigation:
		_, err := s.db.ExecContext(ctx, `INSERT INTO tracking_navigations
			(session_id, phone_number, from_state, to_state, type, input, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.SessionID, e.PhoneNumber, e.FromState, e.ToState, string(e.Type), e.Input, e.At)
		return err
	case Metric:
		_, err := s.db.ExecContext(ctx, `INSERT INTO tracking_metrics
			(session_id, phone_number, name, value, context, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			e.SessionID, e.PhoneNumber, e.Name, e.Value, e.Context, e.At)
		return err
	default:
		return nil
	}
}

// Purge deletes rows older than each category's retention window and reports
// the total number of rows removed.
func (s *SQLiteStore) Purge(ctx context.Context, policy RetentionPolicy) (int64, error) {
	now := time.Now().UTC()
	var total int64
	for _, p := range []struct {
		table  string
		window time.Duration
	}{
		{"tracking_interactions", policy.Interactions},
		{"tracking_session_events", policy.SessionEvents},
		{"tracking_navigations", policy.Navigations},
		{"tracking_metrics", policy.Metrics},
	} {
		if p.window <= 0 {
			continue
		}
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE created_at < ?", p.table), now.Add(-p.window))
		if err != nil {
			return total, fmt.Errorf("tracking: purge %s: %w", p.table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}
