// Package report provides PostgreSQL-backed storage for abuse reports.
// Each report captures who reported whom, the room context, and the last
// few messages exchanged (for moderator review).
package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// validReasons is the set of allowed reason values, matching the CHECK
// constraint on the abuse_reports table. Anything else is stored as "other".
var validReasons = map[string]bool{
	"harassment": true,
	"spam":       true,
	"explicit":   true,
	"scam":       true,
	"other":      true,
}

// Store manages abuse reports in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Report represents a single abuse report to be persisted.
type Report struct {
	ReporterID string
	ReportedID string
	RoomID     string
	Reason     string
	Messages   []MessageEntry // last N messages from the room's history buffer
}

// MessageEntry is one message in the conversation snapshot attached to a report.
type MessageEntry struct {
	From string `json:"from"`
	Text string `json:"text"`
	Ts   int64  `json:"ts"`
}

// NewStore creates a new report store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts an abuse report into PostgreSQL. Messages are marshalled to
// JSONB; an unrecognized reason is normalized to "other" rather than
// rejected, since the reason comes from a free-form client payload.
func (s *Store) Create(ctx context.Context, report *Report) error {
	reason := report.Reason
	if !validReasons[reason] {
		reason = "other"
	}

	var messagesJSON []byte
	if len(report.Messages) > 0 {
		var err error
		messagesJSON, err = json.Marshal(report.Messages)
		if err != nil {
			return fmt.Errorf("report: marshal messages: %w", err)
		}
	}

	const query = `
		INSERT INTO abuse_reports (reporter_id, reported_id, room_id, reason, messages)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		report.ReporterID,
		report.ReportedID,
		report.RoomID,
		reason,
		messagesJSON,
	)
	if err != nil {
		return fmt.Errorf("report: insert: %w", err)
	}
	return nil
}

// CountRecent returns the number of reports filed against a user within the
// given time window. This backs the moderation dashboard's triage view; the
// live auto-ban path uses the Redis counters in the ban package.
func (s *Store) CountRecent(ctx context.Context, reportedID string, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM abuse_reports
		WHERE reported_id = $1
		  AND created_at >= NOW() - $2::interval`

	var count int
	err := s.db.QueryRowContext(ctx, query, reportedID, window.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("report: count recent: %w", err)
	}
	return count, nil
}
