// Package messages reads candidate messages from an Apple Messages
// database (chat.db) and recovers their text bodies.
package messages

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/obeidat/ledgerline/internal/common"
	"github.com/obeidat/ledgerline/internal/model"
)

// Apple Messages stores dates as nanoseconds since 2001-01-01 UTC.
const appleEpochOffset = 978307200

// Store is a read-only view over a chat.db file. It never writes: the
// database belongs to Messages.app and may be open concurrently.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore opens the message database read-only.
func OpenStore(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrMessageStoreUnavailable, path)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open message store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", common.ErrMessageStoreUnavailable, err)
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Messages returns all messages from the given senders received at or
// after since, newest first. Sender matching is case-insensitive.
func (s *Store) Messages(ctx context.Context, senders []string, since time.Time) ([]model.RawMessage, error) {
	if len(senders) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(senders))
	args := make([]any, 0, len(senders)+1)
	for i, sender := range senders {
		placeholders[i] = "?"
		args = append(args, strings.ToLower(sender))
	}
	args = append(args, since.Unix())

	query := fmt.Sprintf(`
		SELECT
			m.ROWID,
			m.date/1000000000 + %d AS sent_at,
			h.id AS sender,
			COALESCE(m.text, '') AS text,
			COALESCE(m.attributedBody, X'') AS attributed_body
		FROM message m
		JOIN handle h ON m.handle_id = h.ROWID
		WHERE LOWER(h.id) IN (%s)
		  AND (m.text IS NOT NULL OR m.attributedBody IS NOT NULL)
		  AND m.date/1000000000 + %d >= ?
		ORDER BY m.date DESC`,
		appleEpochOffset, strings.Join(placeholders, ","), appleEpochOffset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.RawMessage
	for rows.Next() {
		var (
			msg    model.RawMessage
			sentAt int64
		)
		if err := rows.Scan(&msg.RowID, &sentAt, &msg.Sender, &msg.Text, &msg.AttributedBody); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.SentAt = time.Unix(sentAt, 0).UTC()
		msgs = append(msgs, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return msgs, nil
}
