package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/tgsift/internal/model"
)

// UpsertTopics replaces the stored attributes of a dialog's topics.
func (db *DB) UpsertTopics(ctx context.Context, accountID string, dialogID int64, topics []model.Topic) error {
	if len(topics) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, t := range topics {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO topics (account_id, dialog_id, id, title, unread_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(account_id, dialog_id, id) DO UPDATE SET
				title = excluded.title,
				unread_count = excluded.unread_count,
				updated_at = excluded.updated_at`,
			accountID, dialogID, t.ID, t.Title, t.UnreadCount, now); err != nil {
			return unavailable(fmt.Sprintf("upsert topic %d/%d", dialogID, t.ID), err)
		}
	}
	return unavailable("commit topics", tx.Commit())
}

// GetTopics returns the stored topics of a dialog ordered by id.
func (db *DB) GetTopics(ctx context.Context, accountID string, dialogID int64) ([]model.Topic, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, title, unread_count FROM topics
		WHERE account_id = ? AND dialog_id = ?
		ORDER BY id`, accountID, dialogID)
	if err != nil {
		return nil, unavailable("get topics", err)
	}
	defer func() { _ = rows.Close() }()

	topics := []model.Topic{}
	for rows.Next() {
		var t model.Topic
		if err := rows.Scan(&t.ID, &t.Title, &t.UnreadCount); err != nil {
			return nil, unavailable("scan topic", err)
		}
		topics = append(topics, t)
	}
	return topics, unavailable("iterate topics", rows.Err())
}

// SetCheckpoint stores a sync checkpoint value.
func (db *DB) SetCheckpoint(ctx context.Context, accountID, key, value string) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_state (account_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		accountID, key, value, now)
	return unavailable("set checkpoint", err)
}

// Checkpoint retrieves a sync checkpoint value.
func (db *DB) Checkpoint(ctx context.Context, accountID, key string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE account_id = ? AND key = ?`, accountID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get checkpoint", err)
	}
	return value, true, nil
}

// Stats returns the number of cached rows of an account.
func (db *DB) Stats(ctx context.Context, accountID string) (Stats, error) {
	var s Stats
	err := db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM dialogs WHERE account_id = ?),
			(SELECT COUNT(*) FROM messages WHERE account_id = ?),
			(SELECT COUNT(*) FROM topics WHERE account_id = ?)`,
		accountID, accountID, accountID).Scan(&s.Dialogs, &s.Messages, &s.Topics)
	return s, unavailable("stats", err)
}
