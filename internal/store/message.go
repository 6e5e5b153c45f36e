package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/matheus3301/tgsift/internal/model"
)

// UpsertMessages inserts or updates a batch of messages of one dialog in a single
// transaction (idempotent on account_id + dialog_id + id). A known topic_id is
// never cleared by a message whose topic is unknown, and a message once seen
// replied to stays replied.
func (db *DB) UpsertMessages(ctx context.Context, accountID string, dialogID int64, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, m := range msgs {
		data, err := encodeMessageData(m)
		if err != nil {
			return unavailable(fmt.Sprintf("encode message %d", m.ID), err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (account_id, dialog_id, id, sender_id, sender_name, text, date, topic_id, replied, data_json, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(account_id, dialog_id, id) DO UPDATE SET
				sender_id = excluded.sender_id,
				sender_name = excluded.sender_name,
				text = excluded.text,
				date = excluded.date,
				topic_id = COALESCE(excluded.topic_id, messages.topic_id),
				replied = MAX(excluded.replied, messages.replied),
				data_json = excluded.data_json,
				updated_at = excluded.updated_at`,
			accountID, dialogID, m.ID, nullInt64(m.SenderID), m.SenderName, m.Text,
			m.Date.UnixMilli(), nullInt64(m.TopicID), m.Replied, data, now); err != nil {
			return unavailable(fmt.Sprintf("upsert message %d/%d", dialogID, m.ID), err)
		}
	}
	return unavailable("commit messages", tx.Commit())
}

// GetMessages returns every cached message of a dialog, newest first.
func (db *DB) GetMessages(ctx context.Context, accountID string, dialogID int64) ([]model.Message, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, sender_id, sender_name, text, date, topic_id, replied, data_json
		FROM messages
		WHERE account_id = ? AND dialog_id = ?
		ORDER BY date DESC, id DESC`, accountID, dialogID)
	if err != nil {
		return nil, unavailable("get messages", err)
	}
	defer func() { _ = rows.Close() }()

	msgs := []model.Message{}
	for rows.Next() {
		var (
			m      model.Message
			sender sql.NullInt64
			topic  sql.NullInt64
			date   int64
			data   []byte
		)
		if err := rows.Scan(&m.ID, &sender, &m.SenderName, &m.Text, &date, &topic, &m.Replied, &data); err != nil {
			return nil, unavailable("scan message", err)
		}
		m.AccountID = accountID
		m.DialogID = dialogID
		m.Date = fromMillis(date)
		if sender.Valid {
			m.SenderID = model.Int64(sender.Int64)
		}
		if topic.Valid {
			m.TopicID = model.Int64(topic.Int64)
		}
		if err := decodeMessageData(data, &m); err != nil {
			return nil, unavailable(fmt.Sprintf("decode message %d", m.ID), err)
		}
		msgs = append(msgs, m)
	}
	return msgs, unavailable("iterate messages", rows.Err())
}
