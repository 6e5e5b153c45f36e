package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/matheus3301/tgsift/internal/model"
	"github.com/matheus3301/tgsift/internal/store/migrations"
)

// PG is the PostgreSQL cache backend, for caches shared by several machines.
type PG struct {
	pool *pgxpool.Pool
}

var _ Cache = (*PG)(nil)

// OpenPG creates a connection pool for url and verifies it with a ping.
func OpenPG(ctx context.Context, url string) (*PG, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolConfig.MaxConns = 8
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, unavailable("create pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("ping database", err)
	}
	return &PG{pool: pool}, nil
}

// Migrate runs all pending PostgreSQL migrations.
func (p *PG) Migrate() (*MigrateResult, error) {
	// db borrows its connections from the pool and is left to it.
	db := stdlib.OpenDBFromPool(p.pool)

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	return runMigrations(migrations.PostgresDir, "pgx5", driver)
}

// Close releases the pool.
func (p *PG) Close() error {
	p.pool.Close()
	return nil
}

func (p *PG) execBatch(ctx context.Context, op string, batch *pgx.Batch) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return unavailable("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return unavailable(fmt.Sprintf("%s #%d", op, i), err)
		}
	}
	if err := br.Close(); err != nil {
		return unavailable(op, err)
	}
	return unavailable("commit "+op, tx.Commit(ctx))
}

func (p *PG) UpsertDialogs(ctx context.Context, accountID string, dialogs []model.Dialog) error {
	if len(dialogs) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	batch := &pgx.Batch{}
	for i, d := range dialogs {
		data, err := encodeDialogData(d)
		if err != nil {
			return unavailable(fmt.Sprintf("encode dialog %d", d.ID), err)
		}
		batch.Queue(`
			INSERT INTO dialogs (account_id, id, name, kind, folder_id, position, data_json, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (account_id, id) DO UPDATE SET
				name = EXCLUDED.name,
				kind = EXCLUDED.kind,
				folder_id = EXCLUDED.folder_id,
				position = EXCLUDED.position,
				data_json = EXCLUDED.data_json,
				updated_at = EXCLUDED.updated_at`,
			accountID, d.ID, d.Name, string(d.Kind), nullInt(d.FolderID), i, data, now)
	}
	return p.execBatch(ctx, "upsert dialogs", batch)
}

func (p *PG) GetDialogs(ctx context.Context, accountID string, limit int) ([]model.Dialog, error) {
	if limit <= 0 {
		limit = model.DefaultLimit
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, kind, folder_id, data_json, updated_at
		FROM dialogs
		WHERE account_id = $1
		ORDER BY updated_at DESC, position ASC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, unavailable("get dialogs", err)
	}
	defer rows.Close()

	dialogs := []model.Dialog{}
	for rows.Next() {
		var (
			d       model.Dialog
			kind    string
			folder  *int32
			data    []byte
			updated int64
		)
		if err := rows.Scan(&d.ID, &d.Name, &kind, &folder, &data, &updated); err != nil {
			return nil, unavailable("scan dialog", err)
		}
		d.AccountID = accountID
		d.Kind = model.DialogKind(kind)
		if folder != nil {
			f := int(*folder)
			d.FolderID = &f
		}
		if err := decodeDialogData(data, &d); err != nil {
			return nil, unavailable(fmt.Sprintf("decode dialog %d", d.ID), err)
		}
		d.UpdatedAt = fromMillis(updated)
		dialogs = append(dialogs, d)
	}
	return dialogs, unavailable("iterate dialogs", rows.Err())
}

func (p *PG) UpsertMessages(ctx context.Context, accountID string, dialogID int64, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	batch := &pgx.Batch{}
	for _, m := range msgs {
		data, err := encodeMessageData(m)
		if err != nil {
			return unavailable(fmt.Sprintf("encode message %d", m.ID), err)
		}
		batch.Queue(`
			INSERT INTO messages (account_id, dialog_id, id, sender_id, sender_name, text, date, topic_id, replied, data_json, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (account_id, dialog_id, id) DO UPDATE SET
				sender_id = EXCLUDED.sender_id,
				sender_name = EXCLUDED.sender_name,
				text = EXCLUDED.text,
				date = EXCLUDED.date,
				topic_id = COALESCE(EXCLUDED.topic_id, messages.topic_id),
				replied = messages.replied OR EXCLUDED.replied,
				data_json = EXCLUDED.data_json,
				updated_at = EXCLUDED.updated_at`,
			accountID, dialogID, m.ID, m.SenderID, m.SenderName, m.Text,
			m.Date.UnixMilli(), m.TopicID, m.Replied, data, now)
	}
	return p.execBatch(ctx, "upsert messages", batch)
}

func (p *PG) GetMessages(ctx context.Context, accountID string, dialogID int64) ([]model.Message, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, sender_id, sender_name, text, date, topic_id, replied, data_json
		FROM messages
		WHERE account_id = $1 AND dialog_id = $2
		ORDER BY date DESC, id DESC`, accountID, dialogID)
	if err != nil {
		return nil, unavailable("get messages", err)
	}
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		var (
			m    model.Message
			date int64
			data []byte
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderName, &m.Text, &date, &m.TopicID, &m.Replied, &data); err != nil {
			return nil, unavailable("scan message", err)
		}
		m.AccountID = accountID
		m.DialogID = dialogID
		m.Date = fromMillis(date)
		if err := decodeMessageData(data, &m); err != nil {
			return nil, unavailable(fmt.Sprintf("decode message %d", m.ID), err)
		}
		msgs = append(msgs, m)
	}
	return msgs, unavailable("iterate messages", rows.Err())
}

func (p *PG) UpsertTopics(ctx context.Context, accountID string, dialogID int64, topics []model.Topic) error {
	if len(topics) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	batch := &pgx.Batch{}
	for _, t := range topics {
		batch.Queue(`
			INSERT INTO topics (account_id, dialog_id, id, title, unread_count, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (account_id, dialog_id, id) DO UPDATE SET
				title = EXCLUDED.title,
				unread_count = EXCLUDED.unread_count,
				updated_at = EXCLUDED.updated_at`,
			accountID, dialogID, t.ID, t.Title, t.UnreadCount, now)
	}
	return p.execBatch(ctx, "upsert topics", batch)
}

func (p *PG) GetTopics(ctx context.Context, accountID string, dialogID int64) ([]model.Topic, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, title, unread_count FROM topics
		WHERE account_id = $1 AND dialog_id = $2
		ORDER BY id`, accountID, dialogID)
	if err != nil {
		return nil, unavailable("get topics", err)
	}
	defer rows.Close()

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

func (p *PG) SetCheckpoint(ctx context.Context, accountID, key, value string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO sync_state (account_id, key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		accountID, key, value, time.Now().UnixMilli())
	return unavailable("set checkpoint", err)
}

func (p *PG) Checkpoint(ctx context.Context, accountID, key string) (string, bool, error) {
	var value string
	err := p.pool.QueryRow(ctx, `SELECT value FROM sync_state WHERE account_id = $1 AND key = $2`, accountID, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get checkpoint", err)
	}
	return value, true, nil
}

func (p *PG) Stats(ctx context.Context, accountID string) (Stats, error) {
	var s Stats
	err := p.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM dialogs WHERE account_id = $1),
			(SELECT COUNT(*) FROM messages WHERE account_id = $1),
			(SELECT COUNT(*) FROM topics WHERE account_id = $1)`, accountID).
		Scan(&s.Dialogs, &s.Messages, &s.Topics)
	return s, unavailable("stats", err)
}
