package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/matheus3301/tgsift/internal/model"
)

// UpsertDialogs inserts or updates a batch of dialogs in a single transaction.
// The slice order is kept as the recency order of the batch.
func (db *DB) UpsertDialogs(ctx context.Context, accountID string, dialogs []model.Dialog) error {
	if len(dialogs) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for i, d := range dialogs {
		data, err := encodeDialogData(d)
		if err != nil {
			return unavailable(fmt.Sprintf("encode dialog %d", d.ID), err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dialogs (account_id, id, name, kind, folder_id, position, data_json, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(account_id, id) DO UPDATE SET
				name = excluded.name,
				kind = excluded.kind,
				folder_id = excluded.folder_id,
				position = excluded.position,
				data_json = excluded.data_json,
				updated_at = excluded.updated_at`,
			accountID, d.ID, d.Name, string(d.Kind), nullInt(d.FolderID), i, data, now); err != nil {
			return unavailable(fmt.Sprintf("upsert dialog %d", d.ID), err)
		}
	}
	return unavailable("commit dialogs", tx.Commit())
}

// GetDialogs returns the most recently updated dialogs of an account.
func (db *DB) GetDialogs(ctx context.Context, accountID string, limit int) ([]model.Dialog, error) {
	if limit <= 0 {
		limit = model.DefaultLimit
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, kind, folder_id, data_json, updated_at
		FROM dialogs
		WHERE account_id = ?
		ORDER BY updated_at DESC, position ASC
		LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, unavailable("get dialogs", err)
	}
	defer func() { _ = rows.Close() }()

	dialogs := []model.Dialog{}
	for rows.Next() {
		var (
			d       model.Dialog
			kind    string
			folder  sql.NullInt64
			data    []byte
			updated int64
		)
		if err := rows.Scan(&d.ID, &d.Name, &kind, &folder, &data, &updated); err != nil {
			return nil, unavailable("scan dialog", err)
		}
		d.AccountID = accountID
		d.Kind = model.DialogKind(kind)
		if folder.Valid {
			f := int(folder.Int64)
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

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
