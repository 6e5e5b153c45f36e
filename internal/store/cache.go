package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/tgsift/internal/model"
)

// Cache is the persistent, account-scoped store of dialogs, messages and topics.
// Batch upserts are atomic: a failure leaves no part of the batch applied.
// Every error it returns wraps model.ErrCacheUnavailable.
type Cache interface {
	UpsertDialogs(ctx context.Context, accountID string, dialogs []model.Dialog) error
	// GetDialogs returns at most limit dialogs, most recently updated first.
	GetDialogs(ctx context.Context, accountID string, limit int) ([]model.Dialog, error)
	UpsertMessages(ctx context.Context, accountID string, dialogID int64, msgs []model.Message) error
	// GetMessages returns every cached message of a dialog, newest first.
	GetMessages(ctx context.Context, accountID string, dialogID int64) ([]model.Message, error)
	UpsertTopics(ctx context.Context, accountID string, dialogID int64, topics []model.Topic) error
	GetTopics(ctx context.Context, accountID string, dialogID int64) ([]model.Topic, error)
	SetCheckpoint(ctx context.Context, accountID, key, value string) error
	// Checkpoint returns the stored value and whether one exists.
	Checkpoint(ctx context.Context, accountID, key string) (string, bool, error)
	Stats(ctx context.Context, accountID string) (Stats, error)
	Close() error
}

// Stats holds cached row counts for one account.
type Stats struct {
	Dialogs  int64
	Messages int64
	Topics   int64
}

func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, model.ErrCacheUnavailable, err)
}

// dialogData and messageData hold the attributes kept in the data_json column.
// Attributes that upserts merge rather than overwrite get their own column.
type dialogData struct {
	UnreadCount int `json:"unread_count"`
}

type messageData struct {
	HasPhoto bool `json:"has_photo,omitempty"`
	HasVideo bool `json:"has_video,omitempty"`
}

func encodeDialogData(d model.Dialog) (string, error) {
	b, err := json.Marshal(dialogData{UnreadCount: d.UnreadCount})
	return string(b), err
}

func encodeMessageData(m model.Message) (string, error) {
	b, err := json.Marshal(messageData{HasPhoto: m.HasPhoto, HasVideo: m.HasVideo})
	return string(b), err
}

func decodeDialogData(raw []byte, d *model.Dialog) error {
	if len(raw) == 0 {
		return nil
	}
	var data dialogData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	d.UnreadCount = data.UnreadCount
	return nil
}

func decodeMessageData(raw []byte, m *model.Message) error {
	if len(raw) == 0 {
		return nil
	}
	var data messageData
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	m.HasPhoto, m.HasVideo = data.HasPhoto, data.HasVideo
	return nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
