package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/tgsift/internal/model"
)

// Filter is the wire form of model.FilterSpec.
type Filter struct {
	Search  string `json:"search,omitempty"`
	Media   string `json:"media,omitempty"`
	TopicID *int64 `json:"topic_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Sort    string `json:"sort,omitempty"`
	Refresh bool   `json:"refresh,omitempty"`
	Sender  string `json:"sender,omitempty"`
	Date    string `json:"date,omitempty"`
	Reply   string `json:"reply,omitempty"`
}

// Spec validates f and converts it to a FilterSpec.
func (f Filter) Spec() (model.FilterSpec, error) {
	switch model.MediaKind(f.Media) {
	case "", model.MediaAny, model.MediaPhoto, model.MediaVideo:
	default:
		return model.FilterSpec{}, fmt.Errorf("unknown media kind %q", f.Media)
	}
	switch model.ReplyStatus(f.Reply) {
	case "", model.ReplyAny, model.ReplyReplied, model.ReplyNotReplied:
	default:
		return model.FilterSpec{}, fmt.Errorf("unknown reply status %q", f.Reply)
	}
	if f.Limit < 0 {
		return model.FilterSpec{}, fmt.Errorf("negative limit %d", f.Limit)
	}
	return model.FilterSpec{
		SearchText:   f.Search,
		MediaKind:    model.MediaKind(f.Media),
		TopicID:      f.TopicID,
		Limit:        f.Limit,
		SortKey:      f.Sort,
		ForceRefresh: f.Refresh,
		Sender:       f.Sender,
		DateEquals:   f.Date,
		ReplyStatus:  model.ReplyStatus(f.Reply),
	}, nil
}

type Dialog struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	FolderID    *int   `json:"folder_id,omitempty"`
	UnreadCount int    `json:"unread_count"`
	UpdatedAtMs int64  `json:"updated_at_ms"`
}

type Message struct {
	ID         int64  `json:"id"`
	DialogID   int64  `json:"dialog_id"`
	SenderID   *int64 `json:"sender_id,omitempty"`
	SenderName string `json:"sender_name"`
	Text       string `json:"text"`
	DateMs     int64  `json:"date_ms"`
	HasPhoto   bool   `json:"has_photo,omitempty"`
	HasVideo   bool   `json:"has_video,omitempty"`
	TopicID    *int64 `json:"topic_id,omitempty"`
	Replied    bool   `json:"replied,omitempty"`
}

// Date returns the message timestamp in local time.
func (m Message) Date() time.Time {
	return time.UnixMilli(m.DateMs)
}

type Topic struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	UnreadCount int    `json:"unread_count,omitempty"`
}

func dialogToWire(d model.Dialog) Dialog {
	return Dialog{
		ID:          d.ID,
		Name:        d.Name,
		Kind:        string(d.Kind),
		FolderID:    d.FolderID,
		UnreadCount: d.UnreadCount,
		UpdatedAtMs: d.UpdatedAt.UnixMilli(),
	}
}

func messageToWire(m model.Message) Message {
	return Message{
		ID:         m.ID,
		DialogID:   m.DialogID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Text:       m.Text,
		DateMs:     m.Date.UnixMilli(),
		HasPhoto:   m.HasPhoto,
		HasVideo:   m.HasVideo,
		TopicID:    m.TopicID,
		Replied:    m.Replied,
	}
}

func messagesToWire(msgs []model.Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = messageToWire(m)
	}
	return out
}

type StatusRequest struct{}

type StatusResponse struct {
	Profile     string `json:"profile"`
	Account     string `json:"account,omitempty"`
	State       string `json:"state"`
	Reason      string `json:"reason,omitempty"`
	UptimeMs    int64  `json:"uptime_ms"`
	CacheDriver string `json:"cache_driver"`
	Dialogs     int64  `json:"dialogs"`
	Messages    int64  `json:"messages"`
	Topics      int64  `json:"topics"`
	// BlockedUntilMs is set while the remote source is rate limited.
	BlockedUntilMs int64 `json:"blocked_until_ms,omitempty"`
}

type ListDialogsRequest struct {
	Filter Filter `json:"filter"`
}

type ListDialogsResponse struct {
	Dialogs []Dialog `json:"dialogs"`
}

type ListMessagesRequest struct {
	DialogID int64  `json:"dialog_id"`
	Filter   Filter `json:"filter"`
}

type ListMessagesResponse struct {
	Messages      []Message `json:"messages"`
	FromCache     bool      `json:"from_cache,omitempty"`
	TopicIsolated bool      `json:"topic_isolated,omitempty"`
	Notes         []string  `json:"notes,omitempty"`
}

type SearchRequest struct {
	DialogIDs []int64 `json:"dialog_ids"`
	Filter    Filter  `json:"filter"`
}

// DialogResult holds the matches found in one searched dialog.
type DialogResult struct {
	DialogID int64     `json:"dialog_id"`
	Messages []Message `json:"messages"`
}

type SearchResponse struct {
	// Results follow the order of the requested dialog ids. Dialogs whose
	// listing failed are absent and described in Errors.
	Results []DialogResult `json:"results"`
	Errors  []string       `json:"errors,omitempty"`
}

type SupportsTopicsRequest struct {
	DialogID int64 `json:"dialog_id"`
}

type SupportsTopicsResponse struct {
	Supported bool `json:"supported"`
}

type ListTopicsRequest struct {
	DialogID int64 `json:"dialog_id"`
}

type ListTopicsResponse struct {
	Topics []Topic `json:"topics"`
}

type WatchEventsRequest struct {
	// Prefix restricts the stream to event kinds starting with it.
	Prefix string `json:"prefix,omitempty"`
}

type EventEnvelope struct {
	ID           string          `json:"id"`
	Profile      string          `json:"profile"`
	Kind         string          `json:"kind"`
	OccurredAtMs int64           `json:"occurred_at_ms"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}
