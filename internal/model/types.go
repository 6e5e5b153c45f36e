package model

import "time"

// DialogKind classifies a dialog.
type DialogKind string

const (
	KindChannel DialogKind = "channel"
	KindGroup   DialogKind = "group"
	KindPrivate DialogKind = "private"
)

// Dialog is a chat, channel or private conversation owned by one account.
type Dialog struct {
	ID          int64
	AccountID   string
	Name        string
	Kind        DialogKind
	FolderID    *int
	UnreadCount int
	UpdatedAt   time.Time
}

// Message is a single chat message.
type Message struct {
	ID         int64
	DialogID   int64
	AccountID  string
	SenderID   *int64
	SenderName string
	Text       string
	Date       time.Time
	HasPhoto   bool
	HasVideo   bool
	// TopicID is the id of the topic's root message, nil when unknown.
	TopicID *int64
	// Replied is set when another message in the same fetched page replies to this one.
	Replied bool
}

// Topic is a forum thread inside a dialog. ID equals the id of its root message.
type Topic struct {
	ID          int64
	Title       string
	UnreadCount int
}

// GeneralTopicID is the id of the implicit thread every forum-capable dialog has.
const GeneralTopicID int64 = 1

// GeneralTopic is returned when a forum-capable dialog exposes no discoverable topics.
func GeneralTopic() Topic {
	return Topic{ID: GeneralTopicID, Title: "General"}
}

// MediaKind restricts messages by attached media.
type MediaKind string

const (
	MediaAny   MediaKind = "any"
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// ReplyStatus restricts messages by whether they received a reply.
type ReplyStatus string

const (
	ReplyAny        ReplyStatus = "any"
	ReplyReplied    ReplyStatus = "replied"
	ReplyNotReplied ReplyStatus = "not_replied"
)

// Sort keys understood by the filter package.
const (
	SortDate   = "date"
	SortSender = "sender"
	SortRecent = "recent"
	SortName   = "name"
	SortUnread = "unread"
)

// DefaultLimit is used when a FilterSpec carries no positive limit.
const DefaultLimit = 50

// FilterSpec describes one query against dialogs or messages. It is never persisted.
type FilterSpec struct {
	SearchText   string
	MediaKind    MediaKind
	TopicID      *int64
	Limit        int
	SortKey      string
	ForceRefresh bool
	Sender       string
	DateEquals   string
	ReplyStatus  ReplyStatus
}

// EffectiveLimit returns Limit, or DefaultLimit when Limit is not positive.
func (f FilterSpec) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultLimit
	}
	return f.Limit
}

// HasTopic reports whether the filter is scoped to one topic.
func (f FilterSpec) HasTopic() bool {
	return f.TopicID != nil
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}
