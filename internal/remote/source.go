// Package remote defines the boundary to the messaging service: the Source
// interface the sync layer consumes, the records it yields and the errors it
// may return. Wire transport, auth and sessions live behind implementations.
package remote

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/matheus3301/tgsift/internal/model"
)

var (
	// ErrUnsupported is returned by optional endpoints the service does not offer.
	ErrUnsupported = errors.New("remote: operation not supported")
	// ErrNotFound is returned when an entity or dialog does not exist.
	ErrNotFound = errors.New("remote: not found")
)

// Unavailable wraps err so that errors.Is(err, model.ErrRemoteUnavailable) holds.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, model.ErrRemoteUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrRemoteUnavailable, err)
}

// RateLimited returns the error a Source reports when the service demands a pause.
func RateLimited(d time.Duration) error {
	return &model.RateLimitedError{RetryAfter: d}
}

// Dialog is a dialog as listed by the service.
type Dialog struct {
	ID          int64
	Name        string
	Kind        model.DialogKind
	FolderID    *int
	UnreadCount int
}

// Message is a message as yielded by the service, with reply metadata already
// normalized into a ReplyMeta variant.
type Message struct {
	ID       int64
	Text     string
	Date     time.Time
	SenderID *int64
	HasPhoto bool
	HasVideo bool
	Reply    ReplyMeta
}

// Entity is a resolved user, group or channel.
type Entity struct {
	ID          int64
	DisplayName string
	Megagroup   bool
	Forum       bool
}

// ForumTopic is an entry of the service's forum-topics listing.
type ForumTopic struct {
	ID          int64
	Title       string
	UnreadCount int
}

// Source is paginated read access to one authenticated account.
type Source interface {
	// CurrentAccount returns the account scope key (user id or phone number).
	CurrentAccount(ctx context.Context) (string, error)
	// ListDialogs returns up to limit dialogs, most recently active first.
	ListDialogs(ctx context.Context, limit int) ([]Dialog, error)
	// Messages yields up to limit messages of a dialog, newest first. A non-empty
	// search is passed to the service's native search.
	Messages(ctx context.Context, dialogID int64, search string, limit int) iter.Seq2[Message, error]
	// ResolveEntity resolves a user, group or channel id.
	ResolveEntity(ctx context.Context, id int64) (Entity, error)
	// ListForumTopics returns the dialog's forum topics. May return ErrUnsupported.
	ListForumTopics(ctx context.Context, dialogID int64) ([]ForumTopic, error)
}

// Collect drains a message sequence into a slice, stopping at the first error.
func Collect(seq iter.Seq2[Message, error]) ([]Message, error) {
	var out []Message
	for m, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// TryResolveEntity resolves id through src without waiting out a rate limit
// when src supports that, as Governor does; other sources resolve normally.
func TryResolveEntity(ctx context.Context, src Source, id int64) (Entity, error) {
	if t, ok := src.(interface {
		TryResolveEntity(context.Context, int64) (Entity, error)
	}); ok {
		return t.TryResolveEntity(ctx, id)
	}
	return src.ResolveEntity(ctx, id)
}

// Offline returns a Source that fails every call with reason wrapped as
// model.ErrRemoteUnavailable. A daemon whose remote could not be opened runs
// on it so that clients get a typed error instead of no answer.
func Offline(reason error) Source {
	return offline{err: Unavailable(reason)}
}

type offline struct {
	err error
}

func (o offline) CurrentAccount(context.Context) (string, error) { return "", o.err }

func (o offline) ListDialogs(context.Context, int) ([]Dialog, error) { return nil, o.err }

func (o offline) Messages(context.Context, int64, string, int) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		yield(Message{}, o.err)
	}
}

func (o offline) ResolveEntity(context.Context, int64) (Entity, error) { return Entity{}, o.err }

func (o offline) ListForumTopics(context.Context, int64) ([]ForumTopic, error) { return nil, o.err }
