package sync

import (
	"context"
	"fmt"

	"github.com/matheus3301/tgsift/internal/bus"
	"github.com/matheus3301/tgsift/internal/filter"
	"github.com/matheus3301/tgsift/internal/model"
	"github.com/matheus3301/tgsift/internal/remote"
	"github.com/matheus3301/tgsift/internal/topics"
	"go.uber.org/zap"
)

// MessagePage is one answer of Messages.List.
type MessagePage struct {
	Messages []model.Message
	// FromCache is set when no remote call contributed to Messages.
	FromCache bool
	// TopicIsolated is set when a topic filter was applied to Messages. It is
	// false when the topic could not be told apart and the recent page was
	// returned instead.
	TopicIsolated bool
	// Notes describe degradations a caller may want to show.
	Notes []string
}

// MessagesCached is the payload of bus.KindMessagesCached.
type MessagesCached struct {
	AccountID string
	DialogID  int64
	Count     int
}

// TopicAmbiguous is the payload of bus.KindTopicAmbiguous.
type TopicAmbiguous struct {
	AccountID string
	DialogID  int64
	TopicID   int64
	Scanned   int
}

// Messages serves per-dialog message pages.
type Messages struct {
	s      *Session
	logger *zap.Logger
}

// NewMessages creates the message component.
func NewMessages(s *Session) *Messages {
	return &Messages{s: s, logger: s.Logger.Named("messages")}
}

// List returns the messages of dialogID matching f. Cached messages are used
// when they match; an empty cached match always falls through to the remote
// source, since the cache may lack the window or topic assignment asked for.
// Remote results are written through before List returns.
func (m *Messages) List(ctx context.Context, accountID string, dialogID int64, f model.FilterSpec) (MessagePage, error) {
	limit := m.s.limit(f)

	// replied holds the ids the cache already knows were replied to, so that a
	// page lacking their replies does not report them unreplied.
	replied := make(map[int64]bool)
	if m.s.Cache != nil {
		rows, err := m.s.Cache.GetMessages(ctx, accountID, dialogID)
		if err != nil {
			m.logger.Warn("message cache read failed", zap.Int64("dialog_id", dialogID), zap.Error(err))
		}
		for _, r := range rows {
			if r.Replied {
				replied[r.ID] = true
			}
		}
		if err == nil && !f.ForceRefresh {
			if hits := filter.Messages(rows, f); len(hits) > 0 {
				hits = filter.Truncate(hits, limit)
				filter.SortMessages(hits, f.SortKey)
				return MessagePage{Messages: hits, FromCache: true, TopicIsolated: f.HasTopic()}, nil
			}
		}
	}

	var (
		page MessagePage
		err  error
	)
	if f.HasTopic() {
		page, err = m.topicPage(ctx, accountID, dialogID, *f.TopicID, limit, f, replied)
	} else {
		page, err = m.recentPage(ctx, accountID, dialogID, limit, f, replied)
	}
	if err != nil {
		if ctx.Err() != nil {
			return MessagePage{}, ctx.Err()
		}
		// Never an empty page here: that means "searched, no hits".
		return MessagePage{}, remoteFailure(fmt.Sprintf("list messages of dialog %d", dialogID), err)
	}
	filter.SortMessages(page.Messages, f.SortKey)
	return page, nil
}

// recentPage asks the service for the newest messages using its native search.
// A search page rarely holds the replies to its hits, so a reply-status filter
// on a search also scans the unsearched recent window for reply targets.
func (m *Messages) recentPage(ctx context.Context, accountID string, dialogID int64, limit int, f model.FilterSpec, replied map[int64]bool) (MessagePage, error) {
	raw, err := remote.Collect(m.s.Remote.Messages(ctx, dialogID, f.SearchText, limit))
	if err != nil {
		return MessagePage{}, err
	}
	if f.SearchText != "" && f.ReplyStatus != "" && f.ReplyStatus != model.ReplyAny {
		recent, err := remote.Collect(m.s.Remote.Messages(ctx, dialogID, "", limit*m.s.Options.Oversample))
		if err != nil {
			return MessagePage{}, err
		}
		markReplied(replied, recent)
	}
	b := m.newBatch(accountID, dialogID, raw, replied)

	out := make([]model.Message, 0, len(raw))
	for _, rm := range raw {
		msg := b.convert(ctx, rm)
		if a, ok := b.cls.Assign(rm); ok && a.Explicit {
			msg.TopicID = model.Int64(a.ThreadID)
		}
		if filter.MatchesIgnoringTopic(msg, f) {
			out = append(out, msg)
		}
	}
	out = filter.Truncate(out, limit)
	if err := m.writeThrough(ctx, accountID, dialogID, out); err != nil {
		return MessagePage{}, err
	}
	return MessagePage{Messages: out}, nil
}

// topicPage scans limit*Oversample recent messages, keeps the ones traced to
// topicID and truncates only after the whole scan is classified.
func (m *Messages) topicPage(ctx context.Context, accountID string, dialogID, topicID int64, limit int, f model.FilterSpec, replied map[int64]bool) (MessagePage, error) {
	scan := limit * m.s.Options.Oversample
	raw, err := remote.Collect(m.s.Remote.Messages(ctx, dialogID, "", scan))
	if err != nil {
		return MessagePage{}, err
	}
	b := m.newBatch(accountID, dialogID, raw, replied)

	var matched []remote.Message
	for _, rm := range raw {
		if b.cls.Belongs(rm, topicID) {
			matched = append(matched, rm)
		}
	}

	if len(matched) == 0 {
		m.logger.Info("topic not isolated, returning recent messages",
			zap.Int64("dialog_id", dialogID), zap.Int64("topic_id", topicID), zap.Int("scanned", len(raw)))
		m.s.publish(bus.KindTopicAmbiguous, TopicAmbiguous{
			AccountID: accountID, DialogID: dialogID, TopicID: topicID, Scanned: len(raw),
		})
		out := make([]model.Message, 0, limit)
		for _, rm := range raw {
			msg := b.convert(ctx, rm)
			if a, ok := b.cls.Assign(rm); ok && a.Explicit {
				msg.TopicID = model.Int64(a.ThreadID)
			}
			if filter.MatchesIgnoringTopic(msg, f) {
				out = append(out, msg)
			}
		}
		out = filter.Truncate(out, limit)
		if err := m.writeThrough(ctx, accountID, dialogID, out); err != nil {
			return MessagePage{}, err
		}
		note := fmt.Sprintf("%v: topic %d in the %d most recent messages; showing them unfiltered",
			model.ErrTopicAmbiguous, topicID, len(raw))
		return MessagePage{Messages: out, Notes: []string{note}}, nil
	}

	out := make([]model.Message, 0, len(matched))
	for _, rm := range matched {
		msg := b.convert(ctx, rm)
		msg.TopicID = model.Int64(topicID)
		if filter.MatchesMessage(msg, f) {
			out = append(out, msg)
		}
	}
	out = filter.Truncate(out, limit)
	if err := m.writeThrough(ctx, accountID, dialogID, out); err != nil {
		return MessagePage{}, err
	}
	return MessagePage{Messages: out, TopicIsolated: true}, nil
}

// writeThrough caches msgs. Cache failures are logged; cancellation is
// returned so that an abandoned call commits nothing.
func (m *Messages) writeThrough(ctx context.Context, accountID string, dialogID int64, msgs []model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.s.Cache == nil || len(msgs) == 0 {
		return nil
	}
	if err := m.s.Cache.UpsertMessages(ctx, accountID, dialogID, msgs); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Warn("message write-through failed",
			zap.Int64("dialog_id", dialogID), zap.Int("count", len(msgs)), zap.Error(err))
		return nil
	}
	m.s.publish(bus.KindMessagesCached, MessagesCached{AccountID: accountID, DialogID: dialogID, Count: len(msgs)})
	return nil
}

// batch carries the per-call state for converting one fetched page.
type batch struct {
	accountID string
	dialogID  int64
	cls       *topics.Classifier
	replied   map[int64]bool
	names     *senderNames
}

// newBatch prepares the conversion of raw. replied seeds the set of ids known
// to have replies; the replies found in raw are added to it.
func (m *Messages) newBatch(accountID string, dialogID int64, raw []remote.Message, replied map[int64]bool) *batch {
	if replied == nil {
		replied = make(map[int64]bool)
	}
	markReplied(replied, raw)
	return &batch{
		accountID: accountID,
		dialogID:  dialogID,
		cls:       topics.NewClassifier(raw),
		replied:   replied,
		names:     newSenderNames(m.s.Remote, m.logger),
	}
}

func (b *batch) convert(ctx context.Context, rm remote.Message) model.Message {
	msg := model.Message{
		ID:        rm.ID,
		DialogID:  b.dialogID,
		AccountID: b.accountID,
		SenderID:  rm.SenderID,
		Text:      rm.Text,
		Date:      rm.Date,
		HasPhoto:  rm.HasPhoto,
		HasVideo:  rm.HasVideo,
		Replied:   b.replied[rm.ID],
	}
	if rm.SenderID != nil {
		msg.SenderName = b.names.resolve(ctx, *rm.SenderID)
	}
	return msg
}

func markReplied(replied map[int64]bool, page []remote.Message) {
	for _, rm := range page {
		if to, ok := remote.RepliedTo(rm); ok {
			replied[to] = true
		}
	}
}

// senderNames memoizes sender lookups for one call, failures included. A
// throttled lookup falls back to the placeholder at once rather than waiting
// out the rate limit.
type senderNames struct {
	src    remote.Source
	logger *zap.Logger
	byID   map[int64]string
}

func newSenderNames(src remote.Source, logger *zap.Logger) *senderNames {
	return &senderNames{src: src, logger: logger, byID: make(map[int64]string)}
}

func (n *senderNames) resolve(ctx context.Context, id int64) string {
	if name, ok := n.byID[id]; ok {
		return name
	}
	name := PlaceholderSender(id)
	e, err := remote.TryResolveEntity(ctx, n.src, id)
	switch {
	case err != nil:
		n.logger.Debug("sender lookup failed",
			zap.Int64("sender_id", id), zap.Error(fmt.Errorf("%w: %w", model.ErrEntityResolution, err)))
	case e.DisplayName != "":
		name = e.DisplayName
	}
	n.byID[id] = name
	return name
}

// PlaceholderSender is the name shown for senders that could not be resolved.
func PlaceholderSender(id int64) string {
	return fmt.Sprintf("User %d", id)
}
