package sync

import (
	"context"

	"github.com/matheus3301/tgsift/internal/bus"
	"github.com/matheus3301/tgsift/internal/model"
	"go.uber.org/zap"
)

// TopicsResolved is the payload of bus.KindTopicsResolved.
type TopicsResolved struct {
	AccountID string
	DialogID  int64
	Count     int
}

// Topics resolves topic lists and keeps the last resolution in the cache.
type Topics struct {
	s      *Session
	logger *zap.Logger
}

// NewTopics creates the topic component.
func NewTopics(s *Session) *Topics {
	return &Topics{s: s, logger: s.Logger.Named("topics")}
}

// Supports reports whether dialogID is organised in topics.
func (t *Topics) Supports(ctx context.Context, dialogID int64) (bool, error) {
	return t.s.resolver.SupportsTopics(ctx, dialogID)
}

// List resolves the topics of dialogID and writes them through. When the
// resolution fails, the last cached list is served if there is one.
func (t *Topics) List(ctx context.Context, accountID string, dialogID int64) ([]model.Topic, error) {
	list, err := t.s.resolver.ListTopics(ctx, dialogID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if cached := t.cached(ctx, accountID, dialogID); len(cached) > 0 {
			t.logger.Warn("topic resolution failed, serving cache", zap.Int64("dialog_id", dialogID), zap.Error(err))
			return cached, nil
		}
		return nil, remoteFailure("list topics", err)
	}

	if t.s.Cache != nil && len(list) > 0 {
		if err := t.s.Cache.UpsertTopics(ctx, accountID, dialogID, list); err != nil {
			t.logger.Warn("topic write-through failed", zap.Int64("dialog_id", dialogID), zap.Error(err))
		}
	}
	t.s.publish(bus.KindTopicsResolved, TopicsResolved{AccountID: accountID, DialogID: dialogID, Count: len(list)})
	return list, nil
}

func (t *Topics) cached(ctx context.Context, accountID string, dialogID int64) []model.Topic {
	if t.s.Cache == nil {
		return nil
	}
	list, err := t.s.Cache.GetTopics(ctx, accountID, dialogID)
	if err != nil {
		t.logger.Warn("topic cache read failed", zap.Int64("dialog_id", dialogID), zap.Error(err))
		return nil
	}
	return list
}
