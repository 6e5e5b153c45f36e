// Package topics decides whether a dialog is organised in forum threads and
// reconstructs its topic list and per-message thread membership when the
// service under-reports them.
package topics

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/tgsift/internal/model"
	"github.com/matheus3301/tgsift/internal/remote"
	"go.uber.org/zap"
)

// DefaultScanDepth is how many recent messages the heuristic inspects.
const DefaultScanDepth = 100

// Resolver derives topic information from a remote.Source. Results are not
// cached; callers persist them through the cache if they want to.
type Resolver struct {
	src       remote.Source
	scanDepth int
	logger    *zap.Logger
}

// NewResolver creates a resolver. scanDepth <= 0 uses DefaultScanDepth.
func NewResolver(src remote.Source, scanDepth int, logger *zap.Logger) *Resolver {
	if scanDepth <= 0 {
		scanDepth = DefaultScanDepth
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{src: src, scanDepth: scanDepth, logger: logger}
}

// SupportsTopics reports whether dialogID is a megagroup that is flagged as a
// forum or whose recent messages carry thread markers. The marker scan covers
// dialogs converted to forums before the service updated the flag.
func (r *Resolver) SupportsTopics(ctx context.Context, dialogID int64) (bool, error) {
	return r.supports(ctx, dialogID, nil)
}

// supports uses page as the recent-message scan when non-nil.
func (r *Resolver) supports(ctx context.Context, dialogID int64, page []remote.Message) (bool, error) {
	e, err := r.src.ResolveEntity(ctx, dialogID)
	if err != nil {
		return false, fmt.Errorf("resolve dialog %d: %w: %w", dialogID, model.ErrEntityResolution, err)
	}
	if !e.Megagroup {
		return false, nil
	}
	if e.Forum {
		return true, nil
	}
	if page == nil {
		if page, err = r.scan(ctx, dialogID); err != nil {
			return false, err
		}
	}
	return HasMarkers(page), nil
}

// ListTopics returns the service's own topic listing when it has one, else the
// threads discovered in recent messages of a dialog that supports topics. A
// forum-capable dialog with neither gets the single General topic; a dialog
// that does not support topics always gets an empty list, stray thread
// markers notwithstanding.
func (r *Resolver) ListTopics(ctx context.Context, dialogID int64) ([]model.Topic, error) {
	listed, err := r.src.ListForumTopics(ctx, dialogID)
	switch {
	case err == nil && len(listed) > 0:
		topics := make([]model.Topic, 0, len(listed))
		for _, t := range listed {
			topics = append(topics, model.Topic{ID: t.ID, Title: t.Title, UnreadCount: t.UnreadCount})
		}
		return topics, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil && !errors.Is(err, remote.ErrUnsupported):
		r.logger.Debug("forum topics listing failed, scanning messages",
			zap.Int64("dialog_id", dialogID), zap.Error(err))
	}

	page, err := r.scan(ctx, dialogID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("topic scan failed", zap.Int64("dialog_id", dialogID), zap.Error(err))
		page = []remote.Message{}
	}
	ok, err := r.supports(ctx, dialogID, page)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []model.Topic{}, nil
	}
	if topics := NewClassifier(page).Threads(page); len(topics) > 0 {
		return topics, nil
	}
	return []model.Topic{model.GeneralTopic()}, nil
}

func (r *Resolver) scan(ctx context.Context, dialogID int64) ([]remote.Message, error) {
	page, err := remote.Collect(r.src.Messages(ctx, dialogID, "", r.scanDepth))
	if err != nil {
		return nil, fmt.Errorf("scan dialog %d: %w", dialogID, err)
	}
	if page == nil {
		page = []remote.Message{}
	}
	return page, nil
}

func placeholderTitle(id int64) string {
	return fmt.Sprintf("Thread #%d", id)
}
