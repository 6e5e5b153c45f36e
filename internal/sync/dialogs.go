package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/tgsift/internal/bus"
	"github.com/matheus3301/tgsift/internal/filter"
	"github.com/matheus3301/tgsift/internal/model"
	"github.com/matheus3301/tgsift/internal/remote"
	"go.uber.org/zap"
)

// Dialogs serves the dialog list, cache first.
type Dialogs struct {
	s      *Session
	logger *zap.Logger
}

// NewDialogs creates the dialog list component.
func NewDialogs(s *Session) *Dialogs {
	return &Dialogs{s: s, logger: s.Logger.Named("dialogs")}
}

// DialogsRefreshed is the payload of bus.KindDialogsRefreshed.
type DialogsRefreshed struct {
	AccountID string
	Count     int
}

// List returns up to f's limit dialogs, filtered and sorted. Cached rows are
// served when there are enough of them, the last refresh is fresh and f does
// not force a refresh. Otherwise a live page is fetched, written through and
// merged with the cached rows. An error is returned only when neither the
// cache nor the remote source produced anything.
func (d *Dialogs) List(ctx context.Context, accountID string, f model.FilterSpec) ([]model.Dialog, error) {
	limit := d.s.limit(f)

	cached, cacheErr := d.cached(ctx, accountID, limit)
	if cacheErr == nil && !f.ForceRefresh && len(cached) >= limit &&
		d.s.checkpoints.Fresh(ctx, accountID, CheckpointDialogs, d.s.Options.DialogTTL) {
		return d.finish(cached, f), nil
	}

	page, err := d.s.Remote.ListDialogs(ctx, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if len(cached) > 0 {
			d.logger.Warn("remote dialog listing failed, serving cache", zap.Error(err))
			return d.finish(cached, f), nil
		}
		return nil, remoteFailure("list dialogs", err)
	}

	now := time.Now()
	live := make([]model.Dialog, 0, len(page))
	for _, rd := range page {
		live = append(live, model.Dialog{
			ID:          rd.ID,
			AccountID:   accountID,
			Name:        rd.Name,
			Kind:        rd.Kind,
			FolderID:    rd.FolderID,
			UnreadCount: rd.UnreadCount,
			UpdatedAt:   now,
		})
	}
	d.writeThrough(ctx, accountID, live)

	return d.finish(MergeDialogs(live, cached, limit), f), nil
}

func (d *Dialogs) cached(ctx context.Context, accountID string, limit int) ([]model.Dialog, error) {
	if d.s.Cache == nil {
		return nil, model.ErrCacheUnavailable
	}
	rows, err := d.s.Cache.GetDialogs(ctx, accountID, limit)
	if err != nil {
		d.logger.Warn("dialog cache read failed", zap.Error(err))
		return nil, err
	}
	return rows, nil
}

func (d *Dialogs) writeThrough(ctx context.Context, accountID string, live []model.Dialog) {
	if d.s.Cache == nil {
		return
	}
	if err := d.s.Cache.UpsertDialogs(ctx, accountID, live); err != nil {
		d.logger.Warn("dialog write-through failed", zap.Int("count", len(live)), zap.Error(err))
		return
	}
	d.s.checkpoints.MarkRefreshed(ctx, accountID, CheckpointDialogs)
	d.s.publish(bus.KindDialogsRefreshed, DialogsRefreshed{AccountID: accountID, Count: len(live)})
}

func (d *Dialogs) finish(rows []model.Dialog, f model.FilterSpec) []model.Dialog {
	out := filter.Dialogs(rows, f)
	filter.SortDialogs(out, f.SortKey)
	return out
}

// MergeDialogs returns live followed by the cached rows live does not contain,
// in their original order, capped at limit. Ids are unique in the result and
// live values win.
func MergeDialogs(live, cached []model.Dialog, limit int) []model.Dialog {
	out := make([]model.Dialog, 0, min(limit, len(live)+len(cached)))
	seen := make(map[int64]struct{}, len(live)+len(cached))
	for _, group := range [][]model.Dialog{live, cached} {
		for _, dl := range group {
			if len(out) >= limit {
				return out
			}
			if _, dup := seen[dl.ID]; dup {
				continue
			}
			seen[dl.ID] = struct{}{}
			out = append(out, dl)
		}
	}
	return out
}

// remoteFailure types err for callers: rate limits, missing entities and
// cancellation pass through, everything else becomes model.ErrRemoteUnavailable.
func remoteFailure(op string, err error) error {
	if _, limited := model.RetryAfter(err); limited || errors.Is(err, remote.ErrNotFound) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, remote.Unavailable(err))
}
