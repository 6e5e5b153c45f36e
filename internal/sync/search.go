package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/tgsift/internal/model"
	"go.uber.org/zap"
)

// Search runs one filter across several dialogs.
type Search struct {
	messages *Messages
	logger   *zap.Logger
}

// NewSearch creates a search over the session's message component.
func NewSearch(s *Session) *Search {
	return &Search{messages: NewMessages(s), logger: s.Logger.Named("search")}
}

// Run lists messages matching f in each dialog, one dialog at a time so that
// the remote rate limit is not multiplied. Every searched dialog has an entry,
// empty when nothing matched. A dialog whose listing failed has no entry and
// its error is joined into the returned error; cancellation stops the run.
func (s *Search) Run(ctx context.Context, accountID string, dialogIDs []int64, f model.FilterSpec) (map[int64][]model.Message, error) {
	results := make(map[int64][]model.Message, len(dialogIDs))
	var errs []error
	for _, id := range dialogIDs {
		if _, done := results[id]; done {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		page, err := s.messages.List(ctx, accountID, id, f)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			s.logger.Warn("dialog search failed", zap.Int64("dialog_id", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("dialog %d: %w", id, err))
			continue
		}
		msgs := page.Messages
		if msgs == nil {
			msgs = []model.Message{}
		}
		results[id] = msgs
	}
	return results, errors.Join(errs...)
}
