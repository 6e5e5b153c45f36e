package remote

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/matheus3301/tgsift/internal/model"
	"go.uber.org/zap"
)

// DefaultMaxRetries bounds how often the governor reissues a throttled call.
const DefaultMaxRetries = 3

// Governor wraps a Source and enforces the service's rate-limit signals. A
// throttling reply blocks every call made through the governor until the
// signalled duration has elapsed, then the throttled call is reissued.
type Governor struct {
	src        Source
	maxRetries int
	logger     *zap.Logger

	mu           sync.Mutex
	blockedUntil time.Time

	now func() time.Time
}

// NewGovernor wraps src. maxRetries <= 0 uses DefaultMaxRetries.
func NewGovernor(src Source, maxRetries int, logger *zap.Logger) *Governor {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Governor{src: src, maxRetries: maxRetries, logger: logger, now: time.Now}
}

// BlockedUntil returns the deadline before which no call is issued.
func (g *Governor) BlockedUntil() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blockedUntil
}

func (g *Governor) block(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	until := g.now().Add(d)
	if until.After(g.blockedUntil) {
		g.blockedUntil = until
	}
}

func (g *Governor) wait(ctx context.Context) error {
	d := g.BlockedUntil().Sub(g.now())
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Governor) do(ctx context.Context, op string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		if err := g.wait(ctx); err != nil {
			return err
		}
		err := fn()
		d, limited := model.RetryAfter(err)
		if !limited {
			return err
		}
		g.block(d)
		if attempt >= g.maxRetries {
			return err
		}
		g.logger.Warn("remote throttled, waiting",
			zap.String("op", op), zap.Duration("retry_after", d), zap.Int("attempt", attempt+1))
	}
}

func (g *Governor) CurrentAccount(ctx context.Context) (string, error) {
	var out string
	err := g.do(ctx, "current_account", func() (err error) {
		out, err = g.src.CurrentAccount(ctx)
		return err
	})
	return out, err
}

func (g *Governor) ListDialogs(ctx context.Context, limit int) ([]Dialog, error) {
	var out []Dialog
	err := g.do(ctx, "list_dialogs", func() (err error) {
		out, err = g.src.ListDialogs(ctx, limit)
		return err
	})
	return out, err
}

func (g *Governor) ResolveEntity(ctx context.Context, id int64) (Entity, error) {
	var out Entity
	err := g.do(ctx, "resolve_entity", func() (err error) {
		out, err = g.src.ResolveEntity(ctx, id)
		return err
	})
	return out, err
}

// TryResolveEntity is ResolveEntity without the wait: while the governor is
// blocked it fails at once with the remaining duration, and a throttled call
// blocks the governor but is not reissued.
func (g *Governor) TryResolveEntity(ctx context.Context, id int64) (Entity, error) {
	if err := ctx.Err(); err != nil {
		return Entity{}, err
	}
	if d := g.BlockedUntil().Sub(g.now()); d > 0 {
		return Entity{}, RateLimited(d)
	}
	e, err := g.src.ResolveEntity(ctx, id)
	if d, limited := model.RetryAfter(err); limited {
		g.block(d)
	}
	return e, err
}

func (g *Governor) ListForumTopics(ctx context.Context, dialogID int64) ([]ForumTopic, error) {
	var out []ForumTopic
	err := g.do(ctx, "list_forum_topics", func() (err error) {
		out, err = g.src.ListForumTopics(ctx, dialogID)
		return err
	})
	return out, err
}

// Messages reissues the listing after a throttling signal and skips messages
// already yielded before the interruption.
func (g *Governor) Messages(ctx context.Context, dialogID int64, search string, limit int) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		seen := make(map[int64]struct{})
		for attempt := 0; ; attempt++ {
			if err := g.wait(ctx); err != nil {
				yield(Message{}, err)
				return
			}
			var (
				retry     bool
				throttled time.Duration
			)
			for m, err := range g.src.Messages(ctx, dialogID, search, limit) {
				if err != nil {
					d, limited := model.RetryAfter(err)
					if limited {
						g.block(d)
					}
					if !limited || attempt >= g.maxRetries {
						yield(Message{}, err)
						return
					}
					retry, throttled = true, d
					break
				}
				if _, dup := seen[m.ID]; dup {
					continue
				}
				seen[m.ID] = struct{}{}
				if !yield(m, nil) {
					return
				}
			}
			if !retry {
				return
			}
			g.logger.Warn("remote throttled mid-listing, waiting",
				zap.Int64("dialog_id", dialogID), zap.Duration("retry_after", throttled),
				zap.Int("yielded", len(seen)))
		}
	}
}
