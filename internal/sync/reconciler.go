package sync

import (
	"context"
	"strconv"
	"time"

	"github.com/matheus3301/tgsift/internal/store"
	"go.uber.org/zap"
)

// Checkpoint keys.
const (
	CheckpointDialogs = "dialogs.refreshed_at"
)

// Reconciler records when parts of the cache were last refreshed from the
// remote source and answers staleness questions about them.
type Reconciler struct {
	cache  store.Cache
	logger *zap.Logger
	now    func() time.Time
}

// NewReconciler creates a reconciler over cache, which may be nil.
func NewReconciler(cache store.Cache, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{cache: cache, logger: logger, now: time.Now}
}

// MarkRefreshed stores the current time under key. Failures are logged only.
func (r *Reconciler) MarkRefreshed(ctx context.Context, accountID, key string) {
	if r.cache == nil {
		return
	}
	value := strconv.FormatInt(r.now().UnixMilli(), 10)
	if err := r.cache.SetCheckpoint(ctx, accountID, key, value); err != nil {
		r.logger.Warn("failed to store checkpoint", zap.String("key", key), zap.Error(err))
	}
}

// RefreshedAt returns the time stored under key.
func (r *Reconciler) RefreshedAt(ctx context.Context, accountID, key string) (time.Time, bool) {
	if r.cache == nil {
		return time.Time{}, false
	}
	value, ok, err := r.cache.Checkpoint(ctx, accountID, key)
	if err != nil {
		r.logger.Warn("failed to read checkpoint", zap.String("key", key), zap.Error(err))
		return time.Time{}, false
	}
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		r.logger.Warn("malformed checkpoint", zap.String("key", key), zap.String("value", value))
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// Fresh reports whether key was refreshed within ttl. A negative ttl never expires.
func (r *Reconciler) Fresh(ctx context.Context, accountID, key string, ttl time.Duration) bool {
	at, ok := r.RefreshedAt(ctx, accountID, key)
	if !ok {
		return false
	}
	return ttl < 0 || r.now().Sub(at) < ttl
}
