// Package sync reconciles the local cache with the remote source: dialog
// lists, per-dialog message pages (including topic-scoped ones) and searches
// across several dialogs.
package sync

import (
	"time"

	"github.com/matheus3301/tgsift/internal/bus"
	"github.com/matheus3301/tgsift/internal/model"
	"github.com/matheus3301/tgsift/internal/remote"
	"github.com/matheus3301/tgsift/internal/store"
	"github.com/matheus3301/tgsift/internal/topics"
	"go.uber.org/zap"
)

// Defaults applied by NewSession to zero Options fields.
const (
	DefaultDialogTTL  = 10 * time.Minute
	DefaultOversample = 5
)

// Options tune the sync components.
type Options struct {
	// DialogTTL is how long a dialog list refresh stays fresh. Negative disables expiry.
	DialogTTL time.Duration
	// DefaultLimit replaces non-positive FilterSpec limits.
	DefaultLimit int
	// Oversample multiplies the limit for topic-scoped scans.
	Oversample int
	// TopicScanDepth bounds the heuristic topic discovery scan.
	TopicScanDepth int
}

// Session holds the collaborators shared by every sync component of one
// running instance. Cache may be nil, in which case all reads go remote.
type Session struct {
	Cache   store.Cache
	Remote  remote.Source
	Bus     *bus.Bus
	Logger  *zap.Logger
	Options Options

	checkpoints *Reconciler
	resolver    *topics.Resolver
}

// NewSession builds a session. The caller owns cache and src and closes them.
func NewSession(cache store.Cache, src remote.Source, b *bus.Bus, logger *zap.Logger, opts Options) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DialogTTL == 0 {
		opts.DialogTTL = DefaultDialogTTL
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = model.DefaultLimit
	}
	if opts.Oversample <= 0 {
		opts.Oversample = DefaultOversample
	}
	if opts.TopicScanDepth <= 0 {
		opts.TopicScanDepth = topics.DefaultScanDepth
	}
	s := &Session{
		Cache:   cache,
		Remote:  src,
		Bus:     b,
		Logger:  logger,
		Options: opts,
	}
	s.checkpoints = NewReconciler(cache, logger)
	s.resolver = topics.NewResolver(src, opts.TopicScanDepth, logger.Named("topics"))
	return s
}

// Resolver returns the session's topic resolver.
func (s *Session) Resolver() *topics.Resolver {
	return s.resolver
}

func (s *Session) limit(f model.FilterSpec) int {
	if f.Limit > 0 {
		return f.Limit
	}
	return s.Options.DefaultLimit
}

func (s *Session) publish(kind string, payload any) {
	s.Bus.Publish(bus.NewEvent(kind, payload))
}
