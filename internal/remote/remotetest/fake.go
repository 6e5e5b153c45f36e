// Package remotetest provides an in-memory remote.Source for tests.
package remotetest

import (
	"context"
	"iter"
	"strings"
	"sync"

	"github.com/matheus3301/tgsift/internal/remote"
)

// Fake is an in-memory remote.Source. Messages are stored newest first.
type Fake struct {
	mu sync.Mutex

	Account   string
	Dialogs   []remote.Dialog
	Msgs      map[int64][]remote.Message
	Entities  map[int64]remote.Entity
	Topics    map[int64][]remote.ForumTopic
	TopicsErr error
	// Err, when set, fails every call.
	Err error
	// EntityErrs fails ResolveEntity for individual ids.
	EntityErrs map[int64]error

	calls   map[string]int
	scanned map[int64]int
}

// New returns an empty fake for account.
func New(account string) *Fake {
	return &Fake{
		Account:    account,
		Msgs:       make(map[int64][]remote.Message),
		Entities:   make(map[int64]remote.Entity),
		Topics:     make(map[int64][]remote.ForumTopic),
		EntityErrs: make(map[int64]error),
		calls:      make(map[string]int),
		scanned:    make(map[int64]int),
	}
}

// Calls returns how often op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Scanned returns how many messages of dialogID were yielded in total.
func (f *Fake) Scanned(dialogID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scanned[dialogID]
}

func (f *Fake) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.Err
}

func (f *Fake) CurrentAccount(_ context.Context) (string, error) {
	if err := f.record("current_account"); err != nil {
		return "", err
	}
	return f.Account, nil
}

func (f *Fake) ListDialogs(_ context.Context, limit int) ([]remote.Dialog, error) {
	if err := f.record("list_dialogs"); err != nil {
		return nil, err
	}
	out := f.Dialogs
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]remote.Dialog(nil), out...), nil
}

func (f *Fake) Messages(ctx context.Context, dialogID int64, search string, limit int) iter.Seq2[remote.Message, error] {
	return func(yield func(remote.Message, error) bool) {
		if err := f.record("messages"); err != nil {
			yield(remote.Message{}, err)
			return
		}
		n := 0
		for _, m := range f.Msgs[dialogID] {
			if limit > 0 && n >= limit {
				return
			}
			if err := ctx.Err(); err != nil {
				yield(remote.Message{}, err)
				return
			}
			if search != "" && !strings.Contains(strings.ToLower(m.Text), strings.ToLower(search)) {
				continue
			}
			n++
			f.mu.Lock()
			f.scanned[dialogID]++
			f.mu.Unlock()
			if !yield(m, nil) {
				return
			}
		}
	}
}

func (f *Fake) ResolveEntity(_ context.Context, id int64) (remote.Entity, error) {
	if err := f.record("resolve_entity"); err != nil {
		return remote.Entity{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.EntityErrs[id]; err != nil {
		return remote.Entity{}, err
	}
	e, ok := f.Entities[id]
	if !ok {
		return remote.Entity{}, remote.ErrNotFound
	}
	return e, nil
}

func (f *Fake) ListForumTopics(_ context.Context, dialogID int64) ([]remote.ForumTopic, error) {
	if err := f.record("list_forum_topics"); err != nil {
		return nil, err
	}
	if f.TopicsErr != nil {
		return nil, f.TopicsErr
	}
	return f.Topics[dialogID], nil
}
