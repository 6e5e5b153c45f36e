package remote_test

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/matheus3301/tgsift/internal/model"
	"github.com/matheus3301/tgsift/internal/remote"
	"github.com/matheus3301/tgsift/internal/remote/remotetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// throttling fails the first n calls of every operation with a rate-limit signal.
type throttling struct {
	*remotetest.Fake
	wait      time.Duration
	remaining int
	// failAfter makes Messages throttle after yielding that many items.
	failAfter int
}

func (t *throttling) ListDialogs(ctx context.Context, limit int) ([]remote.Dialog, error) {
	if t.remaining > 0 {
		t.remaining--
		return nil, remote.RateLimited(t.wait)
	}
	return t.Fake.ListDialogs(ctx, limit)
}

func (t *throttling) Messages(ctx context.Context, dialogID int64, search string, limit int) iter.Seq2[remote.Message, error] {
	inner := t.Fake.Messages(ctx, dialogID, search, limit)
	return func(yield func(remote.Message, error) bool) {
		n := 0
		for m, err := range inner {
			if err == nil && t.remaining > 0 && n == t.failAfter {
				t.remaining--
				yield(remote.Message{}, remote.RateLimited(t.wait))
				return
			}
			n++
			if !yield(m, err) {
				return
			}
		}
	}
}

func (t *throttling) ResolveEntity(ctx context.Context, id int64) (remote.Entity, error) {
	if t.remaining > 0 {
		t.remaining--
		return remote.Entity{}, remote.RateLimited(t.wait)
	}
	return t.Fake.ResolveEntity(ctx, id)
}

func TestGovernorWaitsSignalledDuration(t *testing.T) {
	fake := remotetest.New("acc")
	fake.Dialogs = []remote.Dialog{{ID: 1, Name: "A"}}
	src := &throttling{Fake: fake, wait: 50 * time.Millisecond, remaining: 1}
	g := remote.NewGovernor(src, 3, nil)

	start := time.Now()
	dialogs, err := g.ListDialogs(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, dialogs, 1)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestGovernorGivesUpAfterMaxRetries(t *testing.T) {
	fake := remotetest.New("acc")
	src := &throttling{Fake: fake, wait: time.Millisecond, remaining: 10}
	g := remote.NewGovernor(src, 2, nil)

	_, err := g.ListDialogs(context.Background(), 10)
	d, ok := model.RetryAfter(err)
	require.True(t, ok, "expected rate-limit error, got %v", err)
	assert.Equal(t, time.Millisecond, d)
	assert.Equal(t, 7, src.remaining)
}

func TestGovernorHonoursCancellation(t *testing.T) {
	fake := remotetest.New("acc")
	src := &throttling{Fake: fake, wait: time.Hour, remaining: 1}
	g := remote.NewGovernor(src, 3, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := g.ListDialogs(ctx, 10)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "err = %v", err)
}

func TestGovernorResumesMessagesWithoutDuplicates(t *testing.T) {
	fake := remotetest.New("acc")
	for id := int64(5); id >= 1; id-- {
		fake.Msgs[9] = append(fake.Msgs[9], remote.Message{ID: id, Reply: remote.NoReply{}})
	}
	src := &throttling{Fake: fake, wait: 5 * time.Millisecond, remaining: 1, failAfter: 2}
	g := remote.NewGovernor(src, 3, nil)

	msgs, err := remote.Collect(g.Messages(context.Background(), 9, "", 0))
	require.NoError(t, err)

	var ids []int64
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, ids)
	assert.False(t, g.BlockedUntil().IsZero())
}

func TestUnavailableWrapsSentinel(t *testing.T) {
	err := remote.Unavailable(errors.New("dial tcp: refused"))
	assert.ErrorIs(t, err, model.ErrRemoteUnavailable)
	assert.Nil(t, remote.Unavailable(nil))
}

func TestOfflineFailsEveryCall(t *testing.T) {
	src := remote.Offline(errors.New("export missing"))
	ctx := context.Background()

	_, err := src.CurrentAccount(ctx)
	assert.ErrorIs(t, err, model.ErrRemoteUnavailable)
	_, err = src.ListDialogs(ctx, 10)
	assert.ErrorIs(t, err, model.ErrRemoteUnavailable)
	_, err = remote.Collect(src.Messages(ctx, 1, "", 10))
	assert.ErrorIs(t, err, model.ErrRemoteUnavailable)
	_, err = src.ListForumTopics(ctx, 1)
	assert.ErrorContains(t, err, "export missing")
}

func TestGovernorTryResolveEntityDoesNotWait(t *testing.T) {
	fake := remotetest.New("acc")
	fake.Entities[7] = remote.Entity{ID: 7, DisplayName: "Alice"}
	src := &throttling{Fake: fake, wait: time.Hour, remaining: 1}
	g := remote.NewGovernor(src, 3, nil)
	ctx := context.Background()

	start := time.Now()
	_, err := remote.TryResolveEntity(ctx, g, 7)
	_, limited := model.RetryAfter(err)
	require.True(t, limited, "expected rate-limit error, got %v", err)
	assert.False(t, g.BlockedUntil().IsZero())

	// Blocked now: fails without reaching the source.
	_, err = remote.TryResolveEntity(ctx, g, 7)
	d, limited := model.RetryAfter(err)
	require.True(t, limited)
	assert.Greater(t, d, 59*time.Minute)
	assert.Zero(t, fake.Calls("resolve_entity"))
	assert.Less(t, time.Since(start), time.Second)
}

func TestTryResolveEntityPlainSource(t *testing.T) {
	fake := remotetest.New("acc")
	fake.Entities[7] = remote.Entity{ID: 7, DisplayName: "Alice"}

	e, err := remote.TryResolveEntity(context.Background(), fake, 7)
	require.NoError(t, err)
	assert.Equal(t, "Alice", e.DisplayName)
}
