package sync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/tgsift/internal/bus"
	"github.com/matheus3301/tgsift/internal/model"
	"github.com/matheus3301/tgsift/internal/remote"
	"github.com/matheus3301/tgsift/internal/remote/remotetest"
	"github.com/matheus3301/tgsift/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const acc = "5001"

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newSession(cache store.Cache, src remote.Source) *Session {
	return NewSession(cache, src, bus.New(), zap.NewNop(), Options{})
}

// brokenCache fails every cache operation the sync components use.
type brokenCache struct {
	store.Cache
}

var errBroken = errors.Join(model.ErrCacheUnavailable, errors.New("disk I/O error"))

func (brokenCache) GetDialogs(context.Context, string, int) ([]model.Dialog, error) {
	return nil, errBroken
}
func (brokenCache) UpsertDialogs(context.Context, string, []model.Dialog) error { return errBroken }
func (brokenCache) GetMessages(context.Context, string, int64) ([]model.Message, error) {
	return nil, errBroken
}
func (brokenCache) UpsertMessages(context.Context, string, int64, []model.Message) error {
	return errBroken
}
func (brokenCache) GetTopics(context.Context, string, int64) ([]model.Topic, error) {
	return nil, errBroken
}
func (brokenCache) UpsertTopics(context.Context, string, int64, []model.Topic) error {
	return errBroken
}
func (brokenCache) SetCheckpoint(context.Context, string, string, string) error { return errBroken }
func (brokenCache) Checkpoint(context.Context, string, string) (string, bool, error) {
	return "", false, errBroken
}

func dialogIDs(dialogs []model.Dialog) []int64 {
	ids := make([]int64, len(dialogs))
	for i, d := range dialogs {
		ids[i] = d.ID
	}
	return ids
}

func TestDialogsListColdCache(t *testing.T) {
	db := testDB(t)
	fake := remotetest.New(acc)
	fake.Dialogs = []remote.Dialog{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}, {ID: 3, Name: "C"}}
	s := newSession(db, fake)

	got, err := NewDialogs(s).List(context.Background(), acc, model.FilterSpec{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, dialogIDs(got))

	cached, err := db.GetDialogs(context.Background(), acc, 10)
	require.NoError(t, err)
	assert.Len(t, cached, 3)
}

func TestDialogsForcedRefreshMergesWithCache(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	var seed []model.Dialog
	for id := int64(1); id <= 5; id++ {
		seed = append(seed, model.Dialog{ID: id, Name: "old"})
	}
	require.NoError(t, db.UpsertDialogs(ctx, acc, seed))

	fake := remotetest.New(acc)
	fake.Dialogs = []remote.Dialog{{ID: 2, Name: "two"}, {ID: 4, Name: "four"}}
	s := newSession(db, fake)

	got, err := NewDialogs(s).List(ctx, acc, model.FilterSpec{Limit: 10, ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4, 1, 3, 5}, dialogIDs(got))
	assert.Equal(t, "two", got[0].Name)
	assert.Equal(t, "four", got[1].Name)
	assert.Equal(t, "old", got[2].Name)
}

func TestDialogsCacheFirst(t *testing.T) {
	db := testDB(t)
	fake := remotetest.New(acc)
	fake.Dialogs = []remote.Dialog{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}, {ID: 3, Name: "C"}}
	s := newSession(db, fake)
	d := NewDialogs(s)
	ctx := context.Background()
	f := model.FilterSpec{Limit: 3}

	_, err := d.List(ctx, acc, f)
	require.NoError(t, err)
	require.Equal(t, 1, fake.Calls("list_dialogs"))

	fake.Dialogs[0].Name = "renamed"
	got, err := d.List(ctx, acc, f)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Calls("list_dialogs"), "a full, fresh cache is served without a live call")
	assert.Equal(t, "A", got[0].Name)

	// Search text is applied locally.
	got, err = d.List(ctx, acc, model.FilterSpec{Limit: 3, SearchText: "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Calls("list_dialogs"))
	assert.Equal(t, []int64{2}, dialogIDs(got))

	f.ForceRefresh = true
	got, err = d.List(ctx, acc, f)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.Calls("list_dialogs"))
	assert.Equal(t, "renamed", got[0].Name)
}

func TestDialogsShortCacheGoesLive(t *testing.T) {
	db := testDB(t)
	fake := remotetest.New(acc)
	fake.Dialogs = []remote.Dialog{{ID: 1, Name: "A"}}
	d := NewDialogs(newSession(db, fake))

	for range 2 {
		_, err := d.List(context.Background(), acc, model.FilterSpec{Limit: 5})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, fake.Calls("list_dialogs"))
}

func TestDialogsStaleCacheRefreshes(t *testing.T) {
	db := testDB(t)
	fake := remotetest.New(acc)
	fake.Dialogs = []remote.Dialog{{ID: 1, Name: "A"}}
	s := newSession(db, fake)
	d := NewDialogs(s)
	ctx := context.Background()

	_, err := d.List(ctx, acc, model.FilterSpec{Limit: 1})
	require.NoError(t, err)

	s.checkpoints.now = func() time.Time { return time.Now().Add(DefaultDialogTTL + time.Minute) }
	_, err = d.List(ctx, acc, model.FilterSpec{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, fake.Calls("list_dialogs"))
}

func TestDialogsRemoteDown(t *testing.T) {
	ctx := context.Background()

	t.Run("cache empty", func(t *testing.T) {
		fake := remotetest.New(acc)
		fake.Err = errors.New("dial tcp: connection refused")
		_, err := NewDialogs(newSession(testDB(t), fake)).List(ctx, acc, model.FilterSpec{})
		assert.ErrorIs(t, err, model.ErrRemoteUnavailable)
	})

	t.Run("cache populated", func(t *testing.T) {
		db := testDB(t)
		require.NoError(t, db.UpsertDialogs(ctx, acc, []model.Dialog{{ID: 9, Name: "cached"}}))
		fake := remotetest.New(acc)
		fake.Err = errors.New("dial tcp: connection refused")

		got, err := NewDialogs(newSession(db, fake)).List(ctx, acc, model.FilterSpec{ForceRefresh: true})
		require.NoError(t, err)
		assert.Equal(t, []int64{9}, dialogIDs(got))
	})

	t.Run("rate limited", func(t *testing.T) {
		fake := remotetest.New(acc)
		fake.Err = remote.RateLimited(30 * time.Second)
		_, err := NewDialogs(newSession(nil, fake)).List(ctx, acc, model.FilterSpec{})
		d, ok := model.RetryAfter(err)
		require.True(t, ok, "err = %v", err)
		assert.Equal(t, 30*time.Second, d)
		assert.NotErrorIs(t, err, model.ErrRemoteUnavailable)
	})
}

func TestDialogsDegradeOnCacheFailure(t *testing.T) {
	fake := remotetest.New(acc)
	fake.Dialogs = []remote.Dialog{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}

	for name, cache := range map[string]store.Cache{"broken": brokenCache{}, "none": nil} {
		t.Run(name, func(t *testing.T) {
			got, err := NewDialogs(newSession(cache, fake)).List(context.Background(), acc, model.FilterSpec{})
			require.NoError(t, err)
			assert.Equal(t, []int64{1, 2}, dialogIDs(got))
		})
	}
}

func TestDialogsSortAndEvent(t *testing.T) {
	fake := remotetest.New(acc)
	fake.Dialogs = []remote.Dialog{
		{ID: 1, Name: "zulu", UnreadCount: 1},
		{ID: 2, Name: "Alpha", UnreadCount: 7},
	}
	s := newSession(testDB(t), fake)
	ch, unsub := s.Bus.Subscribe("sync.", 4)
	defer unsub()

	got, err := NewDialogs(s).List(context.Background(), acc, model.FilterSpec{SortKey: model.SortName})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, dialogIDs(got))

	select {
	case evt := <-ch:
		assert.Equal(t, bus.KindDialogsRefreshed, evt.Kind)
		assert.Equal(t, DialogsRefreshed{AccountID: acc, Count: 2}, evt.Payload)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for refresh event")
	}
}

func TestMergeDialogs(t *testing.T) {
	cached := []model.Dialog{{ID: 1, Name: "old"}, {ID: 2, Name: "b"}, {ID: 3, Name: "c"}}

	t.Run("identical sets", func(t *testing.T) {
		got := MergeDialogs(cached, cached, 2)
		assert.Equal(t, []int64{1, 2}, dialogIDs(got))
	})

	t.Run("live wins", func(t *testing.T) {
		got := MergeDialogs([]model.Dialog{{ID: 1, Name: "new"}}, cached, 10)
		assert.Equal(t, []int64{1, 2, 3}, dialogIDs(got))
		assert.Equal(t, "new", got[0].Name)
	})

	t.Run("duplicate live ids", func(t *testing.T) {
		got := MergeDialogs([]model.Dialog{{ID: 3}, {ID: 3}}, nil, 10)
		assert.Equal(t, []int64{3}, dialogIDs(got))
	})
}
