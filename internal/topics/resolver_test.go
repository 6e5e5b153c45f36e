package topics

import (
	"context"
	"errors"
	"testing"

	"github.com/matheus3301/tgsift/internal/model"
	"github.com/matheus3301/tgsift/internal/remote"
	"github.com/matheus3301/tgsift/internal/remote/remotetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const forumID int64 = 100

func newFake() *remotetest.Fake {
	f := remotetest.New("acc")
	f.Entities[forumID] = remote.Entity{ID: forumID, DisplayName: "Gophers", Megagroup: true}
	return f
}

func TestSupportsTopics(t *testing.T) {
	ctx := context.Background()

	t.Run("forum flag", func(t *testing.T) {
		f := newFake()
		f.Entities[forumID] = remote.Entity{ID: forumID, Megagroup: true, Forum: true}
		ok, err := NewResolver(f, 0, nil).SupportsTopics(ctx, forumID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Zero(t, f.Calls("messages"), "flagged forums need no scan")
	})

	t.Run("markers without flag", func(t *testing.T) {
		f := newFake()
		f.Msgs[forumID] = []remote.Message{msg(2, remote.ThreadReply{RootID: 1})}
		ok, err := NewResolver(f, 0, nil).SupportsTopics(ctx, forumID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("plain megagroup", func(t *testing.T) {
		f := newFake()
		f.Msgs[forumID] = []remote.Message{msg(2, remote.PlainReply{ToID: 1})}
		ok, err := NewResolver(f, 0, nil).SupportsTopics(ctx, forumID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("not a megagroup", func(t *testing.T) {
		f := newFake()
		f.Entities[forumID] = remote.Entity{ID: forumID, Forum: true}
		ok, err := NewResolver(f, 0, nil).SupportsTopics(ctx, forumID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unresolvable", func(t *testing.T) {
		f := newFake()
		_, err := NewResolver(f, 0, nil).SupportsTopics(ctx, 404)
		assert.ErrorIs(t, err, model.ErrEntityResolution)
	})
}

func TestListTopicsAuthoritative(t *testing.T) {
	f := newFake()
	f.Topics[forumID] = []remote.ForumTopic{{ID: 1, Title: "General"}, {ID: 42, Title: "Releases", UnreadCount: 3}}

	topics, err := NewResolver(f, 0, nil).ListTopics(context.Background(), forumID)
	require.NoError(t, err)
	assert.Equal(t, []model.Topic{{ID: 1, Title: "General"}, {ID: 42, Title: "Releases", UnreadCount: 3}}, topics)
	assert.Zero(t, f.Calls("messages"))
}

func TestListTopicsHeuristic(t *testing.T) {
	f := newFake()
	f.TopicsErr = remote.ErrUnsupported
	f.Msgs[forumID] = []remote.Message{
		msg(5, remote.PlainReply{ToID: 4}),
		msg(4, remote.ThreadRoot{Title: "Releases"}),
		msg(3, remote.ThreadReply{RootID: 2}),
	}

	topics, err := NewResolver(f, 0, nil).ListTopics(context.Background(), forumID)
	require.NoError(t, err)
	assert.Equal(t, []model.Topic{{ID: 4, Title: "Releases"}, {ID: 2, Title: "Thread #2"}}, topics)
}

func TestListTopicsScanDepth(t *testing.T) {
	f := newFake()
	for id := int64(300); id >= 1; id-- {
		f.Msgs[forumID] = append(f.Msgs[forumID], msg(id, remote.NoReply{}))
	}
	f.Msgs[forumID][250] = msg(50, remote.ThreadRoot{Title: "Too old"})

	topics, err := NewResolver(f, 0, nil).ListTopics(context.Background(), forumID)
	require.NoError(t, err)
	assert.Empty(t, topics, "roots beyond the scan window are not discovered")
	assert.Equal(t, DefaultScanDepth, f.Scanned(forumID))
}

func TestListTopicsFallsBackToGeneral(t *testing.T) {
	f := newFake()
	f.Entities[forumID] = remote.Entity{ID: forumID, Megagroup: true, Forum: true}
	f.Msgs[forumID] = []remote.Message{msg(2, remote.NoReply{}), msg(1, remote.NoReply{})}

	topics, err := NewResolver(f, 0, nil).ListTopics(context.Background(), forumID)
	require.NoError(t, err)
	assert.Equal(t, []model.Topic{{ID: 1, Title: "General"}}, topics)
}

func TestListTopicsGeneralWhenListingFails(t *testing.T) {
	f := newFake()
	f.Entities[forumID] = remote.Entity{ID: forumID, Megagroup: true, Forum: true}
	f.TopicsErr = errors.New("timeout")

	topics, err := NewResolver(f, 0, nil).ListTopics(context.Background(), forumID)
	require.NoError(t, err)
	assert.Equal(t, []model.Topic{model.GeneralTopic()}, topics)
}

func TestListTopicsNonForumIsEmpty(t *testing.T) {
	f := newFake()
	f.Msgs[forumID] = []remote.Message{msg(2, remote.PlainReply{ToID: 1}), msg(1, remote.NoReply{})}

	topics, err := NewResolver(f, 0, nil).ListTopics(context.Background(), forumID)
	require.NoError(t, err)
	assert.NotNil(t, topics)
	assert.Empty(t, topics)
}

func TestListTopicsIgnoresMarkersOutsideMegagroups(t *testing.T) {
	f := newFake()
	f.Entities[forumID] = remote.Entity{ID: forumID, DisplayName: "Old group"}
	f.TopicsErr = remote.ErrUnsupported
	f.Msgs[forumID] = []remote.Message{
		msg(3, remote.ThreadReply{RootID: 2}),
		msg(2, remote.ThreadRoot{Title: "Stray"}),
	}
	r := NewResolver(f, 0, nil)

	ok, err := r.SupportsTopics(context.Background(), forumID)
	require.NoError(t, err)
	assert.False(t, ok)

	topics, err := r.ListTopics(context.Background(), forumID)
	require.NoError(t, err)
	assert.NotNil(t, topics)
	assert.Empty(t, topics)
}

func TestListTopicsCancelled(t *testing.T) {
	f := newFake()
	f.TopicsErr = errors.New("boom")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewResolver(f, 0, nil).ListTopics(ctx, forumID)
	assert.ErrorIs(t, err, context.Canceled)
}
