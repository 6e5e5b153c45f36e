package sync

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

func TestTopicsListWritesThrough(t *testing.T) {
	fake := remotetest.New(acc)
	fake.Topics[chat] = []remote.ForumTopic{{ID: 42, Title: "Releases", UnreadCount: 2}}
	s := newSession(testDB(t), fake)

	got, err := NewTopics(s).List(context.Background(), acc, chat)
	require.NoError(t, err)
	assert.Equal(t, []model.Topic{{ID: 42, Title: "Releases", UnreadCount: 2}}, got)

	cached, err := s.Cache.GetTopics(context.Background(), acc, chat)
	require.NoError(t, err)
	assert.Equal(t, got, cached)
}

func TestTopicsListServesCacheWhenResolutionFails(t *testing.T) {
	fake := remotetest.New(acc)
	s := newSession(testDB(t), fake)
	require.NoError(t, s.Cache.UpsertTopics(context.Background(), acc, chat, []model.Topic{model.GeneralTopic()}))

	// No forum listing, no messages and no entity: resolution fails.
	fake.TopicsErr = errors.New("timeout")
	got, err := NewTopics(s).List(context.Background(), acc, chat)
	require.NoError(t, err)
	assert.Equal(t, []model.Topic{model.GeneralTopic()}, got)
}

func TestTopicsListUnknownDialog(t *testing.T) {
	s := newSession(nil, remotetest.New(acc))

	_, err := NewTopics(s).List(context.Background(), acc, 404)
	assert.ErrorIs(t, err, model.ErrEntityResolution)
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestTopicsSupports(t *testing.T) {
	fake := remotetest.New(acc)
	fake.Entities[chat] = remote.Entity{ID: chat, Megagroup: true, Forum: true}

	ok, err := NewTopics(newSession(nil, fake)).Supports(context.Background(), chat)
	require.NoError(t, err)
	assert.True(t, ok)
}
