package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifications(t *testing.T) {
	s := newTestStore(t)
	tickingClock(s)
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice")
	bob := mustCreateUser(t, s, "bob")

	mine := mustCreatePost(t, s, alice, "mine")
	require.NoError(t, s.Like(ctx, bob, mine))
	mention := mustCreatePost(t, s, bob, "hey @alice")
	require.NoError(t, s.Follow(ctx, bob, alice))

	ns, err := s.Notifications(ctx, alice)
	require.NoError(t, err)
	require.Len(t, ns, 3)

	assert.Equal(t, KindFollowed, ns[0].Kind)
	assert.Nil(t, ns[0].Post)
	assert.Equal(t, "bob", ns[0].Actor.Username)

	assert.Equal(t, KindMentioned, ns[1].Kind)
	require.NotNil(t, ns[1].Post)
	assert.Equal(t, mention, ns[1].Post.ID)

	assert.Equal(t, KindLiked, ns[2].Kind)
	require.NotNil(t, ns[2].Post)
	assert.Equal(t, mine, ns[2].Post.ID)
	assert.Equal(t, bob, ns[2].Actor.ID)

	for i := 1; i < len(ns); i++ {
		assert.False(t, ns[i].Date.After(ns[i-1].Date), "notifications must be newest first")
	}

	unread, err := s.UnreadNotifications(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 3, unread)

	// bob gets nothing from his own actions
	none, err := s.Notifications(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, none)

	for _, n := range ns {
		assert.True(t, n.Unread())
		require.NoError(t, s.MarkSeen(ctx, alice, n))
	}

	unread, err = s.UnreadNotifications(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	ns, err = s.Notifications(ctx, alice)
	require.NoError(t, err)
	require.Len(t, ns, 3)
	for _, n := range ns {
		assert.False(t, n.Unread(), "%s notification still unread", n.Kind)
	}

	seenLikes, err := s.count(ctx, "count", "SELECT COUNT(*) FROM likes WHERE read_at IS NOT NULL")
	require.NoError(t, err)
	assert.Equal(t, 1, seenLikes)
}

func TestMarkSeenIsPerEdge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice")
	bob := mustCreateUser(t, s, "bob")
	carol := mustCreateUser(t, s, "carol")

	require.NoError(t, s.Follow(ctx, bob, alice))
	require.NoError(t, s.Follow(ctx, carol, alice))

	require.NoError(t, s.MarkFollowSeen(ctx, alice, bob))

	unread, err := s.UnreadNotifications(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestMarkSeenRejectsBadNotifications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.MarkSeen(ctx, 1, Notification{Kind: "poked"})
	assert.ErrorIs(t, err, ErrInvalid)

	err = s.MarkSeen(ctx, 1, Notification{Kind: KindLiked})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNotificationsDisappearWithTheirEdge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustCreateUser(t, s, "alice")
	bob := mustCreateUser(t, s, "bob")
	id := mustCreatePost(t, s, alice, "short lived")

	require.NoError(t, s.Like(ctx, bob, id))
	require.NoError(t, s.Unlike(ctx, bob, id))

	ns, err := s.Notifications(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, ns)
}
