package repository

import (
	"context"
	"testing"
	"time"

	"homehive/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRepository_Conversation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob")
	c := seedUser(t, db, "carol")

	now := time.Now()
	msgs := []*models.Message{
		{SenderID: a.ID, ReceiverID: b.ID, Text: "Hi, is the room free?", CreatedAt: now.Add(-3 * time.Minute)},
		{SenderID: b.ID, ReceiverID: a.ID, Text: "Yes it is", CreatedAt: now.Add(-2 * time.Minute)},
		{SenderID: a.ID, ReceiverID: c.ID, Text: "unrelated", CreatedAt: now.Add(-time.Minute)},
		{SenderID: a.ID, ReceiverID: b.ID, MediaURL: "https://cdn.example/chat-media/1.jpg", CreatedAt: now},
	}
	for _, m := range msgs {
		require.NoError(t, repo.Create(ctx, m))
	}

	conv, err := repo.Conversation(ctx, b.ID, a.ID)
	require.NoError(t, err)
	require.Len(t, conv, 3)
	assert.Equal(t, "Hi, is the room free?", conv[0].Text)
	assert.Equal(t, "Yes it is", conv[1].Text)
	assert.Equal(t, "https://cdn.example/chat-media/1.jpg", conv[2].MediaURL)
	assert.Equal(t, "alice", conv[0].Sender.Name)
	assert.Equal(t, "bob", conv[0].Receiver.Name)
}

func TestMessageRepository_LatestPerPeer(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	a := seedUser(t, db, "alice")
	b := seedUser(t, db, "bob")
	c := seedUser(t, db, "carol")

	now := time.Now()
	require.NoError(t, repo.Create(ctx, &models.Message{SenderID: c.ID, ReceiverID: a.ID, Text: "long ago", CreatedAt: now.Add(-30 * 24 * time.Hour)}))
	require.NoError(t, repo.Create(ctx, &models.Message{SenderID: a.ID, ReceiverID: b.ID, Text: "old", CreatedAt: now.Add(-time.Hour)}))
	// A busy conversation must not push older ones out of the inbox.
	for i := 0; i < 20; i++ {
		require.NoError(t, repo.Create(ctx, &models.Message{SenderID: b.ID, ReceiverID: a.ID, Text: "chatter", CreatedAt: now.Add(time.Duration(i-40) * time.Minute)}))
	}
	require.NoError(t, repo.Create(ctx, &models.Message{SenderID: b.ID, ReceiverID: a.ID, Text: "new", CreatedAt: now}))
	require.NoError(t, repo.Create(ctx, &models.Message{SenderID: b.ID, ReceiverID: 777, Text: "dangling", CreatedAt: now.Add(-time.Minute)}))

	latest, err := repo.LatestPerPeer(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "new", latest[0].Text)
	assert.Equal(t, "long ago", latest[1].Text)
	assert.Equal(t, "carol", latest[1].Sender.Name)

	forB, err := repo.LatestPerPeer(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, forB, 2)
	assert.Equal(t, "new", forB[0].Text)
	assert.Equal(t, models.UnknownUserName, forB[1].Receiver.Name)

	none, err := repo.LatestPerPeer(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, none)
}
