package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/ragdesk/core"
	"github.com/poiesic/ragdesk/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatTurnBasics(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	turn := &core.ChatTurn{
		UserID:      "u1",
		WorkspaceID: "ws",
		Message:     "create task for writing report",
		Response:    "Sure.\n\nTask created: 'writing report'",
		ToolsCalled: []string{"create_task"},
	}
	added, err := repos.Chats.AddChatTurn(ctx, turn)
	require.NoError(t, err)
	require.NotEmpty(t, added.ID)
	assert.False(t, added.CreatedAt.IsZero())

	got, err := repos.Chats.GetChatTurn(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, added, got)

	_, err = repos.Chats.GetChatTurn(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestChatTurn_Validation(t *testing.T) {
	repos := setupRepos(t)

	_, err := repos.Chats.AddChatTurn(context.Background(), &core.ChatTurn{UserID: "u1"})
	assert.ErrorIs(t, err, core.ErrInvalidChatTurn)
}

func TestChatTurn_ListRecentPerUser(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i, msg := range []string{"first", "second", "third"} {
		_, err := repos.Chats.AddChatTurn(ctx, &core.ChatTurn{
			UserID:    "u1",
			Message:   msg,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
	_, err := repos.Chats.AddChatTurn(ctx, &core.ChatTurn{UserID: "u2", Message: "elsewhere"})
	require.NoError(t, err)

	turns, err := repos.Chats.ListChatTurns(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "third", turns[0].Message)
	assert.Equal(t, "second", turns[1].Message)

	all, err := repos.Chats.ListChatTurns(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
