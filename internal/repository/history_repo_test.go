package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isntboxs/b3s-chat/internal/domain"
)

func newTestRepo(t *testing.T) *HistoryRepository {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewHistoryRepository(db)
}

func TestSessionLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	session, err := repo.CreateSession(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, domain.DefaultSessionTitle, session.Title)
	assert.False(t, session.Pinned)

	got, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, "user-1", got.UserID)

	missing, err := repo.GetSession(ctx, "no-such-session")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListSessions_PinnedFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	older, err := repo.CreateSession(ctx, "user-1")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	newer, err := repo.CreateSession(ctx, "user-1")
	require.NoError(t, err)

	// Other users' sessions must not leak in.
	_, err = repo.CreateSession(ctx, "user-2")
	require.NoError(t, err)

	require.NoError(t, repo.TogglePin(ctx, older.ID))

	sessions, err := repo.ListSessions(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, older.ID, sessions[0].ID)
	assert.True(t, sessions[0].Pinned)
	assert.Equal(t, newer.ID, sessions[1].ID)
}

func TestSaveAndListMessages(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	session, err := repo.CreateSession(ctx, "user-1")
	require.NoError(t, err)

	_, err = repo.SaveMessage(ctx, session.ID, domain.NewMessage{
		Role: domain.RoleUser, Content: "question",
	})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = repo.SaveMessage(ctx, session.ID, domain.NewMessage{
		Role: domain.RoleAssistant, Content: "answer", Thinking: "hmm",
	})
	require.NoError(t, err)

	turns, err := repo.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, domain.RoleUser, turns[0].Role)
	assert.Equal(t, "question", turns[0].Content)
	assert.Equal(t, domain.RoleAssistant, turns[1].Role)
	assert.Equal(t, "hmm", turns[1].Thinking)

	// Replayed history is always terminal.
	for _, turn := range turns {
		assert.Equal(t, domain.TurnComplete, turn.Status)
	}
}

func TestSaveMessage_TouchesSessionTimestamp(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	session, err := repo.CreateSession(ctx, "user-1")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = repo.SaveMessage(ctx, session.ID, domain.NewMessage{
		Role: domain.RoleUser, Content: "hi",
	})
	require.NoError(t, err)

	got, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(session.UpdatedAt))
}

func TestUpdateTitle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	session, err := repo.CreateSession(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, repo.UpdateTitle(ctx, session.ID, "Renamed"))

	got, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)

	err = repo.UpdateTitle(ctx, "no-such-session", "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTogglePin_Flips(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	session, err := repo.CreateSession(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, repo.TogglePin(ctx, session.ID))
	got, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, got.Pinned)

	require.NoError(t, repo.TogglePin(ctx, session.ID))
	got, err = repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, got.Pinned)

	err = repo.TogglePin(ctx, "no-such-session")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteSession_CascadesMessages(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	session, err := repo.CreateSession(ctx, "user-1")
	require.NoError(t, err)
	_, err = repo.SaveMessage(ctx, session.ID, domain.NewMessage{
		Role: domain.RoleUser, Content: "hi",
	})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteSession(ctx, session.ID))

	got, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	turns, err := repo.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, turns)

	err = repo.DeleteSession(ctx, session.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	session, err := repo.CreateSession(ctx, "user-1")
	require.NoError(t, err)
	_, err = repo.SaveMessage(ctx, session.ID, domain.NewMessage{
		Role: domain.RoleUser, Content: "q",
	})
	require.NoError(t, err)
	_, err = repo.SaveMessage(ctx, session.ID, domain.NewMessage{
		Role: domain.RoleAssistant, Content: "a",
	})
	require.NoError(t, err)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalSessions)
	assert.Equal(t, 2, stats.TotalMessages)
	assert.Equal(t, 1, stats.TotalChats)
}
