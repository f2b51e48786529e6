package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketsocrates/chat"
	"pocketsocrates/core"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteSessionRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	s := NewStore(db, nil)
	created, err := s.Create(ctx, "Meno", 25, false)
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage(ctx, created.ID, chat.NewMessage(core.RoleUser, "what is virtue?")))
	require.NoError(t, s.AppendMessage(ctx, created.ID, chat.NewMessage(core.RoleAssistant, "what do you say it is?")))

	reloaded := NewStore(db, nil)
	require.NoError(t, reloaded.Load(ctx))

	got := reloaded.Get(created.ID)
	require.NotNil(t, got)
	assert.Equal(t, "Meno", got.UserName)
	assert.Equal(t, 25, got.UserAge)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, core.RoleAssistant, got.Messages[0].Role, "welcome first")
	assert.Equal(t, "what is virtue?", got.Messages[1].Content)
	for i := 1; i < len(got.Messages); i++ {
		assert.False(t, got.Messages[i].CreatedAt.Before(got.Messages[i-1].CreatedAt))
	}
}

func TestSQLiteDeleteCascadesMessages(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	s := NewStore(db, nil)
	created, err := s.Create(ctx, "Crito", 50, false)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, created.ID))

	var count int
	err = db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE session_id = ?`, created.ID).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLiteInsertMessageIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	s := NewStore(db, nil)
	created, err := s.Create(ctx, "Meno", 25, false)
	require.NoError(t, err)

	msg := chat.NewMessage(core.RoleUser, "again")
	require.NoError(t, db.InsertMessage(ctx, created.ID, msg))
	require.NoError(t, db.InsertMessage(ctx, created.ID, msg))

	var count int
	err = db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE id = ?`, msg.ID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteInstructionsSeededAndUpdated(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	instr, err := db.Instructions(ctx)
	require.NoError(t, err)

	got, err := instr.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultInstructions, got)

	require.NoError(t, instr.Set(ctx, "You are Diogenes."))
	got, err = instr.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "You are Diogenes.", got)
}

func TestSQLiteUpdateSessionPersistsEdit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	s := NewStore(db, nil)
	created, err := s.Create(ctx, "Plato", 40, true)
	require.NoError(t, err)
	require.NoError(t, s.Edit(ctx, created.ID, "Aristocles", 41))

	reloaded := NewStore(db, nil)
	require.NoError(t, reloaded.Load(ctx))
	got := reloaded.Get(created.ID)
	require.NotNil(t, got)
	assert.Equal(t, "Aristocles", got.UserName)
	assert.True(t, got.Privileged)
	assert.Equal(t, "Aristocles, Keeper of the Agora", got.DisplayName)
}
