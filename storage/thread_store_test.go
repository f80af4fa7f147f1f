package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/threadrunner/thread"
)

func TestMemoryThreadStore_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryThreadStore()

	th := thread.New("t1")
	_, err := th.AddMessage(thread.MessageInput{Role: thread.RoleUser, Content: "hello"})
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, th))

	loaded, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "t1", loaded.ID)
	assert.Len(t, loaded.Messages, 1)

	missing, err := store.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	deleted, err := store.Delete(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, deleted)

	again, err := store.Delete(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, again)
}

func TestMemoryThreadStore_SaveStripsSystemMessage(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryThreadStore()

	th := thread.New("t1")
	_, err := th.AddMessage(thread.MessageInput{Role: thread.RoleSystem, Content: "be terse"})
	require.NoError(t, err)
	_, err = th.AddMessage(thread.MessageInput{Role: thread.RoleUser, Content: "hi"})
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, th))

	loaded, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 1)
	assert.Equal(t, thread.RoleUser, loaded.Messages[0].Role)

	// the caller's in-memory thread is untouched.
	assert.Len(t, th.Messages, 2)
}

func TestMemoryThreadStore_SaveRejectsEmptyID(t *testing.T) {
	store := NewMemoryThreadStore()
	err := store.Save(context.Background(), thread.New(""))
	assert.Error(t, err)
}

func TestMemoryThreadStore_ListRecentOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryThreadStore()

	older := thread.New("older")
	newer := thread.New("newer")
	newer.UpdatedAt = older.UpdatedAt.Add(1)

	require.NoError(t, store.Save(ctx, older))
	require.NoError(t, store.Save(ctx, newer))

	recent, err := store.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "newer", recent[0].ID)
}

func TestMemoryThreadStore_FindByAttributesAndSource(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryThreadStore()

	th := thread.New("t1")
	th.Attributes["project"] = "alpha"
	th.Source["name"] = "slack"
	th.Source["channel"] = "general"
	require.NoError(t, store.Save(ctx, th))

	other := thread.New("t2")
	other.Attributes["project"] = "beta"
	require.NoError(t, store.Save(ctx, other))

	found, err := store.FindByAttributes(ctx, map[string]interface{}{"project": "alpha"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "t1", found[0].ID)

	bySource, err := store.FindBySource(ctx, "slack", map[string]interface{}{"channel": "general"})
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Equal(t, "t1", bySource[0].ID)

	none, err := store.FindBySource(ctx, "slack", map[string]interface{}{"channel": "random"})
	require.NoError(t, err)
	assert.Empty(t, none)
}
