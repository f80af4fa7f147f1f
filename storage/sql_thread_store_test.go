package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/threadrunner/config"
	"github.com/kadirpekel/threadrunner/thread"
)

func newTestSQLStore(t *testing.T) *SQLThreadStore {
	t.Helper()
	store, err := NewSQLThreadStore(config.ThreadStoreConfig{Backend: "sqlite", DSN: "file:" + t.Name() + "?mode=memory&cache=shared&_busy_timeout=5000"}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Initialize(context.Background()))
	return store
}

func TestSQLThreadStore_SaveAndGetRoundTrip(t *testing.T) {
	store := newTestSQLStore(t)
	ctx := context.Background()

	th := thread.New("sql-t1")
	_, err := th.AddMessage(thread.MessageInput{Role: thread.RoleSystem, Content: "be terse"})
	require.NoError(t, err)
	_, err = th.AddMessage(thread.MessageInput{Role: thread.RoleUser, Content: "hi"})
	require.NoError(t, err)
	_, err = th.AddMessage(thread.MessageInput{Role: thread.RoleAssistant, Content: "hello"})
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, th))

	loaded, err := store.Get(ctx, "sql-t1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Messages, 2, "system message must not be persisted")
	assert.Equal(t, thread.RoleUser, loaded.Messages[0].Role)
	assert.Equal(t, thread.RoleAssistant, loaded.Messages[1].Role)
}

func TestSQLThreadStore_DeleteAndMissing(t *testing.T) {
	store := newTestSQLStore(t)
	ctx := context.Background()

	missing, err := store.Get(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, missing)

	th := thread.New("sql-t2")
	require.NoError(t, store.Save(ctx, th))

	deleted, err := store.Delete(ctx, "sql-t2")
	require.NoError(t, err)
	assert.True(t, deleted)

	again, err := store.Delete(ctx, "sql-t2")
	require.NoError(t, err)
	assert.False(t, again)
}

func TestSQLThreadStore_ListRecent(t *testing.T) {
	store := newTestSQLStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, thread.New("a")))
	require.NoError(t, store.Save(ctx, thread.New("b")))

	all, err := store.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	limited, err := store.ListRecent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
