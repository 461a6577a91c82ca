package engine

import (
	"context"
	"testing"

	"github.com/smallnest/redisqlite/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := storage.Open(storage.Options{Path: ":memory:", Prefix: "t"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, "", nil)
}

func TestTxController_QueueAndExec(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	tx := NewTxController(e)

	_, err := tx.Multi()
	require.NoError(t, err)
	assert.True(t, tx.InMulti())

	_, err = tx.Queue("SET", []string{"a", "1"})
	require.NoError(t, err)
	_, err = tx.Queue("GET", []string{"a"})
	require.NoError(t, err)

	replies, err := tx.Exec(ctx)
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, ReplyOK, replies[0].Kind)
	assert.Equal(t, ReplyBulk, replies[1].Kind)
	assert.Equal(t, "1", replies[1].Str)
	assert.False(t, tx.InMulti())
}

func TestTxController_LogicErrorDoesNotAbortBatch(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	tx := NewTxController(e)

	_, err := tx.Multi()
	require.NoError(t, err)
	_, err = tx.Queue("LPUSH", []string{"list", "v"})
	require.NoError(t, err)
	_, err = tx.Queue("GET", []string{"list"}) // WRONGTYPE: list key, not string
	require.NoError(t, err)
	_, err = tx.Queue("LRANGE", []string{"list", "0", "-1"})
	require.NoError(t, err)

	replies, err := tx.Exec(ctx)
	require.NoError(t, err)
	require.Len(t, replies, 3)
	assert.Equal(t, ReplyInt, replies[0].Kind)
	assert.Equal(t, ReplyErr, replies[1].Kind)
	assert.Contains(t, replies[1].Str, "WRONGTYPE")
	assert.Equal(t, ReplyArray, replies[2].Kind)
	require.Len(t, replies[2].Array, 1)
	assert.Equal(t, "v", replies[2].Array[0].Str)
}

func TestTxController_UnknownCommandDirtiesAndAborts(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	tx := NewTxController(e)

	_, err := tx.Multi()
	require.NoError(t, err)
	_, err = tx.Queue("SET", []string{"a", "1"})
	require.NoError(t, err)
	_, err = tx.Queue("NOTACOMMAND", []string{"a"})
	require.Error(t, err)

	_, err = tx.Exec(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXECABORT")

	got, gerr := e.Get(ctx, "a")
	require.NoError(t, gerr)
	assert.Nil(t, got)
}

func TestTxController_Discard(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	tx := NewTxController(e)

	_, err := tx.Multi()
	require.NoError(t, err)
	_, err = tx.Queue("SET", []string{"a", "1"})
	require.NoError(t, err)
	_, err = tx.Discard()
	require.NoError(t, err)
	assert.False(t, tx.InMulti())

	_, err = tx.Exec(ctx)
	require.Error(t, err)

	got, gerr := e.Get(ctx, "a")
	require.NoError(t, gerr)
	assert.Nil(t, got)
}

func TestTxController_WatchUnwatchAreNoOps(t *testing.T) {
	e := newTestEngine(t)
	tx := NewTxController(e)

	r, err := tx.Watch([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, ReplyOK, r.Kind)

	r, err = tx.Unwatch()
	require.NoError(t, err)
	assert.Equal(t, ReplyOK, r.Kind)
}

func TestTxController_BRPopLPushDoesNotBlockInsideExec(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	tx := NewTxController(e)

	_, err := tx.Multi()
	require.NoError(t, err)
	_, err = tx.Queue("BRPOPLPUSH", []string{"src", "dst", "0"})
	require.NoError(t, err)

	replies, err := tx.Exec(ctx)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, ReplyNilBulk, replies[0].Kind)
}
