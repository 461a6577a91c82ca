package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLPush_RPush_OrderingAndLength(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	n, err := e.RPush(ctx, "q", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = e.LPush(ctx, "q", "z")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := e.LRange(ctx, "q", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "b"}, got)
}

func TestLPop_RenumbersRemainingRows(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.RPush(ctx, "q", "a", "b", "c")
	require.NoError(t, err)

	v, err := e.LPop(ctx, "q")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "a", *v)

	got, err := e.LRange(ctx, "q", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, got, "remaining rows must renumber down so idx stays 0-based")

	v, err = e.LPop(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, "b", *v)
}

func TestRPop_EmptyListReturnsNil(t *testing.T) {
	e := newTestEngine(t)
	v, err := e.RPop(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestLRange_NegativeIndices(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, err := e.RPush(ctx, "q", "a", "b", "c", "d")
	require.NoError(t, err)

	got, err := e.LRange(ctx, "q", -2, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, got)
}

func TestRPopLPush_MovesTailToHeadAtomically(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, err := e.RPush(ctx, "src", "a", "b", "c")
	require.NoError(t, err)
	_, err = e.RPush(ctx, "dst", "x")
	require.NoError(t, err)

	v, err := e.RPopLPush(ctx, "src", "dst")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "c", *v)

	srcVals, err := e.LRange(ctx, "src", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, srcVals)

	dstVals, err := e.LRange(ctx, "dst", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "x"}, dstVals)
}

func TestRPopLPush_EmptySourceIsNoop(t *testing.T) {
	e := newTestEngine(t)
	v, err := e.RPopLPush(context.Background(), "empty", "dst")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestLPush_WrongTypeAgainstStringKey(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, err := e.Set(ctx, "k", "v")
	require.NoError(t, err)

	_, err = e.LPush(ctx, "k", "x")
	require.Error(t, err)
	ce, ok := err.(*CommandError)
	require.True(t, ok)
	assert.Equal(t, "WRONGTYPE", ce.Prefix)
}

// TestExpiredList_NotServedAsLive guards against a row past its expiry but
// not yet swept by the reaper being served as live (engine.go's liveClause
// invariant applies to every type, lists included).
func TestExpiredList_NotServedAsLive(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, err := e.RPush(ctx, "q", "a", "b", "c")
	require.NoError(t, err)

	ok, err := e.Expire(ctx, "q", -1)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := e.LRange(ctx, "q", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, got, "LRANGE must not serve rows past their expiry")

	v, err := e.LPop(ctx, "q")
	require.NoError(t, err)
	assert.Nil(t, v, "LPOP must not serve rows past their expiry")

	v, err = e.RPop(ctx, "q")
	require.NoError(t, err)
	assert.Nil(t, v, "RPOP must not serve rows past their expiry")
}
