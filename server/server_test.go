package server

import (
	"context"
	"net"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/redisqlite/engine"
	"github.com/smallnest/redisqlite/storage"
)

// startTestServer boots a Server on an ephemeral port and returns a
// connected go-redis client, exercising the TCP dispatcher with a real
// third-party client from the outside rather than hand-rolled frames.
func startTestServer(t *testing.T) *goredis.Client {
	t.Helper()
	store, err := storage.Open(storage.Options{Path: ":memory:", Prefix: "t"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	e := engine.New(store, "", nil)
	srv := New(e, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Serve(ctx, ln)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		_ = srv.Close()
		<-done
	})

	client := goredis.NewClient(&goredis.Options{Addr: ln.Addr().String(), Protocol: 2})
	t.Cleanup(func() { _ = client.Close() })

	require.Eventually(t, func() bool {
		return client.Ping(context.Background()).Err() == nil
	}, time.Second, 10*time.Millisecond)

	return client
}

func TestServer_StringRoundTrip(t *testing.T) {
	c := startTestServer(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 0).Err())
	got, err := c.Get(ctx, "k").Result()
	require.NoError(t, err)
	require.Equal(t, "v", got)

	n, err := c.Del(ctx, "k").Result()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = c.Get(ctx, "k").Result()
	require.ErrorIs(t, err, goredis.Nil)
}

func TestServer_ListAndWrongType(t *testing.T) {
	c := startTestServer(t)
	ctx := context.Background()

	n, err := c.RPush(ctx, "mylist", "a", "b", "c").Result()
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	vals, err := c.LRange(ctx, "mylist", 0, -1).Result()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, vals)

	_, err = c.Get(ctx, "mylist").Result()
	require.Error(t, err)
	require.Contains(t, err.Error(), "WRONGTYPE")
}

func TestServer_MultiExec(t *testing.T) {
	c := startTestServer(t)
	ctx := context.Background()

	pipe := c.TxPipeline()
	setCmd := pipe.Set(ctx, "a", "1", 0)
	getCmd := pipe.Get(ctx, "a")
	_, err := pipe.Exec(ctx)
	require.NoError(t, err)
	require.Equal(t, "OK", setCmd.Val())
	require.Equal(t, "1", getCmd.Val())
}

func TestServer_Info(t *testing.T) {
	c := startTestServer(t)
	info, err := c.Info(context.Background()).Result()
	require.NoError(t, err)
	require.Contains(t, info, "redis_version")
}

// TestServer_BRPopLPushAcrossConnections drives the blocking move over real
// sockets: go-redis pools connections, so the blocked pop and the push that
// wakes it arrive on different TCP connections.
func TestServer_BRPopLPushAcrossConnections(t *testing.T) {
	c := startTestServer(t)
	ctx := context.Background()

	done := make(chan struct{})
	var moved string
	var popErr error
	go func() {
		defer close(done)
		moved, popErr = c.BRPopLPush(ctx, "jobs", "active", 5*time.Second).Result()
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, c.LPush(ctx, "jobs", "job-1").Err())

	select {
	case <-done:
		require.NoError(t, popErr)
		require.Equal(t, "job-1", moved)
	case <-time.After(3 * time.Second):
		t.Fatal("BRPOPLPUSH did not wake after a push from another connection")
	}

	vals, err := c.LRange(ctx, "active", 0, -1).Result()
	require.NoError(t, err)
	require.Equal(t, []string{"job-1"}, vals)
}

func TestServer_Auth(t *testing.T) {
	store, err := storage.Open(storage.Options{Path: ":memory:", Prefix: "t"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	e := engine.New(store, "secret", nil)
	srv := New(e, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Serve(ctx, ln)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		_ = srv.Close()
		<-done
	})

	bad := goredis.NewClient(&goredis.Options{Addr: ln.Addr().String(), Protocol: 2})
	t.Cleanup(func() { _ = bad.Close() })
	_, err = bad.Get(context.Background(), "k").Result()
	require.Error(t, err)
	require.Contains(t, err.Error(), "NOAUTH")

	good := goredis.NewClient(&goredis.Options{Addr: ln.Addr().String(), Password: "secret", Protocol: 2})
	t.Cleanup(func() { _ = good.Close() })
	require.NoError(t, good.Set(context.Background(), "k", "v", 0).Err())
}
