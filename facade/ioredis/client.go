// Package ioredis is a thin in-process facade shaped like the ioredis
// Node.js client: command methods are named the way ioredis names them —
// lowercase, multi-word commands concatenated without internal capitals
// (hget, hmset, rpoplpush) — and Multi().Exec() mirrors ioredis's
// multi().exec() callback shape: one [error, value] pair per queued
// command, rather than Go's usual single (value, error) return, since
// job-queue libraries built on ioredis depend on that per-entry contract.
//
// Every method is a direct call into an *engine.Engine; this package adds
// no storage or protocol logic of its own.
package ioredis

import (
	"context"

	"github.com/smallnest/redisqlite/engine"
	"github.com/smallnest/redisqlite/storage"
)

// Options configures a self-contained Client opened by Connect, mirroring
// the option bag ioredis's `new Redis({...})` constructor takes.
type Options struct {
	// Filename is the SQLite database path; empty means ":memory:".
	Filename string
	// Password, when non-empty, is configured on the engine so a RESP
	// server sharing the same database still gates remote clients. The
	// in-process caller that supplied it is implicitly authenticated.
	Password string
}

// Client wraps an Engine with ioredis-shaped method names.
type Client struct {
	e     *engine.Engine
	store *storage.Store // non-nil only when Connect opened it
}

// New wraps an existing engine; the caller keeps ownership of its storage.
func New(e *engine.Engine) *Client {
	return &Client{e: e}
}

// Connect opens a Client that owns its own storage. Callers must Close it
// to release the database.
func Connect(opts Options) (*Client, error) {
	path := opts.Filename
	if path == "" {
		path = ":memory:"
	}
	store, err := storage.Open(storage.Options{Path: path})
	if err != nil {
		return nil, err
	}
	return &Client{e: engine.New(store, opts.Password, nil), store: store}, nil
}

// Close releases the storage a Connect-opened Client owns. It is a no-op
// for Clients created with New.
func (c *Client) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}

func (c *Client) Get(ctx context.Context, key string) (*string, error) {
	return c.e.Get(ctx, key)
}

func (c *Client) Set(ctx context.Context, key, value string) (string, error) {
	return c.e.Set(ctx, key, value)
}

func (c *Client) Setnx(ctx context.Context, key, value string) (bool, error) {
	return c.e.SetWithOptions(ctx, key, value, engine.SetOptions{NX: true})
}

func (c *Client) Mget(ctx context.Context, keys ...string) ([]*string, error) {
	return c.e.MGet(ctx, keys)
}

func (c *Client) Del(ctx context.Context, keys ...string) (int, error) {
	return c.e.Del(ctx, keys)
}

func (c *Client) Exists(ctx context.Context, keys ...string) (int, error) {
	return c.e.Exists(ctx, keys)
}

func (c *Client) Expire(ctx context.Context, key string, seconds int64) (bool, error) {
	return c.e.Expire(ctx, key, seconds)
}

func (c *Client) Ttl(ctx context.Context, key string) (int, error) {
	return c.e.TTL(ctx, key)
}

func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	return c.e.Keys(ctx, pattern)
}

func (c *Client) Flushdb(ctx context.Context) (string, error) {
	return c.e.Flush(ctx)
}

func (c *Client) Flushall(ctx context.Context) (string, error) {
	return c.e.Flush(ctx)
}

func (c *Client) Lpush(ctx context.Context, key string, values ...string) (int, error) {
	return c.e.LPush(ctx, key, values...)
}

func (c *Client) Rpush(ctx context.Context, key string, values ...string) (int, error) {
	return c.e.RPush(ctx, key, values...)
}

func (c *Client) Lpop(ctx context.Context, key string) (*string, error) {
	return c.e.LPop(ctx, key)
}

func (c *Client) Rpop(ctx context.Context, key string) (*string, error) {
	return c.e.RPop(ctx, key)
}

func (c *Client) Lrange(ctx context.Context, key string, start, stop int) ([]string, error) {
	return c.e.LRange(ctx, key, start, stop)
}

func (c *Client) Rpoplpush(ctx context.Context, src, dst string) (*string, error) {
	return c.e.RPopLPush(ctx, src, dst)
}

func (c *Client) Brpoplpush(ctx context.Context, src, dst string, timeoutSec float64) (*string, error) {
	return c.e.BRPopLPush(ctx, src, dst, timeoutSec)
}

func (c *Client) Hset(ctx context.Context, key, field, value string) (int, error) {
	return c.e.HSet(ctx, key, field, value)
}

func (c *Client) Hmset(ctx context.Context, key string, fields, values []string) (string, error) {
	return c.e.HMSet(ctx, key, fields, values)
}

func (c *Client) Hget(ctx context.Context, key, field string) (*string, error) {
	return c.e.HGet(ctx, key, field)
}

func (c *Client) Hmget(ctx context.Context, key string, fields ...string) ([]*string, error) {
	return c.e.HMGet(ctx, key, fields)
}

func (c *Client) Hdel(ctx context.Context, key string, fields ...string) (int, error) {
	return c.e.HDel(ctx, key, fields...)
}

func (c *Client) Sadd(ctx context.Context, key string, members ...string) (int, error) {
	return c.e.SAdd(ctx, key, members...)
}

func (c *Client) Srem(ctx context.Context, key string, members ...string) (int, error) {
	return c.e.SRem(ctx, key, members...)
}

func (c *Client) Sismember(ctx context.Context, key, member string) (bool, error) {
	return c.e.SIsMember(ctx, key, member)
}

func (c *Client) Smembers(ctx context.Context, key string) ([]string, error) {
	return c.e.SMembers(ctx, key)
}

// Multi starts an ioredis-style pipeline. Nothing runs until Exec is called.
func (c *Client) Multi() *Pipeline {
	return &Pipeline{tx: engine.NewTxController(c.e)}
}
