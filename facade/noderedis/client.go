// Package noderedis is a thin in-process facade shaped like node-redis v4:
// multi-word commands use node-redis's camelCase method names (HGet,
// RPopLPush, MGet, FlushDB) rather than ioredis's all-lowercase
// concatenation, and MultiExec's Exec throws on the first command error —
// returning (nil, error) for the whole batch — instead of ioredis's
// per-command [error, value] pairs (see facade/ioredis).
//
// Every method is a direct call into an *engine.Engine; this package adds
// no storage or protocol logic of its own.
package noderedis

import (
	"context"

	"github.com/smallnest/redisqlite/engine"
	"github.com/smallnest/redisqlite/storage"
)

// Options configures a self-contained Client opened by CreateClient,
// mirroring the option bag node-redis v4's createClient takes.
type Options struct {
	// Filename is the SQLite database path; empty means ":memory:".
	Filename string
	// Password, when non-empty, is configured on the engine so a RESP
	// server sharing the same database still gates remote clients. The
	// in-process caller that supplied it is implicitly authenticated.
	Password string
}

// Client wraps an Engine with node-redis-v4-shaped method names.
type Client struct {
	e     *engine.Engine
	store *storage.Store // non-nil only when CreateClient opened it
}

// New wraps an existing engine; the caller keeps ownership of its storage.
func New(e *engine.Engine) *Client {
	return &Client{e: e}
}

// CreateClient opens a Client that owns its own storage. Callers must
// Close it to release the database.
func CreateClient(opts Options) (*Client, error) {
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

// Close releases the storage a CreateClient-opened Client owns. It is a
// no-op for Clients created with New.
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

func (c *Client) MGet(ctx context.Context, keys []string) ([]*string, error) {
	return c.e.MGet(ctx, keys)
}

func (c *Client) Del(ctx context.Context, keys []string) (int, error) {
	return c.e.Del(ctx, keys)
}

func (c *Client) Exists(ctx context.Context, keys []string) (int, error) {
	return c.e.Exists(ctx, keys)
}

func (c *Client) Expire(ctx context.Context, key string, seconds int64) (bool, error) {
	return c.e.Expire(ctx, key, seconds)
}

func (c *Client) TTL(ctx context.Context, key string) (int, error) {
	return c.e.TTL(ctx, key)
}

func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	return c.e.Keys(ctx, pattern)
}

func (c *Client) FlushDB(ctx context.Context) (string, error) {
	return c.e.Flush(ctx)
}

func (c *Client) FlushAll(ctx context.Context) (string, error) {
	return c.e.Flush(ctx)
}

func (c *Client) LPush(ctx context.Context, key string, values []string) (int, error) {
	return c.e.LPush(ctx, key, values...)
}

func (c *Client) RPush(ctx context.Context, key string, values []string) (int, error) {
	return c.e.RPush(ctx, key, values...)
}

func (c *Client) LPop(ctx context.Context, key string) (*string, error) {
	return c.e.LPop(ctx, key)
}

func (c *Client) RPop(ctx context.Context, key string) (*string, error) {
	return c.e.RPop(ctx, key)
}

func (c *Client) LRange(ctx context.Context, key string, start, stop int) ([]string, error) {
	return c.e.LRange(ctx, key, start, stop)
}

func (c *Client) RPopLPush(ctx context.Context, src, dst string) (*string, error) {
	return c.e.RPopLPush(ctx, src, dst)
}

func (c *Client) BRPopLPush(ctx context.Context, src, dst string, timeoutSec float64) (*string, error) {
	return c.e.BRPopLPush(ctx, src, dst, timeoutSec)
}

func (c *Client) HSet(ctx context.Context, key, field, value string) (int, error) {
	return c.e.HSet(ctx, key, field, value)
}

func (c *Client) HGet(ctx context.Context, key, field string) (*string, error) {
	return c.e.HGet(ctx, key, field)
}

func (c *Client) HMGet(ctx context.Context, key string, fields []string) ([]*string, error) {
	return c.e.HMGet(ctx, key, fields)
}

func (c *Client) HDel(ctx context.Context, key string, fields []string) (int, error) {
	return c.e.HDel(ctx, key, fields...)
}

func (c *Client) SAdd(ctx context.Context, key string, members []string) (int, error) {
	return c.e.SAdd(ctx, key, members...)
}

func (c *Client) SRem(ctx context.Context, key string, members []string) (int, error) {
	return c.e.SRem(ctx, key, members...)
}

func (c *Client) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return c.e.SIsMember(ctx, key, member)
}

func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	return c.e.SMembers(ctx, key)
}

// MultiExec starts a node-redis-v4-style batch. Nothing runs until Exec is
// called.
func (c *Client) MultiExec() *MultiBatch {
	return &MultiBatch{tx: engine.NewTxController(c.e)}
}
