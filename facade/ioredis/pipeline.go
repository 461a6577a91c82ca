package ioredis

import (
	"context"
	"strconv"

	"github.com/smallnest/redisqlite/engine"
)

// Pipeline buffers commands between Multi() and Exec(), matching ioredis's
// chainable multi() builder.
type Pipeline struct {
	tx       *engine.TxController
	started  bool
	queueErr error
}

// Result is one [error, value] pair, matching the shape ioredis's
// multi().exec() callback hands back per queued command.
type Result struct {
	Err   error
	Value any
}

func (p *Pipeline) queue(name string, args []string) *Pipeline {
	if !p.started {
		if _, err := p.tx.Multi(); err != nil {
			p.queueErr = err
			return p
		}
		p.started = true
	}
	if _, err := p.tx.Queue(name, args); err != nil {
		p.queueErr = err
	}
	return p
}

func (p *Pipeline) Set(key, value string) *Pipeline {
	return p.queue("SET", []string{key, value})
}

func (p *Pipeline) Get(key string) *Pipeline {
	return p.queue("GET", []string{key})
}

func (p *Pipeline) Del(keys ...string) *Pipeline {
	return p.queue("DEL", keys)
}

func (p *Pipeline) Lpush(key string, values ...string) *Pipeline {
	return p.queue("LPUSH", append([]string{key}, values...))
}

func (p *Pipeline) Rpush(key string, values ...string) *Pipeline {
	return p.queue("RPUSH", append([]string{key}, values...))
}

func (p *Pipeline) Rpoplpush(src, dst string) *Pipeline {
	return p.queue("RPOPLPUSH", []string{src, dst})
}

func (p *Pipeline) Hset(key, field, value string) *Pipeline {
	return p.queue("HSET", []string{key, field, value})
}

func (p *Pipeline) Sadd(key string, members ...string) *Pipeline {
	return p.queue("SADD", append([]string{key}, members...))
}

func (p *Pipeline) Expire(key string, seconds int64) *Pipeline {
	return p.queue("EXPIRE", []string{key, strconv.FormatInt(seconds, 10)})
}

// Exec runs every queued command in one transaction and returns one
// [error, value] Result per command, in queue order — ioredis never
// aborts the whole batch over one command's logic error, it reports that
// slot's error and keeps going, exactly like this package's Exec.
func (p *Pipeline) Exec(ctx context.Context) ([]Result, error) {
	if p.queueErr != nil {
		return nil, p.queueErr
	}
	replies, err := p.tx.Exec(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Result, len(replies))
	for i, r := range replies {
		out[i] = replyToResult(r)
	}
	return out, nil
}

func replyToResult(r engine.Reply) Result {
	switch r.Kind {
	case engine.ReplyErr:
		// r.Err preserves the typed WRONGTYPE/NOAUTH/ERR classification;
		// callers errors.As on *engine.CommandError and read Prefix.
		return Result{Err: r.Err}
	case engine.ReplyOK:
		return Result{Value: r.Str}
	case engine.ReplyInt:
		return Result{Value: r.Int}
	case engine.ReplyBulk:
		return Result{Value: r.Str}
	case engine.ReplyNilBulk, engine.ReplyNilArray:
		return Result{Value: nil}
	case engine.ReplyArray:
		items := make([]any, len(r.Array))
		for i, item := range r.Array {
			items[i] = replyToResult(item).Value
		}
		return Result{Value: items}
	default:
		return Result{}
	}
}
