package noderedis

import (
	"context"
	"strconv"

	"github.com/smallnest/redisqlite/engine"
)

// MultiBatch buffers commands between MultiExec() and Exec(), matching
// node-redis v4's multi() builder.
type MultiBatch struct {
	tx       *engine.TxController
	started  bool
	queueErr error
}

func (b *MultiBatch) queue(name string, args []string) *MultiBatch {
	if !b.started {
		if _, err := b.tx.Multi(); err != nil {
			b.queueErr = err
			return b
		}
		b.started = true
	}
	if _, err := b.tx.Queue(name, args); err != nil {
		b.queueErr = err
	}
	return b
}

func (b *MultiBatch) Set(key, value string) *MultiBatch {
	return b.queue("SET", []string{key, value})
}

func (b *MultiBatch) Get(key string) *MultiBatch {
	return b.queue("GET", []string{key})
}

func (b *MultiBatch) Del(keys ...string) *MultiBatch {
	return b.queue("DEL", keys)
}

func (b *MultiBatch) LPush(key string, values ...string) *MultiBatch {
	return b.queue("LPUSH", append([]string{key}, values...))
}

func (b *MultiBatch) RPush(key string, values ...string) *MultiBatch {
	return b.queue("RPUSH", append([]string{key}, values...))
}

func (b *MultiBatch) RPopLPush(src, dst string) *MultiBatch {
	return b.queue("RPOPLPUSH", []string{src, dst})
}

func (b *MultiBatch) HSet(key, field, value string) *MultiBatch {
	return b.queue("HSET", []string{key, field, value})
}

func (b *MultiBatch) SAdd(key string, members ...string) *MultiBatch {
	return b.queue("SADD", append([]string{key}, members...))
}

func (b *MultiBatch) Expire(key string, seconds int64) *MultiBatch {
	return b.queue("EXPIRE", []string{key, strconv.FormatInt(seconds, 10)})
}

// Exec runs every queued command in one transaction. Unlike the ioredis
// facade's per-command [error, value] pairs, node-redis v4's multi().exec()
// rejects the whole promise on the first command error — so this Exec
// returns (nil, error) as soon as any queued command's reply is an error,
// and otherwise a flat []any of the successful values in queue order.
func (b *MultiBatch) Exec(ctx context.Context) ([]any, error) {
	if b.queueErr != nil {
		return nil, b.queueErr
	}
	replies, err := b.tx.Exec(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(replies))
	for i, r := range replies {
		v, cmdErr := replyToValue(r)
		if cmdErr != nil {
			return nil, cmdErr
		}
		out[i] = v
	}
	return out, nil
}

func replyToValue(r engine.Reply) (any, error) {
	switch r.Kind {
	case engine.ReplyErr:
		// r.Err preserves the typed WRONGTYPE/NOAUTH/ERR classification;
		// callers errors.As on *engine.CommandError and read Prefix.
		return nil, r.Err
	case engine.ReplyOK:
		return r.Str, nil
	case engine.ReplyInt:
		return r.Int, nil
	case engine.ReplyBulk:
		return r.Str, nil
	case engine.ReplyNilBulk, engine.ReplyNilArray:
		return nil, nil
	case engine.ReplyArray:
		items := make([]any, len(r.Array))
		for i, item := range r.Array {
			v, err := replyToValue(item)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil
	default:
		return nil, nil
	}
}
