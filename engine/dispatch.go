package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/smallnest/redisqlite/storage"
)

// Dispatch runs a single command standalone (outside any MULTI/EXEC
// batch), opening its own write transaction or using a plain read
// connection as appropriate. The RESP server and both in-process facades
// call this for every command except the connection-control ones
// (AUTH/MULTI/EXEC/DISCARD/WATCH/UNWATCH/PING/QUIT/INFO), which they handle
// directly since those never reach a storage.Executor.
func (e *Engine) Dispatch(ctx context.Context, name string, args []string) (Reply, error) {
	upper := strings.ToUpper(name)

	if upper == "BRPOPLPUSH" {
		return e.dispatchBRPopLPush(ctx, args)
	}

	cmd, ok := Lookup(upper)
	if !ok {
		return Reply{}, ErrGeneric("unknown command '%s'", name)
	}
	if len(args) < cmd.minArgs {
		return Reply{}, ErrGeneric("wrong number of arguments for '%s' command", strings.ToLower(upper))
	}

	if cmd.write {
		var reply Reply
		err := e.withWrite(ctx, func(ex storage.Executor) error {
			var err error
			reply, err = cmd.handler(ctx, e, ex, args)
			return err
		})
		if err == nil {
			e.notifyAfterWrite(upper, args, reply)
		}
		return reply, err
	}
	return cmd.handler(ctx, e, e.read(), args)
}

// notifyAfterWrite wakes blocked BRPOPLPUSH waiters once a command that can
// make a list non-empty has committed. Waking strictly after commit matters:
// a waiter woken mid-transaction would re-attempt its RPOPLPUSH against a
// state it cannot yet observe and go back to sleep.
func (e *Engine) notifyAfterWrite(name string, args []string, reply Reply) {
	switch name {
	case "LPUSH", "RPUSH":
		e.blocking.notify(args[0])
	case "RPOPLPUSH":
		if reply.Kind != ReplyNilBulk {
			e.blocking.notify(args[1])
		}
	}
}

// dispatchBRPopLPush parses BRPOPLPUSH's timeout argument and calls the
// real blocking implementation, unlike its commandTable entry (used only
// from inside MULTI/EXEC, where blocking is impossible).
func (e *Engine) dispatchBRPopLPush(ctx context.Context, args []string) (Reply, error) {
	if len(args) < 3 {
		return Reply{}, ErrGeneric("wrong number of arguments for 'brpoplpush' command")
	}
	timeout, err := strconv.ParseFloat(args[2], 64)
	if err != nil || timeout < 0 {
		return Reply{}, ErrGeneric("timeout is not a float or out of range")
	}
	v, err := e.BRPopLPush(ctx, args[0], args[1], timeout)
	if err != nil {
		return Reply{}, err
	}
	return replyBulkPtr(v), nil
}
