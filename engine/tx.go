package engine

import (
	"context"
	"strings"

	"github.com/smallnest/redisqlite/storage"
)

// queuedCommand is one command buffered between MULTI and EXEC.
type queuedCommand struct {
	name string
	args []string
}

// TxController implements per-connection MULTI/EXEC/DISCARD/WATCH/UNWATCH
// transaction state. One TxController
// belongs to exactly one client connection; the RESP dispatcher and both
// in-process facades create one per session.
//
// WATCH/UNWATCH are accepted but implemented as no-ops: optimistic-lock
// semantics built on CAS of in-memory values don't carry over cleanly to a
// SQL-backed store where EXEC already runs the whole batch inside a single
// serializable SQLite transaction, stronger isolation than WATCH would add.
// This divergence from classic Redis is intentional (see DESIGN.md); callers
// relying on WATCH for optimistic concurrency control get serializable
// transactions instead.
type TxController struct {
	e         *Engine
	buffering bool
	dirty     bool
	queue     []queuedCommand
}

// NewTxController creates a Transaction Controller bound to e.
func NewTxController(e *Engine) *TxController {
	return &TxController{e: e}
}

// InMulti reports whether a MULTI block is currently buffering commands.
func (t *TxController) InMulti() bool { return t.buffering }

// Multi implements MULTI.
func (t *TxController) Multi() (Reply, error) {
	if t.buffering {
		return Reply{}, ErrGeneric("MULTI calls can not be nested")
	}
	t.buffering = true
	t.dirty = false
	t.queue = nil
	return replyOK(), nil
}

// Discard implements DISCARD: drops the buffered queue without running it.
func (t *TxController) Discard() (Reply, error) {
	if !t.buffering {
		return Reply{}, ErrGeneric("DISCARD without MULTI")
	}
	t.buffering = false
	t.dirty = false
	t.queue = nil
	return replyOK(), nil
}

// Watch implements WATCH as a documented no-op (see type doc).
func (t *TxController) Watch(keys []string) (Reply, error) {
	if t.buffering {
		return Reply{}, ErrGeneric("WATCH inside MULTI is not allowed")
	}
	return replyOK(), nil
}

// Unwatch implements UNWATCH as a documented no-op (see type doc).
func (t *TxController) Unwatch() (Reply, error) {
	return replyOK(), nil
}

// Queue buffers name/args for the next EXEC. It validates the command
// exists and has enough arguments eagerly, matching real Redis: an
// unknown command or wrong arity during MULTI replies with an immediate
// error AND marks the transaction dirty, so the eventual EXEC aborts
// rather than silently running a partial batch.
func (t *TxController) Queue(name string, args []string) (Reply, error) {
	if !t.buffering {
		return Reply{}, ErrGeneric("QUEUED without MULTI")
	}
	upper := strings.ToUpper(name)
	if upper == "MULTI" {
		t.dirty = true
		return Reply{}, ErrGeneric("MULTI calls can not be nested")
	}
	if upper != "EXEC" && upper != "DISCARD" && upper != "WATCH" && upper != "UNWATCH" && IsConnControl(upper) {
		t.dirty = true
		return Reply{}, ErrGeneric("%s is not allowed in transactions", upper)
	}
	cmd, ok := Lookup(upper)
	if !ok {
		t.dirty = true
		return Reply{}, ErrGeneric("unknown command '%s'", name)
	}
	if len(args) < cmd.minArgs {
		t.dirty = true
		return Reply{}, ErrGeneric("wrong number of arguments for '%s' command", strings.ToLower(upper))
	}
	t.queue = append(t.queue, queuedCommand{name: upper, args: args})
	return replyBulk("QUEUED"), nil
}

// Exec implements EXEC: runs every queued command inside one write
// transaction. A per-command logic error (WRONGTYPE, bad argument, a
// precondition miss) occupies that command's reply slot without aborting
// the rest of the batch — the same contract a single such command has
// outside MULTI. A storage-layer failure underneath a command instead
// aborts and rolls back the entire batch, since SQLite itself can no
// longer vouch for the remaining commands' preconditions once one fails.
func (t *TxController) Exec(ctx context.Context) ([]Reply, error) {
	if !t.buffering {
		return nil, ErrGeneric("EXEC without MULTI")
	}
	queue := t.queue
	dirty := t.dirty
	t.buffering = false
	t.dirty = false
	t.queue = nil

	if dirty {
		return nil, ErrGeneric("EXECABORT Transaction discarded because of previous errors.")
	}

	replies := make([]Reply, len(queue))
	notify := make([]string, 0, len(queue))
	err := t.e.withWrite(ctx, func(ex storage.Executor) error {
		for i, qc := range queue {
			var r Reply
			var cerr error
			switch qc.name {
			case "BRPOPLPUSH":
				// Never blocks inside EXEC: the batch already holds the
				// single-writer transaction a blocking wait would need to
				// release and re-acquire.
				r, cerr = cmdRPopLPushNonBlocking(ctx, t.e, ex, qc.args)
				if cerr == nil && r.Kind != ReplyNilBulk {
					notify = append(notify, qc.args[1])
				}
			case "LPUSH", "RPUSH":
				cmd, _ := Lookup(qc.name)
				r, cerr = cmd.handler(ctx, t.e, ex, qc.args)
				if cerr == nil {
					notify = append(notify, qc.args[0])
				}
			case "RPOPLPUSH":
				cmd, _ := Lookup(qc.name)
				r, cerr = cmd.handler(ctx, t.e, ex, qc.args)
				if cerr == nil && r.Kind != ReplyNilBulk {
					notify = append(notify, qc.args[1])
				}
			default:
				cmd, _ := Lookup(qc.name)
				r, cerr = cmd.handler(ctx, t.e, ex, qc.args)
			}
			if cerr != nil {
				if ce, ok := cerr.(*CommandError); ok {
					replies[i] = errorReply(ce)
					continue
				}
				return cerr
			}
			replies[i] = r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, key := range notify {
		t.e.blocking.notify(key)
	}
	return replies, nil
}
