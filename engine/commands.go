package engine

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/smallnest/redisqlite/storage"
)

// commandHandler runs a single command against an already-open executor:
// either a fresh write transaction (standalone dispatch) or the shared
// transaction a MULTI/EXEC batch is running inside.
type commandHandler func(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error)

// command describes one entry of the dispatch table shared by the RESP
// server, the Transaction Controller's EXEC loop, and both facades.
type command struct {
	name    string
	minArgs int
	write   bool
	handler commandHandler
}

// commandTable holds every command except the ones that manage connection
// or transaction state directly (AUTH, MULTI, EXEC, DISCARD, WATCH,
// UNWATCH, PING, QUIT, INFO; see connControlCommands) — those never reach a
// storage.Executor and are handled by the Transaction Controller and the
// server's dispatcher instead.
var commandTable = map[string]command{
	"SET":         {"SET", 2, true, cmdSet},
	"GET":         {"GET", 1, false, cmdGet},
	"MGET":        {"MGET", 1, false, cmdMGet},
	"DEL":         {"DEL", 1, true, cmdDel},
	"EXISTS":      {"EXISTS", 1, false, cmdExists},
	"EXPIRE":      {"EXPIRE", 2, true, cmdExpire},
	"TTL":         {"TTL", 1, false, cmdTTL},
	"KEYS":        {"KEYS", 1, false, cmdKeys},
	"FLUSHDB":     {"FLUSHDB", 0, true, cmdFlush},
	"FLUSHALL":    {"FLUSHALL", 0, true, cmdFlush},
	"LPUSH":       {"LPUSH", 2, true, cmdLPush},
	"RPUSH":       {"RPUSH", 2, true, cmdRPush},
	"LPOP":        {"LPOP", 1, true, cmdLPop},
	"RPOP":        {"RPOP", 1, true, cmdRPop},
	"LRANGE":      {"LRANGE", 3, false, cmdLRange},
	"RPOPLPUSH":   {"RPOPLPUSH", 2, true, cmdRPopLPush},
	"BRPOPLPUSH":  {"BRPOPLPUSH", 3, true, cmdRPopLPushNonBlocking},
	"HSET":        {"HSET", 3, true, cmdHSet},
	"HMSET":       {"HMSET", 3, true, cmdHMSet},
	"HGET":        {"HGET", 2, false, cmdHGet},
	"HMGET":       {"HMGET", 2, false, cmdHMGet},
	"HDEL":        {"HDEL", 2, true, cmdHDel},
	"SADD":        {"SADD", 2, true, cmdSAdd},
	"SREM":        {"SREM", 2, true, cmdSRem},
	"SISMEMBER":   {"SISMEMBER", 2, false, cmdSIsMember},
	"SMEMBERS":    {"SMEMBERS", 1, false, cmdSMembers},
}

// connControlCommands names the commands the Transaction Controller and
// auth gate handle directly rather than looking up in commandTable.
var connControlCommands = map[string]bool{
	"AUTH": true, "MULTI": true, "EXEC": true, "DISCARD": true,
	"WATCH": true, "UNWATCH": true, "PING": true, "QUIT": true,
	"INFO": true,
}

// Lookup returns the command table entry for name (case-insensitive), and
// whether it was found.
func Lookup(name string) (command, bool) {
	c, ok := commandTable[strings.ToUpper(name)]
	return c, ok
}

// IsConnControl reports whether name is handled outside commandTable.
func IsConnControl(name string) bool {
	return connControlCommands[strings.ToUpper(name)]
}

func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrGeneric("value is not an integer or out of range")
	}
	return n, nil
}

func cmdSet(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	key, value := args[0], args[1]
	opts := SetOptions{}
	now := storage.NowMillis()
	for i := 2; i < len(args); i++ {
		switch strings.ToUpper(args[i]) {
		case "NX":
			opts.NX = true
		case "XX":
			opts.XX = true
		case "EX":
			if i+1 >= len(args) {
				return Reply{}, ErrGeneric("syntax error")
			}
			i++
			seconds, err := parseInt(args[i])
			if err != nil {
				return Reply{}, err
			}
			at := now + seconds*1000
			opts.ExpireAt = &at
		case "PX":
			if i+1 >= len(args) {
				return Reply{}, ErrGeneric("syntax error")
			}
			i++
			millis, err := parseInt(args[i])
			if err != nil {
				return Reply{}, err
			}
			at := now + millis
			opts.ExpireAt = &at
		default:
			return Reply{}, ErrGeneric("syntax error")
		}
	}
	ok, err := e.doSet(ctx, ex, key, value, opts)
	if err != nil {
		return Reply{}, err
	}
	if !ok {
		return replyNilBulk(), nil
	}
	return replyOK(), nil
}

func cmdGet(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	v, err := e.doGet(ctx, ex, args[0])
	if err != nil {
		return Reply{}, err
	}
	return replyBulkPtr(v), nil
}

func cmdMGet(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	out := make([]*string, len(args))
	for i, k := range args {
		v, err := e.doGet(ctx, ex, k)
		if err != nil {
			if _, ok := err.(*CommandError); ok {
				out[i] = nil
				continue
			}
			return Reply{}, err
		}
		out[i] = v
	}
	return replyBulkPtrArray(out), nil
}

func cmdDel(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	removed := 0
	for _, key := range args {
		kind, err := kindOf(ctx, ex, e.store, key)
		if err != nil {
			return Reply{}, err
		}
		if kind == storage.KindNone {
			continue
		}
		table := tableForKind(e.store, kind)
		res, err := ex.ExecContext(ctx, "DELETE FROM "+table+" WHERE key = ?", key)
		if err != nil {
			return Reply{}, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return Reply{}, err
		}
		if n > 0 {
			removed++
		}
		if err := releaseType(ctx, ex, e.store, key); err != nil {
			return Reply{}, err
		}
	}
	return replyInt(int64(removed)), nil
}

func cmdExists(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	count := 0
	for _, key := range args {
		_, live, err := keyExistsLive(ctx, ex, e.store, key)
		if err != nil {
			return Reply{}, err
		}
		if live {
			count++
		}
	}
	return replyInt(int64(count)), nil
}

func cmdExpire(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	seconds, err := parseInt(args[1])
	if err != nil {
		return Reply{}, err
	}
	kind, live, err := keyExistsLive(ctx, ex, e.store, args[0])
	if err != nil {
		return Reply{}, err
	}
	if !live {
		return replyInt(0), nil
	}
	table := tableForKind(e.store, kind)
	expiry := storage.NowMillis() + seconds*1000
	if _, err := ex.ExecContext(ctx, "UPDATE "+table+" SET expiry = ? WHERE key = ?", expiry, args[0]); err != nil {
		return Reply{}, err
	}
	return replyInt(1), nil
}

func cmdTTL(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	kind, live, err := keyExistsLive(ctx, ex, e.store, args[0])
	if err != nil {
		return Reply{}, err
	}
	if !live {
		return replyInt(-2), nil
	}
	table := tableForKind(e.store, kind)
	now := storage.NowMillis()
	row := ex.QueryRowContext(ctx, "SELECT expiry FROM "+table+" WHERE key = ? AND "+liveClause+" LIMIT 1", args[0], now)
	var nullable sql.NullInt64
	if err := row.Scan(&nullable); err != nil {
		return Reply{}, err
	}
	if !nullable.Valid {
		return replyInt(-1), nil
	}
	remainingMs := nullable.Int64 - now
	seconds := (remainingMs + 999) / 1000
	return replyInt(seconds), nil
}

func cmdKeys(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	keys, err := e.doKeys(ctx, ex, args[0])
	if err != nil {
		return Reply{}, err
	}
	return replyStringArray(keys), nil
}

func cmdFlush(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	for _, table := range []string{
		e.store.StringTable(), e.store.HashTable(), e.store.ListTable(),
		e.store.SetTable(), e.store.KeyTypeTable(),
	} {
		if _, err := ex.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return Reply{}, err
		}
	}
	return replyOK(), nil
}

func cmdLPush(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	n, err := e.doLPush(ctx, ex, args[0], args[1:])
	if err != nil {
		return Reply{}, err
	}
	return replyInt(int64(n)), nil
}

func cmdRPush(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	n, err := e.doRPush(ctx, ex, args[0], args[1:])
	if err != nil {
		return Reply{}, err
	}
	return replyInt(int64(n)), nil
}

func cmdLPop(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	v, err := e.doLPop(ctx, ex, args[0])
	if err != nil {
		return Reply{}, err
	}
	return replyBulkPtr(v), nil
}

func cmdRPop(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	v, err := e.doRPop(ctx, ex, args[0])
	if err != nil {
		return Reply{}, err
	}
	return replyBulkPtr(v), nil
}

func cmdLRange(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	start, err := parseInt(args[1])
	if err != nil {
		return Reply{}, err
	}
	stop, err := parseInt(args[2])
	if err != nil {
		return Reply{}, err
	}
	if err := requireType(ctx, ex, e.store, args[0], storage.KindList); err != nil {
		return Reply{}, err
	}
	length, err := listLen(ctx, ex, e.store, args[0])
	if err != nil {
		return Reply{}, err
	}
	lo, hi, ok := clampRange(int(start), int(stop), length)
	if !ok {
		return replyStringArray([]string{}), nil
	}
	now := storage.NowMillis()
	rows, err := ex.QueryContext(ctx,
		"SELECT value FROM "+e.store.ListTable()+" WHERE key = ? AND idx BETWEEN ? AND ? AND "+liveClause+" ORDER BY idx ASC",
		args[0], lo, hi, now,
	)
	if err != nil {
		return Reply{}, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return Reply{}, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return Reply{}, err
	}
	return replyStringArray(out), nil
}

func cmdRPopLPush(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	v, err := e.doRPopLPush(ctx, ex, args[0], args[1])
	if err != nil {
		return Reply{}, err
	}
	return replyBulkPtr(v), nil
}

// cmdRPopLPushNonBlocking is BRPOPLPUSH's entry in commandTable: it is only
// ever reached from inside a MULTI/EXEC batch, where blocking is impossible
// (the batch already holds the single writer transaction) and Redis itself
// degrades BRPOPLPUSH to a non-blocking RPOPLPUSH in that context. Standalone
// BRPOPLPUSH is special-cased by the dispatcher to call (*Engine).BRPopLPush
// directly instead of going through this table entry.
func cmdRPopLPushNonBlocking(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	return cmdRPopLPush(ctx, e, ex, args[:2])
}

func cmdHSet(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	key := args[0]
	rest := args[1:]
	if len(rest)%2 != 0 {
		return Reply{}, ErrGeneric("wrong number of arguments for 'hset' command")
	}
	added := 0
	for i := 0; i < len(rest); i += 2 {
		isNew, err := e.doHSetField(ctx, ex, key, rest[i], rest[i+1])
		if err != nil {
			return Reply{}, err
		}
		if isNew {
			added++
		}
	}
	return replyInt(int64(added)), nil
}

func cmdHMSet(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	if _, err := cmdHSet(ctx, e, ex, args); err != nil {
		return Reply{}, err
	}
	return replyOK(), nil
}

func cmdHGet(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	v, err := e.doHGet(ctx, ex, args[0], args[1])
	if err != nil {
		return Reply{}, err
	}
	return replyBulkPtr(v), nil
}

func cmdHMGet(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	key := args[0]
	out := make([]*string, len(args)-1)
	for i, f := range args[1:] {
		v, err := e.doHGet(ctx, ex, key, f)
		if err != nil {
			return Reply{}, err
		}
		out[i] = v
	}
	return replyBulkPtrArray(out), nil
}

func cmdHDel(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	key := args[0]
	if err := requireType(ctx, ex, e.store, key, storage.KindHash); err != nil {
		return Reply{}, err
	}
	deleted := 0
	for _, f := range args[1:] {
		res, err := ex.ExecContext(ctx, "DELETE FROM "+e.store.HashTable()+" WHERE key = ? AND field = ?", key, f)
		if err != nil {
			return Reply{}, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return Reply{}, err
		}
		deleted += int(n)
	}
	var remaining int
	row := ex.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+e.store.HashTable()+" WHERE key = ?", key)
	if err := row.Scan(&remaining); err != nil {
		return Reply{}, err
	}
	if remaining == 0 {
		if err := releaseType(ctx, ex, e.store, key); err != nil {
			return Reply{}, err
		}
	}
	return replyInt(int64(deleted)), nil
}

func cmdSAdd(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	key := args[0]
	if err := requireType(ctx, ex, e.store, key, storage.KindSet); err != nil {
		return Reply{}, err
	}
	if err := purgeExpired(ctx, ex, e.store.SetTable(), key); err != nil {
		return Reply{}, err
	}
	expiry, err := setExpiry(ctx, ex, e.store, key)
	if err != nil {
		return Reply{}, err
	}
	var exp any
	if expiry.Valid {
		exp = expiry.Int64
	}
	added := 0
	for _, m := range args[1:] {
		res, err := ex.ExecContext(ctx,
			"INSERT INTO "+e.store.SetTable()+" (key, member, expiry) VALUES (?, ?, ?) ON CONFLICT(key, member) DO NOTHING",
			key, m, exp,
		)
		if err != nil {
			return Reply{}, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return Reply{}, err
		}
		added += int(n)
	}
	if added > 0 {
		if err := claimType(ctx, ex, e.store, key, storage.KindSet); err != nil {
			return Reply{}, err
		}
	}
	return replyInt(int64(added)), nil
}

func cmdSRem(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	key := args[0]
	if err := requireType(ctx, ex, e.store, key, storage.KindSet); err != nil {
		return Reply{}, err
	}
	removed := 0
	for _, m := range args[1:] {
		res, err := ex.ExecContext(ctx, "DELETE FROM "+e.store.SetTable()+" WHERE key = ? AND member = ?", key, m)
		if err != nil {
			return Reply{}, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return Reply{}, err
		}
		removed += int(n)
	}
	var remaining int
	row := ex.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+e.store.SetTable()+" WHERE key = ?", key)
	if err := row.Scan(&remaining); err != nil {
		return Reply{}, err
	}
	if remaining == 0 {
		if err := releaseType(ctx, ex, e.store, key); err != nil {
			return Reply{}, err
		}
	}
	return replyInt(int64(removed)), nil
}

func cmdSIsMember(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	key, member := args[0], args[1]
	if err := requireType(ctx, ex, e.store, key, storage.KindSet); err != nil {
		return Reply{}, err
	}
	now := storage.NowMillis()
	var dummy int
	row := ex.QueryRowContext(ctx,
		"SELECT 1 FROM "+e.store.SetTable()+" WHERE key = ? AND member = ? AND "+liveClause,
		key, member, now,
	)
	err := row.Scan(&dummy)
	if err == nil {
		return replyInt(1), nil
	}
	if err == sql.ErrNoRows {
		return replyInt(0), nil
	}
	return Reply{}, err
}

func cmdSMembers(ctx context.Context, e *Engine, ex storage.Executor, args []string) (Reply, error) {
	key := args[0]
	if err := requireType(ctx, ex, e.store, key, storage.KindSet); err != nil {
		return Reply{}, err
	}
	now := storage.NowMillis()
	rows, err := ex.QueryContext(ctx,
		"SELECT member FROM "+e.store.SetTable()+" WHERE key = ? AND "+liveClause+" ORDER BY member ASC",
		key, now,
	)
	if err != nil {
		return Reply{}, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return Reply{}, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return Reply{}, err
	}
	return replyStringArray(out), nil
}
