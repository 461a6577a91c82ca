package server

import (
	"bufio"
	"context"
	"net"
	"strings"

	"github.com/smallnest/redisqlite/engine"
	"github.com/smallnest/redisqlite/resp"
)

// connState is the per-connection state the TCP dispatcher threads through
// every command: whether AUTH has succeeded yet, and the Transaction
// Controller tracking MULTI/EXEC buffering. Both die with the connection.
type connState struct {
	authed bool
	tx     *engine.TxController
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	dec := resp.NewDecoder(r)
	enc := resp.NewEncoder(w)

	state := &connState{
		authed: !s.engine.RequiresAuth(),
		tx:     engine.NewTxController(s.engine),
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		args, err := dec.ReadCommand()
		if err != nil {
			return
		}
		if len(args) == 0 {
			continue
		}

		name := strings.ToUpper(args[0])
		reply := s.dispatch(ctx, state, args)
		if err := enc.Encode(reply); err != nil {
			return
		}
		if err := enc.Flush(); err != nil {
			return
		}
		if name == "QUIT" {
			return
		}
	}
}

// dispatch handles one command for a connection: the auth gate, then
// connection-control commands (AUTH/PING/QUIT/INFO/MULTI/EXEC/DISCARD/
// WATCH/UNWATCH) directly, and everything else via either the Transaction
// Controller's queue (inside MULTI) or a standalone engine.Dispatch call.
func (s *Server) dispatch(ctx context.Context, state *connState, args []string) resp.Value {
	name := strings.ToUpper(args[0])
	rest := args[1:]

	if name != "AUTH" && !state.authed {
		return resp.NewError("NOAUTH Authentication required.")
	}

	switch name {
	case "AUTH":
		if len(rest) != 1 {
			return resp.NewError("ERR wrong number of arguments for 'auth' command")
		}
		if _, err := s.engine.Auth(rest[0]); err != nil {
			return errorToRESP(err)
		}
		state.authed = true
		return resp.NewSimpleString("OK")
	case "PING":
		if len(rest) == 0 {
			return resp.NewSimpleString("PONG")
		}
		return resp.NewBulkString([]byte(rest[0]))
	case "QUIT":
		return resp.NewSimpleString("OK")
	case "INFO":
		return resp.NewBulkString([]byte(infoText()))
	case "MULTI":
		return s.fromTx(state.tx.Multi())
	case "DISCARD":
		return s.fromTx(state.tx.Discard())
	case "WATCH":
		return s.fromTx(state.tx.Watch(rest))
	case "UNWATCH":
		return s.fromTx(state.tx.Unwatch())
	case "EXEC":
		replies, err := state.tx.Exec(ctx)
		if err != nil {
			return errorToRESP(err)
		}
		items := make([]resp.Value, len(replies))
		for i, r := range replies {
			items[i] = toRESP(r)
		}
		return resp.NewArray(items)
	}

	if state.tx.InMulti() {
		r, err := state.tx.Queue(name, rest)
		if err != nil {
			return errorToRESP(err)
		}
		return toRESP(r)
	}

	r, err := s.engine.Dispatch(ctx, name, rest)
	if err != nil {
		return errorToRESP(err)
	}
	return toRESP(r)
}

func (s *Server) fromTx(r engine.Reply, err error) resp.Value {
	if err != nil {
		return errorToRESP(err)
	}
	return toRESP(r)
}

// infoText builds the INFO reply. Job-queue libraries probe redis_version
// at startup to decide which command shapes to use, so the Server section
// reports a version new enough to unlock the commands this server actually
// implements.
func infoText() string {
	return "# Server\r\n" +
		"redis_version:7.0.0\r\n" +
		"redis_mode:standalone\r\n" +
		"arch_bits:64\r\n" +
		"# Clients\r\n" +
		"connected_clients:1\r\n" +
		"# Persistence\r\n" +
		"loading:0\r\n"
}
