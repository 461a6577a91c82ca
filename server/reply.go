package server

import (
	"github.com/smallnest/redisqlite/engine"
	"github.com/smallnest/redisqlite/resp"
)

// toRESP converts an engine.Reply into the RESP2 Value the wire protocol
// expects. The engine package stays free of any wire-format concern;
// this is the one place that couples the two together.
func toRESP(r engine.Reply) resp.Value {
	switch r.Kind {
	case engine.ReplyOK:
		return resp.NewSimpleString(r.Str)
	case engine.ReplyInt:
		return resp.NewInteger(r.Int)
	case engine.ReplyBulk:
		return resp.NewBulkString([]byte(r.Str))
	case engine.ReplyNilBulk:
		return resp.NewNullBulkString()
	case engine.ReplyNilArray:
		return resp.NewNullArray()
	case engine.ReplyErr:
		return resp.NewError(r.Str)
	case engine.ReplyArray:
		items := make([]resp.Value, len(r.Array))
		for i, item := range r.Array {
			items[i] = toRESP(item)
		}
		return resp.NewArray(items)
	default:
		return resp.NewError("ERR internal error: unknown reply kind")
	}
}

// errorToRESP wraps a Go error returned alongside a failed engine call as
// a RESP error Value. *engine.CommandError carries its own prefix; any
// other error (a storage-layer failure) is reported generically so a
// SQL error message never reaches the wire verbatim.
func errorToRESP(err error) resp.Value {
	if ce, ok := err.(*engine.CommandError); ok {
		return resp.NewError(ce.Error())
	}
	return resp.NewError("ERR internal error")
}
