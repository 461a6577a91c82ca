package engine

// ReplyKind tags the shape of a Reply, independent of the wire encoding —
// the RESP codec and the two in-process facades each map it to their own
// representation (RESP frames; []byte/nil/int64; language-native types).
type ReplyKind int

const (
	ReplyOK ReplyKind = iota
	ReplyInt
	ReplyBulk
	ReplyNilBulk
	ReplyArray
	ReplyNilArray
	ReplyErr
)

// Reply is the engine's command result, independent of any wire or
// language-binding representation.
type Reply struct {
	Kind  ReplyKind
	Int   int64
	Str   string
	Array []Reply
	// Err carries the original typed error when Kind is ReplyErr, so the
	// facades can hand callers a *CommandError whose Prefix is still the
	// real WRONGTYPE/NOAUTH/ERR classification. Str holds the same error
	// rendered as its wire text.
	Err *CommandError
}

func replyOK() Reply                { return Reply{Kind: ReplyOK, Str: "OK"} }
func replyInt(n int64) Reply        { return Reply{Kind: ReplyInt, Int: n} }
func replyBulk(s string) Reply      { return Reply{Kind: ReplyBulk, Str: s} }
func replyNilBulk() Reply           { return Reply{Kind: ReplyNilBulk} }
func replyNilArray() Reply          { return Reply{Kind: ReplyNilArray} }
func replyBulkPtr(s *string) Reply {
	if s == nil {
		return replyNilBulk()
	}
	return replyBulk(*s)
}
func replyStringArray(values []string) Reply {
	items := make([]Reply, len(values))
	for i, v := range values {
		items[i] = replyBulk(v)
	}
	return Reply{Kind: ReplyArray, Array: items}
}
func replyBulkPtrArray(values []*string) Reply {
	items := make([]Reply, len(values))
	for i, v := range values {
		items[i] = replyBulkPtr(v)
	}
	return Reply{Kind: ReplyArray, Array: items}
}

// errorReply wraps a CommandError as a Reply, used for per-command
// failures inside a MULTI/EXEC batch that must occupy that command's
// reply slot without aborting the rest of the batch.
func errorReply(err *CommandError) Reply {
	return Reply{Kind: ReplyErr, Str: err.Error(), Err: err}
}
