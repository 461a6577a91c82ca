// Package resp implements RESP2 (Redis Serialization Protocol) framing: a
// Value type representing any wire value, an incremental decoder that
// parses one command array from a buffered reader, and an encoder that
// writes Values back to the wire. Converting engine.Reply results into
// Values is done by the server package, not here.
//
// Only RESP2 is implemented: simple strings, errors, integers, bulk
// strings (including the null bulk string), and arrays (including the null
// array). RESP3 maps, sets, doubles, and push types are out of scope.
package resp

// Kind identifies which RESP2 frame a Value represents.
type Kind int

const (
	SimpleString Kind = iota
	Error
	Integer
	BulkString
	Array
)

// Value is a single RESP2 protocol value. Which field is meaningful depends
// on Kind: SimpleString/Error use Str, Integer uses Int, BulkString uses
// Bulk (nil Bulk with IsNull set is the RESP "$-1\r\n" null bulk string),
// and Array uses Items (nil Items with IsNull set is "*-1\r\n").
type Value struct {
	Kind   Kind
	Str    string
	Int    int64
	Bulk   []byte
	Items  []Value
	IsNull bool
}

// NewSimpleString builds a "+..." reply.
func NewSimpleString(s string) Value { return Value{Kind: SimpleString, Str: s} }

// NewError builds a "-..." reply. msg should already include the error
// class prefix (e.g. "WRONGTYPE ...").
func NewError(msg string) Value { return Value{Kind: Error, Str: msg} }

// NewInteger builds a ":..." reply.
func NewInteger(n int64) Value { return Value{Kind: Integer, Int: n} }

// NewBulkString builds a "$<len>\r\n<data>\r\n" reply.
func NewBulkString(b []byte) Value { return Value{Kind: BulkString, Bulk: b} }

// NewNullBulkString builds the RESP2 null bulk string, "$-1\r\n".
func NewNullBulkString() Value { return Value{Kind: BulkString, IsNull: true} }

// NewArray builds a "*<len>\r\n..." reply.
func NewArray(items []Value) Value { return Value{Kind: Array, Items: items} }

// NewNullArray builds the RESP2 null array, "*-1\r\n".
func NewNullArray() Value { return Value{Kind: Array, IsNull: true} }
