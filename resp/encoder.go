package resp

import (
	"bufio"
	"fmt"
)

// Encoder writes Values as RESP2 frames to a buffered writer.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder wraps w. Callers typically pass bufio.NewWriter(conn).
func NewEncoder(w *bufio.Writer) *Encoder {
	return &Encoder{w: w}
}

// Flush flushes any buffered output to the underlying writer.
func (e *Encoder) Flush() error { return e.w.Flush() }

// Encode writes v and does not flush; callers batch a pipeline's replies
// and flush once at the end.
func (e *Encoder) Encode(v Value) error {
	switch v.Kind {
	case SimpleString:
		_, err := fmt.Fprintf(e.w, "+%s\r\n", v.Str)
		return err
	case Error:
		_, err := fmt.Fprintf(e.w, "-%s\r\n", v.Str)
		return err
	case Integer:
		_, err := fmt.Fprintf(e.w, ":%d\r\n", v.Int)
		return err
	case BulkString:
		if v.IsNull {
			_, err := e.w.WriteString("$-1\r\n")
			return err
		}
		if _, err := fmt.Fprintf(e.w, "$%d\r\n", len(v.Bulk)); err != nil {
			return err
		}
		if _, err := e.w.Write(v.Bulk); err != nil {
			return err
		}
		_, err := e.w.WriteString("\r\n")
		return err
	case Array:
		if v.IsNull {
			_, err := e.w.WriteString("*-1\r\n")
			return err
		}
		if _, err := fmt.Fprintf(e.w, "*%d\r\n", len(v.Items)); err != nil {
			return err
		}
		for _, item := range v.Items {
			if err := e.Encode(item); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("resp: unknown value kind %d", v.Kind)
	}
}
