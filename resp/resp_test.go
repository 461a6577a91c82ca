package resp

import (
	"bufio"
	"bytes"
	"testing"
)

func TestDecoder_ReadCommand(t *testing.T) {
	raw := "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n"
	dec := NewDecoder(bufio.NewReader(bytes.NewBufferString(raw)))
	args, err := dec.ReadCommand()
	if err != nil {
		t.Fatalf("ReadCommand failed: %v", err)
	}
	want := []string{"SET", "k", "v"}
	if len(args) != len(want) {
		t.Fatalf("got %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("arg %d: got %q, want %q", i, args[i], want[i])
		}
	}
}

func TestTryParseCommand_Incomplete(t *testing.T) {
	buf := []byte("*2\r\n$3\r\nGET\r\n$1\r\n")
	_, _, err := TryParseCommand(buf)
	if err != ErrIncomplete {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
}

func TestTryParseCommand_CompleteReturnsConsumedBytes(t *testing.T) {
	raw := []byte("*2\r\n$3\r\nGET\r\n$1\r\nk\r\n")
	args, consumed, err := TryParseCommand(raw)
	if err != nil {
		t.Fatalf("TryParseCommand failed: %v", err)
	}
	if consumed != len(raw) {
		t.Fatalf("expected to consume %d bytes, got %d", len(raw), consumed)
	}
	if len(args) != 2 || args[0] != "GET" || args[1] != "k" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestTryParseCommand_TrailingDataNotConsumed(t *testing.T) {
	raw := []byte("*1\r\n$4\r\nPING\r\n*1\r\n$4\r\nPING\r\n")
	args, consumed, err := TryParseCommand(raw)
	if err != nil {
		t.Fatalf("TryParseCommand failed: %v", err)
	}
	if len(args) != 1 || args[0] != "PING" {
		t.Fatalf("unexpected args: %v", args)
	}
	if consumed >= len(raw) {
		t.Fatalf("expected partial consumption, consumed=%d total=%d", consumed, len(raw))
	}
	// The remainder should parse as the second command.
	args2, _, err := TryParseCommand(raw[consumed:])
	if err != nil {
		t.Fatalf("second TryParseCommand failed: %v", err)
	}
	if len(args2) != 1 || args2[0] != "PING" {
		t.Fatalf("unexpected second args: %v", args2)
	}
}

func TestEncoder_EncodesEveryKind(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	enc := NewEncoder(w)

	cases := []struct {
		v    Value
		want string
	}{
		{NewSimpleString("OK"), "+OK\r\n"},
		{NewError("ERR bad"), "-ERR bad\r\n"},
		{NewInteger(42), ":42\r\n"},
		{NewBulkString([]byte("hi")), "$2\r\nhi\r\n"},
		{NewNullBulkString(), "$-1\r\n"},
		{NewNullArray(), "*-1\r\n"},
		{NewArray([]Value{NewInteger(1), NewBulkString([]byte("x"))}), "*2\r\n:1\r\n$1\r\nx\r\n"},
	}
	for _, c := range cases {
		buf.Reset()
		if err := enc.Encode(c.v); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if err := enc.Flush(); err != nil {
			t.Fatalf("Flush failed: %v", err)
		}
		if buf.String() != c.want {
			t.Fatalf("got %q, want %q", buf.String(), c.want)
		}
	}
}
