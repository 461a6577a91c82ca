package engine

import (
	"context"
	"testing"
	"time"
)

func TestDispatch_SetGetDel(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	r, err := e.Dispatch(ctx, "set", []string{"k", "v"})
	if err != nil || r.Kind != ReplyOK {
		t.Fatalf("SET dispatch failed: %v %+v", err, r)
	}

	r, err = e.Dispatch(ctx, "GET", []string{"k"})
	if err != nil || r.Kind != ReplyBulk || r.Str != "v" {
		t.Fatalf("GET dispatch failed: %v %+v", err, r)
	}

	r, err = e.Dispatch(ctx, "DEL", []string{"k"})
	if err != nil || r.Kind != ReplyInt || r.Int != 1 {
		t.Fatalf("DEL dispatch failed: %v %+v", err, r)
	}
}

func TestDispatch_UnknownCommand(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.Dispatch(context.Background(), "NOPE", nil); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestDispatch_BRPopLPushImmediateHit(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.Dispatch(ctx, "RPUSH", []string{"src", "a", "b"}); err != nil {
		t.Fatalf("RPUSH failed: %v", err)
	}
	r, err := e.Dispatch(ctx, "BRPOPLPUSH", []string{"src", "dst", "0.1"})
	if err != nil {
		t.Fatalf("BRPOPLPUSH failed: %v", err)
	}
	if r.Kind != ReplyBulk || r.Str != "b" {
		t.Fatalf("expected bulk \"b\", got %+v", r)
	}
}

// TestDispatch_PushWakesBlockedWaiter covers the dispatcher path the RESP
// server uses: a push routed through Dispatch (not the typed LPush method)
// must still wake a BRPOPLPUSH waiter blocked on that key.
func TestDispatch_PushWakesBlockedWaiter(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	type popResult struct {
		v   *string
		err error
	}
	ch := make(chan popResult, 1)
	go func() {
		v, err := e.BRPopLPush(ctx, "src", "dst", 5)
		ch <- popResult{v, err}
	}()

	time.Sleep(50 * time.Millisecond)
	if _, err := e.Dispatch(ctx, "LPUSH", []string{"src", "woke"}); err != nil {
		t.Fatalf("LPUSH dispatch failed: %v", err)
	}

	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("BRPopLPush failed: %v", r.err)
		}
		if r.v == nil || *r.v != "woke" {
			t.Fatalf("expected \"woke\", got %v", r.v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter did not wake after a dispatched push")
	}
}

func TestDispatch_BRPopLPushTimesOut(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	r, err := e.Dispatch(ctx, "BRPOPLPUSH", []string{"nosrc", "dst", "0.05"})
	if err != nil {
		t.Fatalf("BRPOPLPUSH failed: %v", err)
	}
	if r.Kind != ReplyNilBulk {
		t.Fatalf("expected nil bulk on timeout, got %+v", r)
	}
}
