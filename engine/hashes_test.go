package engine

import (
	"context"
	"testing"
)

func TestHSet_NewFieldReturnsOne(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	n, err := e.HSet(ctx, "h", "f1", "v1")
	if err != nil {
		t.Fatalf("HSet failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 for newly added field, got %d", n)
	}

	n, err = e.HSet(ctx, "h", "f1", "v2")
	if err != nil {
		t.Fatalf("HSet failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 for an overwritten field, got %d", n)
	}

	v, err := e.HGet(ctx, "h", "f1")
	if err != nil {
		t.Fatalf("HGet failed: %v", err)
	}
	if v == nil || *v != "v2" {
		t.Fatalf("expected \"v2\", got %v", v)
	}
}

func TestHSetMulti_CountsOnlyNewFields(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	added, err := e.HSetMulti(ctx, "h", []string{"a", "b"}, []string{"1", "2"})
	if err != nil {
		t.Fatalf("HSetMulti failed: %v", err)
	}
	if added != 2 {
		t.Fatalf("expected 2 new fields, got %d", added)
	}

	added, err = e.HSetMulti(ctx, "h", []string{"a", "c"}, []string{"10", "3"})
	if err != nil {
		t.Fatalf("HSetMulti failed: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected 1 new field (c), got %d", added)
	}
}

func TestHMGet_PreservesOrderForMissingFields(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.HSet(ctx, "h", "a", "1"); err != nil {
		t.Fatalf("HSet failed: %v", err)
	}

	got, err := e.HMGet(ctx, "h", []string{"a", "missing"})
	if err != nil {
		t.Fatalf("HMGet failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0] == nil || *got[0] != "1" {
		t.Fatalf("expected \"1\", got %v", got[0])
	}
	if got[1] != nil {
		t.Fatalf("expected nil for a missing field, got %v", *got[1])
	}
}

func TestHDel_ReturnsTrueDeletedCount(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.HSetMulti(ctx, "h", []string{"a", "b"}, []string{"1", "2"}); err != nil {
		t.Fatalf("HSetMulti failed: %v", err)
	}

	// Ask to delete one present field and one absent field: the true
	// count must be 1, not len(fields).
	deleted, err := e.HDel(ctx, "h", "a", "nope")
	if err != nil {
		t.Fatalf("HDel failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected true deleted count of 1, got %d", deleted)
	}
}

func TestHDel_LastFieldReleasesKeyType(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.HSet(ctx, "h", "only", "v"); err != nil {
		t.Fatalf("HSet failed: %v", err)
	}
	if _, err := e.HDel(ctx, "h", "only"); err != nil {
		t.Fatalf("HDel failed: %v", err)
	}

	// With the key type released, it should be free to become a list.
	if _, err := e.LPush(ctx, "h", "x"); err != nil {
		t.Fatalf("expected h to be reusable as a list after its last hash field was deleted: %v", err)
	}
}
