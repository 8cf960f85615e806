package optimistic

import (
	"errors"
	"sync"
	"testing"
)

func TestRollbackRestoresPriorOnce(t *testing.T) {
	tr := New[string]()
	tr.Put("p1", "unassigned")

	if err := tr.Apply("r1", "p1", "ana"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if v, _ := tr.Get("p1"); v != "ana" {
		t.Fatalf("expected optimistic value, got %q", v)
	}
	if !tr.Rollback("r1") {
		t.Fatalf("first rollback should apply")
	}
	if v, _ := tr.Get("p1"); v != "unassigned" {
		t.Fatalf("expected prior value, got %q", v)
	}

	tr.Put("p1", "luis")
	if tr.Rollback("r1") {
		t.Fatalf("second rollback must be a no-op")
	}
	if v, _ := tr.Get("p1"); v != "luis" {
		t.Fatalf("second rollback clobbered value: %q", v)
	}
}

func TestRollbackWithoutPriorRemovesKey(t *testing.T) {
	tr := New[int]()
	_ = tr.Apply("r1", "k", 7)
	tr.Rollback("r1")
	if _, ok := tr.Get("k"); ok {
		t.Fatalf("expected key removed")
	}
}

func TestConfirmSettles(t *testing.T) {
	tr := New[string]()
	tr.Put("p1", "a")
	_ = tr.Apply("r1", "p1", "b")
	if !tr.Confirm("r1", "b-server") {
		t.Fatalf("confirm should settle")
	}
	if tr.Rollback("r1") {
		t.Fatalf("rollback after confirm must be a no-op")
	}
	if v, _ := tr.Get("p1"); v != "b-server" {
		t.Fatalf("expected confirmed value, got %q", v)
	}
	if tr.Pending() != 0 {
		t.Fatalf("expected no pending changes")
	}
}

func TestDuplicateRequestID(t *testing.T) {
	tr := New[string]()
	_ = tr.Apply("r1", "p1", "a")
	if err := tr.Apply("r1", "p1", "b"); !errors.Is(err, ErrPending) {
		t.Fatalf("expected ErrPending, got %v", err)
	}
}

func TestOverlappingChangesOnSameKey(t *testing.T) {
	tr := New[string]()
	tr.Put("p1", "base")
	_ = tr.Apply("r1", "p1", "first")
	_ = tr.Apply("r2", "p1", "second")

	// r1 fails after r2 was applied: the visible value stays r2's.
	tr.Rollback("r1")
	if v, _ := tr.Get("p1"); v != "second" {
		t.Fatalf("expected second, got %q", v)
	}
	// r2 fails too: back to the last confirmed value, not r1's optimistic one.
	tr.Rollback("r2")
	if v, _ := tr.Get("p1"); v != "base" {
		t.Fatalf("expected base, got %q", v)
	}
}

func TestConcurrentRollbackSingleWinner(t *testing.T) {
	tr := New[string]()
	tr.Put("p1", "base")
	_ = tr.Apply("r1", "p1", "x")

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.Rollback("r1") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one rollback, got %d", wins)
	}
}
