package taskgroup

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestSerialRunsInline(t *testing.T) {
	g := NewSerial()
	ran := 0
	g.Append(func() error { ran++; return nil })
	if ran != 1 {
		t.Fatal("serial task did not run on Append")
	}
	if err := g.Finish(); err != nil {
		t.Fatal(err)
	}
}

func TestSerialLatchesFirstError(t *testing.T) {
	g := NewSerial()
	first := errors.New("first")
	g.Append(func() error { return first })
	ran := false
	g.Append(func() error { ran = true; return errors.New("second") })
	if ran {
		t.Fatal("task ran after the group latched a failure")
	}
	if g.Ok() {
		t.Fatal("Ok() true after failure")
	}
	if err := g.Finish(); err != first {
		t.Fatalf("Finish = %v, want first error", err)
	}
}

func TestThreadedWaitsForAllTasks(t *testing.T) {
	g := NewThreaded(4)
	var count atomic.Int64
	for i := 0; i < 100; i++ {
		g.Append(func() error {
			count.Add(1)
			return nil
		})
	}
	if err := g.Finish(); err != nil {
		t.Fatal(err)
	}
	if count.Load() != 100 {
		t.Fatalf("ran %d tasks, want 100", count.Load())
	}
}

func TestThreadedTaskAppendsTask(t *testing.T) {
	g := NewThreaded(2)
	var mu sync.Mutex
	order := []int{}
	g.Append(func() error {
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
		g.Append(func() error {
			mu.Lock()
			order = append(order, 2)
			mu.Unlock()
			return nil
		})
		return nil
	})
	if err := g.Finish(); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 {
		t.Fatalf("ran %d tasks, want 2 (appended task lost)", len(order))
	}
}

func TestThreadedLatchesFirstError(t *testing.T) {
	g := NewThreaded(1)
	boom := errors.New("boom")
	g.Append(func() error { return boom })
	if err := g.Finish(); err != boom {
		t.Fatalf("Finish = %v, want boom", err)
	}
	// Tasks appended after the latch are accepted but skipped.
	ran := false
	g.Append(func() error { ran = true; return nil })
	if err := g.Finish(); err != boom {
		t.Fatalf("second Finish = %v, want boom", err)
	}
	if ran {
		t.Fatal("task ran after failure latch")
	}
}
