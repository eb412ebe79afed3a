package execctx

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func TestBind_IsCurrent(t *testing.T) {
	ctx := Bind("main")

	if !ctx.IsCurrent() {
		t.Fatal("Bind: context not current on its own goroutine")
	}

	var other bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		other = ctx.IsCurrent()
	}()
	wg.Wait()

	if other {
		t.Error("Bind: context reported current on a foreign goroutine")
	}
	if !strings.HasPrefix(ctx.String(), "main (goroutine ") {
		t.Errorf("String() = %q, want main (goroutine N) prefix", ctx.String())
	}
}

func TestQueue_PerformAndWait_RunsOnWorker(t *testing.T) {
	q := NewQueue("q1")
	defer q.Close()

	if q.IsCurrent() {
		t.Fatal("queue reported current on the test goroutine")
	}

	var inside bool
	var gid int64
	if err := q.PerformAndWait(func() {
		inside = q.IsCurrent()
		gid = CurrentGoroutineID()
	}); err != nil {
		t.Fatalf("PerformAndWait: %v", err)
	}

	if !inside {
		t.Error("queue not current inside PerformAndWait")
	}
	if gid != q.GoroutineID() {
		t.Errorf("work ran on goroutine %d, want worker %d", gid, q.GoroutineID())
	}
}

func TestQueue_PerformAndWait_Reentrant(t *testing.T) {
	q := NewQueue("q1")
	defer q.Close()

	depth := 0
	err := q.PerformAndWait(func() {
		depth++
		_ = q.PerformAndWait(func() {
			depth++
		})
	})
	if err != nil {
		t.Fatalf("PerformAndWait: %v", err)
	}
	if depth != 2 {
		t.Errorf("depth = %d, want 2", depth)
	}
}

func TestQueue_Perform_Order(t *testing.T) {
	q := NewQueue("ordered")

	const n = 100
	var got []int
	for i := 0; i < n; i++ {
		i := i
		if err := q.Perform(func() { got = append(got, i) }); err != nil {
			t.Fatalf("Perform: %v", err)
		}
	}
	// Close drains everything already queued.
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(got) != n {
		t.Fatalf("ran %d functions, want %d", len(got), n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
}

// TestQueue_PerformFromWorker tests that the worker can schedule more work
// on itself than any fixed buffer would hold.
func TestQueue_PerformFromWorker(t *testing.T) {
	q := NewQueue("self-scheduling")

	const n = 100
	var got []int
	err := q.PerformAndWait(func() {
		for i := 0; i < n; i++ {
			i := i
			if err := q.Perform(func() { got = append(got, i) }); err != nil {
				t.Errorf("Perform from worker: %v", err)
			}
		}
	})
	if err != nil {
		t.Fatalf("PerformAndWait: %v", err)
	}

	closed := make(chan error, 1)
	go func() { closed <- q.Close() }()
	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked after Perform from worker")
	}

	if len(got) != n {
		t.Fatalf("ran %d functions, want %d", len(got), n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue("closed")
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	if err := q.Perform(func() {}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Perform after Close = %v, want ErrQueueClosed", err)
	}
	if err := q.PerformAndWait(func() {}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("PerformAndWait after Close = %v, want ErrQueueClosed", err)
	}
}

func TestQueue_CloseFromWorker(t *testing.T) {
	q := NewQueue("self")
	defer q.Close()

	var err error
	_ = q.PerformAndWait(func() { err = q.Close() })
	if err == nil {
		t.Error("Close from worker returned nil, want error")
	}
}

func TestQueue_PerformAndWait_Panic(t *testing.T) {
	q := NewQueue("panicky")
	defer q.Close()

	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("recovered %v, want boom", r)
		}
	}()
	_ = q.PerformAndWait(func() { panic("boom") })
	t.Error("PerformAndWait did not re-panic")
}
