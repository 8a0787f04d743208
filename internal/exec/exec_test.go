package exec

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFlowRunsToCompletion(t *testing.T) {
	e := NewExecutor("test")
	defer e.Shutdown()

	var steps []int
	f := NewFlow(e)
	var s1, s2 StateFn
	s1 = func() StateFn { steps = append(steps, 1); return s2 }
	s2 = func() StateFn { steps = append(steps, 2); return f.Exit() }
	f.Start(s1)
	e.Drain()

	if len(steps) != 2 || steps[0] != 1 || steps[1] != 2 {
		t.Fatalf("steps = %v, want [1 2]", steps)
	}
}

func TestFlowSuspendResume(t *testing.T) {
	e := NewExecutor("test")
	defer e.Shutdown()

	resumed := make(chan struct{})
	f := NewFlow(e)
	var wait, finish StateFn
	wait = func() StateFn { return f.Suspend(finish) }
	finish = func() StateFn { close(resumed); return f.Exit() }
	f.Start(wait)
	e.Drain()

	select {
	case <-resumed:
		t.Fatal("flow resumed without notification")
	default:
	}

	// Resumption from a foreign goroutine, as a driver callback would do.
	go f.Notify()
	select {
	case <-resumed:
	case <-time.After(time.Second):
		t.Fatal("flow did not resume after notify")
	}
}

func TestNotifyBeforeSuspendCoalesces(t *testing.T) {
	e := NewExecutor("test")
	defer e.Shutdown()

	var count atomic.Int32
	f := NewFlow(e)
	var wait, finish StateFn
	wait = func() StateFn {
		// The producer side fires before the step yields.
		f.Notify()
		return f.Suspend(finish)
	}
	finish = func() StateFn { count.Add(1); return f.Exit() }
	f.Start(wait)
	e.Drain()

	if got := count.Load(); got != 1 {
		t.Fatalf("resume count = %d, want 1", got)
	}
}

func TestExecutorSerializesSteps(t *testing.T) {
	e := NewExecutor("test")
	defer e.Shutdown()

	var inStep atomic.Int32
	var overlap atomic.Bool
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		f := NewFlow(e)
		f.Start(func() StateFn {
			if inStep.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(time.Millisecond)
			inStep.Add(-1)
			wg.Done()
			return f.Exit()
		})
	}
	wg.Wait()
	if overlap.Load() {
		t.Fatal("two flow steps ran concurrently on one worker")
	}
}

func TestBarrier(t *testing.T) {
	var fired atomic.Int32
	b := NewBarrier(3, NotifyFunc(func() { fired.Add(1) }))
	b.Notify()
	b.Notify()
	if fired.Load() != 0 {
		t.Fatal("barrier fired early")
	}
	b.Notify()
	if fired.Load() != 1 {
		t.Fatalf("barrier fired %d times, want 1", fired.Load())
	}
}

func TestAddAfterShutdownIsDropped(t *testing.T) {
	e := NewExecutor("test")
	e.Shutdown()

	ran := make(chan struct{})
	f := NewFlow(e)
	f.Start(func() StateFn { close(ran); return f.Exit() })
	select {
	case <-ran:
		t.Fatal("runnable executed after shutdown")
	case <-time.After(20 * time.Millisecond):
	}
}
