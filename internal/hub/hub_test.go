package hub

import (
	"sync"
	"testing"

	"github.com/danmuck/canhub/internal/buffer"
	"github.com/danmuck/canhub/internal/exec"
)

// recordPort collects delivered payloads and releases its references.
type recordPort struct {
	mu   sync.Mutex
	got  []string
	refs int
}

func (p *recordPort) Send(b *buffer.Buffer[string], _ uint) {
	p.mu.Lock()
	p.got = append(p.got, b.Value)
	p.refs++
	p.mu.Unlock()
	b.Release()
}

func (p *recordPort) received() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.got...)
}

func send(h *Hub[string], pool *buffer.Pool[string], value string, skip any) {
	b := pool.Alloc()
	b.Value = value
	b.Skip = skip
	h.Send(b)
}

func TestBroadcastSkipsOrigin(t *testing.T) {
	e := exec.NewExecutor("test")
	defer e.Shutdown()
	pool := buffer.NewPool[string](4)
	h := New[string](e, "text")

	origin := &recordPort{}
	other1 := &recordPort{}
	other2 := &recordPort{}
	h.Register(origin)
	h.Register(other1)
	h.Register(other2)

	send(h, pool, "hello", origin)
	e.Drain()

	if got := origin.received(); len(got) != 0 {
		t.Fatalf("skip port received %v", got)
	}
	for _, p := range []*recordPort{other1, other2} {
		if got := p.received(); len(got) != 1 || got[0] != "hello" {
			t.Fatalf("port received %v, want [hello]", got)
		}
	}
	if pool.InUse() != 0 {
		t.Fatalf("buffers leaked: in use = %d", pool.InUse())
	}
}

func TestPerProducerOrderPreserved(t *testing.T) {
	e := exec.NewExecutor("test")
	defer e.Shutdown()
	pool := buffer.NewPool[string](8)
	h := New[string](e, "text")

	sink := &recordPort{}
	h.Register(sink)

	want := []string{"a", "b", "c", "d"}
	for _, v := range want {
		send(h, pool, v, nil)
	}
	e.Drain()

	got := sink.received()
	if len(got) != len(want) {
		t.Fatalf("received %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order broken: received %v, want %v", got, want)
		}
	}
}

func TestPriorityHintDeliversUrgentFirst(t *testing.T) {
	e := exec.NewExecutor("test")
	pool := buffer.NewPool[string](8)
	h := New[string](e, "text")
	sink := &recordPort{}
	h.Register(sink)

	// Queue both while the worker is busy so they are pending together.
	gate := make(chan struct{})
	blocker := exec.NewFlow(e)
	blocker.Start(func() exec.StateFn { <-gate; return blocker.Exit() })

	low := pool.Alloc()
	low.Value = "low"
	h.Send(low)
	high := pool.Alloc()
	high.Value = "high"
	high.Priority = 1
	h.Send(high)

	close(gate)
	e.Drain()
	e.Shutdown()

	got := sink.received()
	if len(got) != 2 || got[0] != "high" || got[1] != "low" {
		t.Fatalf("received %v, want [high low]", got)
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	e := exec.NewExecutor("test")
	defer e.Shutdown()
	pool := buffer.NewPool[string](4)
	h := New[string](e, "text")

	p := &recordPort{}
	h.Register(p)
	send(h, pool, "before", nil)
	e.Drain()

	h.Unregister(p)
	send(h, pool, "after", nil)
	e.Drain()

	if got := p.received(); len(got) != 1 || got[0] != "before" {
		t.Fatalf("received %v, want [before]", got)
	}
	if h.PortCount() != 0 {
		t.Fatalf("port count = %d, want 0", h.PortCount())
	}
}

func TestNoPortsReleasesBuffer(t *testing.T) {
	e := exec.NewExecutor("test")
	defer e.Shutdown()
	pool := buffer.NewPool[string](1)
	h := New[string](e, "text")

	send(h, pool, "nobody home", nil)
	e.Drain()
	if pool.InUse() != 0 {
		t.Fatalf("buffer leaked with no recipients: in use = %d", pool.InUse())
	}
}
