package olcb

import (
	"sync"
	"testing"

	"github.com/danmuck/canhub/internal/buffer"
	"github.com/danmuck/canhub/internal/can"
	"github.com/danmuck/canhub/internal/exec"
)

type frameRecorder struct {
	mu  sync.Mutex
	ids []uint32
}

func (f *frameRecorder) Handle(b *buffer.Buffer[can.Frame], done exec.Notifiable) {
	f.mu.Lock()
	f.ids = append(f.ids, b.Value.ID)
	f.mu.Unlock()
	done.Notify()
}

func (f *frameRecorder) all() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint32(nil), f.ids...)
}

func TestFrameHandlerMaskedDispatch(t *testing.T) {
	r := newRig(t)
	rec := &frameRecorder{}
	// All event reports, regardless of source alias.
	r.ifc.RegisterFrameHandler(0x195B4000, 0x1FFFF000, rec)

	r.inject(t,
		":X195B432DN;",
		":X195F4333N;", // different MTI
		":X195B4777N;",
	)

	got := rec.all()
	if len(got) != 2 || got[0] != 0x195B432D || got[1] != 0x195B4777 {
		t.Fatalf("handler saw %#x", got)
	}
}

func TestFrameHandlerCoexistsWithMessageLayer(t *testing.T) {
	r := newRig(t)
	frames := &frameRecorder{}
	msgs := &msgRecorder{}
	r.ifc.RegisterFrameHandler(0x195B4000, 0x1FFFF000, frames)
	r.ifc.RegisterMessageHandler(MTIEventReport, 0xFFF, msgs)

	r.inject(t, ":X195B4123N01;")

	if len(frames.all()) != 1 {
		t.Fatal("raw frame handler did not fire")
	}
	if len(msgs.all()) != 1 {
		t.Fatal("message handler did not fire")
	}
}

func TestStandardFramesIgnored(t *testing.T) {
	r := newRig(t)
	msgs := &msgRecorder{}
	r.ifc.RegisterMessageHandler(0, 0, msgs)

	r.inject(t, ":S5B4N01;")

	if got := msgs.all(); len(got) != 0 {
		t.Fatalf("standard frame reached the message layer: %+v", got)
	}
	if n := r.framePool.InUse(); n != 0 {
		t.Fatalf("frame buffers leaked: %d", n)
	}
}

func TestCloseStopsInbound(t *testing.T) {
	r := newRig(t)
	msgs := &msgRecorder{}
	r.ifc.RegisterMessageHandler(MTIEventReport, 0xFFF, msgs)

	r.ifc.Close()
	r.inject(t, ":X195B4123N01;")

	if got := msgs.all(); len(got) != 0 {
		t.Fatalf("closed interface still delivered %+v", got)
	}
}
