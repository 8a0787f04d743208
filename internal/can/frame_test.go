package can

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		frame Frame
		want  error
	}{
		{"standard ok", Frame{ID: 0x7FF}, nil},
		{"standard id overflow", Frame{ID: 0x800}, ErrInvalidID},
		{"extended ok", Frame{ID: 0x1FFFFFFF, Extended: true}, nil},
		{"extended id overflow", Frame{ID: 0x20000000, Extended: true}, ErrInvalidID},
		{"length overflow", Frame{ID: 0x1, Len: 9}, ErrInvalidLen},
	}
	for _, c := range cases {
		if err := c.frame.Validate(); !errors.Is(err, c.want) {
			t.Errorf("%s: Validate() = %v, want %v", c.name, err, c.want)
		}
	}
}

func TestNewExtendedMasksIdentifier(t *testing.T) {
	f := NewExtended(0xFFFFFFFF, []byte{0x01})
	if f.ID != MaxExtendedID {
		t.Fatalf("id = %#x, want %#x", f.ID, MaxExtendedID)
	}
	if !f.Extended || f.Len != 1 || f.Data[0] != 0x01 {
		t.Fatalf("frame = %+v", f)
	}
}

func TestNewExtendedOversizePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("9-byte payload did not panic")
		}
	}()
	NewExtended(0x1, make([]byte, 9))
}

func TestPayloadRoundTrip(t *testing.T) {
	var f Frame
	f.SetPayload([]byte{0xAA, 0xBB, 0xCC})
	if got := f.Payload(); len(got) != 3 || got[0] != 0xAA || got[2] != 0xCC {
		t.Fatalf("payload = % X", got)
	}
	f.SetPayload(nil)
	if len(f.Payload()) != 0 {
		t.Fatalf("payload not cleared: % X", f.Payload())
	}
}

func TestString(t *testing.T) {
	ext := NewExtended(0x195B4000, []byte{0x01, 0x02})
	if got := ext.String(); got != "X:195B4000 N 0102" {
		t.Fatalf("String() = %q", got)
	}
	std := Frame{ID: 0x123, RTR: true}
	if got := std.String(); got != "S:123 R " {
		t.Fatalf("String() = %q", got)
	}
}
