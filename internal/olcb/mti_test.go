package olcb

import "testing"

func TestMTIClassification(t *testing.T) {
	cases := []struct {
		mti       MTI
		addressed bool
		datagram  bool
	}{
		{MTIInitializationComplete, false, false},
		{MTIVerifiedNodeID, false, false},
		{MTIEventReport, false, false},
		{MTIProtocolSupportInquiry, true, false},
		{MTIProtocolSupportReply, true, false},
		{MTIOptionalInteractionFail, true, false},
		{MTIDatagram, true, true},
	}
	for _, c := range cases {
		if got := c.mti.Addressed(); got != c.addressed {
			t.Errorf("%#04x Addressed() = %v, want %v", uint16(c.mti), got, c.addressed)
		}
		if got := c.mti.DatagramClass(); got != c.datagram {
			t.Errorf("%#04x DatagramClass() = %v, want %v", uint16(c.mti), got, c.datagram)
		}
	}
}

func TestMessageFrameIDRoundTrip(t *testing.T) {
	id := MessageFrameID(MTIEventReport, 0x3AB)
	if id != 0x195B43AB {
		t.Fatalf("frame id = %#08x, want 0x195B43AB", id)
	}
	if !IsMessageFrame(id) {
		t.Fatal("frame id not recognized as MTI frame")
	}
	if got := FrameMTI(id); got != MTIEventReport {
		t.Fatalf("FrameMTI = %#04x", uint16(got))
	}
	if got := FrameSource(id); got != 0x3AB {
		t.Fatalf("FrameSource = %#03x", uint16(got))
	}
}

func TestNonMessageFrameIDs(t *testing.T) {
	for _, id := range []uint32{0x10700555, 0x1C000AAA, 0x00000123} {
		if IsMessageFrame(id) {
			t.Errorf("%#08x misclassified as MTI frame", id)
		}
	}
}

func TestAliasMap(t *testing.T) {
	m := NewAliasMap()
	if a := m.AliasFor(42); a != 0 {
		t.Fatalf("unknown node resolved to alias %#x", a)
	}

	m.Add(42, 0x123)
	if a := m.AliasFor(42); a != 0x123 {
		t.Fatalf("AliasFor = %#x", a)
	}
	if id := m.NodeFor(0x123); id != 42 {
		t.Fatalf("NodeFor = %d", id)
	}

	// Rebinding the node releases its old alias; rebinding the alias
	// releases its old node.
	m.Add(42, 0x456)
	if id := m.NodeFor(0x123); id != 0 {
		t.Fatalf("stale alias still bound to %d", id)
	}
	m.Add(77, 0x456)
	if a := m.AliasFor(42); a != 0 {
		t.Fatalf("stale node still bound to %#x", a)
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}

	m.Remove(0x456)
	if m.Len() != 0 || m.NodeFor(0x456) != 0 {
		t.Fatal("Remove left a binding behind")
	}
}
