package gridconnect

import (
	"testing"

	"github.com/danmuck/canhub/internal/can"
)

func TestEncodeKnownPackets(t *testing.T) {
	tests := []struct {
		name  string
		frame can.Frame
		want  string
	}{
		{
			name:  "event report",
			frame: can.NewExtended(0x195B4000, []byte{1, 2, 3, 4, 5, 6, 7, 8}),
			want:  ":X195B4000N0102030405060708;",
		},
		{
			name:  "short payload",
			frame: can.NewExtended(0x195B4000, []byte("12345")),
			want:  ":X195B4000N3132333435;",
		},
		{
			name:  "empty payload",
			frame: can.NewExtended(0x195B432D, nil),
			want:  ":X195B432DN;",
		},
		{
			name:  "remote request",
			frame: can.Frame{ID: 0x195B432D, Extended: true, RTR: true},
			want:  ":X195B432DR;",
		},
		{
			name:  "standard frame",
			frame: can.Frame{ID: 0x123, Len: 2, Data: [8]byte{0xAA, 0xBB}},
			want:  ":S123NAABB;",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(Encode(tt.frame, false))
			if got != tt.want {
				t.Fatalf("Encode = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeNewlineFlag(t *testing.T) {
	f := can.NewExtended(0x195B4000, []byte{0xAA})
	if got := string(Encode(f, true)); got != ":X195B4000NAA;\n" {
		t.Fatalf("Encode with newline = %q", got)
	}
}

func decodeAll(t *testing.T, d *Decoder, input string) []can.Frame {
	t.Helper()
	var out []can.Frame
	d.Feed([]byte(input), func(f can.Frame) { out = append(out, f) })
	return out
}

func TestDecodeRoundTripIdempotence(t *testing.T) {
	lines := []string{
		":X195B4000N0102030405060708;",
		":X195B4000N3132333435;",
		":X19828000N00003132333435;",
		":X19828000N1000303132333435;",
		":X19828000N20003839;",
		":X00000000N;",
		":X1FFFFFFFNFF;",
		":X195B432DR;",
	}
	d := NewDecoder()
	for _, line := range lines {
		frames := decodeAll(t, d, line)
		if len(frames) != 1 {
			t.Fatalf("decode %q produced %d frames", line, len(frames))
		}
		if got := string(Encode(frames[0], false)); got != line {
			t.Fatalf("encode(decode(%q)) = %q", line, got)
		}
	}
}

func TestDecodeStandardFrame(t *testing.T) {
	d := NewDecoder()
	frames := decodeAll(t, d, ":S123NAABB;")
	if len(frames) != 1 {
		t.Fatalf("got %d frames", len(frames))
	}
	f := frames[0]
	if f.Extended || f.ID != 0x123 || f.Len != 2 || f.Data[0] != 0xAA || f.Data[1] != 0xBB {
		t.Fatalf("decoded %+v", f)
	}
}

func TestDecodeResynchronizesAfterGarbage(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"leading noise", "hello world:X195B432DN05010103;"},
		{"truncated frame before good one", ":X195B4:X195B432DN05010103;"},
		{"bad kind byte", ":Q12;:X195B432DN05010103;"},
		{"odd data digit count", ":X195B432DN123;:X195B432DN05010103;"},
		{"too many data bytes", ":X195B432DN010203040506070809;:X195B432DN05010103;"},
		{"identifier overflow", ":X195B432D9N;:X195B432DN05010103;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder()
			frames := decodeAll(t, d, tt.input)
			if len(frames) != 1 {
				t.Fatalf("decoded %d frames from %q, want 1", len(frames), tt.input)
			}
			want := can.NewExtended(0x195B432D, []byte{0x05, 0x01, 0x01, 0x03})
			if frames[0] != want {
				t.Fatalf("recovered frame %+v, want %+v", frames[0], want)
			}
		})
	}
}

func TestDecodeSplitAcrossChunks(t *testing.T) {
	d := NewDecoder()
	var got []can.Frame
	for _, chunk := range []string{":X195", "B4000N01", "02;"} {
		d.Feed([]byte(chunk), func(f can.Frame) { got = append(got, f) })
	}
	if len(got) != 1 {
		t.Fatalf("got %d frames", len(got))
	}
	want := can.NewExtended(0x195B4000, []byte{0x01, 0x02})
	if got[0] != want {
		t.Fatalf("frame %+v, want %+v", got[0], want)
	}
}

func TestDecodeCountsErrors(t *testing.T) {
	d := NewDecoder()
	decodeAll(t, d, ":X1Z;:XG;")
	if d.Errors() != 2 {
		t.Fatalf("errors = %d, want 2", d.Errors())
	}
}

func TestDecodeBackToBackFrames(t *testing.T) {
	d := NewDecoder()
	frames := decodeAll(t, d, ":X195B4000NAA;:X195B4001NBB;\n:X195B4002N;")
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	for i, id := range []uint32{0x195B4000, 0x195B4001, 0x195B4002} {
		if frames[i].ID != id {
			t.Fatalf("frame %d id = %08X, want %08X", i, frames[i].ID, id)
		}
	}
}
