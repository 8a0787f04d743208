// Package gridconnect translates raw CAN frames to and from the GridConnect
// ASCII line format used by serial and TCP byte-stream transports.
//
// Wire format, bit-exact: `:X` + 8 uppercase hex identifier digits (extended
// 29-bit) + `N` (data) or `R` (remote) + 0-16 hex digits (two per data byte)
// + `;`. Standard 11-bit frames use `:S` + 3 identifier digits. A trailing
// newline after `;` is optional and controlled by configuration.
package gridconnect

import (
	"github.com/danmuck/canhub/internal/can"
)

const hexDigits = "0123456789ABCDEF"

// Encode renders one frame as a GridConnect line.
func Encode(f can.Frame, newline bool) []byte {
	out := make([]byte, 0, 32)
	out = append(out, ':')
	if f.Extended {
		out = append(out, 'X')
		id := f.ID & can.MaxExtendedID
		for shift := 28; shift >= 0; shift -= 4 {
			out = append(out, hexDigits[(id>>uint(shift))&0xF])
		}
	} else {
		out = append(out, 'S')
		id := f.ID & can.MaxStandardID
		for shift := 8; shift >= 0; shift -= 4 {
			out = append(out, hexDigits[(id>>uint(shift))&0xF])
		}
	}
	if f.RTR {
		out = append(out, 'R')
	} else {
		out = append(out, 'N')
	}
	for _, b := range f.Payload() {
		out = append(out, hexDigits[b>>4], hexDigits[b&0xF])
	}
	out = append(out, ';')
	if newline {
		out = append(out, '\n')
	}
	return out
}

// Decoder states.
type decodeState int

const (
	stateSync decodeState = iota // scanning for ':'
	stateKind                    // expecting 'X' or 'S'
	stateID                      // accumulating identifier digits
	stateData                    // accumulating data digit pairs
)

// Decoder is a byte-at-a-time GridConnect parser. Malformed or truncated
// input never fails hard: the partial frame is discarded and the decoder
// resynchronizes on the next ':'.
type Decoder struct {
	state    decodeState
	frame    can.Frame
	idDigits int
	dataHi   int // -1 when between data bytes
	errors   uint64
}

// NewDecoder returns a decoder scanning for the start of a line.
func NewDecoder() *Decoder {
	return &Decoder{dataHi: -1}
}

// Errors reports how many partial frames were discarded so far.
func (d *Decoder) Errors() uint64 { return d.errors }

// Push consumes one byte. It returns a complete frame and true when the
// byte terminated a well-formed line.
func (d *Decoder) Push(c byte) (can.Frame, bool) {
	switch d.state {
	case stateSync:
		if c == ':' {
			d.begin()
		}
	case stateKind:
		switch c {
		case 'X':
			d.frame.Extended = true
			d.state = stateID
		case 'S':
			d.frame.Extended = false
			d.state = stateID
		default:
			d.drop(c)
		}
	case stateID:
		switch {
		case isHex(c):
			max := 3
			if d.frame.Extended {
				max = 8
			}
			if d.idDigits == max {
				d.drop(c)
				break
			}
			d.frame.ID = d.frame.ID<<4 | uint32(hexVal(c))
			d.idDigits++
		case c == 'N' && d.idDigits > 0:
			d.state = stateData
		case c == 'R' && d.idDigits > 0:
			d.frame.RTR = true
			d.state = stateData
		default:
			d.drop(c)
		}
	case stateData:
		switch {
		case isHex(c):
			if d.frame.Len == 8 && d.dataHi < 0 {
				d.drop(c)
				break
			}
			if d.dataHi < 0 {
				d.dataHi = int(hexVal(c))
				break
			}
			d.frame.Data[d.frame.Len] = byte(d.dataHi)<<4 | hexVal(c)
			d.frame.Len++
			d.dataHi = -1
		case c == ';' && d.dataHi < 0:
			f := d.frame
			d.reset()
			return f, true
		default:
			d.drop(c)
		}
	}
	return can.Frame{}, false
}

// Feed consumes a chunk and invokes emit for every completed frame.
func (d *Decoder) Feed(data []byte, emit func(can.Frame)) {
	for _, c := range data {
		if f, ok := d.Push(c); ok {
			emit(f)
		}
	}
}

func (d *Decoder) begin() {
	d.frame = can.Frame{}
	d.idDigits = 0
	d.dataHi = -1
	d.state = stateKind
}

// drop abandons the partial frame. A ':' inside garbage starts a new line
// immediately, everything else resumes scanning.
func (d *Decoder) drop(c byte) {
	d.errors++
	d.reset()
	if c == ':' {
		d.begin()
	}
}

func (d *Decoder) reset() {
	d.frame = can.Frame{}
	d.idDigits = 0
	d.dataHi = -1
	d.state = stateSync
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	if c <= '9' {
		return c - '0'
	}
	return c - 'A' + 10
}
