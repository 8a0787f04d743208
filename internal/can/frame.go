// Package can defines the classical CAN frame model and the narrow driver
// boundary the transport core talks to.
package can

import (
	"errors"
	"fmt"
)

// Identifier limits.
const (
	MaxStandardID uint32 = 0x7FF
	MaxExtendedID uint32 = 0x1FFFFFFF
)

var (
	ErrInvalidID  = errors.New("can: invalid identifier")
	ErrInvalidLen = errors.New("can: invalid data length")
)

// Frame is a classical CAN 2.0 frame: standard (11-bit) or extended (29-bit)
// identifier, data or remote-request, 0-8 data bytes. A frame is mutable
// while a writer assembles it and must be treated as immutable once handed
// to a hub.
type Frame struct {
	ID       uint32
	Extended bool
	RTR      bool
	Len      uint8
	Data     [8]byte
}

// NewExtended builds an extended data frame. Panics on oversized input;
// callers own the 0-8 byte contract.
func NewExtended(id uint32, data []byte) Frame {
	if len(data) > 8 {
		panic(ErrInvalidLen)
	}
	f := Frame{ID: id & MaxExtendedID, Extended: true, Len: uint8(len(data))}
	copy(f.Data[:], data)
	return f
}

// Validate returns an error if the frame violates classical CAN limits.
func (f Frame) Validate() error {
	if f.Len > 8 {
		return ErrInvalidLen
	}
	max := MaxStandardID
	if f.Extended {
		max = MaxExtendedID
	}
	if f.ID > max {
		return ErrInvalidID
	}
	return nil
}

// Payload returns the live data bytes.
func (f *Frame) Payload() []byte {
	return f.Data[:f.Len]
}

// SetPayload copies data into the frame and sets the length.
func (f *Frame) SetPayload(data []byte) {
	if len(data) > 8 {
		panic(ErrInvalidLen)
	}
	f.Len = uint8(len(data))
	copy(f.Data[:], data)
}

func (f Frame) String() string {
	kind := "N"
	if f.RTR {
		kind = "R"
	}
	if f.Extended {
		return fmt.Sprintf("X:%08X %s %X", f.ID, kind, f.Payload())
	}
	return fmt.Sprintf("S:%03X %s %X", f.ID, kind, f.Payload())
}
