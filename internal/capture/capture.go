// Package capture appends hub traffic to a CBOR record stream for offline
// diagnostics. Records are self-delimiting, so a capture file can be tailed
// or truncated mid-record and still read up to the damage.
package capture

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/danmuck/canhub/internal/buffer"
	"github.com/danmuck/canhub/internal/can"
)

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture: encoder mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("capture: decoder mode: %v", err))
	}
}

// Record is one captured frame.
type Record struct {
	Time     time.Time `cbor:"1,keyasint"`
	Hub      string    `cbor:"2,keyasint"`
	ID       uint32    `cbor:"3,keyasint"`
	Extended bool      `cbor:"4,keyasint"`
	RTR      bool      `cbor:"5,keyasint"`
	Data     []byte    `cbor:"6,keyasint"`
}

// Frame reconstructs the captured frame.
func (r Record) Frame() can.Frame {
	f := can.Frame{ID: r.ID, Extended: r.Extended, RTR: r.RTR}
	f.SetPayload(r.Data)
	return f
}

// FileCapture appends records to a file. Safe for concurrent use; a closed
// capture silently drops further records so teardown order does not matter.
type FileCapture struct {
	hub     string
	file    *os.File
	encoder *cbor.Encoder

	mu     sync.Mutex
	closed bool
}

// NewFileCapture opens (or creates) the capture file for appending.
func NewFileCapture(path, hubName string) (*FileCapture, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", path, err)
	}
	return &FileCapture{hub: hubName, file: f, encoder: encMode.NewEncoder(f)}, nil
}

// Send records the frame. Implements hub.Port so a capture can be registered
// directly on the frame hub. Encoding errors never disrupt hub traffic.
func (c *FileCapture) Send(b *buffer.Buffer[can.Frame], _ uint) {
	defer b.Release()
	f := b.Value
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	_ = c.encoder.Encode(Record{
		Time:     time.Now(),
		Hub:      c.hub,
		ID:       f.ID,
		Extended: f.Extended,
		RTR:      f.RTR,
		Data:     append([]byte(nil), f.Payload()...),
	})
}

// Close flushes and closes the capture file. Safe to call more than once.
func (c *FileCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.file.Close()
}

// Reader iterates over a capture stream.
type Reader struct {
	dec *cbor.Decoder
}

func NewReader(r io.Reader) *Reader {
	return &Reader{dec: decMode.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at end of stream.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
