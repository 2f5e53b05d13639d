// Package transport carries framed messages over TCP.
//
// A frame is an 8-byte little-endian header {type u32, size u32} followed by
// size-8 bytes of body; size counts the header.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderSize is the size of the frame header in bytes.
const HeaderSize = 8

// MaxFrameSize bounds the size field accepted from the wire.
const MaxFrameSize = 1 << 20

// ErrFrameSize is returned for a header whose size field is out of range.
var ErrFrameSize = errors.New("invalid frame size")

// Frame is one framed message.
type Frame struct {
	Type uint32
	Body []byte
}

// Size returns the on-wire size of the frame, header included.
func (f Frame) Size() int {
	return HeaderSize + len(f.Body)
}

// WriteFrame writes f to w as a single buffer.
func WriteFrame(w io.Writer, f Frame) error {
	if f.Size() > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameSize, f.Size())
	}
	buf := make([]byte, f.Size())
	binary.LittleEndian.PutUint32(buf[0:4], f.Type)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(f.Size()))
	copy(buf[HeaderSize:], f.Body)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}
	f := Frame{Type: binary.LittleEndian.Uint32(hdr[0:4])}
	size := binary.LittleEndian.Uint32(hdr[4:8])
	if size < HeaderSize || size > MaxFrameSize {
		return Frame{}, fmt.Errorf("%w: %d", ErrFrameSize, size)
	}
	f.Body = make([]byte, size-HeaderSize)
	if _, err := io.ReadFull(r, f.Body); err != nil {
		return Frame{}, fmt.Errorf("reading frame body: %w", err)
	}
	return f, nil
}
