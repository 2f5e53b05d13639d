package transport

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFrame_HeaderCountsItself(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Frame{Type: 0x1046, Body: []byte{1, 2, 3, 4, 5, 6, 7, 8}}))

	b := buf.Bytes()
	require.Len(t, b, 16)
	assert.Equal(t, uint32(0x1046), binary.LittleEndian.Uint32(b[0:4]))
	assert.Equal(t, uint32(16), binary.LittleEndian.Uint32(b[4:8]))
	assert.Equal(t, []byte{0x46, 0x10, 0, 0, 16, 0, 0, 0}, b[:8])
}

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	frames := []Frame{
		{Type: 1, Body: []byte{}},
		{Type: 0x1048, Body: bytes.Repeat([]byte{0xAB}, 20)},
		{Type: 0xFFFFFFFF, Body: []byte{9}},
	}
	for _, f := range frames {
		require.NoError(t, WriteFrame(&buf, f))
	}
	for _, want := range frames {
		got, err := ReadFrame(&buf)
		require.NoError(t, err)
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.Body, got.Body)
	}
	_, err := ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrame_RejectsBadSize(t *testing.T) {
	for _, size := range []uint32{0, 7, MaxFrameSize + 1} {
		hdr := make([]byte, 8)
		binary.LittleEndian.PutUint32(hdr[0:4], 0x1048)
		binary.LittleEndian.PutUint32(hdr[4:8], size)
		_, err := ReadFrame(bytes.NewReader(hdr))
		assert.ErrorIs(t, err, ErrFrameSize, "size %d", size)
	}
}

func TestReadFrame_TruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Frame{Type: 1, Body: make([]byte, 20)}))
	_, err := ReadFrame(bytes.NewReader(buf.Bytes()[:20]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWriteFrame_RejectsOversizedBody(t *testing.T) {
	err := WriteFrame(io.Discard, Frame{Type: 1, Body: make([]byte, MaxFrameSize)})
	assert.ErrorIs(t, err, ErrFrameSize)
}
