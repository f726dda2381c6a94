package rw

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderWriterRoundTrip(t *testing.T) {
	w := NewWriter()
	WriteUInt32(w, int32(-7))
	WriteUInt16(w, uint16(0xbeef))
	WriteUInt8(w, uint8(3))
	w.PadAlign4()
	w.WriteFloat32s([]float32{1.5, -2.25})
	WriteUInt64(w, uint64(1)<<48|42)
	data := w.GetWriteBytes()
	require.Len(t, data, 4+4+8+8)

	r := NewReader(data)
	assert.Equal(t, int32(-7), r.ReadInt32())
	assert.Equal(t, uint16(0xbeef), r.ReadUInt16())
	assert.Equal(t, uint8(3), r.ReadUInt8())
	r.SkipAlign4()
	fs := make([]float32, 2)
	r.ReadFloat32s(fs)
	assert.Equal(t, []float32{1.5, -2.25}, fs)
	assert.Equal(t, uint64(1)<<48|42, r.ReadUInt64())
	assert.NoError(t, r.Err())
	assert.Equal(t, 0, r.Size())
}

func TestReaderShortInput(t *testing.T) {
	r := NewReader([]byte{1, 2})
	assert.Equal(t, uint32(0), r.ReadUInt32())
	assert.Equal(t, uint8(0), r.ReadUInt8())
	err := r.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestAlign4(t *testing.T) {
	for in, want := range map[int]int{0: 0, 1: 4, 4: 4, 5: 8, 11: 12} {
		assert.Equal(t, want, Align4(in))
	}
}
