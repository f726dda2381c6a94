package rw

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// ReaderWriter is a little endian codec for fixed size primitives.
// Reads never panic: the first failure is kept and returned by Err, and
// every later read yields a zero value.
type ReaderWriter struct {
	order   binary.ByteOrder
	dataBuf []byte
	rw      bytes.Buffer
	offset  int
	err     error
}

func NewWriter() *ReaderWriter {
	return &ReaderWriter{order: binary.LittleEndian, dataBuf: make([]byte, 8)}
}

func NewReader(data []byte) *ReaderWriter {
	d := &ReaderWriter{order: binary.LittleEndian, dataBuf: make([]byte, 8)}
	d.rw.Write(data)
	return d
}

// Err returns the first read error, if any.
func (w *ReaderWriter) Err() error {
	return w.err
}

func (w *ReaderWriter) read(n int) []byte {
	if w.err != nil {
		clear(w.dataBuf[:n])
		return w.dataBuf[:n]
	}
	got, err := io.ReadFull(&w.rw, w.dataBuf[:n])
	w.offset += got
	if err != nil {
		w.err = fmt.Errorf("rw: read %d bytes at offset %d: %w", n, w.offset-got, err)
		clear(w.dataBuf[:n])
	}
	return w.dataBuf[:n]
}

func (w *ReaderWriter) ReadUInt8() uint8 {
	return w.read(1)[0]
}

func (w *ReaderWriter) ReadUInt8s(value []uint8) {
	for i := range value {
		value[i] = w.ReadUInt8()
	}
}

func (w *ReaderWriter) ReadUInt16() uint16 {
	return w.order.Uint16(w.read(2))
}

func (w *ReaderWriter) ReadUInt16s(value []uint16) {
	for i := range value {
		value[i] = w.ReadUInt16()
	}
}

func (w *ReaderWriter) ReadUInt32() uint32 {
	return w.order.Uint32(w.read(4))
}

func (w *ReaderWriter) ReadInt32() int32 {
	return int32(w.ReadUInt32())
}

func (w *ReaderWriter) ReadUInt64() uint64 {
	return w.order.Uint64(w.read(8))
}

func (w *ReaderWriter) ReadFloat32() float32 {
	return math.Float32frombits(w.ReadUInt32())
}

func (w *ReaderWriter) ReadFloat32s(value []float32) {
	for i := range value {
		value[i] = w.ReadFloat32()
	}
}

// Skip discards n bytes of input.
func (w *ReaderWriter) Skip(n int) {
	for ; n > 0 && w.err == nil; n-- {
		w.read(1)
	}
}

// SkipAlign4 discards the padding up to the next 4 byte boundary.
func (w *ReaderWriter) SkipAlign4() {
	w.Skip(Align4(w.offset) - w.offset)
}

func WriteUInt8[T ~uint8 | ~int8](w *ReaderWriter, v T) {
	w.rw.WriteByte(byte(v))
}

func WriteUInt16[T ~uint16 | ~int16](w *ReaderWriter, v T) {
	w.order.PutUint16(w.dataBuf, uint16(v))
	w.rw.Write(w.dataBuf[:2])
}

func WriteUInt32[T ~uint32 | ~int32](w *ReaderWriter, v T) {
	w.order.PutUint32(w.dataBuf, uint32(v))
	w.rw.Write(w.dataBuf[:4])
}

func WriteUInt64[T ~uint64 | ~int64](w *ReaderWriter, v T) {
	w.order.PutUint64(w.dataBuf, uint64(v))
	w.rw.Write(w.dataBuf[:8])
}

func (w *ReaderWriter) WriteUInt8s(value []uint8) {
	w.rw.Write(value)
}

func (w *ReaderWriter) WriteUInt16s(value []uint16) {
	for _, v := range value {
		WriteUInt16(w, v)
	}
}

func (w *ReaderWriter) WriteFloat32(v float32) {
	WriteUInt32(w, math.Float32bits(v))
}

func (w *ReaderWriter) WriteFloat32s(value []float32) {
	for _, v := range value {
		w.WriteFloat32(v)
	}
}

// PadAlign4 writes zero bytes up to the next 4 byte boundary.
func (w *ReaderWriter) PadAlign4() {
	for i := w.rw.Len(); i < Align4(w.rw.Len()); i++ {
		w.rw.WriteByte(0)
	}
}

func (w *ReaderWriter) GetWriteBytes() []byte {
	return w.rw.Bytes()
}

// Size is the number of unread (or written) bytes.
func (w *ReaderWriter) Size() int {
	return w.rw.Len()
}

func Align4(x int) int { return (x + 3) &^ 3 }
