package font

import (
	"io"
	"math"

	"github.com/tdewolff/parse/v2"
)

// BinaryReader is a big-endian reader over a byte slice. Reading past the end sets a sticky EOF
// flag and returns zero values, so that callers can check EOF once after a batch of reads.
type BinaryReader struct {
	r   *parse.BinaryReader
	eof bool
}

// NewBinaryReader returns a big-endian binary reader.
func NewBinaryReader(buf []byte) *BinaryReader {
	return &BinaryReader{r: parse.NewBinaryReaderBytes(buf)}
}

// Seek sets the reading position.
func (r *BinaryReader) Seek(pos uint32) {
	if _, err := r.r.Seek(int64(pos), io.SeekStart); err != nil {
		r.eof = true
	}
}

// Pos returns the reading position.
func (r *BinaryReader) Pos() uint32 {
	return uint32(r.r.Pos())
}

// Len returns the remaining length of the buffer.
func (r *BinaryReader) Len() uint32 {
	return uint32(r.r.Len())
}

// EOF returns true if we tried to read past the end of the buffer.
func (r *BinaryReader) EOF() bool {
	return r.eof
}

// has checks that n more bytes can be read. parse.BinaryReader indexes short reads out of range.
func (r *BinaryReader) has(n uint32) bool {
	if r.eof || r.Len() < n {
		r.eof = true
		return false
	}
	return true
}

// ReadBytes reads n bytes. The returned slice shares memory with the underlying buffer.
func (r *BinaryReader) ReadBytes(n uint32) []byte {
	if !r.has(n) {
		return nil
	} else if n == 0 {
		return []byte{}
	}
	return r.r.ReadBytes(int64(n))
}

// ReadString reads a string of length n.
func (r *BinaryReader) ReadString(n uint32) string {
	return string(r.ReadBytes(n))
}

// ReadByte reads a single byte.
func (r *BinaryReader) ReadByte() byte {
	return r.ReadUint8()
}

// ReadUint8 reads a uint8.
func (r *BinaryReader) ReadUint8() uint8 {
	if !r.has(1) {
		return 0
	}
	return r.r.ReadUint8()
}

// ReadUint16 reads a uint16.
func (r *BinaryReader) ReadUint16() uint16 {
	if !r.has(2) {
		return 0
	}
	return r.r.ReadUint16()
}

// ReadUint32 reads a uint32.
func (r *BinaryReader) ReadUint32() uint32 {
	if !r.has(4) {
		return 0
	}
	return r.r.ReadUint32()
}

// ReadUint64 reads a uint64.
func (r *BinaryReader) ReadUint64() uint64 {
	if !r.has(8) {
		return 0
	}
	return r.r.ReadUint64()
}

// ReadInt8 reads an int8.
func (r *BinaryReader) ReadInt8() int8 {
	return int8(r.ReadUint8())
}

// ReadInt16 reads an int16.
func (r *BinaryReader) ReadInt16() int16 {
	return int16(r.ReadUint16())
}

// ReadInt32 reads an int32.
func (r *BinaryReader) ReadInt32() int32 {
	return int32(r.ReadUint32())
}

// ReadInt64 reads an int64.
func (r *BinaryReader) ReadInt64() int64 {
	return int64(r.ReadUint64())
}

// ReadF2Dot14 reads a signed 2.14 fixed-point number.
func (r *BinaryReader) ReadF2Dot14() float64 {
	return f2dot14ToFloat(r.ReadInt16())
}

// ReadFixed reads a signed 16.16 fixed-point number.
func (r *BinaryReader) ReadFixed() float64 {
	return fixedToFloat(r.ReadInt32())
}

////////////////////////////////////////////////////////////////

// BinaryWriter is a big-endian writer that appends to a byte slice.
type BinaryWriter struct {
	*parse.BinaryWriter
}

// NewBinaryWriter returns a big-endian binary writer that appends to buf.
func NewBinaryWriter(buf []byte) *BinaryWriter {
	return &BinaryWriter{parse.NewBinaryWriter(buf)}
}

// Len returns the number of bytes written.
func (w *BinaryWriter) Len() uint32 {
	return uint32(w.BinaryWriter.Len())
}

// WriteF2Dot14 writes a signed 2.14 fixed-point number.
func (w *BinaryWriter) WriteF2Dot14(v float64) {
	w.WriteInt16(floatToF2Dot14(v))
}

// WriteFixed writes a signed 16.16 fixed-point number.
func (w *BinaryWriter) WriteFixed(v float64) {
	w.WriteInt32(floatToFixed(v))
}

// Pad appends zeros until the length is a multiple of four.
func (w *BinaryWriter) Pad() {
	for w.Len()%4 != 0 {
		w.WriteByte(0)
	}
}

////////////////////////////////////////////////////////////////

// NewBitmapReader returns a reader over a WOFF2 bit array, packed most significant bit first.
func NewBitmapReader(b []byte) *parse.BitmapReader {
	// parse.BitmapReader stops one bit before the end of its buffer
	buf := make([]byte, len(b)+1)
	copy(buf, b)
	return parse.NewBitmapReader(buf)
}

// NewBitmapWriter returns a writer for a WOFF2 bit array of n entries.
func NewBitmapWriter(n uint32) *parse.BitmapWriter {
	return parse.NewBitmapWriter(make([]byte, bitmapSize(n)))
}

// bitmapBytes returns the bit array for n entries, padded to 4 bytes.
func bitmapBytes(w *parse.BitmapWriter, n uint32) []byte {
	b := w.Bytes()
	if size := bitmapSize(n); uint32(len(b)) < size {
		b = append(b, make([]byte, size-uint32(len(b)))...)
	} else {
		b = b[:size]
	}
	return b
}

func bitmapSize(n uint32) uint32 {
	return ((n + 31) >> 5) << 2
}

////////////////////////////////////////////////////////////////

func f2dot14ToFloat(v int16) float64 {
	return float64(v) / (1 << 14)
}

func floatToF2Dot14(v float64) int16 {
	f := math.Round(v * (1 << 14))
	if f < math.MinInt16 {
		return math.MinInt16
	} else if math.MaxInt16 < f {
		return math.MaxInt16
	}
	return int16(f)
}

func fixedToFloat(v int32) float64 {
	return float64(v) / (1 << 16)
}

func floatToFixed(v float64) int32 {
	f := math.Round(v * (1 << 16))
	if f < math.MinInt32 {
		return math.MinInt32
	} else if math.MaxInt32 < f {
		return math.MaxInt32
	}
	return int32(f)
}
