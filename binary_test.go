package font

import (
	"testing"

	"github.com/tdewolff/test"
)

func TestBinaryReader(t *testing.T) {
	r := NewBinaryReader([]byte{0x00, 0x01, 0x40, 0x00, 0xFF})
	test.T(t, r.ReadUint16(), uint16(1))
	test.T(t, r.ReadF2Dot14(), 1.0)
	test.T(t, r.Pos(), uint32(4))
	test.T(t, r.Len(), uint32(1))
	test.That(t, !r.EOF())

	// short reads return zero and set a sticky EOF
	test.T(t, r.ReadUint16(), uint16(0))
	test.That(t, r.EOF())
	test.T(t, r.ReadUint8(), uint8(0))
	test.That(t, r.EOF())

	r = NewBinaryReader([]byte{0x01, 0x02, 0x03})
	test.Bytes(t, r.ReadBytes(3), []byte{1, 2, 3})
	test.Bytes(t, r.ReadBytes(0), []byte{})
	test.That(t, !r.EOF())
	test.T(t, r.ReadBytes(1), []byte(nil))
	test.That(t, r.EOF())

	r = NewBinaryReader([]byte{0x01, 0x02, 0x03})
	r.Seek(2)
	test.T(t, r.ReadByte(), byte(3))
	r.Seek(4)
	test.That(t, r.EOF())
}

func TestBinaryWriter(t *testing.T) {
	w := NewBinaryWriter([]byte{})
	w.WriteUint16(0x0102)
	w.WriteF2Dot14(-1.0)
	w.WriteByte(0x7F)
	test.T(t, w.Len(), uint32(5))
	w.Pad()
	test.T(t, w.Len(), uint32(8))
	test.Bytes(t, w.Bytes(), []byte{0x01, 0x02, 0xC0, 0x00, 0x7F, 0x00, 0x00, 0x00})
	w.Pad()
	test.T(t, w.Len(), uint32(8))
}

func TestBitmap(t *testing.T) {
	var tests = []struct {
		n    uint32
		bits []uint32
		b    []byte
	}{
		{5, []uint32{4}, []byte{0x08, 0x00, 0x00, 0x00}},
		{32, []uint32{0, 9, 31}, []byte{0x80, 0x40, 0x00, 0x01}},
		{33, []uint32{32}, []byte{0x00, 0x00, 0x00, 0x00, 0x80, 0x00, 0x00, 0x00}},
	}
	for _, tt := range tests {
		set := map[uint32]bool{}
		for _, i := range tt.bits {
			set[i] = true
		}

		w := NewBitmapWriter(tt.n)
		for i := uint32(0); i < tt.n; i++ {
			w.Write(set[i])
		}
		b := bitmapBytes(w, tt.n)
		test.Bytes(t, b, tt.b)

		r := NewBitmapReader(b)
		for i := uint32(0); i < tt.n; i++ {
			test.T(t, r.Read(), set[i], i)
		}
		test.That(t, !r.EOF())
	}
}
