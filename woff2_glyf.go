package font

import (
	"fmt"
	"math"

	"github.com/tdewolff/parse/v2"
)

// GlyfLoca holds glyf and loca tables reconstructed from the WOFF2 transformed glyf table.
type GlyfLoca struct {
	Glyf        []byte
	Loca        []byte
	IndexFormat int16
	XMins       []int16 // zero for empty glyphs
}

const woff2OverlapSimpleBitmap = 0x0001

// TransformGlyfLoca returns the WOFF2 transformed glyf table of a TrueType font, the loca table is implied by it.
func TransformGlyfLoca(font TableProvider) ([]byte, error) {
	sfnt, err := NewSFNT(font)
	if err != nil {
		return nil, err
	} else if sfnt.Glyf == nil {
		return nil, fmt.Errorf("glyf: missing table")
	}
	glyf, _, err := transformGlyf(sfnt)
	return glyf, err
}

// transformGlyf returns the transformed glyf table and the xMin of every glyph.
func transformGlyf(sfnt *SFNT) ([]byte, []int16, error) {
	numGlyphs := sfnt.NumGlyphs()
	nContourStream := NewBinaryWriter([]byte{})
	nPointsStream := NewBinaryWriter([]byte{})
	flagStream := NewBinaryWriter([]byte{})
	glyphStream := NewBinaryWriter([]byte{})
	compositeStream := NewBinaryWriter([]byte{})
	bboxBitmap := NewBitmapWriter(uint32(numGlyphs))
	bboxStream := NewBinaryWriter([]byte{})
	instructionStream := NewBinaryWriter([]byte{})
	overlapSimpleBitmap := NewBitmapWriter(uint32(numGlyphs))
	hasOverlap := false

	xMins := make([]int16, numGlyphs)
	for glyphID := uint16(0); glyphID < numGlyphs; glyphID++ {
		glyph, err := sfnt.Glyf.Glyph(glyphID)
		if err != nil {
			return nil, nil, err
		}
		nContourStream.WriteInt16(glyph.NumberOfContours)
		overlapSimple := glyph.Overlap && !glyph.IsComposite()
		overlapSimpleBitmap.Write(overlapSimple)
		hasOverlap = hasOverlap || overlapSimple
		if glyph.IsEmpty() {
			bboxBitmap.Write(false)
			continue
		}
		xMins[glyphID] = glyph.XMin

		explicitBbox := true
		if !glyph.IsComposite() {
			var prev uint16
			for i, endPoint := range glyph.EndPoints {
				if i == 0 {
					Write255UInt16(nPointsStream, endPoint+1)
				} else {
					Write255UInt16(nPointsStream, endPoint-prev)
				}
				prev = endPoint
			}

			var x, y int
			for i := range glyph.XCoordinates {
				dx := int(glyph.XCoordinates[i]) - x
				dy := int(glyph.YCoordinates[i]) - y
				x, y = int(glyph.XCoordinates[i]), int(glyph.YCoordinates[i])
				flagStream.WriteByte(writeTriplet(glyphStream, dx, dy, glyph.OnCurve[i]))
			}
			xMin, yMin, xMax, yMax := pointBounds(glyph.XCoordinates, glyph.YCoordinates)
			explicitBbox = xMin != glyph.XMin || yMin != glyph.YMin || xMax != glyph.XMax || yMax != glyph.YMax

			Write255UInt16(glyphStream, uint16(len(glyph.Instructions)))
			instructionStream.WriteBytes(glyph.Instructions)
		} else if glyph.writeComponents(compositeStream) {
			Write255UInt16(glyphStream, uint16(len(glyph.Instructions)))
			instructionStream.WriteBytes(glyph.Instructions)
		}

		bboxBitmap.Write(explicitBbox)
		if explicitBbox {
			bboxStream.WriteInt16(glyph.XMin)
			bboxStream.WriteInt16(glyph.YMin)
			bboxStream.WriteInt16(glyph.XMax)
			bboxStream.WriteInt16(glyph.YMax)
		}
	}

	var optionFlags uint16
	if hasOverlap {
		optionFlags |= woff2OverlapSimpleBitmap
	}
	bboxBitmapBytes := bitmapBytes(bboxBitmap, uint32(numGlyphs))

	w := NewBinaryWriter([]byte{})
	w.WriteUint16(0) // reserved
	w.WriteUint16(optionFlags)
	w.WriteUint16(numGlyphs)
	w.WriteUint16(uint16(sfnt.Loca.Format))
	w.WriteUint32(nContourStream.Len())
	w.WriteUint32(nPointsStream.Len())
	w.WriteUint32(flagStream.Len())
	w.WriteUint32(glyphStream.Len())
	w.WriteUint32(compositeStream.Len())
	w.WriteUint32(uint32(len(bboxBitmapBytes)) + bboxStream.Len())
	w.WriteUint32(instructionStream.Len())
	w.WriteBytes(nContourStream.Bytes())
	w.WriteBytes(nPointsStream.Bytes())
	w.WriteBytes(flagStream.Bytes())
	w.WriteBytes(glyphStream.Bytes())
	w.WriteBytes(compositeStream.Bytes())
	w.WriteBytes(bboxBitmapBytes)
	w.WriteBytes(bboxStream.Bytes())
	w.WriteBytes(instructionStream.Bytes())
	if optionFlags&woff2OverlapSimpleBitmap != 0 {
		w.WriteBytes(bitmapBytes(overlapSimpleBitmap, uint32(numGlyphs)))
	}
	return w.Bytes(), xMins, nil
}

// writeTriplet writes the coordinate delta in the smallest triplet encoding and returns its flag byte.
func writeTriplet(w *BinaryWriter, dx, dy int, onCurve bool) byte {
	dxSign, dySign := byte(1), byte(1)
	if dx < 0 {
		dxSign = 0
		dx = -dx
	}
	if dy < 0 {
		dySign = 0
		dy = -dy
	}

	var flag byte
	if dx == 0 && dy < 1280 {
		flag = byte(dy>>8)<<1 + dySign
		w.WriteByte(byte(dy))
	} else if dy == 0 && dx < 1280 {
		flag = 10 + byte(dx>>8)<<1 + dxSign
		w.WriteByte(byte(dx))
	} else if dx < 65 && dy < 65 {
		flag = 20 + byte((dx-1)>>4)<<4 + byte((dy-1)>>4)<<2 + dySign<<1 + dxSign
		w.WriteByte(byte((dx-1)&0x0F)<<4 | byte((dy-1)&0x0F))
	} else if dx < 769 && dy < 769 {
		flag = 84 + byte((dx-1)>>8)*12 + byte((dy-1)>>8)<<2 + dySign<<1 + dxSign
		w.WriteByte(byte(dx - 1))
		w.WriteByte(byte(dy - 1))
	} else if dx < 4096 && dy < 4096 {
		flag = 120 + dySign<<1 + dxSign
		w.WriteByte(byte(dx >> 4))
		w.WriteByte(byte(dx&0x0F)<<4 | byte(dy>>8))
		w.WriteByte(byte(dy))
	} else {
		flag = 124 + dySign<<1 + dxSign
		w.WriteUint16(uint16(dx))
		w.WriteUint16(uint16(dy))
	}
	if !onCurve {
		flag |= 0x80
	}
	return flag
}

func tripletSign(flag byte, bit uint) int32 {
	if flag&(1<<bit) != 0 {
		return 1 // positive if bit on position is set
	}
	return -1
}

// readTriplet reads the coordinate delta for a flag with the on-curve bit cleared.
// Used for reference: https://github.com/google/woff2/blob/master/src/woff2_dec.cc
func readTriplet(r *BinaryReader, flag byte) (int32, int32) {
	var dx, dy int32
	if flag < 10 {
		b0 := int32(r.ReadByte())
		dy = tripletSign(flag, 0) * (int32(flag&0x0E)<<7 + b0)
	} else if flag < 20 {
		b0 := int32(r.ReadByte())
		dx = tripletSign(flag, 0) * (int32((flag-10)&0x0E)<<7 + b0)
	} else if flag < 84 {
		b0 := int32(r.ReadByte())
		dx = tripletSign(flag, 0) * (1 + int32((flag-20)&0x30) + b0>>4)
		dy = tripletSign(flag, 1) * (1 + int32((flag-20)&0x0C)<<2 + b0&0x0F)
	} else if flag < 120 {
		b0 := int32(r.ReadByte())
		b1 := int32(r.ReadByte())
		dx = tripletSign(flag, 0) * (1 + int32((flag-84)/12)<<8 + b0)
		dy = tripletSign(flag, 1) * (1 + int32((flag-84)%12>>2)<<8 + b1)
	} else if flag < 124 {
		b0 := int32(r.ReadByte())
		b1 := int32(r.ReadByte())
		b2 := int32(r.ReadByte())
		dx = tripletSign(flag, 0) * (b0<<4 + b1>>4)
		dy = tripletSign(flag, 1) * ((b1&0x0F)<<8 + b2)
	} else {
		dx = tripletSign(flag, 0) * int32(r.ReadUint16())
		dy = tripletSign(flag, 1) * int32(r.ReadUint16())
	}
	return dx, dy
}

// ReconstructGlyfLoca decodes a WOFF2 transformed glyf table into glyf and loca tables. The glyph count must match that of the maxp table.
func ReconstructGlyfLoca(b []byte, numGlyphs uint16) (*GlyfLoca, error) {
	r := NewBinaryReader(b)
	_ = r.ReadUint16() // reserved
	optionFlags := r.ReadUint16()
	streamNumGlyphs := r.ReadUint16()
	indexFormat := r.ReadUint16()
	nContourStreamSize := r.ReadUint32()
	nPointsStreamSize := r.ReadUint32()
	flagStreamSize := r.ReadUint32()
	glyphStreamSize := r.ReadUint32()
	compositeStreamSize := r.ReadUint32()
	bboxStreamSize := r.ReadUint32()
	instructionStreamSize := r.ReadUint32()
	if r.EOF() {
		return nil, fmt.Errorf("glyf: header too small: %w", ErrInvalidFontData)
	} else if streamNumGlyphs != numGlyphs {
		return nil, fmt.Errorf("glyf: glyph count mismatch: %w", ErrInvalidFontData)
	} else if 1 < indexFormat {
		return nil, fmt.Errorf("glyf: bad index format: %w", ErrInvalidFontData)
	}

	bitmapLen := bitmapSize(uint32(numGlyphs))
	if nContourStreamSize < 2*uint32(numGlyphs) {
		return nil, fmt.Errorf("glyf: nContour stream too small: %w", ErrInvalidFontData)
	} else if bboxStreamSize < bitmapLen {
		return nil, fmt.Errorf("glyf: bbox stream too small: %w", ErrInvalidFontData)
	}
	streams := []struct {
		name string
		size uint32
	}{
		{"nContour", nContourStreamSize},
		{"nPoints", nPointsStreamSize},
		{"flag", flagStreamSize},
		{"glyph", glyphStreamSize},
		{"composite", compositeStreamSize},
		{"bbox", bboxStreamSize},
		{"instruction", instructionStreamSize},
	}
	data := make([][]byte, len(streams))
	for i, stream := range streams {
		if data[i] = r.ReadBytes(stream.size); r.EOF() {
			return nil, fmt.Errorf("glyf: %s stream too small: %w", stream.name, ErrInvalidFontData)
		}
	}
	nContourStream := NewBinaryReader(data[0])
	nPointsStream := NewBinaryReader(data[1])
	flagStream := NewBinaryReader(data[2])
	glyphStream := NewBinaryReader(data[3])
	compositeStream := NewBinaryReader(data[4])
	bboxBitmap := NewBitmapReader(data[5][:bitmapLen])
	bboxStream := NewBinaryReader(data[5][bitmapLen:])
	instructionStream := NewBinaryReader(data[6])
	var overlapSimpleBitmap *parse.BitmapReader
	if optionFlags&woff2OverlapSimpleBitmap != 0 {
		b := r.ReadBytes(bitmapLen)
		if r.EOF() {
			return nil, fmt.Errorf("glyf: overlapSimple bitmap too small: %w", ErrInvalidFontData)
		}
		overlapSimpleBitmap = NewBitmapReader(b)
	}

	glyphs := make([][]byte, numGlyphs)
	xMins := make([]int16, numGlyphs)
	var size uint32
	for glyphID := uint16(0); glyphID < numGlyphs; glyphID++ {
		explicitBbox := bboxBitmap.Read()
		overlapSimple := overlapSimpleBitmap != nil && overlapSimpleBitmap.Read()
		nContours := nContourStream.ReadInt16()
		if nContours < -1 {
			return nil, fmt.Errorf("glyf: invalid nContours value: %w", ErrInvalidFontData)
		} else if nContours == 0 {
			if explicitBbox {
				return nil, fmt.Errorf("glyf: empty glyph cannot have bbox definition: %w", ErrInvalidFontData)
			}
			continue
		}

		glyph := &glyfGlyph{NumberOfContours: nContours}
		if 0 < nContours {
			var numPoints uint32
			glyph.EndPoints = make([]uint16, nContours)
			for i := range glyph.EndPoints {
				n, err := Read255UInt16(nPointsStream)
				if err != nil {
					return nil, fmt.Errorf("glyf: nPoints stream too small: %w", ErrInvalidFontData)
				} else if numPoints += uint32(n); math.MaxUint16 < numPoints || n == 0 && i == 0 {
					return nil, fmt.Errorf("glyf: bad number of points: %w", ErrInvalidFontData)
				}
				glyph.EndPoints[i] = uint16(numPoints - 1)
			}

			glyph.OnCurve = make([]bool, numPoints)
			glyph.XCoordinates = make([]int16, numPoints)
			glyph.YCoordinates = make([]int16, numPoints)
			var x, y int32
			for i := uint32(0); i < numPoints; i++ {
				flag := flagStream.ReadByte()
				if flagStream.EOF() {
					return nil, fmt.Errorf("glyf: flag stream too small: %w", ErrInvalidFontData)
				}
				glyph.OnCurve[i] = flag&0x80 == 0

				dx, dy := readTriplet(glyphStream, flag&0x7F)
				if glyphStream.EOF() {
					return nil, fmt.Errorf("glyf: glyph stream too small: %w", ErrInvalidFontData)
				}
				x += dx
				y += dy
				if x < math.MinInt16 || math.MaxInt16 < x || y < math.MinInt16 || math.MaxInt16 < y {
					return nil, fmt.Errorf("glyf: coordinate overflow: %w", ErrInvalidFontData)
				}
				glyph.XCoordinates[i] = int16(x)
				glyph.YCoordinates[i] = int16(y)
			}
			glyph.Overlap = overlapSimple

			instructionLength, err := Read255UInt16(glyphStream)
			if err != nil {
				return nil, fmt.Errorf("glyf: glyph stream too small: %w", ErrInvalidFontData)
			}
			glyph.Instructions = instructionStream.ReadBytes(uint32(instructionLength))
			if instructionStream.EOF() {
				return nil, fmt.Errorf("glyf: instruction stream too small: %w", ErrInvalidFontData)
			}
			glyph.UpdateBounds()
		} else {
			if !explicitBbox {
				return nil, fmt.Errorf("glyf: composite glyph must have bbox definition: %w", ErrInvalidFontData)
			}
			hasInstructions := false
			for {
				component := readGlyfComponent(compositeStream)
				if compositeStream.EOF() {
					return nil, fmt.Errorf("glyf: composite stream too small: %w", ErrInvalidFontData)
				}
				if component.Flags&compositeHaveInstructions != 0 {
					hasInstructions = true
				}
				glyph.Components = append(glyph.Components, component)
				if component.Flags&compositeMoreComponents == 0 {
					break
				}
			}
			if hasInstructions {
				instructionLength, err := Read255UInt16(glyphStream)
				if err != nil {
					return nil, fmt.Errorf("glyf: glyph stream too small: %w", ErrInvalidFontData)
				}
				glyph.Instructions = instructionStream.ReadBytes(uint32(instructionLength))
				if instructionStream.EOF() {
					return nil, fmt.Errorf("glyf: instruction stream too small: %w", ErrInvalidFontData)
				}
			}
		}

		if explicitBbox {
			glyph.XMin = bboxStream.ReadInt16()
			glyph.YMin = bboxStream.ReadInt16()
			glyph.XMax = bboxStream.ReadInt16()
			glyph.YMax = bboxStream.ReadInt16()
			if bboxStream.EOF() {
				return nil, fmt.Errorf("glyf: bbox stream too small: %w", ErrInvalidFontData)
			}
		}
		xMins[glyphID] = glyph.XMin
		glyphs[glyphID] = glyph.Write()
		size += align4(uint32(len(glyphs[glyphID])))
	}

	if indexFormat == 0 && math.MaxUint16 < size/2 {
		return nil, fmt.Errorf("loca: glyf table too large for short offsets: %w", ErrInvalidFontData)
	}
	glyf, loca, _ := buildGlyfLoca(glyphs, int16(indexFormat))
	return &GlyfLoca{
		Glyf:        glyf,
		Loca:        loca,
		IndexFormat: int16(indexFormat),
		XMins:       xMins,
	}, nil
}
