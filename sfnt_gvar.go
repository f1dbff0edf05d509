package font

import (
	"fmt"
)

const (
	tupleEmbeddedPeak        = 0x8000
	tupleIntermediateRegion  = 0x4000
	tuplePrivatePointNumbers = 0x2000
	tupleIndexMask           = 0x0FFF

	tupleSharedPointNumbers = 0x8000
	tupleCountMask          = 0x0FFF
)

// TupleVariation is one tuple variation record of a glyph. Points is nil when the deltas apply to all points.
type TupleVariation struct {
	Peak        []float64
	Start, End  []float64 // nil unless the record has an intermediate region
	SharedIndex int       // index into the shared tuples, or -1 for an embedded peak
	Points      []uint16
	XDeltas     []int32
	YDeltas     []int32
}

// HasIntermediate returns true if the record carries explicit start and end tuples.
func (tuple TupleVariation) HasIntermediate() bool {
	return tuple.Start != nil
}

// Region returns the region of the tuple, the start and end being implied by the peak when not given explicitly.
func (tuple TupleVariation) Region() VariationRegion {
	region := make(VariationRegion, len(tuple.Peak))
	for i, peak := range tuple.Peak {
		if tuple.HasIntermediate() {
			region[i] = RegionAxis{Start: tuple.Start[i], Peak: peak, End: tuple.End[i]}
		} else {
			region[i] = impliedRegionAxis(peak)
		}
	}
	return region
}

func impliedRegionAxis(peak float64) RegionAxis {
	if peak < 0.0 {
		return RegionAxis{Start: peak, Peak: peak, End: 0.0}
	}
	return RegionAxis{Start: 0.0, Peak: peak, End: peak}
}

// GvarTable is the glyph variations table.
type GvarTable struct {
	AxisCount    int
	SharedTuples [][]float64
	GlyphCount   int

	offsets []uint32 // relative to data
	data    []byte
}

// ParseGvar parses the gvar table.
func ParseGvar(b []byte) (*GvarTable, error) {
	r := NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	_ = r.ReadUint16() // minorVersion
	axisCount := r.ReadUint16()
	sharedTupleCount := r.ReadUint16()
	sharedTuplesOffset := r.ReadUint32()
	glyphCount := r.ReadUint16()
	flags := r.ReadUint16()
	glyphVariationDataArrayOffset := r.ReadUint32()
	if r.EOF() {
		return nil, fmt.Errorf("gvar: %w", ErrInvalidFontData)
	} else if majorVersion != 1 {
		return nil, fmt.Errorf("gvar: bad version")
	} else if uint32(len(b)) < glyphVariationDataArrayOffset {
		return nil, fmt.Errorf("gvar: bad glyph variation data offset")
	}

	gvar := &GvarTable{
		AxisCount:  int(axisCount),
		GlyphCount: int(glyphCount),
		data:       b[glyphVariationDataArrayOffset:],
	}
	gvar.offsets = make([]uint32, int(glyphCount)+1)
	for i := range gvar.offsets {
		if flags&0x0001 != 0 {
			gvar.offsets[i] = r.ReadUint32()
		} else {
			gvar.offsets[i] = 2 * uint32(r.ReadUint16())
		}
		if 0 < i && gvar.offsets[i] < gvar.offsets[i-1] {
			return nil, fmt.Errorf("gvar: bad glyph variation data offsets")
		}
	}
	if r.EOF() || uint32(len(gvar.data)) < gvar.offsets[glyphCount] {
		return nil, fmt.Errorf("gvar: %w", ErrInvalidFontData)
	}

	r.Seek(sharedTuplesOffset)
	gvar.SharedTuples = make([][]float64, sharedTupleCount)
	for i := range gvar.SharedTuples {
		tuple := make([]float64, axisCount)
		for j := range tuple {
			tuple[j] = r.ReadF2Dot14()
		}
		gvar.SharedTuples[i] = tuple
	}
	if r.EOF() {
		return nil, fmt.Errorf("gvar: bad shared tuples")
	}
	return gvar, nil
}

// HasVariations returns true if the glyph has variation data.
func (gvar *GvarTable) HasVariations(glyphID uint16) bool {
	if gvar.GlyphCount <= int(glyphID) {
		return false
	}
	return gvar.offsets[glyphID] < gvar.offsets[glyphID+1]
}

// Variations returns the tuple variation records of a glyph. The number of points includes the four phantom points.
// Glyphs without variation data return no records.
func (gvar *GvarTable) Variations(glyphID uint16, numPoints int) ([]TupleVariation, error) {
	if !gvar.HasVariations(glyphID) {
		return nil, nil
	}
	b := gvar.data[gvar.offsets[glyphID]:gvar.offsets[glyphID+1]]

	r := NewBinaryReader(b)
	tupleVariationCount := r.ReadUint16()
	dataOffset := uint32(r.ReadUint16())
	if r.EOF() || uint32(len(b)) < dataOffset {
		return nil, fmt.Errorf("gvar: bad variation data for glyphID %v", glyphID)
	}

	type tupleHeader struct {
		size  uint16
		index uint16
	}
	count := int(tupleVariationCount & tupleCountMask)
	headers := make([]tupleHeader, count)
	tuples := make([]TupleVariation, count)
	for i := 0; i < count; i++ {
		headers[i].size = r.ReadUint16()
		headers[i].index = r.ReadUint16()

		tuple := TupleVariation{SharedIndex: -1}
		if headers[i].index&tupleEmbeddedPeak != 0 {
			tuple.Peak = readTuple(r, gvar.AxisCount)
		} else {
			tuple.SharedIndex = int(headers[i].index & tupleIndexMask)
			if len(gvar.SharedTuples) <= tuple.SharedIndex {
				return nil, fmt.Errorf("gvar: bad shared tuple index for glyphID %v", glyphID)
			}
			tuple.Peak = gvar.SharedTuples[tuple.SharedIndex]
		}
		if headers[i].index&tupleIntermediateRegion != 0 {
			tuple.Start = readTuple(r, gvar.AxisCount)
			tuple.End = readTuple(r, gvar.AxisCount)
		}
		tuples[i] = tuple
	}
	if r.EOF() {
		return nil, fmt.Errorf("gvar: bad tuple variation headers for glyphID %v", glyphID)
	}

	r.Seek(dataOffset)
	var sharedPoints []uint16
	if tupleVariationCount&tupleSharedPointNumbers != 0 {
		var err error
		if sharedPoints, err = readPackedPoints(r); err != nil {
			return nil, fmt.Errorf("gvar: %w for glyphID %v", err, glyphID)
		}
	}

	for i := range tuples {
		if r.Len() < uint32(headers[i].size) {
			return nil, fmt.Errorf("gvar: bad variation data size for glyphID %v", glyphID)
		}
		tr := NewBinaryReader(r.ReadBytes(uint32(headers[i].size)))

		points := sharedPoints
		if headers[i].index&tuplePrivatePointNumbers != 0 {
			var err error
			if points, err = readPackedPoints(tr); err != nil {
				return nil, fmt.Errorf("gvar: %w for glyphID %v", err, glyphID)
			}
		}
		n := numPoints
		if points != nil {
			n = len(points)
			for _, point := range points {
				if numPoints <= int(point) {
					return nil, fmt.Errorf("gvar: point number out of range for glyphID %v", glyphID)
				}
			}
		}

		var err error
		if tuples[i].XDeltas, err = readPackedDeltas(tr, n); err != nil {
			return nil, fmt.Errorf("gvar: %w for glyphID %v", err, glyphID)
		} else if tuples[i].YDeltas, err = readPackedDeltas(tr, n); err != nil {
			return nil, fmt.Errorf("gvar: %w for glyphID %v", err, glyphID)
		}
		tuples[i].Points = points
	}
	return tuples, nil
}

func readTuple(r *BinaryReader, axisCount int) []float64 {
	tuple := make([]float64, axisCount)
	for i := range tuple {
		tuple[i] = r.ReadF2Dot14()
	}
	return tuple
}

// readPackedPoints reads packed point numbers. A nil result means all points.
func readPackedPoints(r *BinaryReader) ([]uint16, error) {
	count := uint16(r.ReadUint8())
	if count == 0 {
		if r.EOF() {
			return nil, ErrInvalidFontData
		}
		return nil, nil
	} else if count&0x80 != 0 {
		count = (count&0x7F)<<8 | uint16(r.ReadUint8())
	}

	var point uint16
	points := make([]uint16, 0, count)
	for len(points) < int(count) {
		control := r.ReadUint8()
		runCount := int(control&0x7F) + 1
		words := control&0x80 != 0
		for j := 0; j < runCount && len(points) < int(count); j++ {
			if words {
				point += r.ReadUint16()
			} else {
				point += uint16(r.ReadUint8())
			}
			points = append(points, point)
		}
		if r.EOF() {
			return nil, fmt.Errorf("bad packed point numbers")
		}
	}
	return points, nil
}

// readPackedDeltas reads n packed deltas.
func readPackedDeltas(r *BinaryReader, n int) ([]int32, error) {
	deltas := make([]int32, 0, n)
	for len(deltas) < n {
		control := r.ReadUint8()
		runCount := int(control&0x3F) + 1
		for j := 0; j < runCount && len(deltas) < n; j++ {
			switch control & 0xC0 {
			case 0x80: // zero
				deltas = append(deltas, 0)
			case 0x40: // words
				deltas = append(deltas, int32(r.ReadInt16()))
			case 0xC0: // longs
				deltas = append(deltas, r.ReadInt32())
			default:
				deltas = append(deltas, int32(r.ReadInt8()))
			}
		}
		if r.EOF() {
			return nil, fmt.Errorf("bad packed deltas")
		}
	}
	return deltas, nil
}
